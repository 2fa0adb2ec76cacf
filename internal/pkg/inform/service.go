package inform

import (
	"context"
	"fmt"
	"net"
	"net/smtp"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jordan-wright/email"
	"github.com/pkg/errors"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/status"
	"github.com/spf13/viper"
)

// Sender send emails
type Sender interface {
	Send(email *email.Email) error
}

// Service mails a notification when a job reaches a terminal state
type Service struct {
	sender Sender
	from   string
	to     []string
}

// NewService creates inform service
func NewService(sender Sender, from string, to []string) (*Service, error) {
	if sender == nil {
		return nil, errors.New("no sender")
	}
	if from == "" {
		return nil, errors.New("no from address")
	}
	if len(to) == 0 {
		return nil, errors.New("no to addresses")
	}
	return &Service{sender: sender, from: from, to: to}, nil
}

// NotifyFinished sends the terminal state email for the job
func (s *Service) NotifyFinished(ctx context.Context, job *persistence.Job) error {
	e := email.NewEmail()
	e.From = s.from
	e.To = s.to
	if status.From(job.Status) == status.Failed {
		e.Subject = fmt.Sprintf("Transcription failed: %s", job.OriginalFilename)
		e.Text = []byte(fmt.Sprintf("Job %s failed.\n\nError: %s\n", job.ID, job.Error))
	} else {
		e.Subject = fmt.Sprintf("Transcription completed: %s", job.OriginalFilename)
		e.Text = []byte(fmt.Sprintf("Job %s completed.\n\nTranscript is available for download.\n", job.ID))
	}
	goapp.Log.Info().Str("ID", job.ID).Str("subject", e.Subject).Msg("sending email")
	if err := s.sender.Send(e); err != nil {
		return fmt.Errorf("can't send email: %w", err)
	}
	return nil
}

// simpleSender sends emails over SMTP
type simpleSender struct {
	addr string
	auth smtp.Auth
}

// NewSimpleSender initiates SMTP email sender
func NewSimpleSender(c *viper.Viper) (*simpleSender, error) {
	host := c.GetString("smtp.host")
	if host == "" {
		return nil, errors.New("no smtp host")
	}
	port := c.GetString("smtp.port")
	if port == "" {
		port = "25"
	}
	res := &simpleSender{addr: net.JoinHostPort(host, port)}
	if user := c.GetString("smtp.username"); user != "" {
		res.auth = smtp.PlainAuth("", user, c.GetString("smtp.password"), host)
	}
	goapp.Log.Info().Str("addr", res.addr).Msg("SMTP sender")
	return res, nil
}

// Send sends email
func (s *simpleSender) Send(e *email.Email) error {
	return e.Send(s.addr, s.auth)
}
