package inform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jordan-wright/email"
	"github.com/spf13/viper"
)

// fakeSender posts the email as JSON to a configured URL.
// Meant for test environments without a real SMTP server
type fakeSender struct {
	url string
	cl  *http.Client
}

// NewFakeSender creates HTTP backed fake email sender
func NewFakeSender(c *viper.Viper) (*fakeSender, error) {
	url := c.GetString("smtp.fakeUrl")
	if url == "" {
		return nil, fmt.Errorf("no smtp.fakeUrl")
	}
	goapp.Log.Info().Str("url", url).Msg("fake email sender")
	return &fakeSender{url: url, cl: &http.Client{Timeout: time.Second * 10}}, nil
}

// Send posts email
func (s *fakeSender) Send(e *email.Email) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("can't marshal email: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.cl.Do(req)
	if err != nil {
		return fmt.Errorf("can't post email to '%s': %w", s.url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
		_ = resp.Body.Close()
	}()
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		return fmt.Errorf("can't post email to '%s': %w", s.url, err)
	}
	return nil
}
