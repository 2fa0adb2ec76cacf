package statusservice

import (
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"github.com/radu103/voxtext/internal/pkg/persistence"
)

// WSConnHandler provides subscribed connections
type WSConnHandler interface {
	GetConnections(id string) ([]WsConn, bool)
}

// Notifier pushes job record updates to subscribed websocket clients.
// It is wired as a job store listener
type Notifier struct {
	wsHandler WSConnHandler
}

// NewNotifier creates notifier
func NewNotifier(wsHandler WSConnHandler) (*Notifier, error) {
	if wsHandler == nil {
		return nil, errors.New("no WSHandler")
	}
	return &Notifier{wsHandler: wsHandler}, nil
}

// JobChanged pushes the job snapshot to its subscribers.
// Runs async not to delay the mutating caller
func (n *Notifier) JobChanged(job *persistence.Job) {
	go n.push(job)
}

func (n *Notifier) push(job *persistence.Job) {
	conns, found := n.wsHandler.GetConnections(job.ID)
	if !found {
		goapp.Log.Debug().Str("ID", job.ID).Msg("no ws connections")
		return
	}
	for _, c := range conns {
		if err := c.WriteJSON(job); err != nil {
			goapp.Log.Error().Err(err).Str("ID", job.ID).Msg("can't write to websocket")
		}
	}
}
