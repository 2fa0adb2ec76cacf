package mocks

import (
	"context"

	"github.com/jordan-wright/email"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/statusservice"
	"github.com/radu103/voxtext/internal/pkg/transcriber/api"
	"github.com/stretchr/testify/mock"
)

// Backend is persistence backend mock
type Backend struct{ mock.Mock }

func (m *Backend) LoadAll(ctx context.Context) ([]*persistence.Job, error) {
	args := m.Called(ctx)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *Backend) SaveAll(ctx context.Context, jobs []*persistence.Job) error {
	args := m.Called(ctx, jobs)
	return args.Error(0)
}

// Store is jobs store mock
type Store struct{ mock.Mock }

func (m *Store) Create(ctx context.Context, job *persistence.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *Store) Get(id string) (*persistence.Job, error) {
	args := m.Called(id)
	return to[*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *Store) List() []*persistence.Job {
	args := m.Called()
	return to[[]*persistence.Job](args.Get(0))
}

func (m *Store) Update(ctx context.Context, id string, mutate func(*persistence.Job) error) (*persistence.Job, error) {
	args := m.Called(ctx, id, mutate)
	return to[*persistence.Job](args.Get(0)), args.Error(1)
}

// Dispatcher is worker dispatch mock
type Dispatcher struct{ mock.Mock }

func (m *Dispatcher) Dispatch(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// Transcriber is engine runner mock
type Transcriber struct{ mock.Mock }

func (m *Transcriber) Run(ctx context.Context, audioPath string) (*api.Result, error) {
	args := m.Called(ctx, audioPath)
	return to[*api.Result](args.Get(0)), args.Error(1)
}

// Notifier is terminal state notifier mock
type Notifier struct{ mock.Mock }

func (m *Notifier) NotifyFinished(ctx context.Context, job *persistence.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// WSConnHandler is websocket subscription keeper mock
type WSConnHandler struct{ mock.Mock }

func (m *WSConnHandler) HandleConnection(conn statusservice.WsConn) error {
	args := m.Called(conn)
	return args.Error(0)
}

// Sender is email sender mock
type Sender struct{ mock.Mock }

func (m *Sender) Send(e *email.Email) error {
	args := m.Called(e)
	return args.Error(0)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
