package persistence

import (
	"context"
	"sync/atomic"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
)

// Backend stores the full job mapping
type Backend interface {
	LoadAll(ctx context.Context) ([]*Job, error)
	SaveAll(ctx context.Context, jobs []*Job) error
}

// Fallback delegates to the primary backend and degrades permanently
// to the reserve one on any primary failure
type Fallback struct {
	primary  Backend
	reserve  Backend
	degraded int32
}

// NewFallback creates fallback wrapper over two backends
func NewFallback(primary, reserve Backend) (*Fallback, error) {
	if primary == nil {
		return nil, errors.New("no primary backend")
	}
	if reserve == nil {
		return nil, errors.New("no reserve backend")
	}
	return &Fallback{primary: primary, reserve: reserve}, nil
}

// LoadAll loads jobs from the active backend
func (f *Fallback) LoadAll(ctx context.Context) ([]*Job, error) {
	if f.isDegraded() {
		return f.reserve.LoadAll(ctx)
	}
	res, err := f.primary.LoadAll(ctx)
	if err != nil {
		f.degrade(err, "load")
		return f.reserve.LoadAll(ctx)
	}
	return res, nil
}

// SaveAll saves jobs using the active backend
func (f *Fallback) SaveAll(ctx context.Context, jobs []*Job) error {
	if f.isDegraded() {
		return f.reserve.SaveAll(ctx, jobs)
	}
	err := f.primary.SaveAll(ctx, jobs)
	if err != nil {
		f.degrade(err, "save")
		return f.reserve.SaveAll(ctx, jobs)
	}
	return nil
}

func (f *Fallback) isDegraded() bool {
	return atomic.LoadInt32(&f.degraded) == 1
}

func (f *Fallback) degrade(err error, op string) {
	if atomic.CompareAndSwapInt32(&f.degraded, 0, 1) {
		goapp.Log.Warn().Err(err).Str("op", op).Str("from", "primary").
			Str("to", "reserve").Msg("persistence backend degraded")
	}
}
