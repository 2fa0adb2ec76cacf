package store

import (
	"context"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/status"
)

// Backend provides durable storage for the job mapping
type Backend interface {
	LoadAll(ctx context.Context) ([]*persistence.Job, error)
	SaveAll(ctx context.Context, jobs []*persistence.Job) error
}

// ErrNotFound indicates unknown job ID
var ErrNotFound = errors.New("job not found")

// Jobs is the authoritative in-memory job mapping.
// It hydrates from the backend once at startup and flushes on every mutation.
// Backend failures are logged, in-memory state stays authoritative
type Jobs struct {
	backend   Backend
	lock      sync.Mutex
	jobs      map[string]*persistence.Job
	order     []string
	listeners []func(*persistence.Job)
}

// NewJobs creates the store and hydrates it from the backend
func NewJobs(ctx context.Context, backend Backend) (*Jobs, error) {
	if backend == nil {
		return nil, errors.New("no backend")
	}
	res := &Jobs{backend: backend, jobs: map[string]*persistence.Job{}}
	loaded, err := backend.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't hydrate jobs")
	}
	for _, j := range loaded {
		if j.ID == "" {
			continue
		}
		if _, ok := res.jobs[j.ID]; ok {
			goapp.Log.Warn().Str("ID", j.ID).Msg("duplicate job in backend - skip")
			continue
		}
		res.jobs[j.ID] = j.Clone()
		res.order = append(res.order, j.ID)
	}
	goapp.Log.Info().Int("jobs", len(res.order)).Msg("jobs store hydrated")
	return res, nil
}

// AddListener registers a callback invoked with a job snapshot after every mutation
func (js *Jobs) AddListener(f func(*persistence.Job)) {
	js.lock.Lock()
	defer js.lock.Unlock()
	js.listeners = append(js.listeners, f)
}

// Create registers a new job and flushes
func (js *Jobs) Create(ctx context.Context, job *persistence.Job) error {
	if job == nil || job.ID == "" {
		return errors.New("no job ID")
	}
	js.lock.Lock()
	if _, ok := js.jobs[job.ID]; ok {
		js.lock.Unlock()
		return errors.Errorf("job '%s' already exists", job.ID)
	}
	cp := job.Clone()
	js.jobs[cp.ID] = cp
	js.order = append(js.order, cp.ID)
	js.flushNoSync(ctx)
	snap := cp.Clone()
	ls := js.listeners
	js.lock.Unlock()
	notify(ls, snap)
	return nil
}

// Get returns a snapshot of the job or ErrNotFound
func (js *Jobs) Get(id string) (*persistence.Job, error) {
	js.lock.Lock()
	defer js.lock.Unlock()
	j, ok := js.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

// List returns snapshots of all jobs in insertion order
func (js *Jobs) List() []*persistence.Job {
	js.lock.Lock()
	defer js.lock.Unlock()
	res := make([]*persistence.Job, 0, len(js.order))
	for _, id := range js.order {
		res = append(res, js.jobs[id].Clone())
	}
	return res
}

// Update applies mutate to a copy of the job, validates the status move,
// swaps the copy in and flushes. Safe for concurrent callers
func (js *Jobs) Update(ctx context.Context, id string, mutate func(*persistence.Job) error) (*persistence.Job, error) {
	js.lock.Lock()
	j, ok := js.jobs[id]
	if !ok {
		js.lock.Unlock()
		return nil, ErrNotFound
	}
	cp := j.Clone()
	if err := mutate(cp); err != nil {
		js.lock.Unlock()
		return nil, err
	}
	if cp.ID != j.ID {
		js.lock.Unlock()
		return nil, errors.New("can't change job ID")
	}
	if cp.Status != j.Status {
		from, to := status.From(j.Status), status.From(cp.Status)
		if !from.CanTransition(to) {
			js.lock.Unlock()
			return nil, errors.Errorf("invalid status transition '%s' -> '%s'", j.Status, cp.Status)
		}
	}
	js.jobs[id] = cp
	js.flushNoSync(ctx)
	snap := cp.Clone()
	ls := js.listeners
	js.lock.Unlock()
	notify(ls, snap)
	return snap.Clone(), nil
}

// Close makes the final flush. Guaranteed to be invoked once by the owning main
func (js *Jobs) Close(ctx context.Context) error {
	js.lock.Lock()
	defer js.lock.Unlock()
	goapp.Log.Info().Int("jobs", len(js.order)).Msg("final jobs flush")
	return js.backend.SaveAll(ctx, js.snapshotNoSync())
}

func (js *Jobs) flushNoSync(ctx context.Context) {
	if err := js.backend.SaveAll(ctx, js.snapshotNoSync()); err != nil {
		goapp.Log.Error().Err(err).Msg("can't persist jobs")
	}
}

func (js *Jobs) snapshotNoSync() []*persistence.Job {
	res := make([]*persistence.Job, 0, len(js.order))
	for _, id := range js.order {
		res = append(res, js.jobs[id].Clone())
	}
	return res
}

func notify(listeners []func(*persistence.Job), j *persistence.Job) {
	for _, f := range listeners {
		f(j)
	}
}
