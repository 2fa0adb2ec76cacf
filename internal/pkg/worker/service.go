package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/status"
	tapi "github.com/radu103/voxtext/internal/pkg/transcriber/api"
	"github.com/radu103/voxtext/internal/pkg/utils"
)

// Store provides job record access
type Store interface {
	Get(id string) (*persistence.Job, error)
	Update(ctx context.Context, id string, mutate func(*persistence.Job) error) (*persistence.Job, error)
}

// Transcriber runs the external engine for one audio file
type Transcriber interface {
	Run(ctx context.Context, audioPath string) (*tapi.Result, error)
}

// Notifier informs about a job reaching a terminal state
type Notifier interface {
	NotifyFinished(ctx context.Context, job *persistence.Job) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	WorkerCount int
	QueueSize   int
	Store       Store
	Transcriber Transcriber
	// Notifier is optional
	Notifier Notifier

	jobCh chan string
}

const defaultQueueSize = 512

// ErrQueueFull indicates the dispatch queue reached its ceiling
var ErrQueueFull = errors.New("job queue full")

const previewLen = 1000

// StartWorkerService starts the job processing pool.
// Returns channel for tracking if all workers are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	if data.QueueSize < 1 {
		data.QueueSize = defaultQueueSize
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Int("queue", data.QueueSize).Msg("Starting workers")
	data.jobCh = make(chan string, data.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < data.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-data.jobCh:
					if !ok {
						return
					}
					handleJob(ctx, id, data)
				}
			}
		}()
	}
	res := make(chan struct{}, 1)
	go func() {
		wg.Wait()
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

// Dispatch hands a queued job off to the pool without blocking the caller
func (data *ServiceData) Dispatch(id string) error {
	if data.jobCh == nil {
		return errors.New("worker service not started")
	}
	select {
	case data.jobCh <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// handleJob drives one job from queued to a terminal state.
// The assigned worker is the only mutator of the record
func handleJob(ctx context.Context, id string, data *ServiceData) {
	goapp.Log.Info().Str("ID", id).Msg("handling job")
	job, err := data.Store.Update(ctx, id, func(j *persistence.Job) error {
		now := time.Now()
		j.Status = status.Processing.String()
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't start job")
		return
	}

	res, err := data.Transcriber.Run(ctx, job.StoredPath)
	if err != nil {
		failJob(ctx, id, err.Error(), data)
		return
	}
	if !utils.FileExists(res.OutputPath) {
		// exit code 0 alone is not proof of a usable result
		failJob(ctx, id, fmt.Sprintf("output file not found: %s", res.OutputPath), data)
		return
	}
	text, err := os.ReadFile(res.OutputPath)
	if err != nil {
		failJob(ctx, id, fmt.Sprintf("can't read output file: %v", err), data)
		return
	}

	job, err = data.Store.Update(ctx, id, func(j *persistence.Job) error {
		now := time.Now()
		j.Status = status.Completed.String()
		j.CompletedAt = &now
		j.OutputPath = res.OutputPath
		j.Transcription = preview(string(text))
		return nil
	})
	if err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't complete job")
		return
	}
	goapp.Log.Info().Str("ID", id).Msg("Transcription completed")
	notifyFinished(ctx, job, data)
}

func failJob(ctx context.Context, id, errMsg string, data *ServiceData) {
	goapp.Log.Error().Str("ID", id).Str("error", errMsg).Msg("job failed")
	job, err := data.Store.Update(ctx, id, func(j *persistence.Job) error {
		j.Status = status.Failed.String()
		j.Error = errMsg
		return nil
	})
	if err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't save failure")
		return
	}
	notifyFinished(ctx, job, data)
}

func notifyFinished(ctx context.Context, job *persistence.Job, data *ServiceData) {
	if data.Notifier == nil {
		return
	}
	if err := data.Notifier.NotifyFinished(ctx, job); err != nil {
		goapp.Log.Error().Err(err).Str("ID", job.ID).Msg("can't notify")
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > previewLen {
		return string(r[:previewLen]) + "..."
	}
	return text
}

func validate(data *ServiceData) error {
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.Store == nil {
		return fmt.Errorf("no store")
	}
	if data.Transcriber == nil {
		return fmt.Errorf("no Transcriber")
	}
	return nil
}
