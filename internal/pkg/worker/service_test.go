package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/status"
	"github.com/radu103/voxtext/internal/pkg/store"
	"github.com/radu103/voxtext/internal/pkg/test/mocks"
	"github.com/radu103/voxtext/internal/pkg/transcriber/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	trMock     *mocks.Transcriber
	notifMock  *mocks.Notifier
	jobs       *store.Jobs
	tData      *ServiceData
	tCtx       context.Context
	tCancelF   func()
)

func initTest(t *testing.T) {
	trMock = &mocks.Transcriber{}
	notifMock = &mocks.Notifier{}
	notifMock.On("NotifyFinished", mock.Anything, mock.Anything).Return(nil)
	bm := &mocks.Backend{}
	bm.On("LoadAll", mock.Anything).Return(nil, nil)
	bm.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
	var err error
	jobs, err = store.NewJobs(context.Background(), bm)
	require.Nil(t, err)
	tData = &ServiceData{WorkerCount: 2, Store: jobs, Transcriber: trMock, Notifier: notifMock}
	tCtx, tCancelF = context.WithCancel(context.Background())
	t.Cleanup(tCancelF)
}

func addJob(t *testing.T, id string) {
	require.Nil(t, jobs.Create(context.Background(), &persistence.Job{ID: id,
		Status: status.Queued.String(), CreatedAt: time.Now(),
		OriginalFilename: id + ".wav", StoredPath: "/audio/" + id + ".wav"}))
}

func waitStatus(t *testing.T, id, st string) *persistence.Job {
	var res *persistence.Job
	require.Eventually(t, func() bool {
		j, err := jobs.Get(id)
		if err != nil {
			return false
		}
		res = j
		return j.Status == st
	}, time.Second*2, time.Millisecond*10)
	return res
}

func TestStart_Fails(t *testing.T) {
	initTest(t)
	_, err := StartWorkerService(tCtx, &ServiceData{})
	assert.NotNil(t, err)
	_, err = StartWorkerService(tCtx, &ServiceData{WorkerCount: 1, Store: jobs})
	assert.NotNil(t, err)
}

func TestStart_ExitsOnCancel(t *testing.T) {
	initTest(t)
	doneCh, err := StartWorkerService(tCtx, tData)
	require.Nil(t, err)
	tCancelF()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Error("timeout waiting for workers")
	}
}

func TestHandle_Completes(t *testing.T) {
	initTest(t)
	out := filepath.Join(t.TempDir(), "1_transcription.txt")
	require.Nil(t, os.WriteFile(out, []byte("the text"), 0644))
	trMock.On("Run", mock.Anything, "/audio/1.wav").Return(&api.Result{OutputPath: out}, nil)

	_, err := StartWorkerService(tCtx, tData)
	require.Nil(t, err)
	addJob(t, "1")
	require.Nil(t, tData.Dispatch("1"))

	j := waitStatus(t, "1", "completed")
	assert.Equal(t, "the text", j.Transcription)
	assert.Equal(t, out, j.OutputPath)
	assert.NotNil(t, j.StartedAt)
	assert.NotNil(t, j.CompletedAt)
	notifMock.AssertCalled(t, "NotifyFinished", mock.Anything, mock.Anything)
}

func TestHandle_EngineFails(t *testing.T) {
	initTest(t)
	trMock.On("Run", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("engine failed: olia"))

	_, err := StartWorkerService(tCtx, tData)
	require.Nil(t, err)
	addJob(t, "1")
	require.Nil(t, tData.Dispatch("1"))

	j := waitStatus(t, "1", "failed")
	assert.Contains(t, j.Error, "olia")
	notifMock.AssertCalled(t, "NotifyFinished", mock.Anything, mock.Anything)
}

func TestHandle_NoOutputFile(t *testing.T) {
	initTest(t)
	trMock.On("Run", mock.Anything, mock.Anything).Return(
		&api.Result{OutputPath: "/no/such/file.txt"}, nil)

	_, err := StartWorkerService(tCtx, tData)
	require.Nil(t, err)
	addJob(t, "1")
	require.Nil(t, tData.Dispatch("1"))

	j := waitStatus(t, "1", "failed")
	assert.Contains(t, j.Error, "output file not found")
}

func TestHandle_NoNotifier(t *testing.T) {
	initTest(t)
	tData.Notifier = nil
	trMock.On("Run", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("olia"))

	_, err := StartWorkerService(tCtx, tData)
	require.Nil(t, err)
	addJob(t, "1")
	require.Nil(t, tData.Dispatch("1"))
	waitStatus(t, "1", "failed")
}

func TestDispatch_NotStarted(t *testing.T) {
	initTest(t)
	assert.NotNil(t, tData.Dispatch("1"))
}

func TestDispatch_QueueFull(t *testing.T) {
	initTest(t)
	tData.jobCh = make(chan string, 1)
	require.Nil(t, tData.Dispatch("1"))
	assert.ErrorIs(t, tData.Dispatch("2"), ErrQueueFull)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "olia", preview("olia"))
	long := strings.Repeat("a", 1500)
	res := preview(long)
	assert.Len(t, []rune(res), 1003)
	assert.True(t, strings.HasSuffix(res, "..."))
}
