package filedb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_Fails(t *testing.T) {
	_, err := NewDB("")
	assert.NotNil(t, err)
}

func TestLoadAll_Empty(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "jobs.json"))
	require.Nil(t, err)
	jobs, err := db.LoadAll(context.Background())
	require.Nil(t, err)
	assert.Empty(t, jobs)
}

func TestSaveAll_RoundTrip(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "jobs.json"))
	require.Nil(t, err)
	in := []*persistence.Job{
		{ID: "1", Status: "queued", CreatedAt: time.Now().Truncate(time.Second),
			OriginalFilename: "olia.wav", StoredPath: "/audio/1.wav"},
		{ID: "2", Status: "completed", CreatedAt: time.Now().Truncate(time.Second),
			OutputPath: "/output/olia_transcription.txt", Transcription: "text"},
	}
	require.Nil(t, db.SaveAll(context.Background(), in))
	out, err := db.LoadAll(context.Background())
	require.Nil(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)
	assert.Equal(t, "queued", out[0].Status)
	assert.Equal(t, "/output/olia_transcription.txt", out[1].OutputPath)
}

func TestSaveAll_Overwrites(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "jobs.json"))
	require.Nil(t, err)
	require.Nil(t, db.SaveAll(context.Background(), []*persistence.Job{{ID: "1"}, {ID: "2"}}))
	require.Nil(t, db.SaveAll(context.Background(), []*persistence.Job{{ID: "1", Status: "failed"}}))
	out, err := db.LoadAll(context.Background())
	require.Nil(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "failed", out[0].Status)
}

func TestSaveAll_NoTmpLeftover(t *testing.T) {
	file := filepath.Join(t.TempDir(), "jobs.json")
	db, err := NewDB(file)
	require.Nil(t, err)
	require.Nil(t, db.SaveAll(context.Background(), []*persistence.Job{{ID: "1"}}))
	_, err = os.Stat(file + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadAll_Corrupted(t *testing.T) {
	file := filepath.Join(t.TempDir(), "jobs.json")
	require.Nil(t, os.WriteFile(file, []byte("olia"), 0644))
	db, err := NewDB(file)
	require.Nil(t, err)
	_, err = db.LoadAll(context.Background())
	assert.NotNil(t, err)
}

func TestNewDB_CreatesDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data", "jobs.json")
	_, err := NewDB(file)
	require.Nil(t, err)
	_, err = os.Stat(filepath.Dir(file))
	assert.Nil(t, err)
}
