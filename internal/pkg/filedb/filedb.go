package filedb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"github.com/radu103/voxtext/internal/pkg/persistence"
)

// DB keeps the whole job mapping in one JSON document on disk
type DB struct {
	file string
}

// NewDB creates file backed jobs DB
func NewDB(file string) (*DB, error) {
	if file == "" {
		return nil, errors.New("no jobs file")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("can't create dir for '%s': %w", file, err)
	}
	return &DB{file: file}, nil
}

// LoadAll reads all jobs from the document, insertion order preserved.
// A missing file is an empty store, not an error
func (db *DB) LoadAll(ctx context.Context) ([]*persistence.Job, error) {
	data, err := os.ReadFile(db.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read jobs file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var res []*persistence.Job
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("can't parse jobs file: %w", err)
	}
	goapp.Log.Info().Int("jobs", len(res)).Str("file", db.file).Msg("loaded")
	return res, nil
}

// SaveAll overwrites the document atomically - write tmp, then rename
func (db *DB) SaveAll(ctx context.Context, jobs []*persistence.Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("can't marshal jobs: %w", err)
	}
	tmp := db.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("can't write jobs tmp file: %w", err)
	}
	if err := os.Rename(tmp, db.file); err != nil {
		return fmt.Errorf("can't persist jobs file: %w", err)
	}
	return nil
}
