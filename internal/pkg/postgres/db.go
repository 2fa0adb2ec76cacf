package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/utils"
)

// DB stores one row per job in postgresql
type DB struct {
	pool *pgxpool.Pool
}

// NewDB connects to postgres and makes sure the jobs table exists.
// Connection attempts are retried for a short period
func NewDB(ctx context.Context, url string) (*DB, error) {
	dbConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("can't parse db url: %w", err)
	}
	dbConfig.ConnConfig.Tracer = utils.NewDBLogTracer()

	var pool *pgxpool.Pool
	op := func() error {
		var err error
		pool, err = pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			return err
		}
		return pool.Ping(ctx)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("can't connect to db: %w", err)
	}

	res := &DB{pool: pool}
	if err := res.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return res, nil
}

func (db *DB) init(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS jobs(
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	created TIMESTAMPTZ NOT NULL,
	updated TIMESTAMPTZ NOT NULL)`)
	if err != nil {
		return fmt.Errorf("can't init jobs table: %w", err)
	}
	return nil
}

// LoadAll loads all jobs ordered by creation time
func (db *DB) LoadAll(ctx context.Context) ([]*persistence.Job, error) {
	rows, err := db.pool.Query(ctx, `SELECT data FROM jobs ORDER BY created`)
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	defer rows.Close()
	var res []*persistence.Job
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("can't scan job: %w", err)
		}
		var job persistence.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("can't parse job: %w", err)
		}
		res = append(res, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	return res, nil
}

// SaveAll upserts every job by primary key
func (db *DB) SaveAll(ctx context.Context, jobs []*persistence.Job) error {
	now := time.Now()
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("can't marshal job: %w", err)
		}
		_, err = db.pool.Exec(ctx, `INSERT INTO jobs(id, data, created, updated)
	VALUES($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated = EXCLUDED.updated`,
			job.ID, string(data), job.CreatedAt, now)
		if err != nil {
			return fmt.Errorf("can't upsert job '%s': %w", job.ID, err)
		}
	}
	return nil
}

// Live returns no error if db is reachable
func (db *DB) Live(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("can't ping db: %w", err)
	}
	return nil
}

// Close releases the pool
func (db *DB) Close() {
	db.pool.Close()
}
