// Package history persists run and episode records to Postgres so
// finished runs can be compared later.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "history")

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID        uuid.UUID
	EnvName   string
	Algorithm string
	Training  bool
	StartedAt time.Time
}

// EpisodeRecord is one row of the episodes table. Episode counts from 1
// within its run.
type EpisodeRecord struct {
	RunID      uuid.UUID
	Episode    int
	Steps      int
	Rewards    []float64
	DoneReason string
	Duration   time.Duration
}

// Sink receives history writes. Store implements it against Postgres;
// tests substitute memory.
type Sink interface {
	BeginRun(ctx context.Context, rec RunRecord) error
	RecordEpisode(ctx context.Context, rec EpisodeRecord) error
}

// Store is the pgx-backed sink plus the read queries.
type Store struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id         UUID PRIMARY KEY,
    env_name   TEXT NOT NULL,
    algorithm  TEXT NOT NULL,
    training   BOOLEAN NOT NULL,
    started_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS episodes (
    run_id      UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    episode     INTEGER NOT NULL,
    steps       INTEGER NOT NULL,
    rewards     DOUBLE PRECISION[] NOT NULL,
    done_reason TEXT NOT NULL,
    duration_ms BIGINT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (run_id, episode)
);`

// Connect opens a pool against dsn and ensures the schema exists.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) BeginRun(ctx context.Context, rec RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, env_name, algorithm, training, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.EnvName, rec.Algorithm, rec.Training, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}
	return nil
}

func (s *Store) RecordEpisode(ctx context.Context, rec EpisodeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO episodes (run_id, episode, steps, rewards, done_reason, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.RunID, rec.Episode, rec.Steps, rec.Rewards, rec.DoneReason,
		rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("history: insert episode: %w", err)
	}
	return nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, env_name, algorithm, training, started_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.EnvName, &rec.Algorithm, &rec.Training, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Episodes lists a run's episodes in order.
func (s *Store) Episodes(ctx context.Context, runID uuid.UUID, limit int) ([]EpisodeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, episode, steps, rewards, done_reason, duration_ms
		 FROM episodes WHERE run_id = $1 ORDER BY episode LIMIT $2`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: episodes: %w", err)
	}
	defer rows.Close()

	var recs []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		var ms int64
		if err := rows.Scan(&rec.RunID, &rec.Episode, &rec.Steps, &rec.Rewards, &rec.DoneReason, &ms); err != nil {
			return nil, fmt.Errorf("history: scan episode: %w", err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
