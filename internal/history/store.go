// Package history stores completed import batches in PostgreSQL.
package history

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/JonMunkholm/hospital-bulk/internal/config"
	"github.com/JonMunkholm/hospital-bulk/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned by Get when no batch has the requested id.
var ErrNotFound = errors.New("import batch not found")

// DefaultListLimit caps ListRecent when the caller passes no limit.
const DefaultListLimit = 50

// maxListLimit bounds caller-supplied limits.
const maxListLimit = 500

// NewPool connects to the history database using the pool settings in cfg.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ApplyMigrations runs the embedded SQL migrations in filename order.
// Every statement is idempotent, so this is safe on each startup.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		data, err := fs.ReadFile(migrations, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		slog.Info("applying migration", "migration", name)
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	slog.Info("all migrations applied", "count", len(entries))
	return nil
}

// Summary is one row of the batch listing, without per-hospital outcomes.
type Summary struct {
	BatchID               string    `json:"batch_id"`
	FileName              string    `json:"file_name,omitempty"`
	TotalHospitals        int       `json:"total_hospitals"`
	ProcessedHospitals    int       `json:"processed_hospitals"`
	FailedHospitals       int       `json:"failed_hospitals"`
	BatchActivated        bool      `json:"batch_activated"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	CompletedAt           time.Time `json:"completed_at"`
}

// Store persists batch records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertBatch = `
INSERT INTO import_batches (
    batch_id, file_name, ip_address, user_agent,
    total_hospitals, processed_hospitals, failed_hospitals,
    batch_activated, activation_error, processing_time_seconds,
    outcomes, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)
ON CONFLICT (batch_id) DO NOTHING`

// RecordBatch inserts rec. Recording the same batch twice keeps the first copy.
func (s *Store) RecordBatch(ctx context.Context, rec core.BatchRecord) error {
	outcomes, err := json.Marshal(rec.Report.Hospitals)
	if err != nil {
		return fmt.Errorf("encode outcomes: %w", err)
	}

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	r := rec.Report
	_, err = s.pool.Exec(ctx, insertBatch,
		r.BatchID, rec.FileName, rec.IPAddress, rec.UserAgent,
		r.TotalHospitals, r.ProcessedHospitals, r.FailedHospitals,
		r.BatchActivated, r.ActivationError, r.ProcessingTimeSeconds,
		string(outcomes), completedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", r.BatchID, err)
	}
	return nil
}

const listBatches = `
SELECT batch_id, file_name, total_hospitals, processed_hospitals, failed_hospitals,
       batch_activated, processing_time_seconds, completed_at
FROM import_batches
ORDER BY completed_at DESC
LIMIT $1`

// ListRecent returns the most recent batches, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.pool.Query(ctx, listBatches, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, limit)
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(
			&sm.BatchID, &sm.FileName, &sm.TotalHospitals, &sm.ProcessedHospitals,
			&sm.FailedHospitals, &sm.BatchActivated, &sm.ProcessingTimeSeconds, &sm.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		summaries = append(summaries, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return summaries, nil
}

const getBatch = `
SELECT batch_id, file_name, ip_address, user_agent,
       total_hospitals, processed_hospitals, failed_hospitals,
       batch_activated, activation_error, processing_time_seconds,
       outcomes, completed_at
FROM import_batches
WHERE batch_id = $1`

// Get loads one batch with its per-hospital outcomes.
func (s *Store) Get(ctx context.Context, batchID string) (*core.BatchRecord, error) {
	var (
		rec      core.BatchRecord
		outcomes []byte
	)
	r := &rec.Report

	err := s.pool.QueryRow(ctx, getBatch, batchID).Scan(
		&r.BatchID, &rec.FileName, &rec.IPAddress, &rec.UserAgent,
		&r.TotalHospitals, &r.ProcessedHospitals, &r.FailedHospitals,
		&r.BatchActivated, &r.ActivationError, &r.ProcessingTimeSeconds,
		&outcomes, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}

	if err := json.Unmarshal(outcomes, &r.Hospitals); err != nil {
		return nil, fmt.Errorf("decode outcomes for %s: %w", batchID, err)
	}
	return &rec, nil
}
