package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/itemset-engine/pkg/models"
)

// PostgresStore persists run bookkeeping and pattern spectra. Mined
// patterns themselves are never stored; only the per-run metadata and
// the (size, support, frequency) spectrum cells needed for later
// significance lookups.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for run bookkeeping")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Mining engine schema initialized")
	return nil
}

// SaveMiningRun records the bookkeeping entry of one completed run.
func (s *PostgresStore) SaveMiningRun(ctx context.Context, run models.MiningRun) error {
	sql := `INSERT INTO mining_runs
		(run_id, engine, target, supp, tract_count, total_weight,
		 pattern_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, sql,
		run.RunID,
		run.Engine,
		run.Target,
		run.Supp,
		run.TractCount,
		run.TotalWeight,
		run.PatternCount,
		run.Duration.Milliseconds(),
		run.CreatedAt,
	)
	return err
}

// RecentRuns returns the most recent run records, newest first.
func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]models.MiningRun, error) {
	if limit <= 0 {
		limit = 50
	}
	sql := `SELECT run_id, engine, target, supp, tract_count, total_weight,
		pattern_count, duration_ms, created_at
		FROM mining_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.MiningRun
	for rows.Next() {
		var r models.MiningRun
		var durMs int64
		if err := rows.Scan(&r.RunID, &r.Engine, &r.Target, &r.Supp,
			&r.TractCount, &r.TotalWeight, &r.PatternCount, &durMs,
			&r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveSpectrum persists a pattern spectrum under the given run id so
// significance borders can be derived later without re-mining the
// surrogates.
func (s *PostgresStore) SaveSpectrum(ctx context.Context, runID string, entries []models.SpectrumEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO pattern_spectra (run_id, size, supp, freq)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (run_id, size, supp) DO UPDATE SET freq = $4`,
			runID, e.Size, e.Supp, e.Frq)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// LoadSpectrum reads a persisted spectrum back.
func (s *PostgresStore) LoadSpectrum(ctx context.Context, runID string) ([]models.SpectrumEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT size, supp, freq FROM pattern_spectra
		 WHERE run_id = $1 ORDER BY size, supp`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SpectrumEntry
	for rows.Next() {
		var e models.SpectrumEntry
		if err := rows.Scan(&e.Size, &e.Supp, &e.Frq); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveJob upserts the state of an asynchronous mining job. The
// request is stored as JSON so failed jobs can be inspected and
// replayed.
func (s *PostgresStore) SaveJob(ctx context.Context, job *models.MiningJob) error {
	req, err := json.Marshal(job.Request)
	if err != nil {
		return err
	}
	sql := `INSERT INTO mining_jobs (job_id, request, status, error, submit_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id) DO UPDATE SET status = $3, error = $4`
	_, err = s.pool.Exec(ctx, sql, job.ID, req, job.Status, job.Error, job.SubmitTime)
	return err
}
