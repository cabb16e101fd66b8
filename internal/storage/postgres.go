package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chialvo/internal/model"
)

// PostgresStore keeps runs in a shared PostgreSQL database.
type PostgresStore struct {
	dsn string

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return nil
	}

	config, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	config.MaxConns = 8
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("migration failed: %w", err)
	}

	s.pool = pool
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	h := run.Header()
	_, err = pool.Exec(ctx, `
		INSERT INTO chialvo_runs (id, created_at_utc, topology, size, nodes, iterations, samples, schema_version, codec_version, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			created_at_utc = EXCLUDED.created_at_utc,
			topology = EXCLUDED.topology,
			size = EXCLUDED.size,
			nodes = EXCLUDED.nodes,
			iterations = EXCLUDED.iterations,
			samples = EXCLUDED.samples,
			schema_version = EXCLUDED.schema_version,
			codec_version = EXCLUDED.codec_version,
			payload = EXCLUDED.payload
	`, h.ID, h.CreatedAtUTC, h.Topology, h.Size, h.Nodes, h.Iterations, h.Samples, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = pool.QueryRow(ctx, `SELECT payload FROM chialvo_runs WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.RunHeader, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, created_at_utc, topology, size, nodes, iterations, samples
		FROM chialvo_runs
		ORDER BY created_at_utc DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var headers []model.RunHeader
	for rows.Next() {
		var h model.RunHeader
		if err := rows.Scan(&h.ID, &h.CreatedAtUTC, &h.Topology, &h.Size, &h.Nodes, &h.Iterations, &h.Samples); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `DELETE FROM chialvo_runs WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return nil, ErrNotInitialized
	}
	return s.pool, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chialvo_runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			topology TEXT NOT NULL,
			size INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			iterations BIGINT NOT NULL,
			samples BIGINT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BYTEA NOT NULL
		)
	`)
	return err
}
