package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps checkpoints in a single table keyed on (source_id, locale).
type PostgresStore struct {
	Pool  *pgxpool.Pool
	Table string
}

// NewPostgresStore connects to dsn and creates table when missing.
func NewPostgresStore(ctx context.Context, dsn string, table string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: couldn't parse postgres DSN: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: couldn't connect to postgres: %w", err)
	}

	s := &PostgresStore{Pool: pool, Table: pgx.Identifier{table}.Sanitize()}
	_, err = pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source_id  text        NOT NULL,
			locale     text        NOT NULL,
			checksum   text        NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (source_id, locale)
		)`, s.Table))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("checkpoint: couldn't create table %s: %w", s.Table, err)
	}

	return s, nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var checksum string
	err := s.Pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT checksum FROM %s WHERE source_id = $1 AND locale = $2`, s.Table),
		key.SourceID, key.Locale,
	).Scan(&checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoint: couldn't read %s/%s: %w", key.SourceID, key.Locale, err)
	}
	return checksum, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key Key, checksum string) error {
	_, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (source_id, locale, checksum)
			VALUES ($1, $2, $3)
			ON CONFLICT (source_id, locale) DO UPDATE SET
				checksum = EXCLUDED.checksum,
				updated_at = now()`, s.Table),
		key.SourceID, key.Locale, checksum,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: couldn't upsert %s/%s: %w", key.SourceID, key.Locale, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	_, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE source_id = $1 AND locale = $2`, s.Table),
		key.SourceID, key.Locale,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: couldn't delete %s/%s: %w", key.SourceID, key.Locale, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}
