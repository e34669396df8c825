package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBlobStore keeps blobs in a single key/body table.
type PostgresBlobStore struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPostgresBlobStore(pool PgxPool, tracer trace.Tracer) *PostgresBlobStore {
	return &PostgresBlobStore{pool: pool, tracer: tracer}
}

func (r *PostgresBlobStore) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "blob-repo.run-migrations")
	defer span.End()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
			key        TEXT PRIMARY KEY,
			body       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("blob migration: %w", err)
		}
	}
	return nil
}

func (r *PostgresBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := r.tracer.Start(ctx, "blob-repo.get")
	span.SetAttributes(attribute.String("blob.key", key))
	defer span.End()

	var body []byte
	err := r.pool.QueryRow(ctx, `SELECT body FROM blobs WHERE key = $1`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (r *PostgresBlobStore) Put(ctx context.Context, key string, body []byte) error {
	_, span := r.tracer.Start(ctx, "blob-repo.put")
	span.SetAttributes(attribute.String("blob.key", key), attribute.Int("blob.size", len(body)))
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO blobs (key, body, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET
		     body = EXCLUDED.body,
		     updated_at = EXCLUDED.updated_at`,
		key, body,
	)
	return err
}

// Keys lists stored keys, newest write first.
func (r *PostgresBlobStore) Keys(ctx context.Context) ([]string, error) {
	_, span := r.tracer.Start(ctx, "blob-repo.keys")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT key FROM blobs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
