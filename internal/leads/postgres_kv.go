package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// pgxQuerier is the subset of pgxpool.Pool used by PostgresKV.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresKV stores the lead collection as one row of the kv_store table
// (see migrations/).
type PostgresKV struct {
	db     pgxQuerier
	tracer trace.Tracer
}

// NewPostgresKV initializes a KV backed by a pgx pool.
func NewPostgresKV(db pgxQuerier, tracer trace.Tracer) *PostgresKV {
	if db == nil {
		panic("leads: pgx pool required")
	}
	if tracer == nil {
		tracer = otel.Tracer("crystalcare.internal.leads.postgres")
	}
	return &PostgresKV{db: db, tracer: tracer}
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "leads.postgres.get")
	defer span.End()

	var value []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return value, nil
}

func (s *PostgresKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "leads.postgres.put")
	defer span.End()

	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, key, string(value)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("leads: upsert failed: %w", err)
	}
	return nil
}

func (s *PostgresKV) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "leads.postgres.put_if_absent")
	defer span.End()

	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, query, key, string(value))
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("leads: insert failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
