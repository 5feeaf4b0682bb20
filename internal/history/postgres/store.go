// Package postgres provides the Postgres-backed invocation history store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ovsienko/statusgate/internal/history"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for history rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store writes invocation summaries into Postgres.
type Store struct {
	pool  querier
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "check_history"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool querier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "check_history"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordInvocation inserts one invocation summary row.
func (s *Store) RecordInvocation(ctx context.Context, inv history.Invocation) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	if inv.ID == "" {
		return fmt.Errorf("invocation id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	identifier,
	result,
	method,
	outcome,
	attempts,
	duration_ms,
	note,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		inv.ID,
		inv.Identifier,
		inv.Result,
		inv.Method,
		inv.Outcome,
		inv.Attempts,
		inv.Duration.Milliseconds(),
		inv.Note,
		inv.At,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// ListInvocations returns the most recent invocation summaries, newest
// first, optionally narrowed to a single result.
func (s *Store) ListInvocations(ctx context.Context, filter history.ListFilter) ([]history.Invocation, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
SELECT id, identifier, result, method, outcome, attempts, duration_ms, note, created_at
FROM %s
WHERE ($1::text = '' OR result = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, s.table)

	rows, err := s.pool.Query(ctx, query, filter.Result, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var out []history.Invocation
	for rows.Next() {
		var (
			inv        history.Invocation
			durationMS int64
		)
		if err := rows.Scan(
			&inv.ID,
			&inv.Identifier,
			&inv.Result,
			&inv.Method,
			&inv.Outcome,
			&inv.Attempts,
			&durationMS,
			&inv.Note,
			&inv.At,
		); err != nil {
			return nil, fmt.Errorf("scan invocation row: %w", err)
		}
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocation rows: %w", err)
	}
	return out, nil
}
