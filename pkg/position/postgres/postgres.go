// Package postgres implements the relational position backend.
//
// The record is one row keyed by the state id. Save tries UPDATE first and
// INSERTs when no row matched. The schema has no date-modified columns, so
// date-modified patch fields are not persisted and the latch operations
// report ErrNotSupported.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/position"
)

// identRe guards table names interpolated into SQL text.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store is the PostgreSQL-backed position store.
type Store struct {
	pool    *pgxpool.Pool
	table   string
	stateID string
}

var _ position.Store = (*Store)(nil)

// Open connects to PostgreSQL and creates the state table if missing.
// The pool is capped at one connection: all position traffic serializes
// through it, and the pool re-dials transparently when the server drops it.
func Open(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	if !identRe.MatchString(cfg.StateTable) {
		return nil, fmt.Errorf("invalid state table name %q", cfg.StateTable)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{pool: pool, table: cfg.StateTable, stateID: cfg.StateID}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id varchar PRIMARY KEY,
			%s varchar,
			%s varchar,
			%s varchar
		)`,
		s.table, position.ServerIDKey, position.ForwardOffsetKey, position.BackwardOffsetKey,
	))
	if err != nil {
		return fmt.Errorf("failed to create state table: %w", err)
	}
	return nil
}

// Get returns the position record, or nil when no row exists.
// Empty columns read back as absent fields.
func (s *Store) Get(ctx context.Context) (*position.Record, error) {
	var serverID, forward, backward *string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s, %s, %s FROM %s WHERE id = $1`,
		position.ServerIDKey, position.ForwardOffsetKey, position.BackwardOffsetKey, s.table,
	), s.stateID).Scan(&serverID, &forward, &backward)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feed position: %w", err)
	}

	rec := &position.Record{}
	if serverID != nil {
		rec.ServerID = *serverID
	}
	if forward != nil {
		rec.ForwardOffset = *forward
	}
	if backward != nil {
		rec.BackwardOffset = *backward
	}
	return rec, nil
}

// Save updates the row, inserting it when the update matched nothing.
func (s *Store) Save(ctx context.Context, patch position.Patch) error {
	set := ""
	args := []any{s.stateID}
	add := func(column, value string) {
		if set != "" {
			set += ", "
		}
		args = append(args, value)
		set += fmt.Sprintf("%s = $%d", column, len(args))
	}

	if patch.ForwardOffset != nil {
		add(position.ForwardOffsetKey, *patch.ForwardOffset)
	}
	if patch.BackwardOffset != nil {
		add(position.BackwardOffsetKey, *patch.BackwardOffset)
	}
	if patch.ServerID != nil {
		add(position.ServerIDKey, *patch.ServerID)
	}
	if set == "" {
		// only date-modified fields were patched; the schema has no columns for them
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, s.table, set), args...)
	if err != nil {
		return fmt.Errorf("failed to update feed position: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	forward, backward, serverID := "", "", ""
	if patch.ForwardOffset != nil {
		forward = *patch.ForwardOffset
	}
	if patch.BackwardOffset != nil {
		backward = *patch.BackwardOffset
	}
	if patch.ServerID != nil {
		serverID = *patch.ServerID
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, %s, %s, %s) VALUES ($1, $2, $3, $4)`,
		s.table, position.ServerIDKey, position.ForwardOffsetKey, position.BackwardOffsetKey,
	), s.stateID, serverID, forward, backward)
	if err != nil {
		return fmt.Errorf("failed to insert feed position: %w", err)
	}
	return nil
}

// Drop deletes the row entirely.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), s.stateID)
	if err != nil {
		return fmt.Errorf("failed to drop feed position: %w", err)
	}
	return nil
}

// Lock is not supported by the relational backend.
func (s *Store) Lock(ctx context.Context) error {
	return position.ErrNotSupported
}

// Unlock is not supported by the relational backend.
func (s *Store) Unlock(ctx context.Context) error {
	return position.ErrNotSupported
}

// Close tears down the pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
