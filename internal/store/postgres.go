// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

// CodeNotMigrated marks queries against a database whose schema was never
// migrated.
const CodeNotMigrated = "STORE_NOT_MIGRATED"

// poolIface is the subset of *pgxpool.Pool the store uses. pgxmock
// satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements plugins.KVStore on PostgreSQL.
type PostgresStore struct {
	pool poolIface
}

var _ plugins.KVStore = (*PostgresStore)(nil)

// NewPool connects to databaseURL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.In("store").Code("STORE_CONNECT_FAILED").Wrapf(err, "connect to database")
	}
	return pool, nil
}

// NewPostgresStore creates a store on pool. The schema must be migrated.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the value, or nil when the key is absent.
func (s *PostgresStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM plugin_kv WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "get", namespace, key)
	}
	return value, nil
}

// Set inserts or replaces the value.
func (s *PostgresStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plugin_kv (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		namespace, key, value)
	if err != nil {
		return wrap(err, "set", namespace, key)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM plugin_kv WHERE namespace = $1 AND key = $2`,
		namespace, key)
	if err != nil {
		return wrap(err, "delete", namespace, key)
	}
	return nil
}

// Keys returns the namespace's keys in order.
func (s *PostgresStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM plugin_kv WHERE namespace = $1 ORDER BY key`,
		namespace)
	if err != nil {
		return nil, wrap(err, "keys", namespace, "")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap(err, "keys", namespace, "")
	}
	return keys, nil
}

func wrap(err error, op, namespace, key string) error {
	b := oops.In("store").With("operation", op, "namespace", namespace, "key", key)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		b = b.Code(CodeNotMigrated).Hint("run `plugbridge migrate up`")
	}
	return b.Wrapf(err, "kv %s", op)
}
