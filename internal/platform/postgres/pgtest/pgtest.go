// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pgtest opens a migrated, emptied PostgreSQL database for integration tests.

# Usage

	TEST_DATABASE_URL=postgres://localhost:5432/tourly_test go test -tags integration -p 1 ./...

Packages share the database, so run them one at a time (-p 1).
*/
package pgtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tourly/internal/platform/migration"
	"github.com/taibuivan/tourly/internal/platform/postgres"
)

// EnvDatabaseURL names the variable holding the test database DSN.
const EnvDatabaseURL = "TEST_DATABASE_URL"

// Open migrates the database named by [EnvDatabaseURL], truncates every table
// and returns a pool closed at the end of the test. It skips the test when the
// variable is unset.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.RunUp(dsn, migrationsPath(t), false, logger))

	pool, err := postgres.NewPool(context.Background(), dsn, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(),
		`TRUNCATE system.auditlog, content.review, content.itinerary, users.account`)
	require.NoError(t, err)

	return pool
}

// Count returns the number of rows matching query.
func Count(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var count int
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&count))
	return count
}

// migrationsPath resolves data/migrations from this file's location.
func migrationsPath(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path, err := filepath.Abs(filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "data", "migrations"))
	require.NoError(t, err)
	return path
}
