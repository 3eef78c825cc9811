// Package sqltest provides throwaway databases for repository tests
package sqltest

import (
	"io"
	"testing"

	"github.com/jmoiron/sqlx"
	// Registers the "sqlite3" driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/migrate"
)

// Logger returns a logger entry that swallows everything
func Logger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

// Open creates a migrated in-memory SQLite database that is closed when the test ends
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	// Every new connection would get a fresh in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, Logger()))
	return db
}
