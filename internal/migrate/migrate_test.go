package migrate

import (
	"io"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func TestExecuteMigrationsOnDb_CreatesSchemaOnce(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	require.NoError(t, ExecuteMigrationsOnDb(db, testLogger()))
	// A second run must skip the migrations that already succeeded
	require.NoError(t, ExecuteMigrationsOnDb(db, testLogger()))

	for _, table := range []string{"events", "event_images", "event_links", "event_tags", "admins", "records"} {
		var n int
		err := db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	var versions []int
	require.NoError(t, db.Select(&versions, "SELECT version FROM migrations WHERE success = 1 ORDER BY version"))
	assert.Equal(t, []int{1, 2, 3, 4}, versions)

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_seq'"))
	assert.Equal(t, 1, n)
}

func TestDialectQuery(t *testing.T) {
	pg := sqlx.NewDb(nil, "postgres")
	assert.Equal(t, "SELECT a TIMESTAMPTZ WHERE x = $1", dialectQuery(pg, "SELECT a {{timestamp}} WHERE x = ?"))

	lite := sqlx.NewDb(nil, "sqlite3")
	assert.Equal(t, "SELECT a DATETIME WHERE x = ?", dialectQuery(lite, "SELECT a {{timestamp}} WHERE x = ?"))
}
