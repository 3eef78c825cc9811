// Package migrate handles SQL database migration for the relational database
package migrate

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var migrations []dbMigration

type dbMigration struct {
	Version uint
	Queries []string
}

// Column types differing between the supported SQL dialects
var dialectTypes = map[string]*strings.Replacer{
	"sqlite3":  strings.NewReplacer("{{timestamp}}", "DATETIME"),
	"postgres": strings.NewReplacer("{{timestamp}}", "TIMESTAMPTZ"),
}

// dialectQuery adapts a query to the dialect of the given database
func dialectQuery(db *sqlx.DB, query string) string {
	if r, ok := dialectTypes[db.DriverName()]; ok {
		query = r.Replace(query)
	} else {
		query = dialectTypes["sqlite3"].Replace(query)
	}
	return db.Rebind(query)
}

// setStatus records the outcome of a migration
func setStatus(db *sqlx.DB, version uint, success bool) {
	state := 0
	if success {
		state = 1
	}
	db.Exec(dialectQuery(db, `DELETE FROM migrations WHERE version = ?`), version)
	db.Exec(dialectQuery(db, `INSERT INTO migrations(version, success) VALUES(?, ?)`), version, state)
}

// Execute runs the current DB migration on the given database
func (mig *dbMigration) Execute(db *sqlx.DB, logger *logrus.Entry) error {
	// Check if the migration has already run
	query := dialectQuery(db, `SELECT success FROM migrations WHERE version = ?`)
	var success int
	err := db.QueryRow(query, mig.Version).Scan(&success)
	if err != nil && err != sql.ErrNoRows {
		logger.WithError(err).Error("Failed to fetch version information")
		return err
	}
	if success == 1 {
		return nil
	}
	logger.Infof("Executing DB migration #%d", mig.Version)
	for i, query := range mig.Queries {
		logger.Debugf("Query %d of %d...", (i + 1), len(mig.Queries))
		if _, err := db.Exec(dialectQuery(db, query)); err != nil {
			logger.WithError(err).Errorf("Query #%d failed", (i + 1))
			setStatus(db, mig.Version, false)
			return err
		}
	}
	setStatus(db, mig.Version, true)
	return nil
}

// ExecuteMigrationsOnDb executes the database migrations on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, logger *logrus.Entry) error {
	// Create the migrations table if it does not exist, yet
	query := `CREATE TABLE IF NOT EXISTS migrations (
                version   INTEGER NOT NULL,
                success   INTEGER NOT NULL DEFAULT 0,
                PRIMARY KEY(version)
            )`
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// For now, the migrations are part of the package...
func init() {
	migrations = []dbMigration{
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE events (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    seq INTEGER NOT NULL DEFAULT 0,
                    title VARCHAR(255) NOT NULL DEFAULT '',
                    time_start {{timestamp}} NOT NULL,
                    time_end {{timestamp}} NOT NULL,
                    description_content TEXT NOT NULL DEFAULT '',
                    description_format VARCHAR(16) NOT NULL DEFAULT 'plain',
                    video_id VARCHAR(64) NULL,
                    video_url VARCHAR(1024) NULL,
                    created_at {{timestamp}} NOT NULL,
                    updated_at {{timestamp}} NOT NULL
                );`,
				`CREATE TABLE event_images (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    event_id VARCHAR(36) NOT NULL REFERENCES events(id) ON DELETE CASCADE,
                    image_id VARCHAR(64) NOT NULL,
                    url VARCHAR(1024) NOT NULL DEFAULT '',
                    position INTEGER NOT NULL DEFAULT 0
                );`,
				`CREATE TABLE event_links (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    event_id VARCHAR(36) NOT NULL REFERENCES events(id) ON DELETE CASCADE,
                    type VARCHAR(128) NOT NULL DEFAULT '',
                    description VARCHAR(1024) NOT NULL DEFAULT '',
                    url VARCHAR(1024) NOT NULL DEFAULT '',
                    position INTEGER NOT NULL DEFAULT 0
                );`,
				`CREATE TABLE event_tags (
                    event_id VARCHAR(36) NOT NULL REFERENCES events(id) ON DELETE CASCADE,
                    tag VARCHAR(128) NOT NULL,
                    position INTEGER NOT NULL DEFAULT 0,
                    PRIMARY KEY(event_id, tag)
                );`,
				`CREATE INDEX idx_events_created ON events (created_at DESC, seq ASC);`,
				`CREATE INDEX idx_event_images_event ON event_images (event_id ASC);`,
				`CREATE INDEX idx_event_links_event ON event_links (event_id ASC);`,
				`CREATE INDEX idx_event_tags_tag ON event_tags (tag ASC);`,
			},
		},
		{
			Version: 2,
			Queries: []string{
				`CREATE TABLE admins (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    name VARCHAR(64) NOT NULL UNIQUE,
                    email VARCHAR(255) NOT NULL DEFAULT '',
                    password_hash VARCHAR(255) NOT NULL DEFAULT '',
                    created_at {{timestamp}} NOT NULL,
                    updated_at {{timestamp}} NOT NULL
                );`,
			},
		},
		{
			Version: 3,
			Queries: []string{
				`CREATE TABLE records (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    type VARCHAR(32) NOT NULL,
                    status VARCHAR(32) NOT NULL DEFAULT '',
                    body TEXT NOT NULL,
                    created_at {{timestamp}} NOT NULL,
                    updated_at {{timestamp}} NOT NULL
                );`,
				`CREATE INDEX idx_records_type ON records (type ASC, created_at DESC);`,
			},
		},
		{
			Version: 4,
			Queries: []string{
				`CREATE UNIQUE INDEX idx_events_seq ON events (seq);`,
			},
		},
	}
}
