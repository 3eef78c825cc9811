// Package sqldb provides a record repository storing donations, payments and contact messages as JSON documents
// inside the relational database
package sqldb

import (
	"bytes"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// RecordRepo is a record repository backed by the "records" table
type RecordRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
	now    func() time.Time
}

// New creates a new record repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *RecordRepo {
	return &RecordRepo{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Put creates the record or overwrites its body and status. The creation time of an existing record is kept
func (r *RecordRepo) Put(ctx context.Context, id, recordType, status string, record interface{}) error {
	logger := r.logger.WithFields(logrus.Fields{log.FldID: id, log.FldRecordType: recordType})
	body, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}
	now := r.now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE records SET status = ?, body = ?, updated_at = ? WHERE id = ?`),
		status, string(body), now, id)
	if err != nil {
		return repos.DoRollback(tx, errors.Wrap(err, "failed to update record"))
	}
	num, err := res.RowsAffected()
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	if num == 0 {
		logger.Debug("Adding new record")
		query := tx.Rebind(`INSERT INTO records(id, type, status, body, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, query, id, recordType, status, string(body), now, now); err != nil {
			return repos.DoRollback(tx, errors.Wrap(err, "failed to insert record"))
		}
	} else {
		logger.Debug("Updated record")
	}
	return errors.Wrap(tx.Commit(), "failed to commit record")
}

// Get loads the record with the given ID into target
func (r *RecordRepo) Get(ctx context.Context, id string, target interface{}) error {
	var body string
	err := r.db.GetContext(ctx, &body, r.db.Rebind(`SELECT body FROM records WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return repos.ErrEntityNotExisting
	}
	if err != nil {
		return errors.Wrap(err, "failed to load record")
	}
	return errors.Wrap(json.Unmarshal([]byte(body), target), "failed to decode record")
}

// List loads all records of the given type into the slice pointed to by target - newest first
func (r *RecordRepo) List(ctx context.Context, recordType string, target interface{}) error {
	var bodies []string
	query := r.db.Rebind(`SELECT body FROM records WHERE type = ? ORDER BY created_at DESC, id ASC`)
	if err := r.db.SelectContext(ctx, &bodies, query, recordType); err != nil {
		return errors.Wrap(err, "failed to list records")
	}
	return errors.Wrap(json.Unmarshal(joinArray(bodies), target), "failed to decode records")
}

// joinArray glues the JSON documents together into one JSON array
func joinArray(docs []string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, d := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(d)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
