// Package sqldb provides an event repository that stores its data inside a relational database (SQLite or PostgreSQL)
package sqldb

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

const (
	eventFields = `title, time_start, time_end, description_content, description_format, video_id, video_url,
        created_at, updated_at`

	// Loads the events together with all of their children in one go. Every child becomes a row of its own that
	// carries its kind and up to three values - events without children produce a single row with a NULL kind
	composeQuery = `SELECT e.id, e.title, e.time_start, e.time_end, e.description_content, e.description_format,
            e.video_id, e.video_url, e.created_at, e.updated_at,
            c.kind, c.child_id, c.a, c.b, c.c
        FROM events e
        LEFT JOIN (
            SELECT event_id, 'image' AS kind, id AS child_id, image_id AS a, url AS b, '' AS c, position
                FROM event_images
            UNION ALL
            SELECT event_id, 'link', id, type, description, url, position FROM event_links
            UNION ALL
            SELECT event_id, 'tag', '', tag, '', '', position FROM event_tags
        ) c ON c.event_id = e.id
        %s
        ORDER BY e.created_at DESC, e.seq ASC, c.kind ASC, c.position ASC`

	// Only events carrying every one of the requested tags
	tagFilter = `WHERE e.id IN (
            SELECT event_id FROM event_tags WHERE tag IN (?) GROUP BY event_id HAVING COUNT(DISTINCT tag) = ?
        )`
)

const (
	kindImage = "image"
	kindLink  = "link"
	kindTag   = "tag"
)

// composedRow is one row of the compose query
type composedRow struct {
	models.Event
	Kind    sql.NullString `db:"kind"`
	ChildID sql.NullString `db:"child_id"`
	A       sql.NullString `db:"a"`
	B       sql.NullString `db:"b"`
	C       sql.NullString `db:"c"`
}

// EventRepo is a repository that stores its data inside a relational database
type EventRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new event repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *EventRepo {
	return &EventRepo{
		db:     db,
		logger: logger,
	}
}

// Create stores a new event together with its images, links and tags inside one transaction
func (r *EventRepo) Create(ctx context.Context, ev *models.Event) error {
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Adding new event")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	if r.db.DriverName() == "postgres" {
		// Concurrent writers would read the same MAX(seq). SQLite serializes writers on its own
		if _, err := tx.ExecContext(ctx, `LOCK TABLE events IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return repos.DoRollback(tx, errors.Wrap(err, "failed to lock events table"))
		}
	}
	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events`); err != nil {
		return repos.DoRollback(tx, errors.Wrap(err, "failed to fetch the next sequence number"))
	}
	query := tx.Rebind(fmt.Sprintf(
		"INSERT INTO events(id, seq, %s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		eventFields,
	))
	_, err = tx.ExecContext(ctx, query, ev.ID, seq, ev.Title, ev.TimeStart.UTC(), ev.TimeEnd.UTC(),
		ev.DescriptionContent, ev.DescriptionFormat, ev.VideoID, ev.VideoURL, ev.CreatedAt.UTC(), ev.UpdatedAt.UTC())
	if err != nil {
		return repos.DoRollback(tx, errors.Wrap(err, "failed to insert event"))
	}
	if err := insertChildren(ctx, tx, ev); err != nil {
		return repos.DoRollback(tx, err)
	}
	return errors.Wrap(tx.Commit(), "failed to commit event")
}

// Update overwrites the event's base data and replaces all of its children inside one transaction
func (r *EventRepo) Update(ctx context.Context, ev *models.Event) error {
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Updating event")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	query := tx.Rebind(`UPDATE events SET title = ?, time_start = ?, time_end = ?, description_content = ?,
        description_format = ?, video_id = ?, video_url = ?, updated_at = ? WHERE id = ?`)
	res, err := tx.ExecContext(ctx, query, ev.Title, ev.TimeStart.UTC(), ev.TimeEnd.UTC(), ev.DescriptionContent,
		ev.DescriptionFormat, ev.VideoID, ev.VideoURL, ev.UpdatedAt.UTC(), ev.ID)
	if err != nil {
		return repos.DoRollback(tx, errors.Wrap(err, "failed to update event"))
	}
	num, err := res.RowsAffected()
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	if num == 0 {
		return repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	for _, table := range []string{"event_images", "event_links", "event_tags"} {
		query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE event_id = ?", table))
		if _, err := tx.ExecContext(ctx, query, ev.ID); err != nil {
			return repos.DoRollback(tx, errors.Wrapf(err, "failed to clear %s", table))
		}
	}
	if err := insertChildren(ctx, tx, ev); err != nil {
		return repos.DoRollback(tx, err)
	}
	return errors.Wrap(tx.Commit(), "failed to commit event")
}

// insertChildren writes the images, links and tags of the event keeping their order
func insertChildren(ctx context.Context, tx *sqlx.Tx, ev *models.Event) error {
	imgQuery := tx.Rebind(`INSERT INTO event_images(id, event_id, image_id, url, position) VALUES(?, ?, ?, ?, ?)`)
	for i, img := range ev.Images {
		if _, err := tx.ExecContext(ctx, imgQuery, img.ID, ev.ID, img.ImageID, img.URL, i); err != nil {
			return errors.Wrap(err, "failed to insert image")
		}
	}
	linkQuery := tx.Rebind(
		`INSERT INTO event_links(id, event_id, type, description, url, position) VALUES(?, ?, ?, ?, ?, ?)`,
	)
	for i, l := range ev.Links {
		if _, err := tx.ExecContext(ctx, linkQuery, l.ID, ev.ID, l.Type, l.Description, l.URL, i); err != nil {
			return errors.Wrap(err, "failed to insert link")
		}
	}
	tagQuery := tx.Rebind(`INSERT INTO event_tags(event_id, tag, position) VALUES(?, ?, ?)`)
	for i, tag := range repos.UniqueStrings(ev.Tags) {
		if _, err := tx.ExecContext(ctx, tagQuery, ev.ID, tag, i); err != nil {
			return errors.Wrap(err, "failed to insert tag")
		}
	}
	return nil
}

// Delete removes the given event - images, links and tags follow via ON DELETE CASCADE
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldEvent, id).Debug("Deleting event")
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM events WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// GetByID returns the composed event with the given ID
func (r *EventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.logger.WithField(log.FldEvent, id).Debug("Loading event")
	query := r.db.Rebind(fmt.Sprintf(composeQuery, "WHERE e.id = ?"))
	var rows []composedRow
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, errors.Wrap(err, "failed to load event")
	}
	events := fold(rows)
	if len(events) == 0 {
		return nil, repos.ErrEntityNotExisting
	}
	return &events[0], nil
}

// Find returns all events matching the filter - newest first
func (r *EventRepo) Find(ctx context.Context, filter repos.EventFilter) ([]models.Event, error) {
	tags := filter.NormalizedTags()
	r.logger.WithField(log.FldTags, tags).Debug("Searching events")
	var (
		query = fmt.Sprintf(composeQuery, "")
		args  []interface{}
		err   error
	)
	if len(tags) > 0 {
		query, args, err = sqlx.In(fmt.Sprintf(composeQuery, tagFilter), tags, len(tags))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build tag filter")
		}
	}
	var rows []composedRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to search events")
	}
	return fold(rows), nil
}

// Tags returns all distinct tags in alphabetical order
func (r *EventRepo) Tags(ctx context.Context) ([]string, error) {
	ret := []string{}
	if err := r.db.SelectContext(ctx, &ret, "SELECT DISTINCT tag FROM event_tags ORDER BY tag"); err != nil {
		return nil, errors.Wrap(err, "failed to load tags")
	}
	return ret, nil
}

// fold groups the compose query's rows by event, keeping the row order. Rows without a child kind stem from events
// without any children and only contribute the event itself
func fold(rows []composedRow) []models.Event {
	ret := []models.Event{}
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.ID]
		if !ok {
			ev := row.Event
			ev.Normalize()
			ret = append(ret, ev)
			i = len(ret) - 1
			index[row.ID] = i
		}
		if !row.Kind.Valid {
			continue
		}
		ev := &ret[i]
		switch row.Kind.String {
		case kindImage:
			ev.Images = append(ev.Images, models.EventImage{
				ID:      row.ChildID.String,
				EventID: ev.ID,
				ImageID: row.A.String,
				URL:     row.B.String,
			})
		case kindLink:
			ev.Links = append(ev.Links, models.EventLink{
				ID:          row.ChildID.String,
				EventID:     ev.ID,
				Type:        row.A.String,
				Description: row.B.String,
				URL:         row.C.String,
			})
		case kindTag:
			ev.Tags = append(ev.Tags, row.A.String)
		}
	}
	return ret
}
