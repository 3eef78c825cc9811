// Package sqldb provides a user repository that stores the admin accounts inside the relational database
package sqldb

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

const userFields = `id, name, email, password_hash, created_at, updated_at`

// UserRepo is a user repository backed by the "admins" table
type UserRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new user repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *UserRepo {
	return &UserRepo{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user. User names are unique
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Name = strings.ToLower(strings.TrimSpace(u.Name))
	r.logger.WithField(log.FldUser, u.Name).Debug("Adding new user")
	if _, err := r.GetByName(ctx, u.Name); err == nil {
		return repos.ErrEntityExists
	} else if err != repos.ErrEntityNotExisting {
		return err
	}
	query := r.db.Rebind(`INSERT INTO admins(` + userFields + `) VALUES(?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	return errors.Wrap(err, "failed to insert user")
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userFields+` FROM admins WHERE `+where), arg)
	if err == sql.ErrNoRows {
		return nil, repos.ErrEntityNotExisting
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user")
	}
	return &u, nil
}

// GetByID returns the user with the given ID
func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByName returns the user with the given name
func (r *UserRepo) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getOne(ctx, "name = ?", strings.ToLower(strings.TrimSpace(name)))
}

// GetByCredentials returns the user which has the given username and password - this is used for login.
// A wrong password is reported as a non-existing user
func (r *UserRepo) GetByCredentials(ctx context.Context, username string, password string) (*models.User, error) {
	u, err := r.GetByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := u.CheckPassword(password); err != nil {
		return nil, repos.ErrEntityNotExisting
	}
	return u, nil
}
