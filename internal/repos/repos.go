// Package repos contains the repository interfaces needed by the service layer
// It exists to prevent circular dependencies between the services and the repo implementations
package repos

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is read, updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("entity does not exist")
	// ErrEntityExists is fired by a repository when an entity should be created that collides with an existing one
	ErrEntityExists = fmt.Errorf("entity already exists")
	// ErrRepoClosed is returned by repositories that have been shut down
	ErrRepoClosed = fmt.Errorf("repository closed")
)

// EventFilter restricts the events returned by EventRepo.Find
type EventFilter struct {
	// Only events having all of these tags are returned
	Tags []string
}

// NormalizedTags returns the filter's tags without empty entries and duplicates, keeping the original order
func (f EventFilter) NormalizedTags() []string {
	return UniqueStrings(f.Tags)
}

// EventRepo defines a repository that handles storing and querying events together with their images, tags and links
type EventRepo interface {
	// Create stores a new event and all of its children atomically
	Create(ctx context.Context, ev *models.Event) error
	// Update overwrites the event's base data and replaces its images, tags and links wholesale
	Update(ctx context.Context, ev *models.Event) error
	// Delete removes the given event and all of its children
	Delete(ctx context.Context, id string) error
	// GetByID returns the composed event with the given ID
	GetByID(ctx context.Context, id string) (*models.Event, error)
	// Find returns all composed events matching the filter - newest first
	Find(ctx context.Context, filter EventFilter) ([]models.Event, error)
	// Tags returns all distinct tags in use
	Tags(ctx context.Context) ([]string, error)
}

// RecordRepo stores flat records (donations, payments, contact messages) keyed by their ID
type RecordRepo interface {
	// Put creates or overwrites the record with the given ID
	Put(ctx context.Context, id, recordType, status string, record interface{}) error
	// Get loads the record with the given ID into the target
	Get(ctx context.Context, id string, target interface{}) error
	// List loads all records of the given type into the target slice - newest first
	List(ctx context.Context, recordType string, target interface{}) error
}

// UserRepo defines a repository that is able to store, query and authenticate admin users
type UserRepo interface {
	// Create creates a new user
	Create(ctx context.Context, u *models.User) error
	// GetByID returns the user with the given ID
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByName returns the user with the given name
	GetByName(ctx context.Context, name string) (*models.User, error)
	// GetByCredentials returns the user which has the given username and password - this is used for login
	GetByCredentials(ctx context.Context, username string, password string) (*models.User, error)
}

// RevocationRepo remembers access tokens that have been invalidated before their expiry
type RevocationRepo interface {
	// Revoke marks the token with the given ID as revoked until it expires
	Revoke(tokenID string, expiresAt time.Time) error
	// IsRevoked checks if the token with the given ID has been revoked
	IsRevoked(tokenID string) bool
}

// UniqueStrings drops empty strings and duplicates, keeping the first occurrence. Values are compared exactly -
// neither case nor surrounding whitespace is folded
func UniqueStrings(values []string) []string {
	ret := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return ret
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}
