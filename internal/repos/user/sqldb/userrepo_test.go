package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
	"github.com/gamemixer/gamemixer-api/internal/repos/sqltest"
)

func newUser(t *testing.T, id, name, password string) *models.User {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &models.User{ID: id, Name: name, Email: name + "@example.com", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, u.SetPassword(password))
	return u
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	r := New(sqltest.Open(t), sqltest.Logger())
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, newUser(t, "u1", "alice", "secret123")))

	u, err := r.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)

	u, err = r.GetByName(ctx, " Alice ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = r.GetByID(ctx, "u2")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestUserRepo_Create_DuplicateName(t *testing.T) {
	r := New(sqltest.Open(t), sqltest.Logger())
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, newUser(t, "u1", "alice", "secret123")))
	assert.Equal(t, repos.ErrEntityExists, r.Create(ctx, newUser(t, "u2", "alice", "other1234")))
}

func TestUserRepo_GetByCredentials(t *testing.T) {
	r := New(sqltest.Open(t), sqltest.Logger())
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, newUser(t, "u1", "alice", "secret123")))

	u, err := r.GetByCredentials(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = r.GetByCredentials(ctx, "alice", "wrong")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	_, err = r.GetByCredentials(ctx, "bob", "secret123")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}
