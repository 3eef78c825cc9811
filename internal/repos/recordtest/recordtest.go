// Package recordtest contains the behaviour shared by all record repository implementations as a reusable test suite
package recordtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// Clock returns a function that yields a new, later point in time on every call
func Clock() func() time.Time {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

// Run executes the suite against fresh repositories created by newRepo. The repositories are expected to use a
// clock created by Clock
func Run(t *testing.T, newRepo func(t *testing.T) repos.RecordRepo) {
	t.Run("PutAndGet", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		in := models.Donation{
			ID:           "d1",
			Type:         models.RecordTypeMonetary,
			Status:       models.StatusPending,
			Amount:       25.5,
			ContactEmail: "donor@example.com",
		}
		require.NoError(t, r.Put(ctx, in.ID, in.Type, in.Status, in))

		var out models.Donation
		require.NoError(t, r.Get(ctx, "d1", &out))
		assert.Equal(t, in, out)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		var out models.Donation
		assert.Equal(t, repos.ErrEntityNotExisting, newRepo(t).Get(context.Background(), "nope", &out))
	})

	t.Run("Put_Overwrites", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		d := models.Donation{ID: "d1", Type: models.RecordTypeGoods, Status: models.StatusPending}
		require.NoError(t, r.Put(ctx, d.ID, d.Type, d.Status, d))
		d.Status = models.StatusVerified
		require.NoError(t, r.Put(ctx, d.ID, d.Type, d.Status, d))

		var out models.Donation
		require.NoError(t, r.Get(ctx, "d1", &out))
		assert.Equal(t, models.StatusVerified, out.Status)

		var list []models.Donation
		require.NoError(t, r.List(ctx, models.RecordTypeGoods, &list))
		assert.Len(t, list, 1)
	})

	t.Run("List_NewestFirstPerType", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			d := models.Donation{ID: id, Type: models.RecordTypeMonetary, Status: models.StatusPending}
			require.NoError(t, r.Put(ctx, id, d.Type, d.Status, d))
		}
		c := models.Contact{ID: "x", Type: models.RecordTypeContact, Name: "Ann"}
		require.NoError(t, r.Put(ctx, c.ID, c.Type, "", c))

		var list []models.Donation
		require.NoError(t, r.List(ctx, models.RecordTypeMonetary, &list))
		require.Len(t, list, 3)
		assert.Equal(t, "c", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
		assert.Equal(t, "a", list[2].ID)

		var contacts []models.Contact
		require.NoError(t, r.List(ctx, models.RecordTypeContact, &contacts))
		require.Len(t, contacts, 1)
		assert.Equal(t, "Ann", contacts[0].Name)
	})

	t.Run("List_Empty", func(t *testing.T) {
		list := []models.Payment{}
		require.NoError(t, newRepo(t).List(context.Background(), models.RecordTypePayment, &list))
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})
}
