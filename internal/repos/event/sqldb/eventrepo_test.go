package sqldb

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
	"github.com/gamemixer/gamemixer-api/internal/repos/eventtest"
	"github.com/gamemixer/gamemixer-api/internal/repos/sqltest"
)

func newRepo(t *testing.T) *EventRepo {
	return New(sqltest.Open(t), sqltest.Logger())
}

func countRows(t *testing.T, r *EventRepo, table, eventID string) int {
	var n int
	require.NoError(t, r.db.Get(&n, "SELECT COUNT(*) FROM "+table+" WHERE event_id = ?", eventID))
	return n
}

func TestEventRepo(t *testing.T) {
	eventtest.Run(t, func(t *testing.T) repos.EventRepo { return newRepo(t) })
}

func TestEventRepo_Create_RollsBackOnChildFailure(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	ev := eventtest.NewEvent("broken", eventtest.BaseTime, "a")
	// Duplicate primary key on the second image
	ev.Images = []models.EventImage{
		{ID: "dup", ImageID: "cf-1"},
		{ID: "dup", ImageID: "cf-2"},
	}
	require.Error(t, r.Create(ctx, ev))

	_, err := r.GetByID(ctx, "broken")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	assert.Equal(t, 0, countRows(t, r, "event_tags", "broken"))
	assert.Equal(t, 0, countRows(t, r, "event_images", "broken"))
}

func TestEventRepo_Delete_CascadesToChildren(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	ev := eventtest.NewEvent("e1", eventtest.BaseTime, "x")
	ev.Images = []models.EventImage{{ID: "i1", ImageID: "cf-1"}}
	ev.Links = []models.EventLink{{ID: "l1", Type: "a", URL: "https://a.example"}}
	require.NoError(t, r.Create(ctx, ev))

	require.NoError(t, r.Delete(ctx, "e1"))
	assert.Equal(t, 0, countRows(t, r, "event_images", "e1"))
	assert.Equal(t, 0, countRows(t, r, "event_links", "e1"))
	assert.Equal(t, 0, countRows(t, r, "event_tags", "e1"))
}

func TestEventRepo_Update_FailureKeepsOldChildren(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	ev := eventtest.NewEvent("e1", eventtest.BaseTime, "x")
	ev.Links = []models.EventLink{{ID: "l1", Type: "a", URL: "https://a.example"}}
	require.NoError(t, r.Create(ctx, ev))

	ev.Title = "Changed"
	ev.Links = []models.EventLink{
		{ID: "l2", Type: "b", URL: "https://b.example"},
		{ID: "l2", Type: "c", URL: "https://c.example"},
	}
	require.Error(t, r.Update(ctx, ev))

	got, err := r.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Event e1", got.Title)
	require.Len(t, got.Links, 1)
	assert.Equal(t, "l1", got.Links[0].ID)
}

func TestEventRepo_Create_SequenceIsUnique(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- r.Create(ctx, eventtest.NewEvent(fmt.Sprintf("e%d", i), eventtest.BaseTime))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var seqs []int64
	require.NoError(t, r.db.Select(&seqs, "SELECT seq FROM events ORDER BY seq"))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, seqs)

	// The unique index rejects a duplicate sequence number
	_, err := r.db.Exec(`INSERT INTO events(id, seq, title, time_start, time_end, created_at, updated_at)
        VALUES('dup', 1, 'x', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}
