// Package eventtest contains the behaviour shared by all event repository implementations as a reusable test suite
package eventtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// BaseTime is the reference timestamp used by the suite
var BaseTime = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

// NewEvent returns a minimal valid event
func NewEvent(id string, created time.Time, tags ...string) *models.Event {
	return &models.Event{
		ID:                 id,
		Title:              "Event " + id,
		TimeStart:          BaseTime,
		TimeEnd:            BaseTime.Add(2 * time.Hour),
		DescriptionContent: "Board games and snacks",
		DescriptionFormat:  models.FormatPlain,
		Tags:               tags,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

// Run executes the suite against fresh repositories created by newRepo
func Run(t *testing.T, newRepo func(t *testing.T) repos.EventRepo) {
	t.Run("CreateAndGet_ComposesChildren", func(t *testing.T) { createAndGet(t, newRepo(t)) })
	t.Run("GetByID_EmptyChildrenAreEmptySlices", func(t *testing.T) { emptyChildren(t, newRepo(t)) })
	t.Run("GetByID_NotFound", func(t *testing.T) {
		_, err := newRepo(t).GetByID(context.Background(), "missing")
		assert.Equal(t, repos.ErrEntityNotExisting, err)
	})
	t.Run("Find_NewestFirst", func(t *testing.T) { newestFirst(t, newRepo(t)) })
	t.Run("Find_SameTimestampKeepsInsertionOrder", func(t *testing.T) { sameTimestamp(t, newRepo(t)) })
	t.Run("Find_TagsAreAndCombined", func(t *testing.T) { tagsAnd(t, newRepo(t)) })
	t.Run("Update_ReplacesChildren", func(t *testing.T) { updateReplaces(t, newRepo(t)) })
	t.Run("Update_NotFound", func(t *testing.T) {
		err := newRepo(t).Update(context.Background(), NewEvent("ghost", BaseTime))
		assert.Equal(t, repos.ErrEntityNotExisting, err)
	})
	t.Run("Delete", func(t *testing.T) { deleteEvent(t, newRepo(t)) })
	t.Run("Tags_Distinct", func(t *testing.T) { distinctTags(t, newRepo(t)) })
}

func createAndGet(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	ev := NewEvent("e1", BaseTime, "kids", "family")
	ev.SetVideo(&models.MediaAsset{ID: "vid1", URL: "https://watch.example/vid1"})
	ev.Images = []models.EventImage{
		{ID: "i1", ImageID: "cf-1", URL: "https://img.example/1"},
		{ID: "i2", ImageID: "cf-2", URL: "https://img.example/2"},
	}
	ev.Links = []models.EventLink{
		{ID: "l1", Type: "registration", Description: "Sign up", URL: "https://forms.example/1"},
	}
	require.NoError(t, r.Create(ctx, ev))

	got, err := r.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Event e1", got.Title)
	assert.Equal(t, models.FormatPlain, got.DescriptionFormat)
	assert.True(t, got.TimeStart.Equal(ev.TimeStart))
	assert.True(t, got.TimeEnd.Equal(ev.TimeEnd))
	assert.Equal(t, []string{"kids", "family"}, got.Tags)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "cf-1", got.Images[0].ImageID)
	assert.Equal(t, "e1", got.Images[0].EventID)
	assert.Equal(t, "https://img.example/2", got.Images[1].URL)
	require.Len(t, got.Links, 1)
	assert.Equal(t, "registration", got.Links[0].Type)
	assert.Equal(t, "Sign up", got.Links[0].Description)
	assert.Equal(t, "https://forms.example/1", got.Links[0].URL)
	require.True(t, got.HasVideo())
	assert.Equal(t, "vid1", *got.VideoID)
	assert.Equal(t, "https://watch.example/vid1", *got.VideoURL)
}

func emptyChildren(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, NewEvent("bare", BaseTime)))

	got, err := r.GetByID(ctx, "bare")
	require.NoError(t, err)
	assert.NotNil(t, got.Images)
	assert.NotNil(t, got.Links)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Images)
	assert.Empty(t, got.Links)
	assert.Empty(t, got.Tags)
	assert.Nil(t, got.VideoID)
	assert.Nil(t, got.VideoURL)
}

func newestFirst(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, NewEvent("old", BaseTime)))
	require.NoError(t, r.Create(ctx, NewEvent("new", BaseTime.Add(time.Hour))))
	require.NoError(t, r.Create(ctx, NewEvent("mid", BaseTime.Add(time.Minute))))

	events, err := r.Find(ctx, repos.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "new", events[0].ID)
	assert.Equal(t, "mid", events[1].ID)
	assert.Equal(t, "old", events[2].ID)
}

func sameTimestamp(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, NewEvent("E1", BaseTime)))
	require.NoError(t, r.Create(ctx, NewEvent("E2", BaseTime)))

	events, err := r.Find(ctx, repos.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "E1", events[0].ID)
	assert.Equal(t, "E2", events[1].ID)
}

func tagsAnd(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, NewEvent("both", BaseTime, "a", "b")))
	require.NoError(t, r.Create(ctx, NewEvent("onlyA", BaseTime.Add(time.Minute), "a")))
	require.NoError(t, r.Create(ctx, NewEvent("none", BaseTime.Add(2*time.Minute))))

	events, err := r.Find(ctx, repos.EventFilter{Tags: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "both", events[0].ID)
	// The complete tag list of a match is returned, not only the filtered tags
	assert.Equal(t, []string{"a", "b"}, events[0].Tags)

	events, err = r.Find(ctx, repos.EventFilter{Tags: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "onlyA", events[0].ID)
	assert.Equal(t, "both", events[1].ID)

	events, err = r.Find(ctx, repos.EventFilter{Tags: []string{"a", "a", ""}})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// No whitespace folding: " a" is a tag of its own
	events, err = r.Find(ctx, repos.EventFilter{Tags: []string{" a"}})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = r.Find(ctx, repos.EventFilter{Tags: []string{"unknown"}})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func updateReplaces(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	ev := NewEvent("e1", BaseTime, "x", "y")
	ev.Images = []models.EventImage{{ID: "i1", ImageID: "cf-1"}}
	ev.Links = []models.EventLink{{ID: "l1", Type: "a", URL: "https://a.example"}}
	require.NoError(t, r.Create(ctx, ev))

	ev.Title = "Renamed"
	ev.Tags = []string{"z"}
	ev.Links = []models.EventLink{
		{ID: "l2", Type: "b", URL: "https://b.example"},
		{ID: "l3", Type: "c", URL: "https://c.example"},
	}
	ev.Images = []models.EventImage{}
	ev.UpdatedAt = BaseTime.Add(time.Hour)
	require.NoError(t, r.Update(ctx, ev))

	got, err := r.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"z"}, got.Tags)
	assert.Empty(t, got.Images)
	require.Len(t, got.Links, 2)
	assert.Equal(t, "l2", got.Links[0].ID)
	assert.Equal(t, "l3", got.Links[1].ID)
	assert.True(t, got.CreatedAt.Equal(BaseTime))
	assert.True(t, got.UpdatedAt.Equal(BaseTime.Add(time.Hour)))

	// The old tags do not match anymore
	events, err := r.Find(ctx, repos.EventFilter{Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, events)
	events, err = r.Find(ctx, repos.EventFilter{Tags: []string{"z"}})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func deleteEvent(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	ev := NewEvent("e1", BaseTime, "x")
	ev.Images = []models.EventImage{{ID: "i1", ImageID: "cf-1"}}
	require.NoError(t, r.Create(ctx, ev))
	require.NoError(t, r.Create(ctx, NewEvent("e2", BaseTime, "x")))

	require.NoError(t, r.Delete(ctx, "e1"))
	_, err := r.GetByID(ctx, "e1")
	assert.Equal(t, repos.ErrEntityNotExisting, err)

	events, err := r.Find(ctx, repos.EventFilter{Tags: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)

	assert.Equal(t, repos.ErrEntityNotExisting, r.Delete(ctx, "e1"))
}

func distinctTags(t *testing.T, r repos.EventRepo) {
	ctx := context.Background()
	tags, err := r.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, tags)

	require.NoError(t, r.Create(ctx, NewEvent("e1", BaseTime, "music", "kids")))
	require.NoError(t, r.Create(ctx, NewEvent("e2", BaseTime, "kids", "art")))

	tags, err = r.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "kids", "music"}, tags)
}
