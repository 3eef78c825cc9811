// Package redis provides an event repository that stores each event as one JSON document inside Redis
package redis

import (
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// Key layout:
//   event:<id>        JSON document holding the event with its images, tags and links
//   events            sorted set of all event IDs scored by insertion order
//   events:seq        insertion counter
//   event-tag:<tag>   set of the IDs of all events carrying the tag
const (
	keyEventPrefix = "event:"
	keyEvents      = "events"
	keySeq         = "events:seq"
	keyTagPrefix   = "event-tag:"
)

// document is the stored form of an event
type document struct {
	models.Event
	Seq int64 `json:"seq"`
}

func eventKey(id string) string {
	return keyEventPrefix + id
}

func tagKey(tag string) string {
	return keyTagPrefix + tag
}

// EventRepo is a repository that stores its data inside Redis
type EventRepo struct {
	client *redis.Client
	logger *logrus.Entry
}

// New creates a new event repository instance using the given Redis client
func New(client *redis.Client, logger *logrus.Entry) *EventRepo {
	return &EventRepo{
		client: client,
		logger: logger.WithField(log.FldRepo, "redis"),
	}
}

// load fetches the stored document of the given event
func (r *EventRepo) load(ctx context.Context, id string) (*document, error) {
	data, err := r.client.Get(ctx, eventKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repos.ErrEntityNotExisting
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load event")
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode event")
	}
	return &doc, nil
}

// Create stores a new event document and indexes it
func (r *EventRepo) Create(ctx context.Context, ev *models.Event) error {
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Adding new event")
	exists, err := r.client.Exists(ctx, eventKey(ev.ID)).Result()
	if err != nil {
		return errors.Wrap(err, "failed to check for existing event")
	}
	if exists > 0 {
		return repos.ErrEntityExists
	}
	seq, err := r.client.Incr(ctx, keySeq).Result()
	if err != nil {
		return errors.Wrap(err, "failed to fetch the next sequence number")
	}
	doc := document{Event: *ev, Seq: seq}
	doc.Tags = repos.UniqueStrings(ev.Tags)
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, eventKey(ev.ID), data, 0)
		pipe.ZAdd(ctx, keyEvents, &redis.Z{Score: float64(seq), Member: ev.ID})
		for _, tag := range doc.Tags {
			pipe.SAdd(ctx, tagKey(tag), ev.ID)
		}
		return nil
	})
	return errors.Wrap(err, "failed to store event")
}

// Update replaces the stored document and moves the event between the tag sets
func (r *EventRepo) Update(ctx context.Context, ev *models.Event) error {
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Updating event")
	old, err := r.load(ctx, ev.ID)
	if err != nil {
		return err
	}
	doc := document{Event: *ev, Seq: old.Seq}
	doc.CreatedAt = old.CreatedAt
	doc.Tags = repos.UniqueStrings(ev.Tags)
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, eventKey(ev.ID), data, 0)
		for _, tag := range old.Tags {
			pipe.SRem(ctx, tagKey(tag), ev.ID)
		}
		for _, tag := range doc.Tags {
			pipe.SAdd(ctx, tagKey(tag), ev.ID)
		}
		return nil
	})
	return errors.Wrap(err, "failed to store event")
}

// Delete removes the event document together with its index entries
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldEvent, id).Debug("Deleting event")
	old, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, eventKey(id))
		pipe.ZRem(ctx, keyEvents, id)
		for _, tag := range old.Tags {
			pipe.SRem(ctx, tagKey(tag), id)
		}
		return nil
	})
	return errors.Wrap(err, "failed to delete event")
}

// GetByID returns the event with the given ID
func (r *EventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.logger.WithField(log.FldEvent, id).Debug("Loading event")
	doc, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := doc.toEvent()
	return &ev, nil
}

// Find returns all events carrying every tag of the filter - newest first
func (r *EventRepo) Find(ctx context.Context, filter repos.EventFilter) ([]models.Event, error) {
	tags := filter.NormalizedTags()
	r.logger.WithField(log.FldTags, tags).Debug("Searching events")
	var (
		ids []string
		err error
	)
	if len(tags) == 0 {
		ids, err = r.client.ZRange(ctx, keyEvents, 0, -1).Result()
	} else {
		keys := make([]string, len(tags))
		for i, tag := range tags {
			keys[i] = tagKey(tag)
		}
		ids, err = r.client.SInter(ctx, keys...).Result()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to search events")
	}
	ret := []models.Event{}
	if len(ids) == 0 {
		return ret, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = eventKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}
	docs := make([]document, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Deleted in the meantime
			continue
		}
		var doc document
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode event")
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].Seq < docs[j].Seq
	})
	for _, doc := range docs {
		ret = append(ret, doc.toEvent())
	}
	return ret, nil
}

// Tags returns all distinct tags in alphabetical order
func (r *EventRepo) Tags(ctx context.Context) ([]string, error) {
	ret := []string{}
	iter := r.client.Scan(ctx, 0, keyTagPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ret = append(ret, iter.Val()[len(keyTagPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to load tags")
	}
	sort.Strings(ret)
	return ret, nil
}

// toEvent restores the child back-references that are not part of the document
func (d *document) toEvent() models.Event {
	ev := d.Event
	ev.Normalize()
	for i := range ev.Images {
		ev.Images[i].EventID = ev.ID
	}
	for i := range ev.Links {
		ev.Links[i].EventID = ev.ID
	}
	return ev
}
