package internal

import (
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// Number of media store deletions running at the same time during a cleanup
const cleanupConcurrency = 4

// MediaStore stores the pictures and videos of events outside of the local database
type MediaStore interface {
	UploadImage(ctx context.Context, file io.Reader, fileName string, meta map[string]string) (*models.MediaAsset, error)
	UploadVideo(ctx context.Context, file io.Reader, fileName string, meta map[string]string) (*models.MediaAsset, error)
	DeleteImage(ctx context.Context, id string) error
	DeleteVideo(ctx context.Context, id string) error
}

// Upload is a file sent along with an event
type Upload struct {
	FileName string
	Open     func() (io.ReadCloser, error)
}

// EventInput is the data needed for creating or updating an event
type EventInput struct {
	// ID of the event to update - ignored on create
	ID      string
	Payload models.EventPayload
	// A new video - nil keeps the current one
	Video *Upload
	// New pictures - if there are any, they replace all current pictures of the event
	Images []Upload
}

// EventService provides service functions for working with events
type EventService interface {
	// List returns all events having all of the given tags - newest first
	List(ctx context.Context, tags []string) ([]models.Event, error)
	// Schedule splits the events having all of the given tags into upcoming and past ones
	Schedule(ctx context.Context, tags []string) (*models.EventSchedule, error)
	// Get returns the event with the given ID
	Get(ctx context.Context, id string) (*models.Event, error)
	// Tags returns all tags in use
	Tags(ctx context.Context) ([]string, error)
	// Create uploads the event's media and stores the new event
	Create(ctx context.Context, in EventInput) (*models.Event, error)
	// Update overwrites an existing event. Tags and links are always replaced
	Update(ctx context.Context, in EventInput) (*models.Event, error)
	// Delete removes an event together with its media
	Delete(ctx context.Context, id string) error
}

// -- EventService implementation --------------------------------------------------------------------------------------

type eventService struct {
	repo   repos.EventRepo
	media  MediaStore
	logger *logrus.Entry
	now    func() time.Time
}

// NewEventService creates a new event service instance
func NewEventService(repo repos.EventRepo, media MediaStore, logger *logrus.Entry) EventService {
	return &eventService{
		repo:   repo,
		media:  media,
		logger: logger,
		now:    time.Now,
	}
}

// mediaSet collects the remote media uploaded for one request, so it can be removed again if storing fails
type mediaSet struct {
	video  *models.MediaAsset
	images []models.EventImage
}

// List returns all events having all of the given tags
func (s *eventService) List(ctx context.Context, tags []string) ([]models.Event, error) {
	evs, err := s.repo.Find(ctx, repos.EventFilter{Tags: tags})
	if err != nil {
		s.logger.WithError(err).WithField(log.FldTags, tags).Error("Failed to list events")
		return nil, makeRepoError("Error while searching events", err)
	}
	return evs, nil
}

// Get returns the event with the given ID
func (s *eventService) Get(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, ErrEventNotFound
		}
		s.logger.WithError(err).WithField(log.FldEvent, id).Error("Failed to load event")
		return nil, makeRepoError("Error while retrieving event", err)
	}
	return ev, nil
}

// Schedule returns the upcoming events (soonest first) and the past ones (latest first). An event counts as upcoming
// until it has started
func (s *eventService) Schedule(ctx context.Context, tags []string) (*models.EventSchedule, error) {
	evs, err := s.List(ctx, tags)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ret := &models.EventSchedule{
		Upcoming: []models.ScheduledEvent{},
		Past:     []models.ScheduledEvent{},
	}
	for _, ev := range evs {
		if ev.TimeStart.After(now) {
			ret.Upcoming = append(ret.Upcoming, models.NewScheduledEvent(ev))
		} else {
			ret.Past = append(ret.Past, models.NewScheduledEvent(ev))
		}
	}
	sort.SliceStable(ret.Upcoming, func(i, j int) bool {
		return ret.Upcoming[i].TimeStart.Before(ret.Upcoming[j].TimeStart)
	})
	sort.SliceStable(ret.Past, func(i, j int) bool {
		return ret.Past[i].TimeStart.After(ret.Past[j].TimeStart)
	})
	return ret, nil
}

// Tags returns all distinct tags in use
func (s *eventService) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.repo.Tags(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list tags")
		return nil, makeRepoError("Error while retrieving tags", err)
	}
	return tags, nil
}

// Create uploads the event's media, then stores the event and all of its children at once.
// If storing fails, the uploaded media is removed again
func (s *eventService) Create(ctx context.Context, in EventInput) (*models.Event, error) {
	if err := validateRequest(&in.Payload); err != nil {
		return nil, err
	}
	now := s.now()
	ev := &models.Event{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyPayload(ev, &in.Payload)
	logger := s.logger.WithField(log.FldEvent, ev.ID)

	uploaded, err := s.uploadMedia(ctx, ev.ID, in)
	if err != nil {
		s.cleanup(logger, uploaded)
		return nil, err
	}
	ev.SetVideo(uploaded.video)
	ev.Images = uploaded.images

	if err := s.repo.Create(ctx, ev); err != nil {
		logger.WithError(err).Error("Failed to store event - removing uploaded media")
		s.cleanup(logger, uploaded)
		return nil, makeRepoError("Error while storing event", err)
	}
	logger.Info("Event created")
	return s.reload(ctx, ev), nil
}

// Update stores the new event data. A new video replaces the old one, new pictures replace all old ones. Replaced
// media is deleted from the media store after the event has been stored
func (s *eventService) Update(ctx context.Context, in EventInput) (*models.Event, error) {
	if err := validateRequest(&in.Payload); err != nil {
		return nil, err
	}
	old, err := s.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.WithField(log.FldEvent, old.ID)
	ev := &models.Event{
		ID:        old.ID,
		VideoID:   old.VideoID,
		VideoURL:  old.VideoURL,
		Images:    old.Images,
		CreatedAt: old.CreatedAt,
		UpdatedAt: s.now(),
	}
	applyPayload(ev, &in.Payload)

	uploaded, err := s.uploadMedia(ctx, ev.ID, in)
	if err != nil {
		s.cleanup(logger, uploaded)
		return nil, err
	}
	var replaced mediaSet
	if uploaded.video != nil {
		replaced.video = old.Video()
		ev.SetVideo(uploaded.video)
	}
	if len(in.Images) > 0 {
		replaced.images = old.Images
		ev.Images = uploaded.images
	}

	if err := s.repo.Update(ctx, ev); err != nil {
		s.cleanup(logger, uploaded)
		if err == repos.ErrEntityNotExisting {
			return nil, ErrEventNotFound
		}
		logger.WithError(err).Error("Failed to update event")
		return nil, makeRepoError("Error while updating event", err)
	}
	s.cleanup(logger, replaced)
	logger.Info("Event updated")
	return s.reload(ctx, ev), nil
}

// Delete removes the event's media from the media store before removing the event itself
func (s *eventService) Delete(ctx context.Context, id string) error {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	logger := s.logger.WithField(log.FldEvent, id)
	s.cleanup(logger, mediaSet{video: ev.Video(), images: ev.Images})
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == repos.ErrEntityNotExisting {
			return ErrEventNotFound
		}
		logger.WithError(err).Error("Failed to delete event")
		return makeRepoError("Error while deleting event", err)
	}
	logger.Info("Event deleted")
	return nil
}

// applyPayload copies the client data onto the event
func applyPayload(ev *models.Event, p *models.EventPayload) {
	ev.Title = p.Title
	ev.TimeStart = p.Time.Start
	ev.TimeEnd = p.Time.End
	ev.DescriptionContent = p.Description.Content
	ev.DescriptionFormat = p.Description.Format
	if ev.DescriptionFormat == "" {
		ev.DescriptionFormat = models.FormatPlain
	}
	ev.Tags = repos.UniqueStrings(p.Tags)
	ev.Links = make([]models.EventLink, len(p.Links))
	for i, l := range p.Links {
		ev.Links[i] = models.EventLink{
			ID:          uuid.NewString(),
			EventID:     ev.ID,
			Type:        l.Type,
			Description: l.Description,
			URL:         l.URL,
		}
	}
	ev.Normalize()
}

// uploadMedia uploads the video first, then the pictures one after another. On error, the returned set contains
// everything uploaded so far
func (s *eventService) uploadMedia(ctx context.Context, eventID string, in EventInput) (mediaSet, error) {
	var ret mediaSet
	meta := map[string]string{"eventId": eventID}
	if in.Video != nil {
		asset, err := s.upload(ctx, *in.Video, meta, s.media.UploadVideo)
		if err != nil {
			return ret, err
		}
		ret.video = asset
	}
	for _, img := range in.Images {
		asset, err := s.upload(ctx, img, meta, s.media.UploadImage)
		if err != nil {
			return ret, err
		}
		ret.images = append(ret.images, models.EventImage{
			ID:      uuid.NewString(),
			EventID: eventID,
			ImageID: asset.ID,
			URL:     asset.URL,
		})
	}
	return ret, nil
}

type uploadFunc func(ctx context.Context, file io.Reader, fileName string, meta map[string]string) (*models.MediaAsset, error)

func (s *eventService) upload(
	ctx context.Context,
	u Upload,
	meta map[string]string,
	fn uploadFunc,
) (*models.MediaAsset, error) {
	f, err := u.Open()
	if err != nil {
		return nil, MakeError(http.StatusBadRequest, ErrCodeIllegalValue, "Failed to read uploaded file "+u.FileName)
	}
	defer f.Close()
	asset, err := fn(ctx, f, u.FileName, meta)
	if err != nil {
		s.logger.WithError(err).WithField(log.FldEvent, meta["eventId"]).Warn("Media upload failed")
		return nil, makeUpstreamError(http.StatusBadRequest, err)
	}
	return asset, nil
}

// cleanup deletes the given media from the media store. Failures are logged only
func (s *eventService) cleanup(logger *logrus.Entry, set mediaSet) {
	if set.video == nil && len(set.images) == 0 {
		return
	}
	// The request may already have been cancelled - the media has to go anyway
	ctx := context.Background()
	var g errgroup.Group
	g.SetLimit(cleanupConcurrency)
	if set.video != nil {
		id := set.video.ID
		g.Go(func() error {
			if err := s.media.DeleteVideo(ctx, id); err != nil {
				logger.WithError(err).WithFields(logrus.Fields{log.FldMedia: id, log.FldMediaKind: "video"}).
					Warn("Failed to delete video from media store")
				return err
			}
			return nil
		})
	}
	for _, img := range set.images {
		id := img.ImageID
		g.Go(func() error {
			if err := s.media.DeleteImage(ctx, id); err != nil {
				logger.WithError(err).WithFields(logrus.Fields{log.FldMedia: id, log.FldMediaKind: "image"}).
					Warn("Failed to delete image from media store")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("Media cleanup incomplete")
	}
}

// reload reads the stored event back. The event as written is used if that fails
func (s *eventService) reload(ctx context.Context, ev *models.Event) *models.Event {
	stored, err := s.repo.GetByID(ctx, ev.ID)
	if err != nil {
		s.logger.WithError(err).WithField(log.FldEvent, ev.ID).Warn("Failed to reload stored event")
		ev.Normalize()
		return ev
	}
	return stored
}
