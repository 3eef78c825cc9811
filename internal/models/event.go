package models

import "time"

const (
	// FormatPlain marks an event description as plain text
	FormatPlain = "plain"
	// FormatRich marks an event description as rich text (HTML produced by the admin editor)
	FormatRich = "rich"
)

// Event describes one activity of the organization together with its media, tags and links.
// This is the denormalized view that is returned to clients; the relational store keeps the
// children in separate tables
type Event struct {
	// Unique ID (UUID) generated on creation
	ID string `db:"id" json:"id"`
	// Title of the event
	Title string `db:"title" json:"title"`
	// When does/did the event start?
	TimeStart time.Time `db:"time_start" json:"time_start"`
	// When does/did the event end?
	TimeEnd time.Time `db:"time_end" json:"time_end"`
	// The description text
	DescriptionContent string `db:"description_content" json:"description_content"`
	// Format of the description - either "plain" or "rich"
	DescriptionFormat string `db:"description_format" json:"description_format"`
	// Remote ID of the uploaded video - nil if there is none
	VideoID *string `db:"video_id" json:"video_id"`
	// Public URL of the uploaded video - set together with VideoID
	VideoURL *string `db:"video_url" json:"video_url"`
	// Pictures attached to the event
	Images []EventImage `db:"-" json:"images"`
	// Labels used for filtering
	Tags []string `db:"-" json:"tags"`
	// External links like registration forms or reports
	Links []EventLink `db:"-" json:"links"`
	// Creation date of this entry
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasVideo checks if a video is attached to the event
func (e *Event) HasVideo() bool {
	return e.VideoID != nil && *e.VideoID != ""
}

// SetVideo attaches the given remote video to the event. Passing nil removes the video
func (e *Event) SetVideo(v *MediaAsset) {
	if v == nil {
		e.VideoID = nil
		e.VideoURL = nil
		return
	}
	id, url := v.ID, v.URL
	e.VideoID = &id
	e.VideoURL = &url
}

// Video returns the remote video attached to the event or nil
func (e *Event) Video() *MediaAsset {
	if !e.HasVideo() {
		return nil
	}
	ret := &MediaAsset{ID: *e.VideoID}
	if e.VideoURL != nil {
		ret.URL = *e.VideoURL
	}
	return ret
}

// Normalize makes sure that the child collections are never nil, so they are rendered as empty JSON arrays
func (e *Event) Normalize() {
	if e.Images == nil {
		e.Images = []EventImage{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Links == nil {
		e.Links = []EventLink{}
	}
}

// EventImage is one uploaded picture attached to an event
type EventImage struct {
	// Local ID of the image row
	ID string `db:"id" json:"id"`
	// The event this image belongs to
	EventID string `db:"event_id" json:"-"`
	// ID of the image inside the media store
	ImageID string `db:"image_id" json:"image_id"`
	// Public URL of the image
	URL string `db:"url" json:"url"`
}

// EventLink is a named external URL tied to an event
type EventLink struct {
	ID          string `db:"id" json:"id"`
	EventID     string `db:"event_id" json:"-"`
	Type        string `db:"type" json:"type"`
	Description string `db:"description" json:"description"`
	URL         string `db:"url" json:"url"`
}

// EventPayload is the event data sent by clients when creating or updating an event
type EventPayload struct {
	Title       string             `json:"title" validate:"required"`
	Time        EventTimeRange     `json:"time"`
	Description EventDescription   `json:"description"`
	Tags        []string           `json:"tags" validate:"dive,notblank"`
	Links       []EventLinkPayload `json:"links" validate:"dive"`
}

// EventTimeRange is the start and end time of an event inside an EventPayload
type EventTimeRange struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtefield=Start"`
}

// EventDescription is the description part of an EventPayload
type EventDescription struct {
	Content string `json:"content"`
	Format  string `json:"format" validate:"omitempty,oneof=plain rich"`
}

// EventLinkPayload is a link as sent by clients
type EventLinkPayload struct {
	Type        string `json:"type" validate:"required"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"required,url"`
}

// EventDuration is the length of an event in whole hours and remaining minutes
type EventDuration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// ScheduledEvent is an event enriched with its duration
type ScheduledEvent struct {
	Event
	Duration EventDuration `json:"duration"`
}

// NewScheduledEvent calculates the duration of the given event
func NewScheduledEvent(ev Event) ScheduledEvent {
	d := ev.TimeEnd.Sub(ev.TimeStart)
	return ScheduledEvent{
		Event: ev,
		Duration: EventDuration{
			Hours:   int(d / time.Hour),
			Minutes: int((d % time.Hour) / time.Minute),
		},
	}
}

// EventSchedule divides events into the ones still to come and the ones that have already started
type EventSchedule struct {
	Upcoming []ScheduledEvent `json:"upcoming"`
	Past     []ScheduledEvent `json:"past"`
}

// MediaAsset is a file stored inside the remote media store
type MediaAsset struct {
	// The media store's own identifier
	ID string `json:"id"`
	// Publicly fetchable address
	URL string `json:"url"`
}
