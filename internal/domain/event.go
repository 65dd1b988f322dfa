package domain

import (
	"time"

	"github.com/google/uuid"
)

// Meta is carried by every event.
type Meta struct {
	ID        uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time // absolute deadline; the event is stale from this instant on
}

// NewMeta stamps a fresh event created at now that expires after horizon.
func NewMeta(now time.Time, horizon time.Duration) Meta {
	return Meta{
		ID:        uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(horizon),
	}
}

// Live reports whether an event with this meta may still be processed at now.
func (m Meta) Live(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}

// Event is a queued unit of work for the dispatcher. The set of
// implementations is closed: TriggerEvent, ReadingEvent and AssetLocationEvent.
type Event interface {
	EventMeta() Meta
	SensorClass() SensorClass
	Kind() EventKind
}

// EventKind is the phase of an event, used for logging and metric labels.
type EventKind string

const (
	KindTrigger       EventKind = "trigger"
	KindReading       EventKind = "reading"
	KindAssetLocation EventKind = "asset_location"
)

// TriggerEvent asks for a new measurement of Class.
type TriggerEvent struct {
	Meta
	Class SensorClass
}

// ReadingEvent carries a completed measurement.
type ReadingEvent struct {
	Meta
	Class   SensorClass
	Reading Reading
	ReadAt  time.Time // wall clock when the adapter returned
}

// AssetLocationEvent carries the remote location of an uploaded media blob
// and drives the timeseries half of a media upload.
type AssetLocationEvent struct {
	Meta
	Class     SensorClass
	MediaType MediaType
	Location  string
	ReadAt    time.Time
}

func (e TriggerEvent) EventMeta() Meta          { return e.Meta }
func (e TriggerEvent) SensorClass() SensorClass { return e.Class }
func (e TriggerEvent) Kind() EventKind          { return KindTrigger }

func (e ReadingEvent) EventMeta() Meta          { return e.Meta }
func (e ReadingEvent) SensorClass() SensorClass { return e.Class }
func (e ReadingEvent) Kind() EventKind          { return KindReading }

func (e AssetLocationEvent) EventMeta() Meta          { return e.Meta }
func (e AssetLocationEvent) SensorClass() SensorClass { return e.Class }
func (e AssetLocationEvent) Kind() EventKind          { return KindAssetLocation }

// NewTrigger builds a trigger event for class created at now.
func NewTrigger(class SensorClass, now time.Time, horizon time.Duration) TriggerEvent {
	return TriggerEvent{Meta: NewMeta(now, horizon), Class: class}
}

// NewReading builds the return event of trigger. It inherits the trigger's deadline.
func NewReading(trigger TriggerEvent, reading Reading, readAt time.Time) ReadingEvent {
	return ReadingEvent{
		Meta: Meta{
			ID:        uuid.New(),
			CreatedAt: readAt,
			ExpiresAt: trigger.ExpiresAt,
		},
		Class:   trigger.Class,
		Reading: reading,
		ReadAt:  readAt,
	}
}

// NewAssetLocation builds the second-phase event of a media reading. It
// inherits the reading's deadline.
func NewAssetLocation(reading ReadingEvent, mediaType MediaType, location string, now time.Time) AssetLocationEvent {
	return AssetLocationEvent{
		Meta: Meta{
			ID:        uuid.New(),
			CreatedAt: now,
			ExpiresAt: reading.ExpiresAt,
		},
		Class:     reading.Class,
		MediaType: mediaType,
		Location:  location,
		ReadAt:    reading.ReadAt,
	}
}
