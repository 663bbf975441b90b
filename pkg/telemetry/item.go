package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// ItemKind discriminates queue items.
type ItemKind int

const (
	KindEvent ItemKind = iota
	KindSummary
)

// Item is a unit of outbound telemetry. Items are immutable once created
// and owned by the queue until drained into a batch.
type Item interface {
	ItemKind() ItemKind
	OccurredAt() time.Time
}

// Event is a single usage event reported by the host application.
type Event struct {
	ID         string                 `msgpack:"id" json:"id"`
	Name       string                 `msgpack:"name" json:"name"`
	Timestamp  time.Time              `msgpack:"ts" json:"timestamp"`
	SessionID  string                 `msgpack:"sid" json:"session_id"`
	UserID     string                 `msgpack:"uid" json:"user_id"`
	Device     map[string]string      `msgpack:"device" json:"device,omitempty"`
	App        map[string]string      `msgpack:"app" json:"app,omitempty"`
	Properties map[string]interface{} `msgpack:"props" json:"properties,omitempty"`
}

func (e Event) ItemKind() ItemKind    { return KindEvent }
func (e Event) OccurredAt() time.Time { return e.Timestamp }

// NewEvent creates an Event with a fresh id and the current time.
func NewEvent(name, sessionID, userID string, device, app map[string]string, props map[string]interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Name:       name,
		Timestamp:  time.Now().UTC(),
		SessionID:  sessionID,
		UserID:     userID,
		Device:     device,
		App:        app,
		Properties: props,
	}
}

// Summary records that a configuration value was exposed to the caller.
// ExperienceID, ConfigID, VariationID and Version are required; the dedup
// tracker rejects summaries missing any of them.
type Summary struct {
	Name         string                 `msgpack:"name" json:"name"`
	Count        int                    `msgpack:"count" json:"count"`
	ExperienceID string                 `msgpack:"exp" json:"experience_id"`
	ConfigID     string                 `msgpack:"cfg" json:"config_id"`
	VariationID  string                 `msgpack:"var" json:"variation_id"`
	Version      string                 `msgpack:"ver" json:"version"`
	Timestamp    time.Time              `msgpack:"ts" json:"timestamp"`
	Properties   map[string]interface{} `msgpack:"props" json:"properties,omitempty"`
}

func (s Summary) ItemKind() ItemKind    { return KindSummary }
func (s Summary) OccurredAt() time.Time { return s.Timestamp }
