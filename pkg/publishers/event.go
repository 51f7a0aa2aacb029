package publishers

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the count runtime.
const (
	EventCounted = "counted"
	EventLoaded  = "loaded"
)

// Event represents the payload published downstream.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Spec       string    `json:"spec,omitempty"`
	URL        string    `json:"url,omitempty"`
	Count      int64     `json:"count"`
	Failed     []string  `json:"failed,omitempty"`
	Stale      bool      `json:"stale,omitempty"`
	Page       string    `json:"page,omitempty"`
	Nodes      int       `json:"nodes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewCountedEvent describes a count written for spec and url.
func NewCountedEvent(spec, url string, count int64, failed []string, stale bool) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventCounted,
		Spec:       spec,
		URL:        url,
		Count:      count,
		Failed:     failed,
		Stale:      stale,
		OccurredAt: time.Now().UTC(),
	}
}

// NewLoadedEvent describes a completed page scan.
func NewLoadedEvent(page string, nodes int) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventLoaded,
		Page:       page,
		Nodes:      nodes,
		OccurredAt: time.Now().UTC(),
	}
}

// attributes returns the routing attributes attached to queue messages.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{"event_type": e.Type}
	if e.Spec != "" {
		attrs["spec"] = e.Spec
	}
	return attrs
}
