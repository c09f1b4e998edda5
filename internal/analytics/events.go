package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventSync   EventType = "sync"
)

// SearchEvent describes one resolved query in a session.
type SearchEvent struct {
	Collection string    `json:"collection"`
	Query      string    `json:"query"`
	Hits       int       `json:"hits"`
	LatencyMs  int64     `json:"latency_ms"`
	Failed     bool      `json:"failed"`
	Stale      bool      `json:"stale"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
}

// SyncEvent describes the outcome of loading one dataset.
type SyncEvent struct {
	Collection string    `json:"collection"`
	Stage      string    `json:"stage"`
	Documents  int       `json:"documents"`
	Created    bool      `json:"created"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Envelope tags an event with its type so it survives a JSON round trip.
type Envelope struct {
	Type   EventType    `json:"type"`
	Search *SearchEvent `json:"search,omitempty"`
	Sync   *SyncEvent   `json:"sync,omitempty"`
}

func Search(e SearchEvent) Envelope { return Envelope{Type: EventSearch, Search: &e} }

func Sync(e SyncEvent) Envelope { return Envelope{Type: EventSync, Sync: &e} }

// Key is the partition key: events for one collection stay ordered.
func (e Envelope) Key() string {
	switch {
	case e.Search != nil:
		return e.Search.Collection
	case e.Sync != nil:
		return e.Sync.Collection
	default:
		return string(e.Type)
	}
}
