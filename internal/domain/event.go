package domain

import "time"

// EventType names a registry change.
type EventType string

const (
	EventActiveChanged EventType = "active-changed"
	EventSourceAdded   EventType = "source-added"
	EventSourceRemoved EventType = "source-removed"
	EventStatusChanged EventType = "status-changed"
)

// Event is emitted to registry listeners.
type Event struct {
	Type     EventType `json:"type"`
	SourceID string    `json:"sourceId"`
	At       time.Time `json:"at"`
}
