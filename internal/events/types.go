// Package events provides the in-process event bus used for crawl lifecycle
// notifications.
package events

import (
	"fmt"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	// Crawl lifecycle
	EventCrawlStarted   EventType = "crawl.started"
	EventCrawlProgress  EventType = "crawl.progress"
	EventCrawlCompleted EventType = "crawl.completed"
	EventCrawlFailed    EventType = "crawl.failed"

	// Multi-site orchestration
	EventMultiCrawlStarted   EventType = "crawl.multi.started"
	EventMultiCrawlSiteDone  EventType = "crawl.multi.site_done"
	EventMultiCrawlCompleted EventType = "crawl.multi.completed"

	// Duplicate maintenance
	EventDuplicatesCleaned EventType = "duplicates.cleaned"

	// General
	EventSystemStarted EventType = "system.started"
	EventInfo          EventType = "info"
	EventError         EventType = "error"
)

// Event is a single bus message.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler consumes a delivered event.
type EventHandler func(event Event)

// NewEvent creates an event with a generated id and current timestamp.
func NewEvent(eventType EventType, source, title, message string) Event {
	return Event{
		ID:        fmt.Sprintf("%s-%d", eventType, time.Now().UnixNano()),
		Type:      eventType,
		Source:    source,
		Title:     title,
		Message:   message,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// NewSystemEvent creates an event sourced from the system itself.
func NewSystemEvent(eventType EventType, title, message string) Event {
	return NewEvent(eventType, "system", title, message)
}
