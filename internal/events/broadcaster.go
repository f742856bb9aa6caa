// Package events provides the pub/sub channel that pushes state-changing
// events to connected dashboard viewers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/repodash/repodash/internal/metrics"
)

const (
	// EventFileUpdated is published after every successful update, restore
	// or clear of a target.
	EventFileUpdated = "fileUpdated"

	// EventSystemLocked / EventSystemUnlocked are published on admin lock
	// transitions.
	EventSystemLocked   = "systemLocked"
	EventSystemUnlocked = "systemUnlocked"
)

// Event is one notification delivered to connected viewers.
type Event struct {
	Name        string `json:"name"`
	TargetKey   string `json:"targetKey,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Action      string `json:"action,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Broadcaster fans events out to all currently connected viewer sessions.
// Delivery is best-effort, at most once per session: there is no queueing for
// disconnected sessions and no acknowledgment.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new viewer session and returns its event channel.
// The caller must call Unsubscribe when the session ends.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
	return ch
}

// Unsubscribe removes a viewer session and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
}

// Publish sends an event to every connected session. Non-blocking: the event
// is dropped for sessions whose buffer is full.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
}

// Count returns the number of connected sessions.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON for the SSE wire.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
