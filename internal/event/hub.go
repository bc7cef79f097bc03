// Package event provides the in-process hub that fans out configuration
// activation events, and a Redis bridge that carries them across processes.
package event

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 64

	// AllTypes subscribes to events of every configuration type.
	AllTypes = "*"
)

// Type identifies the event category.
type Type string

const (
	// TypeConfigActivated is emitted after the active pointer of a config type moves.
	TypeConfigActivated Type = "config_activated"
	// TypeConfigCreated is emitted after a new config version is stored.
	TypeConfigCreated Type = "config_created"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type       Type   `json:"type"`
	ConfigType string `json:"config_type"`
	Version    string `json:"config_version"`
	// Origin names the process that produced the event.
	Origin string `json:"origin,omitempty"`
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Subscriber subscribes to events for one config type, or AllTypes.
type Subscriber interface {
	Subscribe(configType string, buffer int) (string, <-chan Event, func())
}

// Hub is an in-process pub/sub dispatcher keyed by config type.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: map[string]map[string]chan Event{},
	}
}

// Publish delivers the event to subscribers of its config type and to
// AllTypes subscribers. Slow subscribers miss events rather than block.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	key := normalizeKey(event.ConfigType)
	if key == "" || key == AllTypes {
		return
	}
	event.ConfigType = key
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, scope := range []string{key, AllTypes} {
		for _, ch := range h.streams[scope] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribe registers one subscriber. It returns a stream ID, a read-only
// channel and a cancel function that closes the channel.
func (h *Hub) Subscribe(configType string, buffer int) (string, <-chan Event, func()) {
	key := normalizeKey(configType)
	if h == nil || key == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[key]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[key] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			streams := h.streams[key]
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, key)
			}
		})
	}
	return streamID, ch, cancel
}

func normalizeKey(configType string) string {
	return strings.ToUpper(strings.TrimSpace(configType))
}
