// Package mqtt provides the MQTT transport with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// System event names.
const (
	EventStartup   = "STARTUP"
	EventHeartbeat = "HEARTBEAT"
	EventShutdown  = "SHUTDOWN"
	EventOffline   = "OFFLINE"
)

// Publisher publishes messages under the node's outbound root.
type Publisher interface {
	// Publish sends payload to <outbound root><subtopic>.
	// Returns error if publishing fails (should not crash the process).
	Publish(subtopic string, payload []byte) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// MessageHandler receives inbound messages with their concrete topic.
type MessageHandler func(topic, msg string)

// Subscriber delivers messages arriving under the inbound root.
type Subscriber interface {
	// SetCallback registers the inbound handler. Call before Begin.
	SetCallback(h MessageHandler)
}

// Topics is the node's topic namespace.
type Topics struct {
	Out string // outbound root, always ends in "/"
	In  string // inbound root, always ends in "/"
}

// NewTopics normalises both roots to end in a single "/".
func NewTopics(out, in string) Topics {
	return Topics{Out: normaliseRoot(out), In: normaliseRoot(in)}
}

func normaliseRoot(root string) string {
	return strings.TrimRight(root, "/") + "/"
}

// Publish returns the full topic for a subtopic under the outbound root.
func (t Topics) Publish(subtopic string) string {
	return t.Out + strings.TrimLeft(subtopic, "/")
}

// System returns the topic for lifecycle events.
func (t Topics) System() string {
	return t.Out + "system"
}

// Subscribe returns the filter covering everything under the inbound root.
func (t Topics) Subscribe() string {
	return t.In + "#"
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Device     string
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (OFFLINE) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Device    string `json:"device,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
// A zero Timestamp is omitted; the will message is built before any clock is known.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
		Device: event.Device,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}
