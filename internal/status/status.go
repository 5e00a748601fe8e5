// Package status provides a thread-safe status tracker for the sensor node.
// It is written by the main loop and the inbound callback, and read by HTTP
// handlers and system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensor-node/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
	Known      bool // SSID is one of the configured networks
}

// Identity describes the node.
type Identity struct {
	DeviceID        string
	FirmwareID      int
	FirmwareVersion string
}

// Config contains node configuration for display.
type Config struct {
	IntervalMs  int64
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	TopicOut    string
	TopicIn     string
	SensorMode  string
	HTTPAddr    string
}

// Counts tracks loop outcomes since startup.
type Counts struct {
	Published     int // telemetry payloads handed to the broker
	ReadFailures  int // intervals skipped because a field was unavailable
	PublishErrors int
	Received      int // inbound messages
	Disconnected  int // loop ticks skipped while not connected
}

// Snapshot is a point-in-time view of node state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Identity      Identity
	LastReading   logic.Reading
	LastReadingAt time.Time
	LastPublishAt time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the node started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, identity and config.
func NewTracker(startTime time.Time, id Identity, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Identity:  id,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordReading stores the latest sensor reading, complete or not.
func (t *Tracker) RecordReading(r logic.Reading, at time.Time) {
	t.mu.Lock()
	t.snap.LastReading = r
	t.snap.LastReadingAt = at
	if !r.Complete() {
		t.snap.Counts.ReadFailures++
	}
	t.mu.Unlock()
}

// RecordPublish counts a successful telemetry publish.
func (t *Tracker) RecordPublish(at time.Time) {
	t.mu.Lock()
	t.snap.Counts.Published++
	t.snap.LastPublishAt = at
	t.mu.Unlock()
}

// RecordPublishError counts a failed telemetry publish.
func (t *Tracker) RecordPublishError() {
	t.mu.Lock()
	t.snap.Counts.PublishErrors++
	t.mu.Unlock()
}

// RecordReceived counts an inbound message.
func (t *Tracker) RecordReceived() {
	t.mu.Lock()
	t.snap.Counts.Received++
	t.mu.Unlock()
}

// RecordDisconnected counts a loop tick skipped while not connected.
func (t *Tracker) RecordDisconnected() {
	t.mu.Lock()
	t.snap.Counts.Disconnected++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the node state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
