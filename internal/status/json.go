package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-node/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device"`
	Firmware      FirmwareJSON `json:"firmware"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	LastPublish   string       `json:"last_publish,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// FirmwareJSON identifies the running build.
type FirmwareJSON struct {
	ID      int    `json:"id"`
	Version string `json:"version"`
}

// ReadingJSON is the last sensor reading; unavailable fields are null.
type ReadingJSON struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Timestamp   string   `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of loop counters.
type CountsJSON struct {
	Published     int `json:"published"`
	ReadFailures  int `json:"read_failures"`
	PublishErrors int `json:"publish_errors"`
	Received      int `json:"received"`
	Disconnected  int `json:"disconnected_ticks"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
	Known      bool   `json:"known"`
}

// ConfigJSON is the JSON representation of node config.
type ConfigJSON struct {
	IntervalMs  int64  `json:"interval_ms"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicOut    string `json:"topic_out"`
	TopicIn     string `json:"topic_in"`
	SensorMode  string `json:"sensor_mode"`
	HTTPAddr    string `json:"http_addr"`
}

func valuePtr(v logic.Value) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.V
	return &f
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device: snap.Identity.DeviceID,
		Firmware: FirmwareJSON{
			ID:      snap.Identity.FirmwareID,
			Version: snap.Identity.FirmwareVersion,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Published:     snap.Counts.Published,
			ReadFailures:  snap.Counts.ReadFailures,
			PublishErrors: snap.Counts.PublishErrors,
			Received:      snap.Counts.Received,
			Disconnected:  snap.Counts.Disconnected,
		},
		Config: ConfigJSON{
			IntervalMs:  snap.Config.IntervalMs,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicOut:    snap.Config.TopicOut,
			TopicIn:     snap.Config.TopicIn,
			SensorMode:  snap.Config.SensorMode,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if !snap.LastReadingAt.IsZero() {
		inner.Reading = &ReadingJSON{
			Temperature: valuePtr(snap.LastReading.Temperature),
			Humidity:    valuePtr(snap.LastReading.Humidity),
			Timestamp:   snap.LastReadingAt.UTC().Format(time.RFC3339),
		}
	}
	if !snap.LastPublishAt.IsZero() {
		inner.LastPublish = snap.LastPublishAt.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
			Known:      snap.Network.Known,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
