package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sweeney/sensor-node/internal/config"
	"github.com/sweeney/sensor-node/internal/gpio"
	"github.com/sweeney/sensor-node/internal/logic"
	"github.com/sweeney/sensor-node/internal/mqtt"
	"github.com/sweeney/sensor-node/internal/node"
	"github.com/sweeney/sensor-node/internal/sensor"
	"github.com/sweeney/sensor-node/internal/status"
)

var startTime = time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)

type rig struct {
	cfg     config.Config
	client  *mqtt.FakeClient
	tracker *status.Tracker
	node    *node.Node
	logs    *bytes.Buffer
}

// newRig wires the node the way main does, with fakes at the edges.
func newRig(t *testing.T, cfg config.Config, reader sensor.Reader) *rig {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	logs := &bytes.Buffer{}
	logger := slog.New(tint.NewHandler(logs, &tint.Options{NoColor: true}))

	client := mqtt.NewFakeClient(mqtt.NewTopics(cfg.TopicOut, cfg.TopicIn))
	client.Connected = true

	tracker := status.NewTracker(startTime, status.Identity{
		DeviceID:        "1193046",
		FirmwareID:      cfg.Firmware.ID,
		FirmwareVersion: cfg.Firmware.Version,
	}, status.Config{
		IntervalMs:  cfg.Interval.Milliseconds(),
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.BrokerURL(),
		TopicOut:    cfg.TopicOut,
		TopicIn:     cfg.TopicIn,
		SensorMode:  cfg.Sensor.Mode,
	})

	n := node.New(node.Config{
		Interval:  cfg.Interval,
		Blink:     cfg.LED.Period,
		Heartbeat: cfg.Heartbeat,
		DeviceID:  "1193046",
	}, reader, client, tracker, logger)
	client.SetCallback(n.HandleMessage)

	return &rig{cfg: cfg, client: client, tracker: tracker, node: n, logs: logs}
}

// poll steps the node every cfg.Poll from start until end inclusive.
func (r *rig) poll(from, to time.Duration) {
	for d := from; d <= to; d += r.cfg.Poll {
		r.node.Step(startTime.Add(d))
	}
}

// TestIntegrationFixtureFlow runs the default configuration for two full
// fixture cycles.
func TestIntegrationFixtureFlow(t *testing.T) {
	cfg := config.Default()
	reader, err := sensor.New(cfg.Sensor)
	if err != nil {
		t.Fatalf("sensor.New: %v", err)
	}
	r := newRig(t, cfg, reader)

	r.poll(0, 36*time.Second)

	if len(r.client.Published) != 18 {
		t.Fatalf("expected 18 publishes in 36s, got %d", len(r.client.Published))
	}
	for i, m := range r.client.Published {
		k := i % len(sensor.FixtureTemperatures)
		want := fmt.Sprintf(`{ humidity: "%v", temperature: "%v" }`,
			sensor.FixtureHumidities[k], sensor.FixtureTemperatures[k])
		if string(m.Payload) != want {
			t.Errorf("publish %d: got %s, want %s", i, m.Payload, want)
		}
		if m.Topic != "sensor_node_out/telemetry/" {
			t.Errorf("publish %d topic: got %q", i, m.Topic)
		}
	}

	snap := r.tracker.Snapshot()
	if snap.Counts.Published != 18 || snap.Counts.ReadFailures != 0 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

// TestIntegrationNoPublishAtStartup verifies nothing is published before the
// first interval has elapsed.
func TestIntegrationNoPublishAtStartup(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())

	r.poll(0, 1950*time.Millisecond)

	if len(r.client.Published) != 0 {
		t.Errorf("expected no telemetry before 2000ms, got %d", len(r.client.Published))
	}
	if len(r.client.SystemEvents) != 1 || r.client.SystemEvents[0].Event != mqtt.EventStartup {
		t.Errorf("expected only STARTUP, got %+v", r.client.SystemEvents)
	}
}

// TestIntegrationLiveSensorFaults mixes good and failed reads.
func TestIntegrationLiveSensorFaults(t *testing.T) {
	cfg := config.Default()
	cfg.Sensor.Mode = config.ModeLive
	drv := sensor.NewFakeDriver(
		sensor.Sample{Temperature: 21.25, Humidity: 55.5},
		sensor.Sample{Temperature: math.NaN(), Humidity: 55},
		sensor.Sample{Temperature: 21, Humidity: math.NaN()},
		sensor.Sample{Temperature: -3.5, Humidity: 80},
	)
	r := newRig(t, cfg, sensor.NewLiveReader(drv))

	r.poll(0, 8*time.Second)

	want := []string{
		`{ humidity: "55.50", temperature: "21.25" }`,
		`{ humidity: "80.00", temperature: "-3.50" }`,
	}
	if len(r.client.Published) != len(want) {
		t.Fatalf("expected %d publishes, got %d", len(want), len(r.client.Published))
	}
	for i, w := range want {
		if got := string(r.client.Published[i].Payload); got != w {
			t.Errorf("publish %d: got %s, want %s", i, got, w)
		}
	}

	logs := r.logs.String()
	if strings.Count(logs, "Error reading temperature!") != 1 {
		t.Errorf("expected one temperature failure log:\n%s", logs)
	}
	if strings.Count(logs, "Error reading humidity!") != 1 {
		t.Errorf("expected one humidity failure log:\n%s", logs)
	}
	if got := r.tracker.Snapshot().Counts.ReadFailures; got != 2 {
		t.Errorf("ReadFailures: got %d, want 2", got)
	}
}

// TestIntegrationConnectionDrop verifies the loop pauses while the broker is
// away and resumes without losing its interval baseline.
func TestIntegrationConnectionDrop(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())

	r.poll(0, 2*time.Second) // one publish at 2000ms
	r.client.Connected = false
	r.poll(2050*time.Millisecond, 9*time.Second)
	if len(r.client.Published) != 1 {
		t.Fatalf("expected 1 publish before drop, got %d", len(r.client.Published))
	}

	r.client.Connected = true
	r.node.Step(startTime.Add(9050 * time.Millisecond))
	if len(r.client.Published) != 2 {
		t.Fatalf("expected publish on first connected tick, got %d", len(r.client.Published))
	}
	if got := string(r.client.Published[1].Payload); got != `{ humidity: "40", temperature: "24" }` {
		t.Errorf("fixture should continue where it stopped: got %s", got)
	}

	snap := r.tracker.Snapshot()
	if snap.Counts.Disconnected == 0 {
		t.Error("expected disconnected ticks to be counted")
	}
	if len(r.client.SystemEvents) != 1 {
		t.Errorf("STARTUP should not repeat on reconnect, got %d system events", len(r.client.SystemEvents))
	}
}

// TestIntegrationInboundMessages verifies inbound traffic is logged and does
// not disturb telemetry.
func TestIntegrationInboundMessages(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())

	r.poll(0, time.Second)
	if !r.client.Deliver("sensor_node_in/1193046", `{"cmd":"noop"}`) {
		t.Fatal("callback not registered")
	}
	r.poll(1050*time.Millisecond, 2*time.Second)

	if !strings.Contains(r.logs.String(), `Received MQTT on topic sensor_node_in/1193046: {"cmd":"noop"}`) {
		t.Errorf("inbound message not logged:\n%s", r.logs.String())
	}
	if len(r.client.Published) != 1 {
		t.Errorf("expected 1 publish, got %d", len(r.client.Published))
	}
	if got := r.tracker.Snapshot().Counts.Received; got != 1 {
		t.Errorf("Received: got %d", got)
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies publish errors are
// counted and the next interval still runs.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())
	r.client.PublishError = errors.New("connection refused")

	r.poll(0, 4*time.Second)

	r.client.PublishError = nil
	r.poll(4050*time.Millisecond, 6*time.Second)

	snap := r.tracker.Snapshot()
	if snap.Counts.PublishErrors != 2 {
		t.Errorf("PublishErrors: got %d, want 2", snap.Counts.PublishErrors)
	}
	if len(r.client.Published) != 1 {
		t.Fatalf("expected 1 publish after recovery, got %d", len(r.client.Published))
	}
	// The fixture advanced on each failed interval.
	if got := string(r.client.Published[0].Payload); got != `{ humidity: "37", temperature: "26" }` {
		t.Errorf("got %s", got)
	}
}

// TestIntegrationStartupPayload verifies the retained STARTUP event carries a
// full status snapshot.
func TestIntegrationStartupPayload(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())
	r.tracker.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "10.42.0.17",
		Status: "connected",
		SSID:   "AgileGateway",
		Known:  true,
	})

	r.node.Step(startTime)

	if len(r.client.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(r.client.SystemEvents))
	}
	if !r.client.SystemEvents[0].Retained {
		t.Error("STARTUP should be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(r.client.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "STARTUP" {
		t.Errorf("event: got %q", s.Event)
	}
	if s.Device != "1193046" {
		t.Errorf("device: got %q", s.Device)
	}
	if s.Firmware.ID != 1 || s.Firmware.Version != "0.1" {
		t.Errorf("firmware: got %+v", s.Firmware)
	}
	if s.Config.IntervalMs != 2000 || s.Config.TopicOut != "sensor_node_out/" {
		t.Errorf("config: got %+v", s.Config)
	}
	if s.Config.Broker != "tcp://10.42.0.1:1883" {
		t.Errorf("broker: got %q", s.Config.Broker)
	}
	if !s.MQTT.Connected {
		t.Error("mqtt.connected should be true")
	}
	if s.Network == nil || s.Network.SSID != "AgileGateway" || !s.Network.Known {
		t.Errorf("network: got %+v", s.Network)
	}
	if s.Reading != nil {
		t.Errorf("no reading expected yet, got %+v", s.Reading)
	}
}

// TestIntegrationStartupThenShutdown verifies the full lifecycle.
func TestIntegrationStartupThenShutdown(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())

	r.poll(0, 4*time.Second)
	if err := r.node.Shutdown(startTime.Add(4100*time.Millisecond), "SIGTERM"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	events := r.client.SystemEvents
	if len(events) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(events))
	}
	if events[0].Event != mqtt.EventStartup || events[1].Event != mqtt.EventShutdown {
		t.Errorf("order: got %s, %s", events[0].Event, events[1].Event)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(r.client.SystemPayloads[1], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Reason != "SIGTERM" {
		t.Errorf("reason: got %q", s.Reason)
	}
	if s.Counts.Published != 2 {
		t.Errorf("counts.published: got %d", s.Counts.Published)
	}
	if s.Reading == nil || s.Reading.Temperature == nil || *s.Reading.Temperature != 24 {
		t.Errorf("reading: got %+v", s.Reading)
	}
}

// TestIntegrationHeartbeatPayload verifies heartbeats carry counts.
func TestIntegrationHeartbeatPayload(t *testing.T) {
	cfg := config.Default()
	cfg.Heartbeat = 10 * time.Second
	r := newRig(t, cfg, sensor.NewFixtureReader())

	r.poll(0, 10*time.Second)

	var hb []int
	for i, ev := range r.client.SystemEvents {
		if ev.Event == mqtt.EventHeartbeat {
			hb = append(hb, i)
		}
	}
	if len(hb) != 1 {
		t.Fatalf("expected 1 heartbeat, got %d", len(hb))
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(r.client.SystemPayloads[hb[0]], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("event: got %q", parsed.Status.Event)
	}
	if parsed.Status.Counts.Published != 5 {
		t.Errorf("counts.published: got %d, want 5", parsed.Status.Counts.Published)
	}
}

// TestIntegrationStatusLED verifies the LED blinks on its own period.
func TestIntegrationStatusLED(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())
	led := gpio.NewFakeOutput()
	r.node.SetLED(led)

	r.poll(0, 4*time.Second)

	// Toggles at 800, 1600, 2400, 3200, 4000.
	if len(led.Levels) != 5 {
		t.Fatalf("expected 5 toggles, got %d", len(led.Levels))
	}
	if !led.On() {
		t.Error("LED should be on after an odd number of toggles")
	}
	if len(r.client.Published) != 2 {
		t.Errorf("LED must not disturb telemetry, got %d publishes", len(r.client.Published))
	}
}

// TestIntegrationPayloadMatchesEncoder verifies the published bytes are the
// encoder's output.
func TestIntegrationPayloadMatchesEncoder(t *testing.T) {
	r := newRig(t, config.Default(), sensor.NewFixtureReader())
	r.poll(0, 2*time.Second)

	want, err := logic.FormatTelemetry(logic.Reading{
		Temperature: logic.Valid(23),
		Humidity:    logic.Valid(45),
	})
	if err != nil {
		t.Fatalf("FormatTelemetry: %v", err)
	}
	if len(r.client.Published) != 1 || !bytes.Equal(r.client.Published[0].Payload, want) {
		t.Errorf("got %v, want %s", r.client.Published, want)
	}
}
