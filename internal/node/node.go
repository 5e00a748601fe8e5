// Package node drives the sensor node: a polling step that publishes
// telemetry on a fixed interval while connected, and the inbound message
// callback.
package node

import (
	"log/slog"
	"time"

	"github.com/sweeney/sensor-node/internal/gpio"
	"github.com/sweeney/sensor-node/internal/logic"
	"github.com/sweeney/sensor-node/internal/mqtt"
	"github.com/sweeney/sensor-node/internal/sensor"
	"github.com/sweeney/sensor-node/internal/status"
)

// Client is the part of the MQTT transport the loop uses.
type Client interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

// Config holds the loop timings.
type Config struct {
	Interval  time.Duration // telemetry period
	Blink     time.Duration // status LED toggle period
	Heartbeat time.Duration // 0 disables
	DeviceID  string
}

// Node owns the loop state. Step must be called from a single goroutine;
// HandleMessage may be called concurrently with it.
type Node struct {
	reader  sensor.Reader
	client  Client
	tracker *status.Tracker
	logger  *slog.Logger

	deviceID  string
	telemetry *logic.Interval
	blink     *logic.Interval
	heartbeat *logic.Interval // nil when disabled

	led       gpio.Output // nil when no LED is fitted
	ledOn     bool
	announced bool
}

// New creates a Node. tracker may be nil.
func New(cfg Config, reader sensor.Reader, client Client, tracker *status.Tracker, logger *slog.Logger) *Node {
	n := &Node{
		reader:    reader,
		client:    client,
		tracker:   tracker,
		logger:    logger,
		deviceID:  cfg.DeviceID,
		telemetry: logic.NewInterval(cfg.Interval),
		blink:     logic.NewInterval(cfg.Blink),
	}
	if cfg.Heartbeat > 0 {
		n.heartbeat = logic.NewInterval(cfg.Heartbeat)
	}
	return n
}

// SetLED attaches a status LED that blinks while connected.
func (n *Node) SetLED(out gpio.Output) {
	n.led = out
}

// Step runs one loop iteration at now.
func (n *Node) Step(now time.Time) {
	connected := n.client.IsConnected()
	if n.tracker != nil {
		n.tracker.SetMQTTConnected(connected)
	}
	if !connected {
		// Reconnection belongs to the transport; nothing to do until it is back.
		if n.tracker != nil {
			n.tracker.RecordDisconnected()
		}
		return
	}

	if !n.announced {
		n.announced = true
		n.publishSystem(now, mqtt.EventStartup, "", true)
	}

	if n.telemetry.Due(now) {
		n.publishReading(now)
		// The baseline moves even when the read failed; the next attempt
		// waits a full interval.
		n.telemetry.Reset(now)
	}

	if n.led != nil && n.blink.Due(now) {
		n.toggleLED()
		n.blink.Reset(now)
	}

	if n.heartbeat != nil && n.heartbeat.Due(now) {
		n.publishSystem(now, mqtt.EventHeartbeat, "", false)
		n.heartbeat.Reset(now)
	}
}

func (n *Node) publishReading(now time.Time) {
	r := n.reader.Read()
	if n.tracker != nil {
		n.tracker.RecordReading(r, now)
	}

	if !r.Complete() {
		for _, field := range r.Missing() {
			n.logger.Warn("Error reading " + field + "!")
		}
		return
	}

	payload, err := logic.FormatTelemetry(r)
	if err != nil {
		n.logger.Error("format telemetry", "err", err)
		return
	}

	if err := n.client.Publish(logic.TelemetrySubtopic, payload); err != nil {
		n.logger.Warn("publish error", "err", err)
		if n.tracker != nil {
			n.tracker.RecordPublishError()
		}
		return
	}

	if n.tracker != nil {
		n.tracker.RecordPublish(now)
	}
	n.logger.Debug("published telemetry", "payload", string(payload))
}

func (n *Node) toggleLED() {
	n.ledOn = !n.ledOn
	if err := n.led.Set(n.ledOn); err != nil {
		n.logger.Warn("led error", "err", err)
	}
}

// HandleMessage is the inbound callback. It logs the message and nothing else.
func (n *Node) HandleMessage(topic, msg string) {
	n.logger.Info("Received MQTT on topic " + topic + ": " + msg)
	if n.tracker != nil {
		n.tracker.RecordReceived()
	}
}

// Shutdown publishes a retained SHUTDOWN event carrying the final status.
func (n *Node) Shutdown(now time.Time, reason string) error {
	if n.tracker != nil {
		n.tracker.SetMQTTConnected(n.client.IsConnected())
	}
	return n.publishSystem(now, mqtt.EventShutdown, reason, true)
}

func (n *Node) publishSystem(now time.Time, name, reason string, retained bool) error {
	event := mqtt.SystemEvent{
		Timestamp: now,
		Event:     name,
		Reason:    reason,
		Device:    n.deviceID,
		Retained:  retained,
	}
	if n.tracker != nil {
		event.RawPayload = status.FormatStatusEvent(n.tracker.Snapshot(), name, reason)
	}

	if err := n.client.PublishSystem(event); err != nil {
		n.logger.Warn("failed to publish system event", "event", name, "err", err)
		return err
	}
	n.logger.Info("published system event", "event", name)
	return nil
}
