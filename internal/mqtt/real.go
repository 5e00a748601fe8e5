package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/sensor-node/internal/config"
)

// RealClient talks to an actual MQTT broker. Connection lifecycle and
// reconnection are owned by paho; the node only observes IsConnected.
type RealClient struct {
	client paho.Client
	topics Topics
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	handler   MessageHandler
}

// ClientID returns the MQTT client id for a device.
func ClientID(deviceID string) string {
	return "sensor-node-" + deviceID
}

// NewRealClient configures a client for the broker in cfg. Nothing is
// sent until Begin.
func NewRealClient(cfg config.Config, deviceID string, logger *slog.Logger) (*RealClient, error) {
	c := &RealClient{
		topics: NewTopics(cfg.TopicOut, cfg.TopicIn),
		logger: logger,
	}

	will, err := FormatSystemPayload(SystemEvent{Event: EventOffline, Device: deviceID})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	clientID := ClientID(deviceID)
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(60*time.Second).
		SetKeepAlive(30*time.Second).
		SetWill(c.topics.System(), string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if cfg.MeshPassword != "" {
		opts.SetUsername(clientID).SetPassword(cfg.MeshPassword)
	}

	c.client = paho.NewClient(opts)
	return c, nil
}

// SetCallback registers the inbound message handler.
func (c *RealClient) SetCallback(h MessageHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Begin starts connecting in the background. With connect retry enabled
// paho keeps trying until Close.
func (c *RealClient) Begin() {
	c.client.Connect()
}

// IsConnected reports whether the broker session is up.
func (c *RealClient) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnectionOpen()
}

// Publish sends a payload under the outbound root.
func (c *RealClient) Publish(subtopic string, payload []byte) error {
	topic := c.topics.Publish(subtopic)

	// QoS 0 (at-most-once), not retained
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := c.client.Publish(c.topics.System(), 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}

	return nil
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	c.setConnected(false)
	return nil
}

func (c *RealClient) onConnect(client paho.Client) {
	c.setConnected(true)
	c.logger.Info("mqtt connected")

	// Subscribing here re-establishes the subscription after every reconnect.
	filter := c.topics.Subscribe()
	token := client.Subscribe(filter, 0, dispatch(c.currentHandler))
	if !token.WaitTimeout(5 * time.Second) {
		c.logger.Warn("mqtt subscribe timeout", "topic", filter)
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Warn("mqtt subscribe failed", "topic", filter, "err", err)
		return
	}
	c.logger.Debug("mqtt subscribed", "topic", filter)
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.setConnected(false)
	c.logger.Warn("mqtt connection lost", "err", err)
}

func (c *RealClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *RealClient) currentHandler() MessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// dispatch adapts a paho message callback to a MessageHandler looked up
// at delivery time. Messages arriving with no handler registered are dropped.
func dispatch(handler func() MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		if h := handler(); h != nil {
			h(msg.Topic(), string(msg.Payload()))
		}
	}
}
