// Package config holds the immutable node configuration.
// Defaults are the values compiled into the original firmware; a YAML file
// and command-line flags may override them once at startup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor modes.
const (
	ModeFixture = "fixture"
	ModeLive    = "live"
)

// Sensor drivers (live mode only).
const (
	DriverIIO    = "iio"
	DriverBME280 = "bme280"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Network is one WiFi network the node may join.
type Network struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// Firmware identifies the running build.
type Firmware struct {
	ID      int    `yaml:"id"`
	Version string `yaml:"version"`
}

// Sensor selects the reading strategy.
type Sensor struct {
	Mode       string `yaml:"mode"`
	Driver     string `yaml:"driver"`
	IIODevice  string `yaml:"iio_device"`
	I2CBus     string `yaml:"i2c_bus"`
	I2CAddress uint16 `yaml:"i2c_address"`
}

// LED configures the status LED.
type LED struct {
	Pin    int           `yaml:"pin"` // BCM numbering, -1 disables
	Period time.Duration `yaml:"period"`
}

// Config is the full node configuration. It is built once in main and
// passed by value to every component; nothing mutates it afterwards.
type Config struct {
	Networks     []Network `yaml:"networks"`
	MeshPassword string    `yaml:"mesh_password"`

	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	TopicOut string `yaml:"topic_out"`
	TopicIn  string `yaml:"topic_in"`

	Firmware Firmware `yaml:"firmware"`

	Interval  time.Duration `yaml:"interval"`
	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"`

	Sensor Sensor `yaml:"sensor"`
	LED    LED    `yaml:"led"`

	HTTPAddr  string `yaml:"http"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Networks:     []Network{{SSID: "AgileGateway", Password: "agilegateway"}},
		MeshPassword: "agileiot_sensor_mesh",
		Broker:       "10.42.0.1",
		Port:         1883,
		TopicOut:     "sensor_node_out/",
		TopicIn:      "sensor_node_in/",
		Firmware:     Firmware{ID: 0x01, Version: "0.1"},
		Interval:     2000 * time.Millisecond,
		Poll:         50 * time.Millisecond,
		Heartbeat:    15 * time.Minute,
		Sensor: Sensor{
			Mode:       ModeFixture,
			Driver:     DriverIIO,
			IIODevice:  "/sys/bus/iio/devices/iio:device0",
			I2CAddress: 0x76,
		},
		LED:       LED{Pin: -1, Period: 800 * time.Millisecond},
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogFormat: FormatText,
	}
}

// Load reads a YAML file on top of Default. ${VAR} references in the file
// are replaced from the environment, so secrets can stay out of it. A bare
// $ is left alone. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with its value; unset variables expand to "".
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Broker) == "" {
		return errors.New("broker must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TopicOut == "" || c.TopicIn == "" {
		return errors.New("topic roots must not be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("poll must be positive, got %v", c.Poll)
	}
	if c.Poll > c.Interval {
		return fmt.Errorf("poll %v must not exceed interval %v", c.Poll, c.Interval)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	switch c.Sensor.Mode {
	case ModeFixture:
	case ModeLive:
		switch c.Sensor.Driver {
		case DriverIIO, DriverBME280:
		default:
			return fmt.Errorf("unknown sensor driver %q (allowed: iio, bme280)", c.Sensor.Driver)
		}
	default:
		return fmt.Errorf("unknown sensor mode %q (allowed: fixture, live)", c.Sensor.Mode)
	}
	if c.LED.Pin >= 0 && c.LED.Period <= 0 {
		return fmt.Errorf("led period must be positive, got %v", c.LED.Period)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q (allowed: text, json)", c.LogFormat)
	}
	return nil
}

// BrokerURL returns the paho broker address.
func (c Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

// KnownNetwork reports whether ssid is one of the configured networks.
func (c Config) KnownNetwork(ssid string) bool {
	for _, n := range c.Networks {
		if n.SSID == ssid {
			return true
		}
	}
	return false
}
