// Command sensor-node reads temperature and humidity and publishes them to MQTT
// on a fixed interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/sensor-node/internal/config"
	"github.com/sweeney/sensor-node/internal/device"
	"github.com/sweeney/sensor-node/internal/gpio"
	"github.com/sweeney/sensor-node/internal/logging"
	"github.com/sweeney/sensor-node/internal/logic"
	"github.com/sweeney/sensor-node/internal/mqtt"
	"github.com/sweeney/sensor-node/internal/node"
	"github.com/sweeney/sensor-node/internal/sensor"
	"github.com/sweeney/sensor-node/internal/status"
	"github.com/sweeney/sensor-node/internal/web"
)

// sensorSettle is how long a live sensor is given after power-up before the
// first read.
const sensorSettle = time.Second

func main() {
	cfg, printReading, err := buildConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, printReading); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// buildConfig layers the YAML file named by -config over the defaults, then
// applies any flags that were set explicitly on the command line.
func buildConfig(args []string, usage io.Writer) (config.Config, bool, error) {
	def := config.Default()

	fs := flag.NewFlagSet("sensor-node", flag.ContinueOnError)
	fs.SetOutput(usage)
	path := fs.String("config", "", "YAML config file (flags override it)")
	broker := fs.String("broker", def.Broker, "MQTT broker host")
	port := fs.Int("port", def.Port, "MQTT broker port")
	interval := fs.Duration("interval", def.Interval, "Telemetry publish interval")
	poll := fs.Duration("poll", def.Poll, "Loop polling interval")
	heartbeat := fs.Duration("heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	mode := fs.String("sensor", def.Sensor.Mode, `Sensor mode ("fixture" or "live")`)
	driver := fs.String("driver", def.Sensor.Driver, `Live sensor driver ("iio" or "bme280")`)
	ledPin := fs.Int("led-pin", def.LED.Pin, "BCM pin for the status LED (-1 to disable)")
	httpAddr := fs.String("http", def.HTTPAddr, "HTTP status address (empty to disable)")
	level := fs.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	format := fs.String("log-format", def.LogFormat, `Log format ("text" or "json")`)
	printReading := fs.Bool("print-reading", false, "Print one reading and exit")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, false, err
	}

	cfg := def
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return config.Config{}, false, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.Broker = *broker
		case "port":
			cfg.Port = *port
		case "interval":
			cfg.Interval = *interval
		case "poll":
			cfg.Poll = *poll
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "sensor":
			cfg.Sensor.Mode = *mode
		case "driver":
			cfg.Sensor.Driver = *driver
		case "led-pin":
			cfg.LED.Pin = *ledPin
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "log-level":
			cfg.LogLevel = *level
		case "log-format":
			cfg.LogFormat = *format
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, false, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, *printReading, nil
}

func run(cfg config.Config, printReading bool) error {
	logger, err := logging.New(os.Stdout, cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	logger.Info("----- NEW FW ------")

	reader, err := sensor.New(cfg.Sensor)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer reader.Close()

	if cfg.Sensor.Mode == config.ModeLive {
		time.Sleep(sensorSettle)
	}

	if printReading {
		return printOnce(os.Stdout, reader)
	}

	deviceID := device.ID()
	logger.Info("node identity", "device", deviceID, "fw_id", cfg.Firmware.ID)

	tracker := status.NewTracker(time.Now(), status.Identity{
		DeviceID:        deviceID,
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
		HTTPAddr:    cfg.HTTPAddr,
	})
	if net := readNetworkInfo(cfg); net != nil {
		tracker.SetNetwork(net)
		if !net.Known {
			logger.Warn("joined network is not configured", "ssid", net.SSID)
		}
	}

	client, err := mqtt.NewRealClient(cfg, deviceID, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	n := node.New(node.Config{
		Interval:  cfg.Interval,
		Blink:     cfg.LED.Period,
		Heartbeat: cfg.Heartbeat,
		DeviceID:  deviceID,
	}, reader, client, tracker, logger)

	if cfg.LED.Pin >= 0 {
		led, err := gpio.NewRealOutput(cfg.LED.Pin)
		if err != nil {
			logger.Warn("status led unavailable", "pin", cfg.LED.Pin, "err", err)
		} else {
			defer led.Close()
			n.SetLED(led)
		}
	}

	logger.Info("Starting mesh", "broker", cfg.BrokerURL())
	client.SetCallback(n.HandleMessage)
	client.Begin()

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	logger.Info("started",
		"interval", cfg.Interval,
		"poll", cfg.Poll,
		"heartbeat", cfg.Heartbeat,
		"sensor", cfg.Sensor.Mode,
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(n, time.Now, ticker.C, sigCh, logger)
}

func runLoop(n *node.Node, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, logger *slog.Logger) error {
	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", "signal", s.String())
			// Failure is already logged by the node; exit cleanly regardless.
			_ = n.Shutdown(now(), signalName(s))
			return nil

		case <-tick:
			n.Step(now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// printOnce takes a single reading and writes the telemetry payload, or the
// missing fields, to w.
func printOnce(w io.Writer, reader sensor.Reader) error {
	r := reader.Read()
	if !r.Complete() {
		for _, field := range r.Missing() {
			fmt.Fprintf(w, "Error reading %s!\n", field)
		}
		return logic.ErrIncompleteReading
	}

	payload, err := logic.FormatTelemetry(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", payload)
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo(cfg config.Config) *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	ssid := os.Getenv(envNetworkWifiSSID)
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       ssid,
		Known:      ssid != "" && cfg.KnownNetwork(ssid),
	}
}
