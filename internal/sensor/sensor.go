// Package sensor provides temperature/humidity readings with hardware abstraction.
// The live reader queries a driver; the fixture reader replays a fixed sequence
// so the rest of the node can run without hardware.
package sensor

import (
	"fmt"

	"github.com/sweeney/sensor-node/internal/config"
	"github.com/sweeney/sensor-node/internal/logic"
)

// Reader produces one Reading per call.
type Reader interface {
	// Read acquires both fields. A field that cannot be acquired is
	// reported as unavailable; Read never fails as a whole.
	Read() logic.Reading

	// Close releases sensor resources.
	Close() error
}

// Driver queries the two measurement events of a physical sensor.
// Each query may fail independently; NaN is treated as a failure.
type Driver interface {
	Temperature() (float64, error) // °C
	Humidity() (float64, error)    // %RH
	Close() error
}

// New builds the reader selected by the configuration.
func New(cfg config.Sensor) (Reader, error) {
	switch cfg.Mode {
	case config.ModeFixture:
		return NewFixtureReader(), nil
	case config.ModeLive:
		var (
			drv Driver
			err error
		)
		switch cfg.Driver {
		case config.DriverIIO:
			drv, err = NewIIODriver(cfg.IIODevice)
		case config.DriverBME280:
			drv, err = NewBME280Driver(cfg.I2CBus, cfg.I2CAddress)
		default:
			return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
		}
		if err != nil {
			return nil, err
		}
		return NewLiveReader(drv), nil
	default:
		return nil, fmt.Errorf("unknown sensor mode %q", cfg.Mode)
	}
}
