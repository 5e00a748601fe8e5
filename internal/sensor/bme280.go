package sensor

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// envSensor is the part of *bmxx80.Dev the driver uses.
type envSensor interface {
	Sense(env *physic.Env) error
	Halt() error
}

// BME280Driver reads a Bosch BME280 over I2C. One forced measurement
// serves a temperature query and the humidity query that follows it.
type BME280Driver struct {
	bus i2c.BusCloser
	dev envSensor

	env    physic.Env
	cached bool
}

// NewBME280Driver opens the I2C bus (empty name = default bus) and the
// sensor at addr.
func NewBME280Driver(busName string, addr uint16) (*BME280Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open bme280 at %#x: %w", addr, err)
	}

	return &BME280Driver{bus: bus, dev: dev}, nil
}

// Temperature performs a measurement and returns degrees Celsius. The
// measurement is kept for the next Humidity call.
func (d *BME280Driver) Temperature() (float64, error) {
	d.cached = false
	env, err := d.sense()
	if err != nil {
		return 0, err
	}
	d.env, d.cached = env, true
	return env.Temperature.Celsius(), nil
}

// Humidity returns percent relative humidity from the measurement taken by
// the preceding Temperature call, or a fresh one if there is none.
func (d *BME280Driver) Humidity() (float64, error) {
	env := d.env
	if !d.cached {
		var err error
		if env, err = d.sense(); err != nil {
			return 0, err
		}
	}
	d.cached = false
	return float64(env.Humidity) / float64(physic.PercentRH), nil
}

func (d *BME280Driver) sense() (physic.Env, error) {
	var env physic.Env
	if err := d.dev.Sense(&env); err != nil {
		return env, fmt.Errorf("bme280 sense: %w", err)
	}
	return env, nil
}

// Close halts the sensor and releases the bus.
func (d *BME280Driver) Close() error {
	var errs []error
	if err := d.dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt bme280: %w", err))
	}
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
		}
	}
	return errors.Join(errs...)
}
