package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Industrial I/O attribute names exposed by the Linux dht11 driver, which
// also serves DHT21/AM2301 and DHT22 sensors. Values are in milli-units.
const (
	iioTemperature = "in_temp_input"
	iioHumidity    = "in_humidityrelative_input"
)

// IIODriver reads a DHT-family sensor through the kernel IIO sysfs interface.
type IIODriver struct {
	dir string
}

// NewIIODriver checks that dir looks like an IIO humidity/temperature device.
func NewIIODriver(dir string) (*IIODriver, error) {
	for _, attr := range []string{iioTemperature, iioHumidity} {
		if _, err := os.Stat(filepath.Join(dir, attr)); err != nil {
			return nil, fmt.Errorf("iio device %s: %w", dir, err)
		}
	}
	return &IIODriver{dir: dir}, nil
}

// Temperature returns degrees Celsius.
func (d *IIODriver) Temperature() (float64, error) {
	return d.readMilli(iioTemperature)
}

// Humidity returns percent relative humidity.
func (d *IIODriver) Humidity() (float64, error) {
	return d.readMilli(iioHumidity)
}

// Close is a no-op; each read opens and closes the attribute.
func (d *IIODriver) Close() error {
	return nil
}

// readMilli reads an integer milli-unit attribute. The dht11 driver returns
// EIO or ETIMEDOUT when the sensor does not answer; those surface as errors.
func (d *IIODriver) readMilli(attr string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, attr))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", attr, err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, errors.New("read " + attr + ": empty value")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", attr, err)
	}
	return float64(v) / 1000, nil
}
