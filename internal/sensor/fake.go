package sensor

import "errors"

// FakeDriver is a test double that returns scripted driver values.
type FakeDriver struct {
	// Samples contains scripted values. Each pair of Temperature/Humidity
	// calls consumes one sample; the last sample repeats once exhausted.
	Samples []Sample

	// TemperatureError and HumidityError, if set, are returned by the
	// respective query.
	TemperatureError error
	HumidityError    error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// Sample is one scripted driver response. NaN simulates a sensor fault.
type Sample struct {
	Temperature float64
	Humidity    float64
}

// NewFakeDriver creates a FakeDriver with the given samples.
func NewFakeDriver(samples ...Sample) *FakeDriver {
	return &FakeDriver{Samples: samples}
}

// Temperature returns the current sample's temperature.
func (f *FakeDriver) Temperature() (float64, error) {
	if f.TemperatureError != nil {
		return 0, f.TemperatureError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	return f.Samples[f.index].Temperature, nil
}

// Humidity returns the current sample's humidity and advances.
func (f *FakeDriver) Humidity() (float64, error) {
	defer f.advance()
	if f.HumidityError != nil {
		return 0, f.HumidityError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	return f.Samples[f.index].Humidity, nil
}

func (f *FakeDriver) advance() {
	if f.index < len(f.Samples)-1 {
		f.index++
	}
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}
