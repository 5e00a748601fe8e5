package sensor

import "github.com/sweeney/sensor-node/internal/logic"

// LiveReader reads from a physical sensor driver.
type LiveReader struct {
	drv Driver
}

// NewLiveReader wraps drv.
func NewLiveReader(drv Driver) *LiveReader {
	return &LiveReader{drv: drv}
}

// Read queries temperature then humidity. Driver errors and NaN map to
// unavailable for that field only.
func (r *LiveReader) Read() logic.Reading {
	return logic.Reading{
		Temperature: query(r.drv.Temperature),
		Humidity:    query(r.drv.Humidity),
	}
}

// Close closes the driver.
func (r *LiveReader) Close() error {
	return r.drv.Close()
}

func query(f func() (float64, error)) logic.Value {
	v, err := f()
	if err != nil {
		return logic.Unavailable
	}
	return logic.FromFloat(v)
}
