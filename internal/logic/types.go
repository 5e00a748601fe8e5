// Package logic contains the pure telemetry logic of the sensor node.
// This package has NO external dependencies (no sensor, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "math"

// Value is a single scalar measurement that may be unavailable.
type Value struct {
	V     float64
	Valid bool
	// Measured marks a driver reading. Measured values print with two fixed
	// decimals; fixture values are whole numbers and print without any.
	Measured bool
}

// Unavailable is the marker for a measurement that could not be acquired.
var Unavailable = Value{}

// Valid wraps a known-good measurement.
func Valid(v float64) Value {
	return Value{V: v, Valid: true}
}

// FromFloat maps a raw driver value to a measured Value.
// NaN and ±Inf (sensor fault or disconnection) become Unavailable.
func FromFloat(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	return Value{V: v, Valid: true, Measured: true}
}

// Field names used in payloads and failure logs.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

// Reading is one temperature+humidity sample.
type Reading struct {
	Temperature Value // °C
	Humidity    Value // %RH
}

// Complete reports whether both fields were acquired.
func (r Reading) Complete() bool {
	return r.Temperature.Valid && r.Humidity.Valid
}

// Missing returns the names of the unavailable fields, temperature first.
func (r Reading) Missing() []string {
	var out []string
	if !r.Temperature.Valid {
		out = append(out, FieldTemperature)
	}
	if !r.Humidity.Valid {
		out = append(out, FieldHumidity)
	}
	return out
}
