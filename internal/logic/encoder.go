package logic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// TelemetrySubtopic is the subtopic under the outbound root that carries readings.
const TelemetrySubtopic = "telemetry/"

// ErrIncompleteReading is returned when a reading lacks a field.
var ErrIncompleteReading = errors.New("incomplete reading")

// FormatTelemetry encodes a complete reading as the flat telemetry record:
//
//	{ humidity: "45", temperature: "23" }
//
// Humidity comes first and both values are quoted. This is not JSON; the
// record format is fixed by the consumers on the broker side. Measured
// values carry two decimals ("23.40"), fixture values none ("23").
func FormatTelemetry(r Reading) ([]byte, error) {
	if !r.Complete() {
		return nil, fmt.Errorf("format telemetry: %w (missing %v)", ErrIncompleteReading, r.Missing())
	}
	return fmt.Appendf(nil, "{ %s: %q, %s: %q }",
		FieldHumidity, formatValue(r.Humidity),
		FieldTemperature, formatValue(r.Temperature),
	), nil
}

// formatValue rounds to two decimals. Measured values always print both
// decimals; others print the shortest form.
func formatValue(v Value) string {
	f := math.Round(v.V*100) / 100
	if f == 0 {
		f = 0 // drop negative zero
	}
	if v.Measured {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
