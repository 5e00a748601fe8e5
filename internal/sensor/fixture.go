package sensor

import "github.com/sweeney/sensor-node/internal/logic"

// Fixture sequences. Both arrays have the same length.
var (
	FixtureTemperatures = [...]float64{23, 24, 26, 27, 26, 24, 25, 23, 22}
	FixtureHumidities   = [...]float64{45, 40, 37, 35, 38, 41, 44, 47, 46}
)

// FixtureReader replays the fixture sequences, one entry per Read,
// wrapping at the end. Every reading is complete.
type FixtureReader struct {
	index int
}

// NewFixtureReader starts at the first fixture entry.
func NewFixtureReader() *FixtureReader {
	return &FixtureReader{}
}

// Read returns the current entry and advances.
func (r *FixtureReader) Read() logic.Reading {
	if r.index == len(FixtureTemperatures) {
		r.index = 0
	}
	reading := logic.Reading{
		Temperature: logic.Valid(FixtureTemperatures[r.index]),
		Humidity:    logic.Valid(FixtureHumidities[r.index]),
	}
	r.index++
	return reading
}

// Close is a no-op.
func (r *FixtureReader) Close() error {
	return nil
}
