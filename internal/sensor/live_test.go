package sensor

import (
	"errors"
	"math"
	"testing"
)

func TestLiveReaderValid(t *testing.T) {
	r := NewLiveReader(NewFakeDriver(Sample{Temperature: 21.5, Humidity: 55.25}))

	got := r.Read()
	if !got.Complete() {
		t.Fatalf("expected complete reading, got %+v", got)
	}
	if got.Temperature.V != 21.5 || got.Humidity.V != 55.25 {
		t.Errorf("got %v/%v", got.Temperature.V, got.Humidity.V)
	}
}

func TestLiveReaderNaN(t *testing.T) {
	tests := []struct {
		name     string
		sample   Sample
		wantTemp bool
		wantHum  bool
	}{
		{"temperature nan", Sample{Temperature: math.NaN(), Humidity: 50}, false, true},
		{"humidity nan", Sample{Temperature: 20, Humidity: math.NaN()}, true, false},
		{"both nan", Sample{Temperature: math.NaN(), Humidity: math.NaN()}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLiveReader(NewFakeDriver(tt.sample)).Read()
			if got.Temperature.Valid != tt.wantTemp {
				t.Errorf("temperature valid: got %v, want %v", got.Temperature.Valid, tt.wantTemp)
			}
			if got.Humidity.Valid != tt.wantHum {
				t.Errorf("humidity valid: got %v, want %v", got.Humidity.Valid, tt.wantHum)
			}
		})
	}
}

func TestLiveReaderDriverErrorsAreIndependent(t *testing.T) {
	drv := NewFakeDriver(Sample{Temperature: 20, Humidity: 50})
	drv.TemperatureError = errors.New("timeout")

	got := NewLiveReader(drv).Read()
	if got.Temperature.Valid {
		t.Error("temperature should be unavailable on driver error")
	}
	if !got.Humidity.Valid || got.Humidity.V != 50 {
		t.Errorf("humidity should still be read, got %+v", got.Humidity)
	}
}

func TestLiveReaderAdvancesSamples(t *testing.T) {
	r := NewLiveReader(NewFakeDriver(
		Sample{Temperature: 20, Humidity: 40},
		Sample{Temperature: 21, Humidity: 41},
	))

	first := r.Read()
	second := r.Read()
	third := r.Read()

	if first.Temperature.V != 20 || second.Temperature.V != 21 || third.Temperature.V != 21 {
		t.Errorf("temperatures: %v, %v, %v", first.Temperature.V, second.Temperature.V, third.Temperature.V)
	}
}

func TestLiveReaderClose(t *testing.T) {
	drv := NewFakeDriver()
	if err := NewLiveReader(drv).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !drv.Closed {
		t.Error("driver not closed")
	}
}

func TestFakeDriverNoSamples(t *testing.T) {
	got := NewLiveReader(NewFakeDriver()).Read()
	if got.Temperature.Valid || got.Humidity.Valid {
		t.Errorf("expected unavailable fields without samples, got %+v", got)
	}
}
