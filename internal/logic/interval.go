package logic

import "time"

// Interval gates a periodic action on elapsed time.
// The baseline is taken the first time the gate is observed, so the action
// first fires one full period after that.
// Not safe for concurrent use.
type Interval struct {
	period  time.Duration
	last    time.Time
	started bool
}

// NewInterval creates a gate that fires every period.
func NewInterval(period time.Duration) *Interval {
	return &Interval{period: period}
}

// Period returns the configured period.
func (i *Interval) Period() time.Duration {
	return i.period
}

// Due reports whether at least one period has elapsed since the baseline.
// The first call only records the baseline and returns false.
func (i *Interval) Due(now time.Time) bool {
	if !i.started {
		i.last = now
		i.started = true
		return false
	}
	return now.Sub(i.last) >= i.period
}

// Reset moves the baseline to now.
func (i *Interval) Reset(now time.Time) {
	i.last = now
	i.started = true
}

// Last returns the current baseline and whether one has been taken.
func (i *Interval) Last() (time.Time, bool) {
	return i.last, i.started
}
