package carving

import "time"

// Timer gates a carving routine to run at most once per configured
// interval, per-target (spec §3 I4). Nanoseconds are used throughout to
// match the core's monotonic-scalar Time convention.
type Timer struct {
	intervalNsec int64
	last         int64
	everRun      bool
}

// NewTimer returns a Timer that is immediately due, gated thereafter to
// fire at most once every intervalNsec.
func NewTimer(intervalNsec int64) *Timer {
	return &Timer{intervalNsec: intervalNsec}
}

// Due reports whether enough time has elapsed since the last Reset for the
// timer to fire again at nowNsec. A Timer that has never run is always due.
func (t *Timer) Due(nowNsec int64) bool {
	if !t.everRun {
		return true
	}
	return nowNsec-t.last >= t.intervalNsec
}

// Reset marks the timer as having just fired at nowNsec.
func (t *Timer) Reset(nowNsec int64) {
	t.last = nowNsec
	t.everRun = true
}

// NowNsec is a convenience for converting a time.Time to the core's
// nanoseconds-since-epoch Time representation.
func NowNsec(t time.Time) int64 {
	return t.UnixNano()
}
