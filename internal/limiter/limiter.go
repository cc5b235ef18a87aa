package limiter

import (
	"runtime"
	"time"
)

// workSlice is how long a sweep may run between throttle pauses
const workSlice = 10 * time.Millisecond

// CPULimiter keeps a long sweep (a multi-gigabyte ~/.m2) from monopolizing a
// core by pausing between directories.
type CPULimiter struct {
	maxPercent float64
	lastSleep  time.Time
	sleep      func(time.Duration)
}

// NewCPULimiter creates a limiter; maxPercent outside (0,100) disables it
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastSleep:  time.Now(),
		sleep:      time.Sleep,
	}
}

// Enabled reports whether Throttle will ever pause
func (l *CPULimiter) Enabled() bool {
	return l != nil && l.maxPercent > 0 && l.maxPercent < 100
}

// Pause returns the sleep that follows one work slice at maxPercent CPU
func (l *CPULimiter) Pause() time.Duration {
	if !l.Enabled() {
		return 0
	}
	return time.Duration(float64(workSlice) * ((100.0 - l.maxPercent) / l.maxPercent))
}

// Throttle sleeps once a work slice has elapsed since the last pause
func (l *CPULimiter) Throttle() {
	if !l.Enabled() {
		return
	}

	if time.Since(l.lastSleep) > workSlice {
		l.sleep(l.Pause())
		l.lastSleep = time.Now()
	}

	runtime.Gosched()
}
