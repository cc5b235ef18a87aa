package limiter

import (
	"testing"
	"time"
)

func TestPause(t *testing.T) {
	tests := []struct {
		percent float64
		want    time.Duration
	}{
		{0, 0},
		{100, 0},
		{-5, 0},
		{50, 10 * time.Millisecond},
		{20, 40 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := NewCPULimiter(tt.percent).Pause(); got != tt.want {
			t.Errorf("Pause() at %v%% = %v, want %v", tt.percent, got, tt.want)
		}
	}
}

func TestThrottleSleepsAfterWorkSlice(t *testing.T) {
	var slept []time.Duration
	l := NewCPULimiter(50)
	l.sleep = func(d time.Duration) { slept = append(slept, d) }

	// Within the first slice: no pause
	l.lastSleep = time.Now()
	l.Throttle()
	if len(slept) != 0 {
		t.Fatalf("Throttle() slept %v inside work slice", slept)
	}

	l.lastSleep = time.Now().Add(-time.Second)
	l.Throttle()
	if len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Errorf("Throttle() slept %v, want [10ms]", slept)
	}
}

func TestNilLimiterIsDisabled(t *testing.T) {
	var l *CPULimiter
	if l.Enabled() {
		t.Error("nil limiter reports enabled")
	}
	l.Throttle()
}
