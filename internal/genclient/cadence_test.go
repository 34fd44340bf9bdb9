package genclient

import (
	"testing"
	"time"
)

func TestFixedIntervalIsConstant(t *testing.T) {
	cadence := FixedInterval(5 * time.Second)
	for attempt := 1; attempt <= 12; attempt++ {
		if d := cadence(attempt); d != 5*time.Second {
			t.Fatalf("attempt %d: delay = %s, want 5s", attempt, d)
		}
	}
}

func TestExponentialBackoffFormula(t *testing.T) {
	cadence := ExponentialBackoff(time.Second, 30*time.Second)
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
		{30, 30 * time.Second},
	}
	for _, tc := range cases {
		if d := cadence(tc.attempt); d != tc.want {
			t.Fatalf("attempt %d: delay = %s, want %s", tc.attempt, d, tc.want)
		}
	}
}

func TestExponentialBackoffClampsLowAttempts(t *testing.T) {
	cadence := ExponentialBackoff(time.Second, 30*time.Second)
	if d := cadence(0); d != time.Second {
		t.Fatalf("attempt 0: delay = %s, want base", d)
	}
}

func TestDomainPollPolicies(t *testing.T) {
	if VideoPollPolicy.MaxAttempts != 12 {
		t.Fatalf("video attempts = %d, want 12", VideoPollPolicy.MaxAttempts)
	}
	if ImagePollPolicy.MaxAttempts != 30 {
		t.Fatalf("image attempts = %d, want 30", ImagePollPolicy.MaxAttempts)
	}
	if d := VideoPollPolicy.Cadence(3); d != 5*time.Second {
		t.Fatalf("video cadence = %s", d)
	}
}
