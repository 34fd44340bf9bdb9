package genclient

import "time"

// Cadence maps a 1-based poll attempt index to the delay that precedes it.
// Modelling both providers' schedules as one function keeps a single generic
// polling driver instead of two duplicated loops.
type Cadence func(attempt int) time.Duration

// FixedInterval returns the same delay before every attempt. Used by the
// video provider.
func FixedInterval(interval time.Duration) Cadence {
	return func(int) time.Duration {
		return interval
	}
}

// ExponentialBackoff doubles the delay on every attempt starting from base,
// capped at ceiling. Used by the image provider.
func ExponentialBackoff(base, ceiling time.Duration) Cadence {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay >= ceiling {
				return ceiling
			}
		}
		if delay > ceiling {
			return ceiling
		}
		return delay
	}
}

// PollPolicy bounds the polling loop for one provider: the cadence between
// attempts and the hard attempt cap. Exhausting the cap while the job is
// still in progress yields timed_out, never failed.
type PollPolicy struct {
	Cadence     Cadence
	MaxAttempts int
}

// The two cadences observed in this domain. The attempt caps differ per
// provider and are kept as provider-specific configuration rather than
// unified, since the upstream behavior difference is load-bearing for
// billing-sensitive video jobs.
var (
	// VideoPollPolicy polls video task status every 5s, up to 12 attempts.
	VideoPollPolicy = PollPolicy{Cadence: FixedInterval(5 * time.Second), MaxAttempts: 12}
	// ImagePollPolicy backs off from 1s doubling to a 30s ceiling, up to 30
	// attempts.
	ImagePollPolicy = PollPolicy{Cadence: ExponentialBackoff(time.Second, 30*time.Second), MaxAttempts: 30}
)
