package scheduler

import "time"

// RetryStrategy decides how long a failing task waits before its next attempt
type RetryStrategy interface {
	// NextRetry calculates the delay before retry number attempt (0-based)
	NextRetry(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff retry strategy
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NextRetry calculates the next retry time using exponential backoff
func (s *ExponentialBackoff) NextRetry(attempt int) time.Duration {
	delay := float64(s.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= s.Multiplier
		if delay > float64(s.MaxDelay) {
			break
		}
	}

	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// retryDelay is the wait imposed after failures consecutive failures.
// The first failure retries on the next tick.
func retryDelay(spec Spec, failures int) time.Duration {
	if spec.Advisory || failures < 2 {
		return 0
	}
	limit := spec.Interval
	if spec.Cron != nil {
		limit = backoffCronCap
	}
	b := &ExponentialBackoff{InitialDelay: backoffInitial, MaxDelay: limit, Multiplier: backoffMultiple}
	return b.NextRetry(failures - 2)
}
