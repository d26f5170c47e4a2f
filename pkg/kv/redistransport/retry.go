package redistransport

import "time"

// RetryStrategy returns the delay before reconnect attempt n (starting at 1).
// A negative delay stops retrying.
type RetryStrategy func(attempt int) time.Duration

// LinearRetry grows the delay by step per attempt from base, capped at max
func LinearRetry(base, step, max time.Duration) RetryStrategy {
	return func(attempt int) time.Duration {
		delay := base + time.Duration(attempt)*step
		if delay > max {
			return max
		}
		return delay
	}
}

// NoRetry never schedules a background reconnect
func NoRetry(int) time.Duration {
	return -1
}

// DefaultStandaloneRetry waits attempt*50ms, up to 2s
func DefaultStandaloneRetry() RetryStrategy {
	return LinearRetry(0, 50*time.Millisecond, 2*time.Second)
}

// DefaultClusterRetry waits 100ms + attempt*2ms, up to 2s
func DefaultClusterRetry() RetryStrategy {
	return LinearRetry(100*time.Millisecond, 2*time.Millisecond, 2*time.Second)
}
