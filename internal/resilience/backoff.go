package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff doubles base per attempt and spreads the result by +/- jitterPct.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << max(attempt-1, 0)
	if jitterPct <= 0 {
		return d
	}
	spread := (2*rand.Float64() - 1) * jitterPct
	return d + time.Duration(float64(d)*spread)
}
