package worker

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// backoff spaces out retries of a failing receive with jittered exponential
// delays.
type backoff struct {
	base time.Duration
	max  time.Duration
}

// Delay returns the wait before retry number attempt, counting from zero.
// The result lies in [d/2, d) where d = min(base*2^attempt, max).
func (b backoff) Delay(attempt int) time.Duration {
	delay := float64(b.base) * math.Pow(2, float64(attempt))
	if delay > float64(b.max) {
		delay = float64(b.max)
	}
	half := time.Duration(delay / 2)
	return half + jitter(half)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
