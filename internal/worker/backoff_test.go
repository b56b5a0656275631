package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := backoff{base: 100 * time.Millisecond, max: time.Second}
	tests := []struct {
		attempt int
		ceiling time.Duration
	}{
		{attempt: 0, ceiling: 100 * time.Millisecond},
		{attempt: 1, ceiling: 200 * time.Millisecond},
		{attempt: 3, ceiling: 800 * time.Millisecond},
		{attempt: 10, ceiling: time.Second},
	}
	for _, tt := range tests {
		for range 20 {
			d := b.Delay(tt.attempt)
			assert.GreaterOrEqual(t, d, tt.ceiling/2, "attempt %d", tt.attempt)
			assert.Less(t, d, tt.ceiling, "attempt %d", tt.attempt)
		}
	}
}

func TestBackoffZeroBase(t *testing.T) {
	t.Parallel()

	assert.Zero(t, backoff{}.Delay(4))
}
