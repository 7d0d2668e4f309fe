package retry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	policy := Policy{Base: 30 * time.Second, Max: 5 * time.Minute}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "zero attempt uses base", attempt: 0, expected: 30 * time.Second},
		{name: "first retry", attempt: 1, expected: 30 * time.Second},
		{name: "second retry", attempt: 2, expected: time.Minute},
		{name: "third retry", attempt: 3, expected: 2 * time.Minute},
		{name: "fourth retry", attempt: 4, expected: 4 * time.Minute},
		{name: "capped", attempt: 5, expected: 5 * time.Minute},
		{name: "large attempt capped", attempt: 1000, expected: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Delay(tt.attempt))
		})
	}
}

func TestPolicy_Delay_NonDecreasing(t *testing.T) {
	policy := Policy{Base: 7 * time.Second, Max: 17 * time.Minute}

	previous := time.Duration(0)
	for n := 1; n <= 64; n++ {
		delay := policy.Delay(n)
		assert.GreaterOrEqual(t, delay, previous, "attempt %d", n)
		assert.LessOrEqual(t, delay, policy.Max, "attempt %d", n)
		previous = delay
	}
}

func TestPolicy_Delay_OutboundSchedule(t *testing.T) {
	// Base 2s yields 2^attempts seconds.
	policy := Policy{Base: 2 * time.Second, Max: 300 * time.Second}

	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 4*time.Second, policy.Delay(2))
	assert.Equal(t, 8*time.Second, policy.Delay(3))
	assert.Equal(t, 256*time.Second, policy.Delay(8))
	assert.Equal(t, 300*time.Second, policy.Delay(9))
}

func TestPolicy_Delay_Uncapped(t *testing.T) {
	policy := Policy{Base: time.Second}

	assert.Equal(t, 8*time.Second, policy.Delay(4))
	assert.Equal(t, time.Duration(math.MaxInt64), policy.Delay(200))
}

func TestPolicy_Delay_ZeroBase(t *testing.T) {
	assert.Equal(t, time.Duration(0), Policy{Max: time.Minute}.Delay(3))
}
