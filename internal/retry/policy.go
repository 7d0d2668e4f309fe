// Package retry provides the idempotent "schedule at most once" primitive shared by
// calendar sync and outbound messaging: an exponential backoff policy, a TTL-bound
// token store and a delayed task queue.
package retry

import (
	"math"
	"time"
)

// Policy is a capped exponential backoff: Delay(n) = min(Max, Base * 2^(n-1)).
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number n. Values of n below 1 are treated as 1.
// The sequence is non-decreasing and never exceeds Max when Max is positive.
func (p Policy) Delay(n int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}

	delay := p.Base
	for i := 1; i < n; i++ {
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
	}

	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}
