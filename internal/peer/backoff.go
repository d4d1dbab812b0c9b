package peer

import "time"

// Backoff produces an exponentially growing retry delay, doubling from
// Initial up to Max. The zero value is not usable; construct with
// NewBackoff.
//
// Backoff is not safe for concurrent use; each daemon owns its own.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

// NewBackoff builds a backoff ramping from initial to max. Non-positive
// arguments take the fleet defaults of 5s and 60s.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = 5 * time.Second
	}
	if max < initial {
		max = 60 * time.Second
	}
	return &Backoff{initial: initial, max: max, next: initial}
}

// Next returns the delay to wait before the next attempt and advances
// the ramp.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset returns the ramp to its initial delay. Called after a
// successful attempt.
func (b *Backoff) Reset() {
	b.next = b.initial
}
