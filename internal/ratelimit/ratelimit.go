// Package ratelimit provides the per-connection token bucket described in
// spec §4.6/§6: burst capacity 30, refill 10/sec. Generalised from the
// teacher's internal/net/ratelimit.Limiter, which keyed one bucket per
// remote host in a shared map; here each connection owns exactly one
// bucket and it is dropped with the connection (spec §9's "weak-map for
// token buckets keyed by socket identity" re-architecture note).
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Capacity and refill rate from spec §6.
const (
	Burst       = 30
	RefillPerSec = 10.0
)

// Bucket is one connection's token bucket.
type Bucket struct {
	limiter *rate.Limiter
}

// NewBucket creates a fresh bucket at full capacity.
func NewBucket() *Bucket {
	return &Bucket{limiter: rate.NewLimiter(rate.Limit(RefillPerSec), Burst)}
}

// Allow reports whether one more frame may be accepted right now. A false
// result means the frame must be answered with a rate-limited error and
// otherwise dropped (spec §4.6).
func (b *Bucket) Allow() bool {
	return b.limiter.Allow()
}

// Tokens reports the current token count, useful for diagnostics.
func (b *Bucket) Tokens() float64 {
	return b.limiter.Tokens()
}
