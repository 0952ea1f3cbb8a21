package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/repairdesk/internal/clock"
	"golang.org/x/time/rate"
)

const memorySweepEvery = 1024

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// MemoryBucket keeps one rate.Limiter per key in process. Limits are per
// instance; idle keys are swept every memorySweepEvery calls.
type MemoryBucket struct {
	clock clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

func NewMemoryBucket(clk clock.Clock) *MemoryBucket {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemoryBucket{
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

func (m *MemoryBucket) Allow(_ context.Context, key string, perSecond float64, burst int) (Result, error) {
	if err := checkArgs(key, perSecond, burst); err != nil {
		return Result{}, err
	}

	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls%memorySweepEvery == 0 {
		m.sweep(now, bucketTTL(perSecond, burst))
	}

	b, ok := m.buckets[key]
	if !ok || b.limiter.Limit() != rate.Limit(perSecond) || b.limiter.Burst() != burst {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		m.buckets[key] = b
	}
	b.seen = now

	allowed := b.limiter.AllowN(now, 1)
	return newResult(allowed, b.limiter.TokensAt(now), perSecond, burst), nil
}

func (m *MemoryBucket) sweep(now time.Time, ttl time.Duration) {
	for key, b := range m.buckets {
		if now.Sub(b.seen) > ttl {
			delete(m.buckets, key)
		}
	}
}

func (m *MemoryBucket) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
