package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyIntakeIP = "repairdesk:intake:ip:%s"

type BucketStore interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

// IntakeLimiter limits form submissions per client address.
type IntakeLimiter struct {
	store   BucketStore
	backend string
	rate    float64
	burst   int
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Clock     clock.Clock
	Log       *zap.Logger
}

// NewIntakeLimiter uses Redis when REDIS_ADDR is set and an in-process
// bucket otherwise. A zero or negative limit disables limiting.
func NewIntakeLimiter(p Params) *IntakeLimiter {
	limitCfg := p.Config.Limit
	if limitCfg.PerMinute <= 0 || limitCfg.Burst <= 0 {
		p.Log.Info("intake rate limiting disabled")
		return nil
	}

	limiter := &IntakeLimiter{
		rate:  float64(limitCfg.PerMinute) / 60,
		burst: limitCfg.Burst,
	}

	addr := strings.TrimSpace(p.Config.Redis.Addr)
	if addr == "" {
		limiter.store = NewMemoryBucket(p.Clock)
		limiter.backend = "memory"
		return limiter
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Config.Redis.Password),
		DB:       p.Config.Redis.DB,
	})
	limiter.store = NewTokenBucket(client)
	limiter.backend = "redis"

	log := p.Log.Named("ratelimit")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable; intake limiter will fail open", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return limiter
}

// NewIntakeLimiterWithStore builds a limiter over an arbitrary bucket store.
func NewIntakeLimiterWithStore(store BucketStore, perMinute, burst int) *IntakeLimiter {
	return &IntakeLimiter{
		store:   store,
		backend: "custom",
		rate:    float64(perMinute) / 60,
		burst:   burst,
	}
}

func (l *IntakeLimiter) Enabled() bool {
	return l != nil && l.store != nil
}

func (l *IntakeLimiter) Backend() string {
	if !l.Enabled() {
		return "disabled"
	}
	return l.backend
}

// AllowIP reports whether ip may submit now. Callers fail open on error.
func (l *IntakeLimiter) AllowIP(ctx context.Context, ip string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return l.store.Allow(ctx, fmt.Sprintf(keyIntakeIP, ip), l.rate, l.burst)
}
