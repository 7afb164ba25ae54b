// Package ratelimit enforces fixed-window request limits: one window per
// client IP on every route, plus one per route and session on critical
// routes.
package ratelimit

import (
	"context"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/port"

	"go.uber.org/zap"
)

// Rejection reasons.
const (
	ReasonIP       = "RATE_LIMIT_IP"
	ReasonCritical = "RATE_LIMIT_CRITICAL"
)

// Rule is a limit of Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Limiter applies the IP and critical-route rules.
type Limiter struct {
	store    port.RateLimitStore
	ip       Rule
	critical Rule
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLimiter creates a Limiter.
func NewLimiter(store port.RateLimitStore, ip, critical Rule, metrics *observability.Metrics, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, ip: ip, critical: critical, metrics: metrics, logger: logger}
}

// Check registers one hit. The session falls back to the IP when empty.
// Store failures let the request through.
func (l *Limiter) Check(ctx context.Context, ip, route, session string, critical bool) Decision {
	if d, done := l.hit(ctx, "ip:"+ip, l.ip, ReasonIP); done {
		return d
	}
	if critical {
		if session == "" {
			session = ip
		}
		if d, done := l.hit(ctx, "critical:"+route+":"+session, l.critical, ReasonCritical); done {
			return d
		}
	}
	return Decision{Allowed: true}
}

func (l *Limiter) hit(ctx context.Context, key string, rule Rule, reason string) (Decision, bool) {
	if rule.Limit <= 0 {
		return Decision{}, false
	}
	count, left, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", zap.Error(err))
		return Decision{}, false
	}
	if count <= int64(rule.Limit) {
		return Decision{}, false
	}
	l.metrics.IncrRateLimited(reason)
	return Decision{Allowed: false, Reason: reason, RetryAfter: left}, true
}
