// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the Prodata, SIG and rate-limit adapters.
package port

import (
	"context"
	"net/url"
	"time"
)

// Clock abstracts wall time so expiry logic can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// TokenSource hands out bearer tokens for the Prodata backend.
type TokenSource interface {
	// Token returns a valid token, authenticating when the cache is empty,
	// near expiry or force is set.
	Token(ctx context.Context, force bool) (string, error)
	// Invalidate drops the cached token.
	Invalidate()
	// Configured reports whether credentials exist.
	Configured() bool
}

// UpstreamRequest describes one call to the Prodata REST backend. Path is
// joined to the configured base unless it is an absolute http(s) URL.
type UpstreamRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Upstream performs authenticated calls to the Prodata REST backend and
// returns the decoded body. Non-2xx answers surface as
// *domain.ErrUpstreamHTTP.
type Upstream interface {
	JSON(ctx context.Context, req UpstreamRequest) (any, error)
	Configured() bool
}

// SigSearcher queries the legacy SIG property search.
type SigSearcher interface {
	Search(ctx context.Context, cpfCNPJ string) (any, error)
	Configured() bool
}

// RateLimitStore counts hits inside fixed windows.
type RateLimitStore interface {
	// Incr adds one hit to key and returns the count in the current window
	// and the time left until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
