package prodata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
	"github.com/boddenberg/iptu-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	authPath  = "/autenticacao"
	flightKey = "prodata-token"
)

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	BaseURL  string
	User     string
	Password string

	// SafetyMargin is how long before expiry a token stops being served.
	SafetyMargin time.Duration
	// DefaultTTL applies when the response carries no usable expiry.
	DefaultTTL time.Duration
	// Timeout bounds one authentication call.
	Timeout time.Duration
	// ExpiryFromClaims reads the JWT exp claim when no expiry field exists.
	ExpiryFromClaims bool
}

// TokenManager caches the Prodata bearer token. Concurrent callers share a
// single authentication call; the cached token is served until
// expiry minus the safety margin.
type TokenManager struct {
	httpClient *http.Client
	cfg        TokenConfig
	clock      port.Clock
	normalizer *normalize.Normalizer
	metrics    *observability.Metrics
	logger     *zap.Logger

	flights singleflight.Group

	mu         sync.Mutex
	token      string
	expiresAt  time.Time
	generation uint64
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(httpClient *http.Client, cfg TokenConfig, clock port.Clock, n *normalize.Normalizer, metrics *observability.Metrics, logger *zap.Logger) *TokenManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	return &TokenManager{
		httpClient: httpClient,
		cfg:        cfg,
		clock:      clock,
		normalizer: n,
		metrics:    metrics,
		logger:     logger,
	}
}

// Configured reports whether the credential pair is present.
func (m *TokenManager) Configured() bool {
	return m.cfg.User != "" && m.cfg.Password != ""
}

// Token returns a cached token or authenticates. With force set the cache is
// bypassed and a new authentication call is started.
func (m *TokenManager) Token(ctx context.Context, force bool) (string, error) {
	if !m.Configured() {
		return "", &domain.ErrAuthConfiguration{}
	}

	m.mu.Lock()
	if !force && m.validLocked() {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}
	if force {
		m.generation++
		m.flights.Forget(flightKey)
	}
	gen := m.generation
	m.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(flightKey, func() (any, error) {
		return m.refresh(flightCtx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached token. A refresh already in flight will not
// repopulate the cache, and the next Token call authenticates again.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.expiresAt = time.Time{}
	m.generation++
	m.flights.Forget(flightKey)
}

func (m *TokenManager) validLocked() bool {
	if m.token == "" {
		return false
	}
	return m.clock.Now().Before(m.expiresAt.Add(-m.cfg.SafetyMargin))
}

func (m *TokenManager) refresh(ctx context.Context, gen uint64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	token, ttl, err := m.authenticate(ctx)
	m.metrics.IncrTokenRefresh(err == nil)
	if err != nil {
		m.logger.Error("prodata authentication failed",
			zap.Error(err),
			zap.String("correlation_id", observability.CorrelationID(ctx)),
		)
		return "", err
	}

	m.mu.Lock()
	if m.generation == gen {
		m.token = token
		m.expiresAt = m.clock.Now().Add(ttl)
	}
	m.mu.Unlock()

	m.logger.Info("prodata token refreshed",
		zap.Duration("ttl", ttl),
		zap.String("correlation_id", observability.CorrelationID(ctx)),
	)
	return token, nil
}

func (m *TokenManager) authenticate(ctx context.Context) (string, time.Duration, error) {
	body, err := json.Marshal(map[string]string{
		"usuario": m.cfg.User,
		"senha":   m.cfg.Password,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+authPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", 0, &domain.ErrNetwork{Op: "autenticacao", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &domain.ErrNetwork{Op: "autenticacao", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &domain.ErrAuthentication{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return "", 0, &domain.ErrAuthentication{Status: resp.StatusCode, Body: fmt.Sprintf("resposta de autenticacao invalida: %v", err)}
	}

	token, ttl := m.normalizer.Token(payload)
	if token == "" {
		return "", 0, &domain.ErrAuthentication{Status: resp.StatusCode, Body: "resposta de autenticacao sem token"}
	}
	return token, m.effectiveTTL(token, ttl), nil
}

// effectiveTTL applies the default when the advertised lifetime is absent or
// not longer than the safety margin.
func (m *TokenManager) effectiveTTL(token string, ttl time.Duration) time.Duration {
	if ttl == 0 && m.cfg.ExpiryFromClaims {
		ttl = m.claimsTTL(token)
	}
	if ttl <= m.cfg.SafetyMargin {
		return m.cfg.DefaultTTL
	}
	return ttl
}

func (m *TokenManager) claimsTTL(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Sub(m.clock.Now())
}
