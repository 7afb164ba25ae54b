package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionHeader identifies a caller session for critical-route limits.
const SessionHeader = "X-Session-Id"

// CorrelationMiddleware reuses the inbound correlation id or generates one,
// stores it in the request context and echoes it in the response.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(observability.CorrelationHeader))
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(observability.CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.WithCorrelationID(r.Context(), id)))
	})
}

// OriginGuard rejects requests whose Origin is not allowed and answers bare
// OPTIONS requests with 204. Requests without Origin pass through.
func OriginGuard(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	_, wildcard := set["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && !wildcard {
				if _, ok := set[origin]; !ok {
					writeError(w, r, http.StatusForbidden, msgOrigemNaoAutorizada, nil)
					return
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware applies the per-IP window and, when critical is set,
// the per route and session window.
func RateLimitMiddleware(limiter *ratelimit.Limiter, critical bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			d := limiter.Check(r.Context(), ip, route, r.Header.Get(SessionHeader), critical)
			if !d.Allowed {
				logger.Warn("rate limited",
					zap.String("reason", d.Reason),
					zap.String("route", route),
					observability.Masked("ip", ip),
					zap.String("correlation_id", observability.CorrelationID(r.Context())),
				)
				handleServiceError(w, r, &domain.ErrRateLimited{Reason: d.Reason, RetryAfter: d.RetryAfter}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the caller address. chi's RealIP middleware has already
// replaced RemoteAddr with the first X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// methodNotAllowed answers 405 with the methods the path does accept.
func methodNotAllowed(routes chi.Routes) http.HandlerFunc {
	candidates := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	return func(w http.ResponseWriter, r *http.Request) {
		var allow []string
		for _, m := range candidates {
			if routes.Match(chi.NewRouteContext(), m, r.URL.Path) {
				allow = append(allow, m)
			}
		}
		if len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		writeError(w, r, http.StatusMethodNotAllowed, msgMetodoNaoSuportado, nil)
	}
}
