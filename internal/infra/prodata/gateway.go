// Package prodata talks to the Prodata municipal-services REST backend:
// token caching (TokenManager) and authenticated calls (Gateway).
package prodata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/iptu-bfa-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("prodata")

const serviceName = "prodata"

// errServerStatus marks 5xx answers as breaker failures while the response
// itself is still returned to the caller.
var errServerStatus = errors.New("upstream server error")

// Response is a raw upstream answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Gateway performs authenticated calls to the Prodata REST backend.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	tokens     port.TokenSource
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewGateway creates a new Gateway.
func NewGateway(httpClient *http.Client, baseURL string, tokens port.TokenSource, cb *gobreaker.CircuitBreaker, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	return &Gateway{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		cb:         cb,
		bulkhead:   bulkhead,
		metrics:    metrics,
		logger:     logger,
	}
}

// Configured reports whether Prodata credentials exist.
func (g *Gateway) Configured() bool {
	return g.tokens.Configured()
}

// Do sends req with a bearer token. A 401 answer invalidates the token and
// the request is replayed exactly once with a freshly authenticated token.
// Transport failures invalidate the token and are returned as
// *domain.ErrNetwork; nothing else is retried.
func (g *Gateway) Do(ctx context.Context, req port.UpstreamRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Gateway.Do", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("prodata.path", req.Path),
	)

	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}

	if err := g.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrNetwork{Op: req.Path, Err: err}
	}
	defer g.bulkhead.Release()

	resp, err := g.attempt(ctx, req, body, false)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		g.logger.Warn("prodata token rejected, refreshing",
			zap.String("path", req.Path),
			zap.String("correlation_id", observability.CorrelationID(ctx)),
		)
		g.tokens.Invalidate()
		resp, err = g.attempt(ctx, req, body, true)
		if err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	return resp, nil
}

func (g *Gateway) attempt(ctx context.Context, req port.UpstreamRequest, body []byte, force bool) (*Response, error) {
	token, err := g.tokens.Token(ctx, force)
	if err != nil {
		var netErr *domain.ErrNetwork
		if errors.As(err, &netErr) {
			g.tokens.Invalidate()
		}
		return nil, err
	}

	result, err := g.cb.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.buildURL(req), reader)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		httpReq.Header.Set("Accept", "application/json")
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if id := observability.CorrelationID(ctx); id != "" {
			httpReq.Header.Set(observability.CorrelationHeader, id)
		}

		resp, err := g.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}
		if resp.StatusCode >= 500 {
			return out, errServerStatus
		}
		return out, nil
	})

	if resilience.IsBreakerRejection(err) {
		return nil, &domain.ErrCircuitOpen{Service: serviceName}
	}
	if err != nil && !errors.Is(err, errServerStatus) {
		g.metrics.IncrUpstream(serviceName, 0)
		g.tokens.Invalidate()
		g.logger.Warn("prodata call failed",
			zap.String("path", req.Path),
			zap.Error(err),
			zap.String("correlation_id", observability.CorrelationID(ctx)),
		)
		return nil, &domain.ErrNetwork{Op: req.Method + " " + req.Path, Err: err}
	}

	resp := result.(*Response)
	g.metrics.IncrUpstream(serviceName, resp.Status)
	return resp, nil
}

func (g *Gateway) buildURL(req port.UpstreamRequest) string {
	var u string
	lower := strings.ToLower(req.Path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u = req.Path
	} else if strings.HasPrefix(req.Path, "/") {
		u = g.baseURL + req.Path
	} else {
		u = g.baseURL + "/" + req.Path
	}

	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.Query.Encode()
	}
	return u
}

// JSON calls Do and decodes the answer. JSON bodies are decoded with numbers
// kept as json.Number; an empty JSON body becomes an empty object; anything
// else is returned as text. Non-2xx answers become *domain.ErrUpstreamHTTP
// carrying the decoded payload.
func (g *Gateway) JSON(ctx context.Context, req port.UpstreamRequest) (any, error) {
	resp, err := g.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	payload := DecodePayload(resp.Header.Get("Content-Type"), resp.Body)
	if !resp.OK() {
		return nil, &domain.ErrUpstreamHTTP{Status: resp.Status, Payload: payload}
	}
	return payload, nil
}

// DecodePayload turns a raw body into a JSON tree or text.
func DecodePayload(contentType string, body []byte) any {
	if !isJSON(contentType) {
		return string(body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(body)
	}
	return v
}

func isJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}
