package prodata_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/prodata"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/iptu-bfa-go/internal/port"

	"go.uber.org/zap"
)

// fakeTokens hands out "tok-<n>" where n counts authentications.
type fakeTokens struct {
	mu          sync.Mutex
	current     string
	auths       int
	forced      int
	invalidates int
	err         error
}

func (f *fakeTokens) Token(_ context.Context, force bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if force {
		f.forced++
	}
	if f.current == "" || force {
		f.auths++
		f.current = "tok-" + string(rune('0'+f.auths))
	}
	return f.current, nil
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
	f.current = ""
}

func (f *fakeTokens) Configured() bool { return true }

func newGateway(baseURL string, tokens port.TokenSource) *prodata.Gateway {
	return prodata.NewGateway(
		http.DefaultClient,
		baseURL,
		tokens,
		resilience.NewCircuitBreaker("prodata-test", zap.NewNop()),
		resilience.NewBulkhead(4),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func TestGateway_RetriesOnceOn401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{}
	gw := newGateway(srv.URL, tokens)

	payload, err := gw.JSON(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: "/arrecadacao/debitos"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec, _ := payload.(map[string]any); rec["ok"] != true {
		t.Errorf("unexpected payload: %v", payload)
	}
	if calls.Load() != 2 || tokens.invalidates != 1 || tokens.forced != 1 {
		t.Errorf("expected one invalidate+forced retry, got calls=%d invalidates=%d forced=%d", calls.Load(), tokens.invalidates, tokens.forced)
	}
}

func TestGateway_SecondUnauthorizedIsSurfaced(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"mensagem":"token invalido"}`))
	}))
	defer srv.Close()

	gw := newGateway(srv.URL, &fakeTokens{})
	_, err := gw.JSON(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: "/x"})

	var upErr *domain.ErrUpstreamHTTP
	if !errors.As(err, &upErr) || upErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected ErrUpstreamHTTP 401, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly one retry, got %d calls", calls.Load())
	}
}

func TestGateway_NetworkFailureInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	tokens := &fakeTokens{}
	gw := newGateway(base, tokens)
	_, err := gw.Do(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: "/x"})

	var netErr *domain.ErrNetwork
	if !errors.As(err, &netErr) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if tokens.invalidates != 1 {
		t.Errorf("expected token invalidation, got %d", tokens.invalidates)
	}
	if tokens.auths != 1 {
		t.Errorf("expected no retry on network failure, got %d authentications", tokens.auths)
	}
}

func TestGateway_TokenErrorsPropagate(t *testing.T) {
	gw := newGateway("http://unused", &fakeTokens{err: &domain.ErrAuthConfiguration{}})
	_, err := gw.JSON(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: "/x"})

	var cfgErr *domain.ErrAuthConfiguration
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrAuthConfiguration, got %v", err)
	}
}

func TestGateway_RequestShape(t *testing.T) {
	var got *http.Request
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"valor": 10.50}`))
	}))
	defer srv.Close()

	gw := newGateway(srv.URL+"/", &fakeTokens{})
	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	payload, err := gw.JSON(ctx, port.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "arrecadacao/simulacao",
		Query:  url.Values{"cci": {"123"}},
		Body:   map[string]any{"parcelas": 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.URL.Path != "/arrecadacao/simulacao" || got.URL.Query().Get("cci") != "123" {
		t.Errorf("unexpected url: %s", got.URL)
	}
	if got.Header.Get("Authorization") != "Bearer tok-1" {
		t.Errorf("unexpected authorization header: %q", got.Header.Get("Authorization"))
	}
	if got.Header.Get("Content-Type") != "application/json" || got.Header.Get("Accept") != "application/json" {
		t.Errorf("unexpected content headers: %v", got.Header)
	}
	if got.Header.Get(observability.CorrelationHeader) != "corr-1" {
		t.Errorf("expected correlation id to be forwarded")
	}
	if body["parcelas"] != float64(3) {
		t.Errorf("unexpected body: %v", body)
	}
	if rec, _ := payload.(map[string]any); rec["valor"] != json.Number("10.50") {
		t.Errorf("expected json.Number in payload, got %#v", payload)
	}
}

func TestGateway_AbsolutePath(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(r.URL.Path == "/legacy")
	}))
	defer srv.Close()

	gw := newGateway("http://base.invalid", &fakeTokens{})
	if _, err := gw.Do(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: srv.URL + "/legacy"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit.Load() {
		t.Error("expected absolute path to be used verbatim")
	}
}

func TestGateway_UpstreamErrorCarriesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"mensagem":"titulo ja emitido"}`))
	}))
	defer srv.Close()

	_, err := newGateway(srv.URL, &fakeTokens{}).JSON(context.Background(), port.UpstreamRequest{Method: http.MethodPost, Path: "/arrecadacao/emitir"})
	var upErr *domain.ErrUpstreamHTTP
	if !errors.As(err, &upErr) {
		t.Fatalf("expected ErrUpstreamHTTP, got %v", err)
	}
	if upErr.Status != http.StatusConflict {
		t.Errorf("expected 409, got %d", upErr.Status)
	}
	if rec, _ := upErr.Payload.(map[string]any); rec["mensagem"] != "titulo ja emitido" {
		t.Errorf("unexpected payload: %v", upErr.Payload)
	}
}

func TestGateway_CircuitOpensOnServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := newGateway(srv.URL, &fakeTokens{})
	for i := 0; i < 5; i++ {
		_, err := gw.JSON(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: "/x"})
		var upErr *domain.ErrUpstreamHTTP
		if !errors.As(err, &upErr) || upErr.Status != http.StatusBadGateway {
			t.Fatalf("call %d: expected ErrUpstreamHTTP 502, got %v", i, err)
		}
	}

	_, err := gw.JSON(context.Background(), port.UpstreamRequest{Method: http.MethodGet, Path: "/x"})
	var openErr *domain.ErrCircuitOpen
	if !errors.As(err, &openErr) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestDecodePayload(t *testing.T) {
	if v, ok := prodata.DecodePayload("application/json", nil).(map[string]any); !ok || len(v) != 0 {
		t.Errorf("expected empty object for empty JSON body, got %#v", v)
	}
	if v := prodata.DecodePayload("text/html", []byte("<h1>erro</h1>")); v != "<h1>erro</h1>" {
		t.Errorf("expected raw text, got %#v", v)
	}
	if v := prodata.DecodePayload("application/json", []byte("{quebrado")); !strings.Contains(v.(string), "quebrado") {
		t.Errorf("expected invalid JSON to fall back to text, got %#v", v)
	}
	if v, ok := prodata.DecodePayload("application/json", []byte(`[1,2]`)).([]any); !ok || len(v) != 2 {
		t.Errorf("expected array, got %#v", v)
	}
}
