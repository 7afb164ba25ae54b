package sig_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/config"
	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/sig"

	"go.uber.org/zap"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func sigConfig(base string) config.SigConfig {
	return config.SigConfig{
		Base:       base + "/ignored",
		Path:       "/sig/rest/imovelController/pesquisarImoveis",
		Origin:     "https://portal.example",
		URL:        "https://portal.example/servicos",
		Modulo:     "24",
		AuthToken:  "static-token",
		HMACSecret: "s3cret",
	}
}

func newClient(cfg config.SigConfig) *sig.Client {
	clock := fixedClock{t: time.Date(2024, 5, 10, 13, 45, 0, 123000000, time.UTC)}
	return sig.NewClient(http.DefaultClient, cfg, resilience.NewCircuitBreaker("sig-test", zap.NewNop()), clock, observability.NewMetrics(), zap.NewNop())
}

func TestSign(t *testing.T) {
	body := []byte(`{"a":1}`)
	sum := sha256.Sum256(body)
	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write([]byte("POST/p2024-01-01T00:00:00.000Z" + hex.EncodeToString(sum[:])))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := sig.Sign("k", "post", "/p", "2024-01-01T00:00:00.000Z", body); got != want {
		t.Errorf("Sign = %s, want %s", got, want)
	}
}

func TestClient_SearchSignsRequest(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"nome":"Ana","cgc":"12345678909","cci":"1"}]`))
	}))
	defer srv.Close()

	cfg := sigConfig(srv.URL)
	payload, err := newClient(cfg).Search(context.Background(), "12345678909")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items, ok := payload.([]any); !ok || len(items) != 1 {
		t.Fatalf("unexpected payload: %#v", payload)
	}

	if gotPath != cfg.Path {
		t.Errorf("expected path %s, got %s", cfg.Path, gotPath)
	}
	ts := gotHeaders.Get("x-timestamp")
	if ts != "2024-05-10T13:45:00.123Z" {
		t.Errorf("unexpected timestamp %q", ts)
	}
	for header, want := range map[string]string{
		"x-client-id":  "sig-frontend",
		"x-id":         "sig",
		"x-modulo":     "24",
		"x-origin":     cfg.Origin,
		"x-url":        cfg.URL,
		"x-auth-token": cfg.AuthToken,
	} {
		if got := gotHeaders.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if want := sig.Sign(cfg.HMACSecret, http.MethodPost, cfg.Path, ts, gotBody); gotHeaders.Get("x-request-signature") != want {
		t.Errorf("signature mismatch")
	}

	var body map[string]any
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["cpfCNPJ"] != "12345678909" || body["cpf_cnpj_imovel_obrigatorio"] != "S" || body["moduloAtual"] != "24" {
		t.Errorf("unexpected body: %v", body)
	}
	if v, ok := body["nomeTelaAtualAutocomplete"]; !ok || v != nil {
		t.Errorf("expected explicit null autocomplete field, got %v", v)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	cfg := sigConfig("http://unused")
	cfg.HMACSecret = ""
	c := newClient(cfg)

	if c.Configured() {
		t.Fatal("expected Configured() false")
	}
	_, err := c.Search(context.Background(), "123")
	var unavailable *domain.ErrSearchUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"erro":"assinatura invalida"}`))
	}))
	defer srv.Close()

	_, err := newClient(sigConfig(srv.URL)).Search(context.Background(), "123")
	var upErr *domain.ErrUpstreamHTTP
	if !errors.As(err, &upErr) {
		t.Fatalf("expected ErrUpstreamHTTP, got %v", err)
	}
	if upErr.Status != http.StatusForbidden || upErr.Message == "" || upErr.Service != "sig" {
		t.Errorf("unexpected error: %+v", upErr)
	}
}
