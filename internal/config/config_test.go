package config_test

import (
	"testing"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRODATA_API_SIMULACAO_PATH", "")
	t.Setenv("PRODATA_USER", "")
	t.Setenv("PRODATA_PASSWORD", "")

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.TokenSafetyMargin != 60*time.Second {
		t.Errorf("expected 60s safety margin, got %s", cfg.TokenSafetyMargin)
	}
	if cfg.TokenDefaultTTL != 15*time.Minute {
		t.Errorf("expected 15m default TTL, got %s", cfg.TokenDefaultTTL)
	}
	if cfg.Paths.SimulacaoOverridden {
		t.Error("expected simulation path not overridden")
	}
	if cfg.HasCredentials() {
		t.Error("expected no credentials")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PRODATA_API_BASE", "https://prodata.example/rest/")
	t.Setenv("PRODATA_USER", "user")
	t.Setenv("PRODATA_PASSWORD", "secret")
	t.Setenv("PRODATA_API_SIMULACAO_PATH", "/v2/simulacao")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("HTTP_TIMEOUT", "20s")

	cfg := config.Load()

	if cfg.ProdataAPIBase != "https://prodata.example/rest" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.ProdataAPIBase)
	}
	if !cfg.HasCredentials() {
		t.Error("expected credentials")
	}
	if !cfg.Paths.SimulacaoOverridden || cfg.Paths.Simulacao != "/v2/simulacao" {
		t.Errorf("unexpected simulation path: %+v", cfg.Paths)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.HTTPTimeout != 20*time.Second {
		t.Errorf("expected 20s timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestSigConfig_Complete(t *testing.T) {
	sig := config.SigConfig{Base: "https://sig", Origin: "o", URL: "u", AuthToken: "t"}
	if sig.Complete() {
		t.Error("expected incomplete without HMAC secret")
	}
	sig.HMACSecret = "s"
	if !sig.Complete() {
		t.Error("expected complete")
	}
}
