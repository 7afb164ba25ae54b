package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Prodata REST backend
	ProdataAPIBase  string
	ProdataUser     string
	ProdataPassword string
	Paths           Paths

	// Property search source: auto, api or sig
	PesquisaSource string
	Sig            SigConfig

	// HTTP client (per upstream call)
	HTTPTimeout time.Duration

	// Token cache
	TokenSafetyMargin     time.Duration
	TokenDefaultTTL       time.Duration
	TokenExpiryFromClaims bool

	// Resilience
	MaxConcurrency int

	// Rate limiting
	RateLimitIP             int
	RateLimitIPWindow       time.Duration
	RateLimitCritical       int
	RateLimitCriticalWindow time.Duration
	RedisAddr               string

	// CORS
	AllowedOrigins []string

	// Observability
	OTLPEndpoint         string
	MetricsAlarmSchedule string

	// Normalizer
	AliasesFile string

	// Dev mode: answer simulations with a demo payload when credentials are missing
	SimulationMock bool
}

// Paths holds the upstream endpoint paths, each overridable by env.
type Paths struct {
	Imoveis           string
	Debitos           string
	Pesquisa          string
	Simulacao         string
	SimulacaoFallback string
	// SimulacaoOverridden is true when PRODATA_API_SIMULACAO_PATH was set;
	// an explicit path disables the 404 fallback.
	SimulacaoOverridden bool
	Emitir              string
	Repactuacao         string
}

// SigConfig holds the legacy SIG search integration settings.
type SigConfig struct {
	Base       string
	Path       string
	Origin     string
	URL        string
	Modulo     string
	AuthToken  string
	HMACSecret string
}

// Complete reports whether every setting required to call SIG is present.
func (s SigConfig) Complete() bool {
	return s.Base != "" && s.Origin != "" && s.URL != "" && s.AuthToken != "" && s.HMACSecret != ""
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ProdataAPIBase:  strings.TrimRight(getEnv("PRODATA_API_BASE", "https://araguaina.prodataweb.inf.br/sigintegracaorest"), "/"),
		ProdataUser:     getEnv("PRODATA_USER", ""),
		ProdataPassword: getEnv("PRODATA_PASSWORD", ""),
		Paths: Paths{
			Imoveis:             getEnv("PRODATA_API_IMOVEIS_PATH", "/cadastro/imoveis"),
			Debitos:             getEnv("PRODATA_API_DEBITOS_PATH", "/arrecadacao/debitos"),
			Pesquisa:            getEnv("PRODATA_API_PESQUISA_PATH", "/arrecadacao/obterDadosImobiliario"),
			Simulacao:           getEnv("PRODATA_API_SIMULACAO_PATH", "/arrecadacao/simulacao"),
			SimulacaoFallback:   getEnv("PRODATA_API_SIMULACAO_FALLBACK_PATH", "/arrecadacao/simulacaoRepactuacao"),
			SimulacaoOverridden: os.Getenv("PRODATA_API_SIMULACAO_PATH") != "",
			Emitir:              getEnv("PRODATA_API_EMITIR_PATH", "/arrecadacao/emitir"),
			Repactuacao:         getEnv("PRODATA_API_REPACTUACAO_PATH", "/arrecadacao/simulacaoRepactuacao"),
		},

		PesquisaSource: strings.ToLower(getEnv("PRODATA_PESQUISA_SOURCE", "auto")),
		Sig: SigConfig{
			Base:       getEnv("PRODATA_SIG_BASE", ""),
			Path:       getEnv("PRODATA_SIG_PATH", "/sig/rest/imovelController/pesquisarImoveis"),
			Origin:     getEnv("PRODATA_SIG_ORIGIN", ""),
			URL:        getEnv("PRODATA_SIG_URL", ""),
			Modulo:     getEnv("PRODATA_SIG_MODULO", "24"),
			AuthToken:  getEnv("PRODATA_SIG_AUTH_TOKEN", ""),
			HMACSecret: getEnv("PRODATA_SIG_HMAC_SECRET", ""),
		},

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		TokenSafetyMargin:     getEnvDuration("TOKEN_SAFETY_MARGIN", 60*time.Second),
		TokenDefaultTTL:       getEnvDuration("TOKEN_DEFAULT_TTL", 15*time.Minute),
		TokenExpiryFromClaims: getEnv("TOKEN_EXPIRY_FROM_CLAIMS", "false") == "true",

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		RateLimitIP:             getEnvInt("RATE_LIMIT_IP", 60),
		RateLimitIPWindow:       getEnvDuration("RATE_LIMIT_IP_WINDOW", time.Minute),
		RateLimitCritical:       getEnvInt("RATE_LIMIT_CRITICAL", 10),
		RateLimitCriticalWindow: getEnvDuration("RATE_LIMIT_CRITICAL_WINDOW", time.Minute),
		RedisAddr:               getEnv("REDIS_ADDR", ""),

		AllowedOrigins: splitList(getEnv("API_ALLOWED_ORIGINS", getEnv("ALLOWED_ORIGINS", "http://localhost:5173"))),

		OTLPEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MetricsAlarmSchedule: getEnv("METRICS_ALARM_SCHEDULE", "@every 1m"),

		AliasesFile: getEnv("NORMALIZER_ALIASES_FILE", ""),

		SimulationMock: getEnv("SIMULATION_MOCK", "false") == "true",
	}
}

// HasCredentials reports whether the Prodata credential pair is configured.
func (c *Config) HasCredentials() bool {
	return c.ProdataUser != "" && c.ProdataPassword != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
