// Package sig calls the legacy SIG property search, which authenticates each
// request with a static token plus an HMAC-SHA256 request signature.
package sig

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/iptu-bfa-go/internal/config"
	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/prodata"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/iptu-bfa-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("sig")

const serviceName = "sig"

// timestampLayout is ISO-8601 UTC with milliseconds.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// SearchPayload is the body the SIG search screen posts.
type SearchPayload struct {
	TipoConsulta              int            `json:"tipo_consulta"`
	TipoCertidao              int            `json:"tipo_certidao"`
	CpfCnpjImovelObrigatorio  string         `json:"cpf_cnpj_imovel_obrigatorio"`
	CpfCNPJ                   string         `json:"cpfCNPJ"`
	Tabela                    map[string]any `json:"tabela"`
	IsConsultaText            bool           `json:"isConsultaText"`
	NomeTelaAtualAutocomplete *string        `json:"nomeTelaAtualAutocomplete"`
	PropriedadeValor          string         `json:"propriedadeValor"`
	PropriedadeDescricao      string         `json:"propriedadeDescricao"`
	ModuloAtual               string         `json:"moduloAtual"`
	DescricaoModuloAtual      string         `json:"descricaoModuloAtual"`
}

// NewSearchPayload builds the search body for a CPF/CNPJ.
func NewSearchPayload(cpfCNPJ, modulo string) SearchPayload {
	return SearchPayload{
		TipoConsulta:             1,
		TipoCertidao:             1,
		CpfCnpjImovelObrigatorio: "S",
		CpfCNPJ:                  cpfCNPJ,
		Tabela:                   map[string]any{},
		PropriedadeValor:         "cci",
		PropriedadeDescricao:     "cci",
		ModuloAtual:              modulo,
		DescricaoModuloAtual:     "servicosonline",
	}
}

// Sign returns hex(HMAC-SHA256(secret, METHOD + path + timestamp + hex(SHA256(body)))).
func Sign(secret, method, path, timestamp string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToUpper(method) + path + timestamp + hex.EncodeToString(bodyHash[:])))
	return hex.EncodeToString(mac.Sum(nil))
}

// Client calls the SIG search endpoint.
type Client struct {
	httpClient *http.Client
	cfg        config.SigConfig
	cb         *gobreaker.CircuitBreaker
	clock      port.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a new SIG Client.
func NewClient(httpClient *http.Client, cfg config.SigConfig, cb *gobreaker.CircuitBreaker, clock port.Clock, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		cb:         cb,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Configured reports whether every SIG setting is present.
func (c *Client) Configured() bool {
	return c.cfg.Complete()
}

// Search posts a signed search for cpfCNPJ (digits only) and returns the
// decoded answer.
func (c *Client) Search(ctx context.Context, cpfCNPJ string) (any, error) {
	ctx, span := tracer.Start(ctx, "Client.Search", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if !c.Configured() {
		return nil, &domain.ErrSearchUnavailable{Source: domain.SourceSIG}
	}

	body, err := json.Marshal(NewSearchPayload(cpfCNPJ, c.cfg.Modulo))
	if err != nil {
		return nil, err
	}
	target, err := c.targetURL()
	if err != nil {
		return nil, err
	}

	result, err := c.cb.Execute(func() (any, error) {
		timestamp := c.clock.Now().UTC().Format(timestampLayout)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
		req.Header.Set("x-client-id", "sig-frontend")
		req.Header.Set("x-id", "sig")
		req.Header.Set("x-modulo", c.cfg.Modulo)
		req.Header.Set("x-origin", c.cfg.Origin)
		req.Header.Set("x-url", c.cfg.URL)
		req.Header.Set("x-timestamp", timestamp)
		req.Header.Set("x-auth-token", c.cfg.AuthToken)
		req.Header.Set("x-request-signature", Sign(c.cfg.HMACSecret, http.MethodPost, c.cfg.Path, timestamp, body))
		if id := observability.CorrelationID(ctx); id != "" {
			req.Header.Set(observability.CorrelationHeader, id)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		out := &prodata.Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}
		if resp.StatusCode >= 500 {
			return out, fmt.Errorf("sig returned status %d", resp.StatusCode)
		}
		return out, nil
	})

	if resilience.IsBreakerRejection(err) {
		return nil, &domain.ErrCircuitOpen{Service: serviceName}
	}
	resp, _ := result.(*prodata.Response)
	if resp == nil {
		c.metrics.IncrUpstream(serviceName, 0)
		c.logger.Warn("sig search failed", zap.Error(err), zap.String("correlation_id", observability.CorrelationID(ctx)))
		return nil, &domain.ErrNetwork{Op: "sig search", Err: err}
	}
	c.metrics.IncrUpstream(serviceName, resp.Status)

	payload := prodata.DecodePayload(resp.Header.Get("Content-Type"), resp.Body)
	if !resp.OK() {
		status := resp.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		return nil, &domain.ErrUpstreamHTTP{
			Service: serviceName,
			Status:  status,
			Payload: payload,
			Message: "Falha na consulta ao SIG.",
		}
	}
	return payload, nil
}

// targetURL resolves the search path against the SIG base the way a browser
// resolves an absolute path: the base path is replaced.
func (c *Client) targetURL() (string, error) {
	base, err := url.Parse(c.cfg.Base)
	if err != nil {
		return "", fmt.Errorf("invalid PRODATA_SIG_BASE: %w", err)
	}
	ref, err := url.Parse(c.cfg.Path)
	if err != nil {
		return "", fmt.Errorf("invalid PRODATA_SIG_PATH: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
