// Package service provides the business logic layer (use cases).
// IPTUService validates caller input, calls the Prodata backend (or the
// legacy SIG search) and normalizes what comes back.
package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/boddenberg/iptu-bfa-go/internal/config"
	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
	"github.com/boddenberg/iptu-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/iptu")

// Caller-facing texts for a missing Prodata credential pair.
const (
	MsgConsultaIndisponivel  = "Consulta indisponivel: configure PRODATA_USER/PRODATA_PASSWORD."
	MsgPesquisaIndisponivel  = "Pesquisa indisponivel: configure PRODATA_USER/PRODATA_PASSWORD."
	MsgSimulacaoIndisponivel = "Simulacao indisponivel: configure PRODATA_USER/PRODATA_PASSWORD."
	MsgEmissaoIndisponivel   = "Emissao indisponivel: configure PRODATA_USER/PRODATA_PASSWORD."

	MsgSimulacaoMock = "Simulacao em modo demonstracao. Configure PRODATA_USER/PRODATA_PASSWORD para chamadas reais."
)

// Search source settings.
const (
	SearchAuto = "auto"
	SearchAPI  = domain.SourceAPI
	SearchSIG  = domain.SourceSIG
)

// Options tune IPTUService.
type Options struct {
	Paths          config.Paths
	SearchSource   string // auto, api or sig
	SimulationMock bool
}

// IPTUService implements the IPTU use cases: property lookup and search,
// debts, installment simulation and DUAM issuance.
type IPTUService struct {
	upstream port.Upstream
	sig      port.SigSearcher
	norm     *normalize.Normalizer
	opts     Options
	logger   *zap.Logger
}

// NewIPTUService creates a new IPTU service.
func NewIPTUService(upstream port.Upstream, sig port.SigSearcher, norm *normalize.Normalizer, opts Options, logger *zap.Logger) *IPTUService {
	if opts.SearchSource == "" {
		opts.SearchSource = SearchAuto
	}
	return &IPTUService{upstream: upstream, sig: sig, norm: norm, opts: opts, logger: logger}
}

// Configured reports whether Prodata credentials exist.
func (s *IPTUService) Configured() bool {
	return s.upstream.Configured()
}

func (s *IPTUService) requireCredentials(msg string) error {
	if !s.upstream.Configured() {
		return &domain.ErrAuthConfiguration{Message: msg}
	}
	return nil
}

// ============================================================
// Imóveis
// ============================================================

// ListProperties returns the properties registered to a CPF or CNPJ.
func (s *IPTUService) ListProperties(ctx context.Context, q domain.PropertyQuery) ([]domain.PropertySummary, any, error) {
	ctx, span := tracer.Start(ctx, "IPTUService.ListProperties")
	defer span.End()

	q, err := validatePropertyQuery(q)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireCredentials(MsgConsultaIndisponivel); err != nil {
		return nil, nil, err
	}

	params := url.Values{}
	if q.CPF != "" {
		params.Set("cpf", q.CPF)
	}
	if q.CNPJ != "" {
		params.Set("cnpj", q.CNPJ)
	}

	payload, err := s.upstream.JSON(ctx, port.UpstreamRequest{Method: http.MethodGet, Path: s.opts.Paths.Imoveis, Query: params})
	if err != nil {
		return nil, nil, err
	}
	props := s.norm.Properties(payload)
	span.SetAttributes(attribute.Int("imoveis.count", len(props)))
	return props, payload, nil
}

// SearchProperties searches properties through the configured source. With
// source auto the Prodata API is used when credentials exist, else SIG.
func (s *IPTUService) SearchProperties(ctx context.Context, req domain.SearchRequest) ([]domain.PropertySearchHit, any, error) {
	ctx, span := tracer.Start(ctx, "IPTUService.SearchProperties")
	defer span.End()

	source := s.searchSource()
	span.SetAttributes(attribute.String("pesquisa.source", source))

	if source == SearchSIG {
		return s.searchSIG(ctx, req)
	}
	return s.searchAPI(ctx, req)
}

func (s *IPTUService) searchSource() string {
	switch s.opts.SearchSource {
	case SearchAPI, SearchSIG:
		return s.opts.SearchSource
	}
	if s.upstream.Configured() {
		return SearchAPI
	}
	return SearchSIG
}

func (s *IPTUService) searchAPI(ctx context.Context, req domain.SearchRequest) ([]domain.PropertySearchHit, any, error) {
	if err := s.requireCredentials(MsgPesquisaIndisponivel); err != nil {
		return nil, nil, err
	}

	doc := normalize.SanitizeDigits(req.CpfCNPJ)
	inscricao := normalize.SanitizeString(req.Inscricao)
	cci := normalize.SanitizeString(req.CCI)
	ccp := normalize.SanitizeString(req.CCP)
	if doc == "" && inscricao == "" && cci == "" && ccp == "" {
		return nil, nil, invalid("pesquisa", "Dados invalidos. Informe um parametro de busca.")
	}

	params := url.Values{}
	switch len(doc) {
	case 11:
		params.Set("cpf", doc)
	case 14:
		params.Set("cnpj", doc)
	}
	if inscricao != "" {
		params.Set("inscricaoImobiliaria", normalize.SanitizeDigits(inscricao))
	}
	if cci != "" {
		params.Set("cci", normalize.SanitizeDigits(cci))
	}
	if ccp != "" {
		params.Set("ccp", normalize.SanitizeDigits(ccp))
	}

	payload, err := s.upstream.JSON(ctx, port.UpstreamRequest{Method: http.MethodGet, Path: s.opts.Paths.Pesquisa, Query: params})
	if err != nil {
		return nil, nil, err
	}
	return s.norm.SearchHits(payload), payload, nil
}

func (s *IPTUService) searchSIG(ctx context.Context, req domain.SearchRequest) ([]domain.PropertySearchHit, any, error) {
	if s.sig == nil || !s.sig.Configured() {
		return nil, nil, &domain.ErrSearchUnavailable{Source: SearchSIG}
	}
	doc := normalize.SanitizeDigits(req.CpfCNPJ)
	if doc == "" {
		return nil, nil, invalid("cpfCNPJ", "Informe um CPF ou CNPJ valido.")
	}

	payload, err := s.sig.Search(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return s.norm.SigHits(payload), payload, nil
}

// ============================================================
// Débitos
// ============================================================

// LookupDebts returns the debts of the identified property grouped by
// property, with per-property and overall totals.
func (s *IPTUService) LookupDebts(ctx context.Context, q domain.DebtQuery) (domain.DebtLookup, any, error) {
	ctx, span := tracer.Start(ctx, "IPTUService.LookupDebts")
	defer span.End()

	q, err := validateDebtQuery(q)
	if err != nil {
		return domain.DebtLookup{}, nil, err
	}
	if err := s.requireCredentials(MsgConsultaIndisponivel); err != nil {
		return domain.DebtLookup{}, nil, err
	}

	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("inscricaoImobiliaria", q.Inscricao)
	set("cci", q.CCI)
	set("ccp", q.CCP)
	set("cpf", q.CPF)
	set("cnpj", q.CNPJ)

	payload, err := s.upstream.JSON(ctx, port.UpstreamRequest{Method: http.MethodGet, Path: s.opts.Paths.Debitos, Query: params})
	if err != nil {
		return domain.DebtLookup{}, nil, err
	}

	lookup := s.norm.Debts(payload, q)
	span.SetAttributes(
		attribute.Int("debitos.imoveis", len(lookup.Resultados)),
		attribute.Float64("debitos.total", lookup.Totais.Total),
	)
	s.logger.Debug("debts normalized",
		observability.Masked("inscricao", q.Inscricao),
		zap.Int("imoveis", len(lookup.Resultados)),
	)
	return lookup, payload, nil
}

// ============================================================
// Simulação
// ============================================================

// Simulate validates the body and requests an installment simulation. When
// the primary path is the default one and answers 404, the fallback path is
// tried once. Without credentials and with mock mode on, a demo result is
// returned instead.
func (s *IPTUService) Simulate(ctx context.Context, body map[string]any) (domain.SimulationResult, any, error) {
	ctx, span := tracer.Start(ctx, "IPTUService.Simulate")
	defer span.End()

	req, err := parseSimulationRequest(body)
	if err != nil {
		return domain.SimulationResult{}, nil, err
	}
	if !s.upstream.Configured() {
		if s.opts.SimulationMock {
			span.SetAttributes(attribute.Bool("simulacao.mock", true))
			return domain.SimulationResult{Mock: true, Mensagem: MsgSimulacaoMock, Parcelas: []domain.Installment{}}, nil, nil
		}
		return domain.SimulationResult{}, nil, &domain.ErrAuthConfiguration{Message: MsgSimulacaoIndisponivel}
	}

	call := port.UpstreamRequest{Method: http.MethodPost, Path: s.opts.Paths.Simulacao, Body: req}
	payload, err := s.upstream.JSON(ctx, call)
	if isStatus(err, http.StatusNotFound) && s.shouldFallback() {
		s.logger.Info("simulation primary path missing, trying fallback",
			zap.String("correlation_id", observability.CorrelationID(ctx)),
			zap.String("path", s.opts.Paths.SimulacaoFallback),
		)
		call.Path = s.opts.Paths.SimulacaoFallback
		payload, err = s.upstream.JSON(ctx, call)
	}
	if err != nil {
		return domain.SimulationResult{}, nil, err
	}

	result := s.norm.Simulation(payload)
	span.SetAttributes(attribute.Int("simulacao.parcelas", len(result.Parcelas)))
	return result, payload, nil
}

func (s *IPTUService) shouldFallback() bool {
	p := s.opts.Paths
	return !p.SimulacaoOverridden && p.SimulacaoFallback != "" && p.Simulacao != p.SimulacaoFallback
}

// SimulateRenegotiation forwards the body untouched to the legacy
// renegotiation endpoint and returns its installments.
func (s *IPTUService) SimulateRenegotiation(ctx context.Context, body map[string]any) ([]domain.Installment, any, error) {
	ctx, span := tracer.Start(ctx, "IPTUService.SimulateRenegotiation")
	defer span.End()

	if err := s.requireCredentials(MsgSimulacaoIndisponivel); err != nil {
		return nil, nil, err
	}
	if body == nil {
		body = map[string]any{}
	}

	payload, err := s.upstream.JSON(ctx, port.UpstreamRequest{Method: http.MethodPost, Path: s.opts.Paths.Repactuacao, Body: body})
	if err != nil {
		var upstreamErr *domain.ErrUpstreamHTTP
		if errors.As(err, &upstreamErr) {
			upstreamErr.Message = "Falha na simulação"
		}
		return nil, nil, err
	}
	return s.norm.Installments(payload), payload, nil
}

// ============================================================
// Emissão
// ============================================================

// Issue requests the DUAM for a previous simulation. The call is not
// idempotent: a conflict ("already issued") is surfaced, never retried.
func (s *IPTUService) Issue(ctx context.Context, body map[string]any) (domain.IssuanceReceipt, any, error) {
	ctx, span := tracer.Start(ctx, "IPTUService.Issue")
	defer span.End()

	req, err := parseIssuanceRequest(body)
	if err != nil {
		return domain.IssuanceReceipt{}, nil, err
	}
	if err := s.requireCredentials(MsgEmissaoIndisponivel); err != nil {
		return domain.IssuanceReceipt{}, nil, err
	}
	span.SetAttributes(attribute.String("simulacao.id", req.SimulacaoID))

	payload, err := s.upstream.JSON(ctx, port.UpstreamRequest{Method: http.MethodPost, Path: s.opts.Paths.Emitir, Body: req.Raw})
	if err != nil {
		if isStatus(err, http.StatusConflict) {
			s.logger.Warn("duam already issued", zap.String("simulacao_id", req.SimulacaoID))
		}
		return domain.IssuanceReceipt{}, nil, err
	}
	return s.norm.Issuance(payload), payload, nil
}

func isStatus(err error, status int) bool {
	var upstreamErr *domain.ErrUpstreamHTTP
	return errors.As(err, &upstreamErr) && upstreamErr.Status == status
}
