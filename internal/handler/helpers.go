package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// Caller-facing messages.
const (
	msgDadosInvalidos      = "Dados invalidos. Revise os campos."
	msgSessaoExpirada      = "Sessao expirada. Tente novamente."
	msgNaoEncontrado       = "Registro nao encontrado."
	msgConflito            = "Conflito: titulo ja emitido."
	msgIndisponivel        = "Servico indisponivel. Tente novamente em alguns minutos."
	msgErroInterno         = "Erro interno. Tente novamente mais tarde."
	msgPesquisaSig         = "Pesquisa por CPF/CNPJ requer credenciais. Use CCI/CCP/DUAM."
	msgMuitasRequisicoes   = "Muitas requisicoes. Aguarde e tente novamente."
	msgMetodoNaoSuportado  = "Metodo nao suportado"
	msgOrigemNaoAutorizada = "Origem nao autorizada"
	msgCorpoInvalido       = "Dados invalidos. Corpo da requisicao deve ser JSON."
)

// upstreamMessages maps upstream statuses to caller-facing text; anything
// else gets msgIndisponivel.
var upstreamMessages = map[int]string{
	http.StatusBadRequest:          msgDadosInvalidos,
	http.StatusUnauthorized:        msgSessaoExpirada,
	http.StatusNotFound:            msgNaoEncontrado,
	http.StatusConflict:            msgConflito,
	http.StatusUnprocessableEntity: msgDadosInvalidos,
}

// upstreamStatusMessage returns the caller-facing status and message for an
// upstream status: valid error statuses are preserved, others become 502.
func upstreamStatusMessage(status int) (int, string) {
	msg, ok := upstreamMessages[status]
	if !ok {
		msg = msgIndisponivel
	}
	if status < 400 || status > 599 {
		return http.StatusBadGateway, msg
	}
	return status, msg
}

type listEnvelope struct {
	CorrelationID string             `json:"correlationId"`
	Resultados    any                `json:"resultados"`
	Totais        *domain.DebtTotals `json:"totais,omitempty"`
	Original      any                `json:"original"`
}

type itemEnvelope struct {
	CorrelationID string `json:"correlationId"`
	Resultado     any    `json:"resultado"`
	Original      any    `json:"original"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, details any) {
	writeErrorStatus(w, r, status, status, msg, details)
}

// writeErrorStatus writes an error whose body status differs from the HTTP
// status, as when an upstream status is normalized to 502.
func writeErrorStatus(w http.ResponseWriter, r *http.Request, httpStatus, bodyStatus int, msg string, details any) {
	writeJSON(w, httpStatus, domain.ErrorResponse{
		Message:       msg,
		Details:       details,
		Status:        bodyStatus,
		CorrelationID: observability.CorrelationID(r.Context()),
	})
}

// decodeBody reads a JSON object body with numbers kept as json.Number.
// An empty body yields an empty object.
func decodeBody(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.UseNumber()

	body := map[string]any{}
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return body, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// retryAfterSeconds rounds d up to whole seconds, never below 1.
func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var authConfig *domain.ErrAuthConfiguration
	var upstream *domain.ErrUpstreamHTTP
	var authFailure *domain.ErrAuthentication
	var network *domain.ErrNetwork
	var circuitOpen *domain.ErrCircuitOpen
	var searchUnavailable *domain.ErrSearchUnavailable
	var notFound *domain.ErrNotFound
	var rateLimited *domain.ErrRateLimited

	correlation := zap.String("correlation_id", observability.CorrelationID(r.Context()))

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), correlation)
		writeError(w, r, http.StatusBadRequest, validation.Message, validation.Details)
	case errors.As(err, &authConfig):
		logger.Warn("prodata credentials not configured", correlation)
		msg := authConfig.Message
		if msg == "" {
			msg = service.MsgConsultaIndisponivel
		}
		writeError(w, r, http.StatusServiceUnavailable, msg, nil)
	case errors.As(err, &upstream):
		status, msg := upstreamStatusMessage(upstream.Status)
		if upstream.Message != "" {
			msg = upstream.Message
		}
		logger.Warn("upstream error", zap.String("error", err.Error()), zap.Int("status", upstream.Status), correlation)
		writeErrorStatus(w, r, status, upstream.Status, msg, upstream.Payload)
	case errors.As(err, &searchUnavailable):
		logger.Warn("search source not configured", zap.String("source", searchUnavailable.Source), correlation)
		writeError(w, r, http.StatusNotImplemented, msgPesquisaSig, nil)
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err), correlation)
		writeError(w, r, http.StatusServiceUnavailable, msgIndisponivel, nil)
	case errors.As(err, &authFailure):
		logger.Error("prodata authentication failed", zap.Int("status", authFailure.Status), correlation)
		writeError(w, r, http.StatusBadGateway, msgIndisponivel, nil)
	case errors.As(err, &network):
		logger.Error("upstream unreachable", zap.Error(err), correlation)
		writeError(w, r, http.StatusBadGateway, msgIndisponivel, nil)
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()), correlation)
		writeError(w, r, http.StatusNotFound, msgNaoEncontrado, nil)
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", retryAfterSeconds(rateLimited.RetryAfter))
		writeError(w, r, http.StatusTooManyRequests, msgMuitasRequisicoes, nil)
	default:
		logger.Error("unhandled error", zap.Error(err), correlation)
		writeError(w, r, http.StatusInternalServerError, msgErroInterno, nil)
	}
}
