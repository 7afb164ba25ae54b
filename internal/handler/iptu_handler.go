package handler

import (
	"net/http"
	"net/url"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
	"github.com/boddenberg/iptu-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Imóveis: GET /v1/imoveis?cpf=|cnpj=
// ============================================================

func listPropertiesHandler(svc *service.IPTUService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/imoveis")
		defer span.End()

		q := r.URL.Query()
		props, original, err := svc.ListProperties(ctx, domain.PropertyQuery{CPF: q.Get("cpf"), CNPJ: q.Get("cnpj")})
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, listEnvelope{
			CorrelationID: observability.CorrelationID(ctx),
			Resultados:    nonNil(props),
			Original:      original,
		})
	}
}

// ============================================================
// Pesquisa: POST /v1/imoveis/pesquisa
// ============================================================

func searchPropertiesHandler(svc *service.IPTUService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/imoveis/pesquisa")
		defer span.End()

		body, err := decodeBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, msgCorpoInvalido, nil)
			return
		}
		req := domain.SearchRequest{
			CpfCNPJ:   normalize.SanitizeString(body["cpfCNPJ"]),
			Inscricao: normalize.SanitizeString(body["inscricao"]),
			CCI:       normalize.SanitizeString(body["cci"]),
			CCP:       normalize.SanitizeString(body["ccp"]),
		}

		hits, original, err := svc.SearchProperties(ctx, req)
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("pesquisa.hits", len(hits)))

		writeJSON(w, http.StatusOK, listEnvelope{
			CorrelationID: observability.CorrelationID(ctx),
			Resultados:    nonNil(hits),
			Original:      original,
		})
	}
}

// ============================================================
// Débitos: GET /v1/debitos
// ============================================================

func lookupDebtsHandler(svc *service.IPTUService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debitos")
		defer span.End()

		q := r.URL.Query()
		lookup, original, err := svc.LookupDebts(ctx, domain.DebtQuery{
			Inscricao: firstParam(q, "inscricaoImobiliaria", "inscricao"),
			CCI:       q.Get("cci"),
			CCP:       q.Get("ccp"),
			CPF:       q.Get("cpf"),
			CNPJ:      q.Get("cnpj"),
		})
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}

		totais := lookup.Totais
		writeJSON(w, http.StatusOK, listEnvelope{
			CorrelationID: observability.CorrelationID(ctx),
			Resultados:    nonNil(lookup.Resultados),
			Totais:        &totais,
			Original:      original,
		})
	}
}

// firstParam returns the first non-empty value among keys.
func firstParam(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// ============================================================
// Simulação: POST /v1/simulacao
// ============================================================

func simulateHandler(svc *service.IPTUService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/simulacao")
		defer span.End()

		body, err := decodeBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, msgCorpoInvalido, nil)
			return
		}

		result, original, err := svc.Simulate(ctx, body)
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}

		if result.Mock {
			writeJSON(w, http.StatusOK, map[string]any{
				"correlationId": observability.CorrelationID(ctx),
				"modo":          "mock",
				"message":       result.Mensagem,
			})
			return
		}

		result.Parcelas = nonNil(result.Parcelas)
		writeJSON(w, http.StatusOK, itemEnvelope{
			CorrelationID: observability.CorrelationID(ctx),
			Resultado:     result,
			Original:      original,
		})
	}
}

// ============================================================
// Repactuação: POST /v1/simulacao/repactuacao
// ============================================================

func renegotiationHandler(svc *service.IPTUService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/simulacao/repactuacao")
		defer span.End()

		body, err := decodeBody(r)
		if err != nil {
			// Malformed bodies are forwarded as an empty object.
			body = map[string]any{}
		}

		parcelas, original, err := svc.SimulateRenegotiation(ctx, body)
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, listEnvelope{
			CorrelationID: observability.CorrelationID(ctx),
			Resultados:    nonNil(parcelas),
			Original:      original,
		})
	}
}

// ============================================================
// Emissão: POST /v1/emissao
// ============================================================

func issueHandler(svc *service.IPTUService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/emissao")
		defer span.End()

		body, err := decodeBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, msgCorpoInvalido, nil)
			return
		}

		receipt, original, err := svc.Issue(ctx, body)
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, itemEnvelope{
			CorrelationID: observability.CorrelationID(ctx),
			Resultado:     receipt,
			Original:      original,
		})
	}
}
