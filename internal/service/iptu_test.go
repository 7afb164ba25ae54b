package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/iptu-bfa-go/internal/config"
	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
	"github.com/boddenberg/iptu-bfa-go/internal/port"
	"github.com/boddenberg/iptu-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type reply struct {
	payload any
	err     error
}

type mockUpstream struct {
	configured bool
	replies    map[string]reply
	calls      []port.UpstreamRequest
}

func (m *mockUpstream) JSON(_ context.Context, req port.UpstreamRequest) (any, error) {
	m.calls = append(m.calls, req)
	r, ok := m.replies[req.Path]
	if !ok {
		return nil, &domain.ErrUpstreamHTTP{Status: 404, Payload: map[string]any{}}
	}
	return r.payload, r.err
}

func (m *mockUpstream) Configured() bool { return m.configured }

type mockSig struct {
	configured bool
	payload    any
	err        error
	got        string
}

func (m *mockSig) Search(_ context.Context, doc string) (any, error) {
	m.got = doc
	return m.payload, m.err
}

func (m *mockSig) Configured() bool { return m.configured }

func defaultPaths() config.Paths {
	return config.Paths{
		Imoveis:           "/cadastro/imoveis",
		Debitos:           "/arrecadacao/debitos",
		Pesquisa:          "/arrecadacao/obterDadosImobiliario",
		Simulacao:         "/arrecadacao/simulacao",
		SimulacaoFallback: "/arrecadacao/simulacaoRepactuacao",
		Emitir:            "/arrecadacao/emitir",
		Repactuacao:       "/arrecadacao/simulacaoRepactuacao",
	}
}

func newService(up *mockUpstream, sig *mockSig, opts service.Options) *service.IPTUService {
	if opts.Paths.Imoveis == "" {
		opts.Paths = defaultPaths()
	}
	var s port.SigSearcher
	if sig != nil {
		s = sig
	}
	return service.NewIPTUService(up, s, normalize.New(), opts, zap.NewNop())
}

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func body(t *testing.T, raw string) map[string]any {
	t.Helper()
	return decode(t, raw).(map[string]any)
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	return v.Message
}

// --- Imóveis ---

func TestListProperties_Validation(t *testing.T) {
	up := &mockUpstream{configured: true}
	svc := newService(up, nil, service.Options{})

	tests := []struct {
		name string
		q    domain.PropertyQuery
		want string
	}{
		{"none", domain.PropertyQuery{}, "Informe apenas CPF ou CNPJ."},
		{"both", domain.PropertyQuery{CPF: "123", CNPJ: "456"}, "Informe apenas CPF ou CNPJ."},
		{"short cpf", domain.PropertyQuery{CPF: "123.456"}, "Informe um CPF (11 digitos) ou CNPJ (14 digitos)."},
		{"cnpj with 11 digits", domain.PropertyQuery{CNPJ: "12345678901"}, "Informe um CPF (11 digitos) ou CNPJ (14 digitos)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ListProperties(context.Background(), tt.q)
			if got := validationMessage(t, err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
	if len(up.calls) != 0 {
		t.Errorf("validation failures must not reach upstream, got %d calls", len(up.calls))
	}
}

func TestListProperties_Success(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/cadastro/imoveis": {payload: decode(t, `{"imoveis":[{"inscricaoImobiliaria":"0101","logradouro":"Rua A","bairro":"Centro"},{"foo":"bar"}]}`)},
	}}
	svc := newService(up, nil, service.Options{})

	props, original, err := svc.ListProperties(context.Background(), domain.PropertyQuery{CPF: "123.456.789-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(props) != 1 || props[0].Inscricao != "0101" || props[0].Endereco != "Rua A - Centro" {
		t.Errorf("props = %+v", props)
	}
	if original == nil {
		t.Error("original payload must be returned")
	}
	if got := up.calls[0].Query.Get("cpf"); got != "12345678901" {
		t.Errorf("cpf query = %q", got)
	}
}

func TestListProperties_MissingCredentials(t *testing.T) {
	svc := newService(&mockUpstream{}, nil, service.Options{})

	_, _, err := svc.ListProperties(context.Background(), domain.PropertyQuery{CPF: "12345678901"})
	var cfgErr *domain.ErrAuthConfiguration
	if !errors.As(err, &cfgErr) || cfgErr.Message != service.MsgConsultaIndisponivel {
		t.Fatalf("expected ErrAuthConfiguration, got %v", err)
	}
}

// --- Débitos ---

func TestLookupDebts_NoIdentifier(t *testing.T) {
	up := &mockUpstream{configured: true}
	svc := newService(up, nil, service.Options{})

	_, _, err := svc.LookupDebts(context.Background(), domain.DebtQuery{Inscricao: "abc"})
	if msg := validationMessage(t, err); !strings.HasPrefix(msg, "Dados invalidos.") {
		t.Errorf("message = %q", msg)
	}
	if len(up.calls) != 0 {
		t.Error("validation failure reached upstream")
	}
}

func TestLookupDebts_EmptyUpstream(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/debitos": {payload: decode(t, `[]`)},
	}}
	svc := newService(up, nil, service.Options{})

	lookup, _, err := svc.LookupDebts(context.Background(), domain.DebtQuery{Inscricao: "01.02.0003"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lookup.Resultados) != 0 || lookup.Totais != (domain.DebtTotals{}) {
		t.Errorf("lookup = %+v, want empty with zero totals", lookup)
	}
	if got := up.calls[0].Query.Get("inscricaoImobiliaria"); got != "01020003" {
		t.Errorf("inscricaoImobiliaria = %q", got)
	}
}

func TestLookupDebts_UpstreamError(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/debitos": {err: &domain.ErrUpstreamHTTP{Status: 500, Payload: "boom"}},
	}}
	svc := newService(up, nil, service.Options{})

	_, _, err := svc.LookupDebts(context.Background(), domain.DebtQuery{CCI: "77"})
	var upErr *domain.ErrUpstreamHTTP
	if !errors.As(err, &upErr) || upErr.Status != 500 {
		t.Fatalf("expected upstream 500, got %v", err)
	}
}

// --- Pesquisa ---

func TestSearchProperties_API(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/obterDadosImobiliario": {payload: decode(t, `[{"nome":"Fulano","cci":"99"}]`)},
	}}
	svc := newService(up, &mockSig{configured: true}, service.Options{SearchSource: service.SearchAuto})

	hits, _, err := svc.SearchProperties(context.Background(), domain.SearchRequest{CpfCNPJ: "12.345.678/0001-90", Inscricao: "01-02"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Origem != domain.SourceAPI {
		t.Errorf("hits = %+v", hits)
	}
	q := up.calls[0].Query
	if q.Get("cnpj") != "12345678000190" || q.Get("inscricaoImobiliaria") != "0102" || q.Get("cpf") != "" {
		t.Errorf("query = %v", q)
	}
}

func TestSearchProperties_APIErrors(t *testing.T) {
	svc := newService(&mockUpstream{}, nil, service.Options{SearchSource: service.SearchAPI})
	_, _, err := svc.SearchProperties(context.Background(), domain.SearchRequest{})
	var cfgErr *domain.ErrAuthConfiguration
	if !errors.As(err, &cfgErr) || cfgErr.Message != service.MsgPesquisaIndisponivel {
		t.Fatalf("credentials must be checked first, got %v", err)
	}

	svc = newService(&mockUpstream{configured: true}, nil, service.Options{SearchSource: service.SearchAPI})
	_, _, err = svc.SearchProperties(context.Background(), domain.SearchRequest{CpfCNPJ: "  "})
	if msg := validationMessage(t, err); msg != "Dados invalidos. Informe um parametro de busca." {
		t.Errorf("message = %q", msg)
	}

	_, _, err = svc.SearchProperties(context.Background(), domain.SearchRequest{CCI: "1"})
	if !isUpstreamStatus(err, 404) {
		t.Errorf("expected upstream 404, got %v", err)
	}
}

func TestSearchProperties_SIG(t *testing.T) {
	sig := &mockSig{configured: true, payload: decode(t, `[{"nome":"Fulano","cgc":"12345678901"}]`)}
	svc := newService(&mockUpstream{}, sig, service.Options{SearchSource: service.SearchAuto})

	hits, _, err := svc.SearchProperties(context.Background(), domain.SearchRequest{CpfCNPJ: "123.456.789-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.got != "12345678901" {
		t.Errorf("sig doc = %q", sig.got)
	}
	if len(hits) != 1 || hits[0].Origem != domain.SourceSIG {
		t.Errorf("hits = %+v", hits)
	}

	_, _, err = svc.SearchProperties(context.Background(), domain.SearchRequest{CCI: "1"})
	if msg := validationMessage(t, err); msg != "Informe um CPF ou CNPJ valido." {
		t.Errorf("message = %q", msg)
	}
}

func TestSearchProperties_SIGNotConfigured(t *testing.T) {
	svc := newService(&mockUpstream{}, &mockSig{}, service.Options{SearchSource: service.SearchSIG})

	_, _, err := svc.SearchProperties(context.Background(), domain.SearchRequest{CpfCNPJ: "12345678901"})
	var unavailable *domain.ErrSearchUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

// --- Simulação ---

const validSimulation = `{
	"identificacao": {"inscricaoImobiliaria": " 0101 "},
	"itensSelecionados": [{"id": "d1", "valor": 10.5}],
	"opcoes": {"parcelas": 3, "vencimento": "2026-11-10"}
}`

func TestSimulate_Validation(t *testing.T) {
	svc := newService(&mockUpstream{configured: true}, nil, service.Options{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no identification", `{"identificacao":{},"itensSelecionados":[{"id":"a"}],"opcoes":{"parcelas":1,"vencimento":"2026-01-01"}}`, "Informe inscricaoImobiliaria, cci ou ccp."},
		{"no items", `{"identificacao":{"cci":"1"},"itensSelecionados":[],"opcoes":{"parcelas":1,"vencimento":"2026-01-01"}}`, "Selecione ao menos um debito."},
		{"empty id", `{"identificacao":{"cci":"1"},"itensSelecionados":[{"id":""}],"opcoes":{"parcelas":1,"vencimento":"2026-01-01"}}`, "Identificador do debito obrigatorio."},
		{"negative value", `{"identificacao":{"cci":"1"},"itensSelecionados":[{"id":"a","valor":-1}],"opcoes":{"parcelas":1,"vencimento":"2026-01-01"}}`, "Valor deve ser positivo."},
		{"fractional installments", `{"identificacao":{"cci":"1"},"itensSelecionados":[{"id":"a"}],"opcoes":{"parcelas":2.5,"vencimento":"2026-01-01"}}`, "Parcelas deve ser numero inteiro."},
		{"zero installments", `{"identificacao":{"cci":"1"},"itensSelecionados":[{"id":"a"}],"opcoes":{"parcelas":0,"vencimento":"2026-01-01"}}`, "Minimo de 1 parcela."},
		{"too many installments", `{"identificacao":{"cci":"1"},"itensSelecionados":[{"id":"a"}],"opcoes":{"parcelas":11,"vencimento":"2026-01-01"}}`, "Maximo de 10 parcelas."},
		{"bad date", `{"identificacao":{"cci":"1"},"itensSelecionados":[{"id":"a"}],"opcoes":{"parcelas":1,"vencimento":"01/01/2026"}}`, "Formato de data invalido. Use YYYY-MM-DD."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Simulate(context.Background(), body(t, tt.body))
			if got := validationMessage(t, err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSimulate_FallbackOn404(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/simulacaoRepactuacao": {payload: decode(t, `{"idSimulacao":7,"parcelas":[{"numero":1,"valorDivida":"100,00"}]}`)},
	}}
	svc := newService(up, nil, service.Options{})

	result, _, err := svc.Simulate(context.Background(), body(t, validSimulation))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(up.calls) != 2 || up.calls[1].Path != "/arrecadacao/simulacaoRepactuacao" {
		t.Fatalf("calls = %+v", up.calls)
	}
	if result.TotalSimulado != 100 {
		t.Errorf("total = %v, want 100", result.TotalSimulado)
	}

	sent, ok := up.calls[0].Body.(domain.SimulationRequest)
	if !ok || sent.Identificacao.InscricaoImobiliaria != "0101" || sent.Opcoes.Parcelas != 3 {
		t.Errorf("sent body = %#v", up.calls[0].Body)
	}
}

func TestSimulate_NoFallbackWhenOverridden(t *testing.T) {
	paths := defaultPaths()
	paths.SimulacaoOverridden = true
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/simulacaoRepactuacao": {payload: decode(t, `{}`)},
	}}
	svc := newService(up, nil, service.Options{Paths: paths})

	_, _, err := svc.Simulate(context.Background(), body(t, validSimulation))
	if !isUpstreamStatus(err, 404) {
		t.Fatalf("expected 404, got %v", err)
	}
	if len(up.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(up.calls))
	}
}

func TestSimulate_Mock(t *testing.T) {
	svc := newService(&mockUpstream{}, nil, service.Options{SimulationMock: true})

	result, _, err := svc.Simulate(context.Background(), body(t, validSimulation))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Mock || result.Mensagem != service.MsgSimulacaoMock {
		t.Errorf("result = %+v", result)
	}

	svc = newService(&mockUpstream{}, nil, service.Options{})
	_, _, err = svc.Simulate(context.Background(), body(t, validSimulation))
	var cfgErr *domain.ErrAuthConfiguration
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrAuthConfiguration without mock, got %v", err)
	}
}

func TestSimulateRenegotiation_ErrorMessage(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/simulacaoRepactuacao": {err: &domain.ErrUpstreamHTTP{Status: 400, Payload: "x"}},
	}}
	svc := newService(up, nil, service.Options{})

	_, _, err := svc.SimulateRenegotiation(context.Background(), map[string]any{"cci": "1"})
	var upErr *domain.ErrUpstreamHTTP
	if !errors.As(err, &upErr) || upErr.Message != "Falha na simulação" {
		t.Fatalf("got %v", err)
	}
}

// --- Emissão ---

func TestIssue_IDVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"simulacaoId", `{"simulacaoId":" abc "}`, "abc"},
		{"idSimulacao number", `{"idSimulacao":42}`, "42"},
		{"id", `{"id":"9"}`, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &mockUpstream{configured: true, replies: map[string]reply{
				"/arrecadacao/emitir": {payload: decode(t, `{"dados":{"linhaDigitavel":"8160000"}}`)},
			}}
			svc := newService(up, nil, service.Options{})

			receipt, _, err := svc.Issue(context.Background(), body(t, tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if receipt.LinhaDigitavel != "8160000" {
				t.Errorf("receipt = %+v", receipt)
			}
			sent := up.calls[0].Body.(map[string]any)
			if sent["simulacaoId"] != tt.want || sent["confirmacao"] != true {
				t.Errorf("sent = %v", sent)
			}
		})
	}
}

func TestIssue_KeepsExplicitConfirmation(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{"/arrecadacao/emitir": {payload: map[string]any{}}}}
	svc := newService(up, nil, service.Options{})

	if _, _, err := svc.Issue(context.Background(), body(t, `{"id":1,"confirmacao":false}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent := up.calls[0].Body.(map[string]any); sent["confirmacao"] != false {
		t.Errorf("confirmacao = %v", sent["confirmacao"])
	}
}

func TestIssue_MissingID(t *testing.T) {
	up := &mockUpstream{configured: true}
	svc := newService(up, nil, service.Options{})

	_, _, err := svc.Issue(context.Background(), body(t, `{"simulacaoId":"  "}`))
	if msg := validationMessage(t, err); msg != "Dados invalidos. Informe o identificador da simulacao." {
		t.Errorf("message = %q", msg)
	}
}

func TestIssue_Conflict(t *testing.T) {
	up := &mockUpstream{configured: true, replies: map[string]reply{
		"/arrecadacao/emitir": {err: &domain.ErrUpstreamHTTP{Status: 409, Payload: map[string]any{"erro": "titulo emitido"}}},
	}}
	svc := newService(up, nil, service.Options{})

	_, _, err := svc.Issue(context.Background(), body(t, `{"simulacaoId":"1"}`))
	if !isUpstreamStatus(err, 409) {
		t.Fatalf("expected 409, got %v", err)
	}
	if len(up.calls) != 1 {
		t.Errorf("issuance must not be retried, calls = %d", len(up.calls))
	}
}

func isUpstreamStatus(err error, status int) bool {
	var upErr *domain.ErrUpstreamHTTP
	return errors.As(err, &upErr) && upErr.Status == status
}
