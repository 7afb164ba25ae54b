package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
)

const (
	maxParcelas = 10
	minParcelas = 1
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// fieldErrors collects validation messages per field, keeping the order in
// which fields failed.
type fieldErrors struct {
	order  []string
	errors map[string][]string
}

func (f *fieldErrors) add(field, msg string) {
	if f.errors == nil {
		f.errors = make(map[string][]string)
	}
	if _, ok := f.errors[field]; !ok {
		f.order = append(f.order, field)
	}
	f.errors[field] = append(f.errors[field], msg)
}

// err returns nil when nothing failed, else an ErrValidation whose message
// is the first failure and whose details carry every field message.
func (f *fieldErrors) err() error {
	if len(f.order) == 0 {
		return nil
	}
	first := f.order[0]
	return &domain.ErrValidation{
		Field:   first,
		Message: f.errors[first][0],
		Details: map[string]any{"fieldErrors": f.errors},
	}
}

func invalid(field, msg string) *domain.ErrValidation {
	return &domain.ErrValidation{Field: field, Message: msg}
}

// validatePropertyQuery requires exactly one of CPF/CNPJ with the right
// number of digits. The returned query holds digits only.
func validatePropertyQuery(q domain.PropertyQuery) (domain.PropertyQuery, error) {
	cpf := strings.TrimSpace(q.CPF)
	cnpj := strings.TrimSpace(q.CNPJ)
	if (cpf == "") == (cnpj == "") {
		return q, invalid("documento", "Informe apenas CPF ou CNPJ.")
	}

	out := domain.PropertyQuery{}
	if d := normalize.SanitizeDigits(cpf); len(d) == 11 {
		out.CPF = d
	}
	if d := normalize.SanitizeDigits(cnpj); len(d) == 14 {
		out.CNPJ = d
	}
	if out.CPF == "" && out.CNPJ == "" {
		return q, invalid("documento", "Informe um CPF (11 digitos) ou CNPJ (14 digitos).")
	}
	return out, nil
}

// validateDebtQuery sanitizes every identifier to digits and requires at
// least one of them.
func validateDebtQuery(q domain.DebtQuery) (domain.DebtQuery, error) {
	out := domain.DebtQuery{
		Inscricao: normalize.SanitizeDigits(q.Inscricao),
		CCI:       normalize.SanitizeDigits(q.CCI),
		CCP:       normalize.SanitizeDigits(q.CCP),
	}
	if d := normalize.SanitizeDigits(q.CPF); len(d) == 11 {
		out.CPF = d
	}
	if d := normalize.SanitizeDigits(q.CNPJ); len(d) == 14 {
		out.CNPJ = d
	}
	if out.Empty() {
		return out, invalid("identificacao", "Dados invalidos. Informe inscricao, CCI, CCP, CPF ou CNPJ.")
	}
	return out, nil
}

// parseSimulationRequest validates a raw simulation body and converts it to
// its typed form. Numbers are expected as json.Number or float64.
func parseSimulationRequest(body map[string]any) (domain.SimulationRequest, error) {
	var req domain.SimulationRequest
	var fe fieldErrors

	id := normalize.AsRecord(body["identificacao"])
	req.Identificacao = domain.Identificacao{
		InscricaoImobiliaria: trimmed(id["inscricaoImobiliaria"]),
		CCI:                  trimmed(id["cci"]),
		CCP:                  trimmed(id["ccp"]),
	}
	if req.Identificacao == (domain.Identificacao{}) {
		fe.add("identificacao", "Informe inscricaoImobiliaria, cci ou ccp.")
	}

	items, _ := body["itensSelecionados"].([]any)
	if len(items) == 0 {
		fe.add("itensSelecionados", "Selecione ao menos um debito.")
	}
	for _, raw := range items {
		item := normalize.AsRecord(raw)
		sel := domain.SelectedDebt{}
		if s, ok := item["id"].(string); ok && s != "" {
			sel.ID = s
		} else {
			fe.add("itensSelecionados", "Identificador do debito obrigatorio.")
		}
		if v, present := item["valor"]; present && v != nil {
			f, ok := number(v)
			switch {
			case !ok:
				fe.add("itensSelecionados", "Valor deve ser numerico.")
			case f <= 0:
				fe.add("itensSelecionados", "Valor deve ser positivo.")
			default:
				sel.Valor = &f
			}
		}
		req.ItensSelecionados = append(req.ItensSelecionados, sel)
	}

	opcoes := normalize.AsRecord(body["opcoes"])
	if v, present := opcoes["parcelas"]; !present || v == nil {
		fe.add("opcoes.parcelas", "Informe a quantidade de parcelas.")
	} else if f, ok := number(v); !ok || f != float64(int(f)) {
		fe.add("opcoes.parcelas", "Parcelas deve ser numero inteiro.")
	} else if f < minParcelas {
		fe.add("opcoes.parcelas", "Minimo de 1 parcela.")
	} else if f > maxParcelas {
		fe.add("opcoes.parcelas", "Maximo de 10 parcelas.")
	} else {
		req.Opcoes.Parcelas = int(f)
	}

	if s, ok := opcoes["vencimento"].(string); !ok {
		fe.add("opcoes.vencimento", "Informe a data de vencimento.")
	} else if !isoDate.MatchString(s) {
		fe.add("opcoes.vencimento", "Formato de data invalido. Use YYYY-MM-DD.")
	} else {
		req.Opcoes.Vencimento = s
	}

	return req, fe.err()
}

// parseIssuanceRequest extracts the simulation id from simulacaoId,
// idSimulacao or id (first one present wins) and builds the upstream
// payload: confirmacao defaults to true, every other field is forwarded.
func parseIssuanceRequest(body map[string]any) (domain.IssuanceRequest, error) {
	var raw any
	for _, k := range []string{"simulacaoId", "idSimulacao", "id"} {
		if v, ok := body[k]; ok && v != nil {
			raw = v
			break
		}
	}

	var id string
	switch v := raw.(type) {
	case json.Number:
		id = v.String()
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		id = strings.TrimSpace(v)
	}
	if id == "" {
		return domain.IssuanceRequest{}, invalid("simulacaoId", "Dados invalidos. Informe o identificador da simulacao.")
	}

	payload := make(map[string]any, len(body)+2)
	for k, v := range body {
		payload[k] = v
	}
	if v, ok := payload["confirmacao"]; !ok || v == nil {
		payload["confirmacao"] = true
	}
	payload["simulacaoId"] = id

	return domain.IssuanceRequest{SimulacaoID: id, Raw: payload}, nil
}

func trimmed(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
