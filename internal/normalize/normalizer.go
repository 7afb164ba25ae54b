package normalize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
)

// Normalizer maps vendor payloads (decoded JSON trees) to domain records.
// It is safe for concurrent use; the tables are never mutated.
type Normalizer struct {
	tables     Tables
	containers Containers
}

// New creates a Normalizer with the built-in tables.
func New() *Normalizer {
	return &Normalizer{tables: DefaultTables(), containers: DefaultContainers()}
}

// NewWithOverrides creates a Normalizer with the built-in tables patched by o.
func NewWithOverrides(o *Overrides) (*Normalizer, error) {
	if o == nil {
		return New(), nil
	}
	tables, containers, err := o.Apply(DefaultTables(), DefaultContainers())
	if err != nil {
		return nil, err
	}
	return &Normalizer{tables: tables, containers: containers}, nil
}

// Table returns the alias table called name.
func (n *Normalizer) Table(name string) Table {
	return n.tables[name]
}

// ============================================================
// Imóveis
// ============================================================

// Properties normalizes a cadastro response. Entries without any identifier
// are dropped.
func (n *Normalizer) Properties(payload any) []domain.PropertySummary {
	t := n.tables[TableProperty]
	out := make([]domain.PropertySummary, 0)
	for _, rec := range records(EnsureArray(payload, n.containers.PropertyList)) {
		v := t.Extract(rec)
		p := domain.PropertySummary{
			Inscricao: v.Str("inscricao"),
			CCI:       v.Str("cci"),
			CCP:       v.Str("ccp"),
			Endereco:  joinNonEmpty(" - ", v.Str("logradouro"), v.Str("bairro")),
			Situacao:  v.Str("situacao"),
		}
		if p.HasIdentifier() {
			out = append(out, p)
		}
	}
	return out
}

// SearchHits normalizes an API-mode property search response.
func (n *Normalizer) SearchHits(payload any) []domain.PropertySearchHit {
	t := n.tables[TableSearch]
	out := make([]domain.PropertySearchHit, 0)
	for _, rec := range records(EnsureArray(payload, n.containers.PropertyList)) {
		hit := searchHit(t.Extract(rec), domain.SourceAPI)
		if hit.Nome != "" || hit.CCI != "" || hit.CCP != "" || hit.Inscricao != "" || hit.CGC != "" {
			out = append(out, hit)
		}
	}
	return out
}

// SigHits normalizes a legacy SIG search response, which is always a bare
// array.
func (n *Normalizer) SigHits(payload any) []domain.PropertySearchHit {
	t := n.tables[TableSigSearch]
	items, _ := payload.([]any)
	out := make([]domain.PropertySearchHit, 0, len(items))
	for _, rec := range records(items) {
		out = append(out, searchHit(t.Extract(rec), domain.SourceSIG))
	}
	return out
}

func searchHit(v Values, origem string) domain.PropertySearchHit {
	return domain.PropertySearchHit{
		Nome:       v.Str("nome"),
		CGC:        v.Str("documento"),
		CCI:        v.Str("cci"),
		CCP:        v.Str("ccp"),
		Inscricao:  v.Str("inscricao"),
		Logradouro: v.Str("logradouro"),
		Bairro:     v.Str("bairro"),
		Origem:     origem,
	}
}

// ============================================================
// Débitos
// ============================================================

// Debts normalizes a debts response. Three dialects are understood: a list
// of properties each nesting its debts, a single property object nesting its
// debts, and a flat list of debt items (grouped under the queried property).
func (n *Normalizer) Debts(payload any, q domain.DebtQuery) domain.DebtLookup {
	var (
		props []domain.PropertyDebts
		flat  []map[string]any
	)
	for _, rec := range n.debtPropertyRecords(payload) {
		n.collectDebts(rec, 1, &props, &flat)
	}
	if len(flat) > 0 {
		props = append(props, n.debtProperty(flat[0], flat))
	}
	if len(props) == 1 {
		fillFromQuery(&props[0], q)
	}

	lookup := domain.DebtLookup{Resultados: make([]domain.PropertyDebts, 0, len(props))}
	for _, p := range props {
		lookup.Totais.Merge(p.Totais)
		lookup.Resultados = append(lookup.Resultados, p)
	}
	lookup.Totais = roundTotals(lookup.Totais)
	return lookup
}

func (n *Normalizer) debtPropertyRecords(payload any) []map[string]any {
	switch t := payload.(type) {
	case []any:
		return records(t)
	case map[string]any:
		for _, k := range n.containers.DebtProperties {
			if arr, ok := t[k].([]any); ok {
				return records(arr)
			}
		}
		return []map[string]any{t}
	default:
		return nil
	}
}

func (n *Normalizer) collectDebts(rec map[string]any, depth int, props *[]domain.PropertyDebts, flat *[]map[string]any) {
	if arr := FindArray(rec, n.containers.DebtList, MaxSearchDepth); arr != nil {
		items := records(arr)
		if depth < MaxSearchDepth && len(items) > 0 && n.isPropertyRecord(items[0]) {
			for _, item := range items {
				n.collectDebts(item, depth+1, props, flat)
			}
			return
		}
		*props = append(*props, n.debtProperty(rec, items))
		return
	}
	if n.isDebtRecord(rec) {
		*flat = append(*flat, rec)
		return
	}
	p := n.debtProperty(rec, nil)
	if p.Inscricao != "" || p.CCI != "" || p.CCP != "" {
		*props = append(*props, p)
	}
}

// isDebtRecord reports whether rec carries any monetary debt field.
func (n *Normalizer) isDebtRecord(rec map[string]any) bool {
	t := n.tables[TableDebtItem]
	for _, field := range []string{"principal", "total", "multa", "juros"} {
		if t.Has(field, rec) {
			return true
		}
	}
	return false
}

// isPropertyRecord reports whether rec is a property wrapping its own debts.
func (n *Normalizer) isPropertyRecord(rec map[string]any) bool {
	return !n.isDebtRecord(rec) && FindArray(rec, n.containers.DebtList, 2) != nil
}

func (n *Normalizer) debtProperty(rec map[string]any, items []map[string]any) domain.PropertyDebts {
	v := n.tables[TableDebtProperty].Extract(rec)
	p := domain.PropertyDebts{
		Inscricao:    v.Str("inscricao"),
		CCI:          v.Str("cci"),
		CCP:          v.Str("ccp"),
		Proprietario: v.Str("proprietario"),
		Documento:    v.Str("documento"),
		Endereco:     joinNonEmpty(" - ", v.Str("logradouro"), v.Str("bairro")),
		Debitos:      make([]domain.DebtItem, 0, len(items)),
	}
	for i, item := range items {
		d := n.DebtItem(item, i+1)
		p.Debitos = append(p.Debitos, d)
		p.Totais.Add(d)
	}
	p.Totais = roundTotals(p.Totais)
	return p
}

// DebtItem normalizes one debt record; seq numbers generated ids.
func (n *Normalizer) DebtItem(rec map[string]any, seq int) domain.DebtItem {
	v := n.tables[TableDebtItem].Extract(rec)

	id := v.Str("id")
	if id == "" {
		id = fmt.Sprintf("debito-%d", seq)
	}

	principal := v.AmountOr("principal")
	multa := v.AmountOr("multa")
	juros := v.AmountOr("juros")
	extras := v.AmountOr("correcao") + v.AmountOr("honorarios") + v.AmountOr("custas") + v.AmountOr("expediente")
	explicit, hasTotal := v.Amount("total")
	outros, total := Reconcile(principal, multa, juros, extras, explicit, hasTotal)

	return domain.DebtItem{
		ID:         id,
		Tributo:    v.Str("tributo"),
		Exercicio:  v.Str("exercicio"),
		Vencimento: v.Str("vencimento"),
		Situacao:   v.Str("situacao"),
		Principal:  round2(principal),
		Multa:      round2(multa),
		Juros:      round2(juros),
		Outros:     outros,
		Total:      total,
	}
}

// Reconcile derives the other-charges and total of a debt item.
//
// Without an explicit total, total = principal + fine + interest + extras.
// With one, the explicit total wins, other-charges absorbs whatever the
// declared components leave unexplained, and the total is never allowed
// below the sum of its components.
func Reconcile(principal, fine, interest, extras, explicitTotal float64, hasTotal bool) (other, total float64) {
	base := principal + fine + interest
	other = extras
	if !hasTotal {
		return round2(other), round2(base + other)
	}
	if residual := explicitTotal - base; residual > other {
		other = residual
	}
	total = explicitTotal
	if floor := base + other; total < floor {
		total = floor
	}
	return round2(other), round2(total)
}

func fillFromQuery(p *domain.PropertyDebts, q domain.DebtQuery) {
	if p.Inscricao == "" {
		p.Inscricao = q.Inscricao
	}
	if p.CCI == "" {
		p.CCI = q.CCI
	}
	if p.CCP == "" {
		p.CCP = q.CCP
	}
	if p.Documento == "" {
		p.Documento = q.Documento()
	}
}

func roundTotals(t domain.DebtTotals) domain.DebtTotals {
	return domain.DebtTotals{
		Principal: round2(t.Principal),
		Multa:     round2(t.Multa),
		Juros:     round2(t.Juros),
		Outros:    round2(t.Outros),
		Total:     round2(t.Total),
	}
}

// ============================================================
// Simulação
// ============================================================

// Simulation normalizes a simulation response.
func (n *Normalizer) Simulation(payload any) domain.SimulationResult {
	recs := withNested(AsRecord(payload), n.containers.Nested)
	v := n.tables[TableSimulation].Extract(recs...)

	parcelas := n.Installments(payload)
	var total float64
	for i, p := range parcelas {
		if i >= domain.MaxInstallmentsSummed {
			break
		}
		total += p.Total
	}

	return domain.SimulationResult{
		SimulacaoID:   v.Str("simulacaoId"),
		Parcelas:      parcelas,
		TotalSimulado: round2(total),
		Mensagem:      v.Str("mensagem"),
	}
}

// Installments extracts the installment list from a simulation payload.
func (n *Normalizer) Installments(payload any) []domain.Installment {
	var items []any
	switch t := payload.(type) {
	case []any:
		items = t
	default:
		items = FindArray(payload, n.containers.InstallmentList, MaxSearchDepth)
	}

	t := n.tables[TableInstallment]
	out := make([]domain.Installment, 0, len(items))
	for i, rec := range records(items) {
		v := t.Extract(rec)
		num, ok := v.Int("parcela")
		if !ok {
			num = i + 1
		}
		inst := domain.Installment{
			Parcela:         num,
			Vencimento:      v.Str("vencimento"),
			ValorDivida:     round2(v.AmountOr("divida")),
			ValorJuros:      round2(v.AmountOr("juros")),
			ValorMulta:      round2(v.AmountOr("multa")),
			ValorCorrecao:   round2(v.AmountOr("correcao")),
			ValorExpediente: round2(v.AmountOr("expediente")),
		}
		if saldo, ok := v.Amount("saldo"); ok {
			saldo = round2(saldo)
			inst.SaldoDevedor = &saldo
		}
		inst.Total = round2(inst.ValorDivida + inst.ValorJuros + inst.ValorMulta + inst.ValorCorrecao + inst.ValorExpediente)
		out = append(out, inst)
	}
	return out
}

// ============================================================
// Emissão
// ============================================================

// Issuance normalizes a DUAM issuance response. Fields are looked up in the
// payload first, then in the nested wrapper objects.
func (n *Normalizer) Issuance(payload any) domain.IssuanceReceipt {
	rec := AsRecord(payload)
	if arr, ok := payload.([]any); ok && len(arr) > 0 {
		rec = AsRecord(arr[0])
	}
	v := n.tables[TableIssuance].Extract(withNested(rec, n.containers.Nested)...)
	return domain.IssuanceReceipt{
		NumeroTitulo:   v.Str("numeroTitulo"),
		LinhaDigitavel: v.Str("linhaDigitavel"),
		CodigoBarras:   v.Str("codigoBarras"),
		Vencimento:     v.Str("vencimento"),
		ValorTotal:     round2(v.AmountOr("valorTotal")),
		URLBoleto:      v.Str("urlBoleto"),
	}
}

// ============================================================
// Autenticação
// ============================================================

// Token extracts the bearer token and its lifetime from an authentication
// response. ttl is zero when no usable expiry field exists.
func (n *Normalizer) Token(payload any) (token string, ttl time.Duration) {
	recs := withNested(AsRecord(payload), []string{"dados"})
	v := n.tables[TableAuth].Extract(recs...)
	token = v.Str("token")
	if raw := v.Str("expiresIn"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			ttl = time.Duration(secs * float64(time.Second))
		}
	}
	return token, ttl
}
