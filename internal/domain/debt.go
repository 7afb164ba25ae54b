package domain

// ============================================================
// Débitos (IPTU debts)
// ============================================================

// DebtQuery identifies whose debts to fetch. At least one field must be set.
type DebtQuery struct {
	Inscricao string
	CCI       string
	CCP       string
	CPF       string
	CNPJ      string
}

// Empty reports whether no identifying parameter was supplied.
func (q DebtQuery) Empty() bool {
	return q.Inscricao == "" && q.CCI == "" && q.CCP == "" && q.CPF == "" && q.CNPJ == ""
}

// Documento returns whichever taxpayer document was supplied.
func (q DebtQuery) Documento() string {
	if q.CPF != "" {
		return q.CPF
	}
	return q.CNPJ
}

// DebtItem is one debt line of a property.
// Invariant: Total >= Principal + Multa + Juros + Outros.
type DebtItem struct {
	ID         string  `json:"id"`
	Tributo    string  `json:"tributo,omitempty"` // category
	Exercicio  string  `json:"exercicio,omitempty"`
	Vencimento string  `json:"vencimento,omitempty"`
	Situacao   string  `json:"situacao,omitempty"`
	Principal  float64 `json:"principal"`
	Multa      float64 `json:"multa"`
	Juros      float64 `json:"juros"`
	// Outros aggregates correção, honorários, custas and expediente.
	Outros float64 `json:"outros"`
	Total  float64 `json:"total"`
}

// DebtTotals sums the monetary components of a set of debts.
type DebtTotals struct {
	Principal float64 `json:"principal"`
	Multa     float64 `json:"multa"`
	Juros     float64 `json:"juros"`
	Outros    float64 `json:"outros"`
	Total     float64 `json:"total"`
}

// Add accumulates an item into the totals.
func (t *DebtTotals) Add(item DebtItem) {
	t.Principal += item.Principal
	t.Multa += item.Multa
	t.Juros += item.Juros
	t.Outros += item.Outros
	t.Total += item.Total
}

// Merge accumulates another set of totals.
func (t *DebtTotals) Merge(other DebtTotals) {
	t.Principal += other.Principal
	t.Multa += other.Multa
	t.Juros += other.Juros
	t.Outros += other.Outros
	t.Total += other.Total
}

// PropertyDebts is the debt breakdown of one property.
type PropertyDebts struct {
	Inscricao    string     `json:"inscricao,omitempty"`
	CCI          string     `json:"cci,omitempty"`
	CCP          string     `json:"ccp,omitempty"`
	Proprietario string     `json:"proprietario,omitempty"`
	Documento    string     `json:"documento,omitempty"`
	Endereco     string     `json:"endereco,omitempty"`
	Debitos      []DebtItem `json:"debitos"`
	Totais       DebtTotals `json:"totais"`
}

// DebtLookup is the normalized result of a debts query.
type DebtLookup struct {
	Resultados []PropertyDebts `json:"resultados"`
	Totais     DebtTotals      `json:"totais"`
}
