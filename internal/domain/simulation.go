package domain

// ============================================================
// Simulação de parcelamento e emissão de DUAM
// ============================================================

// MaxInstallmentsSummed caps how many installments count towards a
// simulation total.
const MaxInstallmentsSummed = 48

// Identificacao identifies the property in simulation requests.
type Identificacao struct {
	InscricaoImobiliaria string `json:"inscricaoImobiliaria,omitempty"`
	CCI                  string `json:"cci,omitempty"`
	CCP                  string `json:"ccp,omitempty"`
}

// SelectedDebt is a debt chosen for simulation.
type SelectedDebt struct {
	ID    string   `json:"id"`
	Valor *float64 `json:"valor,omitempty"`
}

// SimulationOptions are the installment options.
type SimulationOptions struct {
	Parcelas   int    `json:"parcelas"`
	Vencimento string `json:"vencimento"` // YYYY-MM-DD
}

// SimulationRequest is the body of POST /v1/simulacao.
type SimulationRequest struct {
	Identificacao     Identificacao     `json:"identificacao"`
	ItensSelecionados []SelectedDebt    `json:"itensSelecionados"`
	Opcoes            SimulationOptions `json:"opcoes"`
}

// Installment (parcela) of a simulated plan.
type Installment struct {
	Parcela         int      `json:"parcela"`
	Vencimento      string   `json:"vencimento,omitempty"`
	ValorDivida     float64  `json:"valorDivida"`
	ValorJuros      float64  `json:"valorJuros"`
	ValorMulta      float64  `json:"valorMulta"`
	ValorCorrecao   float64  `json:"valorCorrecao"`
	ValorExpediente float64  `json:"valorExpediente"`
	SaldoDevedor    *float64 `json:"valorSaldoDevedor,omitempty"`
	Total           float64  `json:"total"`
}

// SimulationResult is the normalized simulation response.
type SimulationResult struct {
	SimulacaoID   string        `json:"simulacaoId,omitempty"`
	Parcelas      []Installment `json:"parcelas"`
	TotalSimulado float64       `json:"totalSimulado"`
	Mensagem      string        `json:"mensagem,omitempty"`
	Mock          bool          `json:"isMock,omitempty"`
}

// IssuanceRequest is the body of POST /v1/emissao. Raw keeps every field the
// caller sent; they are forwarded upstream untouched.
type IssuanceRequest struct {
	SimulacaoID string
	Raw         map[string]any
}

// IssuanceReceipt is the normalized DUAM issuance response.
type IssuanceReceipt struct {
	NumeroTitulo   string  `json:"numeroTitulo,omitempty"`
	LinhaDigitavel string  `json:"linhaDigitavel,omitempty"`
	CodigoBarras   string  `json:"codigoBarras,omitempty"`
	Vencimento     string  `json:"vencimento,omitempty"`
	ValorTotal     float64 `json:"valorTotal,omitempty"`
	URLBoleto      string  `json:"urlBoleto,omitempty"`
}
