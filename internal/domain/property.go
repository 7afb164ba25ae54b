package domain

// ============================================================
// Imóveis (cadastro imobiliário)
// ============================================================

// PropertySummary is a property returned by the cadastro lookup
// (GET /v1/imoveis). Every field is optional: the vendor populates them
// inconsistently.
type PropertySummary struct {
	Inscricao string `json:"inscricao,omitempty"` // registration number
	CCI       string `json:"cci,omitempty"`
	CCP       string `json:"ccp,omitempty"`
	Endereco  string `json:"endereco,omitempty"`
	Situacao  string `json:"situacao,omitempty"`
}

// HasIdentifier reports whether the property carries any usable identifier.
func (p PropertySummary) HasIdentifier() bool {
	return p.Inscricao != "" || p.CCI != "" || p.CCP != ""
}

// Search sources.
const (
	SourceAPI = "api"
	SourceSIG = "sig"
)

// PropertySearchHit is a property found by POST /v1/imoveis/pesquisa.
type PropertySearchHit struct {
	Nome       string `json:"nome,omitempty"`
	CGC        string `json:"cgc,omitempty"` // CPF/CNPJ digits
	CCI        string `json:"cci,omitempty"`
	CCP        string `json:"ccp,omitempty"`
	Inscricao  string `json:"inscricao,omitempty"`
	Logradouro string `json:"logradouro,omitempty"`
	Bairro     string `json:"bairro,omitempty"`
	Origem     string `json:"origem"` // api | sig
}

// PropertyQuery selects properties by taxpayer document.
type PropertyQuery struct {
	CPF  string
	CNPJ string
}

// SearchRequest is the body of POST /v1/imoveis/pesquisa.
type SearchRequest struct {
	CpfCNPJ   string `json:"cpfCNPJ,omitempty"`
	Inscricao string `json:"inscricao,omitempty"`
	CCI       string `json:"cci,omitempty"`
	CCP       string `json:"ccp,omitempty"`
}
