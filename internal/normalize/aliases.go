package normalize

// Table names.
const (
	TableProperty     = "property"
	TableSearch       = "search"
	TableSigSearch    = "sig_search"
	TableDebtProperty = "debt_property"
	TableDebtItem     = "debt_item"
	TableInstallment  = "installment"
	TableSimulation   = "simulation"
	TableIssuance     = "issuance"
	TableAuth         = "auth"
)

// Tables indexes alias tables by name.
type Tables map[string]Table

// Containers lists the keys under which the vendor nests arrays and records.
type Containers struct {
	// PropertyList holds property arrays in cadastro/search responses.
	PropertyList []string `yaml:"property_list"`
	// DebtProperties holds property arrays in debts responses.
	DebtProperties []string `yaml:"debt_properties"`
	// DebtList holds the debt array of a property.
	DebtList []string `yaml:"debt_list"`
	// InstallmentList holds the installment array of a simulation.
	InstallmentList []string `yaml:"installment_list"`
	// Nested holds single objects wrapping the actual record.
	Nested []string `yaml:"nested"`
}

// MaxSearchDepth bounds nested-array discovery.
const MaxSearchDepth = 4

// DefaultContainers returns the built-in container key lists.
func DefaultContainers() Containers {
	return Containers{
		PropertyList:    []string{"imoveis", "dados", "content", "lista", "items", "resultados"},
		DebtProperties:  []string{"imoveis", "resultados", "propriedades"},
		DebtList:        []string{"debitos", "listaDebitos", "debitosImovel", "itens", "items", "lancamentos", "dados", "lista", "content"},
		InstallmentList: []string{"parcelas", "listaParcelas", "simulacao", "itens", "items", "dados", "lista"},
		Nested:          []string{"dados", "resultado", "titulo", "boleto", "emissao", "simulacao"},
	}
}

// DefaultTables returns a fresh copy of the built-in alias tables. Key order
// is priority order.
func DefaultTables() Tables {
	tables := []Table{
		{Name: TableProperty, Aliases: []Alias{
			{Field: "inscricao", Keys: []string{"inscricao", "inscricaoImobiliaria", "inscricaoMunicipal"}},
			{Field: "cci", Keys: []string{"cci", "codigoCci", "numeroCci"}},
			{Field: "ccp", Keys: []string{"ccp", "codigoCcp", "numeroCcp"}},
			{Field: "logradouro", Keys: []string{"endereco", "logradouro", "descricaoEndereco"}},
			{Field: "bairro", Keys: []string{"bairro", "setor"}},
			{Field: "situacao", Keys: []string{"situacao", "status", "situacaoImovel"}},
		}},
		{Name: TableSearch, Aliases: []Alias{
			{Field: "nome", Keys: []string{"nome", "nomeProprietario", "proprietario", "nomeContribuinte"}},
			{Field: "documento", Keys: []string{"cpf", "cnpj", "cpfCnpj", "documento", "cpfCnpjProprietario", "cgc"}, Kind: KindDigits},
			{Field: "cci", Keys: []string{"cci", "codigoCci", "numeroCci", "cadastroCci"}},
			{Field: "ccp", Keys: []string{"ccp", "codigoCcp", "numeroCcp", "cadastroCcp"}},
			{Field: "inscricao", Keys: []string{"inscricao", "inscricaoImobiliaria", "inscricaoMunicipal"}},
			{Field: "logradouro", Keys: []string{"logradouro", "endereco", "descricaoEndereco", "logradouroCobranca"}},
			{Field: "bairro", Keys: []string{"bairro", "bairroCobranca", "nomeBairro"}},
		}},
		{Name: TableSigSearch, Aliases: []Alias{
			{Field: "nome", Keys: []string{"nome", "nomeContribuinte", "proprietario"}},
			{Field: "documento", Keys: []string{"cgc", "cpfCnpj"}, Kind: KindDigits},
			{Field: "cci", Keys: []string{"cci"}},
			{Field: "ccp", Keys: []string{"ccp"}},
			{Field: "inscricao", Keys: []string{"inscricao", "inscricaoImobiliaria"}},
			{Field: "logradouro", Keys: []string{"logradouro", "endereco"}},
			{Field: "bairro", Keys: []string{"bairro"}},
		}},
		{Name: TableDebtProperty, Aliases: []Alias{
			{Field: "inscricao", Keys: []string{"inscricao", "inscricaoImobiliaria", "inscricaoMunicipal"}},
			{Field: "cci", Keys: []string{"cci", "codigoCci", "numeroCci"}},
			{Field: "ccp", Keys: []string{"ccp", "codigoCcp", "numeroCcp"}},
			{Field: "proprietario", Keys: []string{"proprietario", "nomeProprietario", "nome", "nomeContribuinte"}},
			{Field: "documento", Keys: []string{"documento", "cpfCnpj", "cpf", "cnpj", "cgc"}, Kind: KindDigits},
			{Field: "logradouro", Keys: []string{"endereco", "logradouro", "descricaoEndereco"}},
			{Field: "bairro", Keys: []string{"bairro", "nomeBairro"}},
		}},
		{Name: TableDebtItem, Aliases: []Alias{
			{Field: "id", Keys: []string{"id", "idDebito", "codigoDebito", "numeroDuam", "duam", "codigo"}},
			{Field: "tributo", Keys: []string{"tributo", "descricaoTributo", "receita", "descricaoReceita", "tipo", "categoria"}},
			{Field: "exercicio", Keys: []string{"exercicio", "anoExercicio", "ano", "anoBase"}},
			{Field: "vencimento", Keys: []string{"vencimento", "dataVencimento"}},
			{Field: "situacao", Keys: []string{"situacao", "status"}},
			{Field: "principal", Keys: []string{"valorPrincipal", "valorOriginal", "principal", "valorDivida", "valor"}, Kind: KindAmount},
			{Field: "multa", Keys: []string{"valorMulta", "multa"}, Kind: KindAmount},
			{Field: "juros", Keys: []string{"valorJuros", "juros"}, Kind: KindAmount},
			{Field: "correcao", Keys: []string{"valorCorrecao", "correcao", "correcaoMonetaria"}, Kind: KindAmount},
			{Field: "honorarios", Keys: []string{"valorHonorarios", "honorarios"}, Kind: KindAmount},
			{Field: "custas", Keys: []string{"valorCustas", "custas"}, Kind: KindAmount},
			{Field: "expediente", Keys: []string{"valorExpediente", "expediente", "valorOutros", "outros"}, Kind: KindAmount},
			{Field: "total", Keys: []string{"valorAtualizado", "valorTotal", "total", "valorDevido"}, Kind: KindAmount},
		}},
		{Name: TableInstallment, Aliases: []Alias{
			{Field: "parcela", Keys: []string{"parcela", "numeroParcela", "numero", "sequencia"}, Kind: KindInt},
			{Field: "vencimento", Keys: []string{"vencimento", "dataVencimento"}},
			{Field: "divida", Keys: []string{"valorDivida", "valorPrincipal", "principal"}, Kind: KindAmount},
			{Field: "juros", Keys: []string{"valorJuros", "juros"}, Kind: KindAmount},
			{Field: "multa", Keys: []string{"valorMulta", "multa"}, Kind: KindAmount},
			{Field: "correcao", Keys: []string{"valorCorrecao", "correcao"}, Kind: KindAmount},
			{Field: "expediente", Keys: []string{"valorExpediente", "expediente", "taxaExpediente"}, Kind: KindAmount},
			{Field: "saldo", Keys: []string{"valorSaldoDevedor", "saldoDevedor", "saldo"}, Kind: KindAmount},
		}},
		{Name: TableSimulation, Aliases: []Alias{
			{Field: "simulacaoId", Keys: []string{"simulacaoId", "idSimulacao", "codigoSimulacao", "id"}},
			{Field: "mensagem", Keys: []string{"mensagem", "message", "observacao"}},
		}},
		{Name: TableIssuance, Aliases: []Alias{
			{Field: "numeroTitulo", Keys: []string{"numeroTitulo", "numeroDocumento", "numeroDuam", "duam", "nossoNumero"}},
			{Field: "linhaDigitavel", Keys: []string{"linhaDigitavel", "linha_digitavel", "linhaDigitavelBoleto"}},
			{Field: "codigoBarras", Keys: []string{"codigoBarras", "codigo_barras", "codBarras"}},
			{Field: "vencimento", Keys: []string{"vencimento", "dataVencimento"}},
			{Field: "valorTotal", Keys: []string{"valorTotal", "valor", "total"}, Kind: KindAmount},
			{Field: "urlBoleto", Keys: []string{"urlBoleto", "boletoUrl", "linkBoleto", "url"}},
		}},
		{Name: TableAuth, Aliases: []Alias{
			{Field: "token", Keys: []string{"token", "accessToken", "access_token", "bearer"}},
			{Field: "expiresIn", Keys: []string{"expiresIn", "expires_in", "expiresAt"}},
		}},
	}

	out := make(Tables, len(tables))
	for _, t := range tables {
		out[t.Name] = t
	}
	return out
}

// Clone deep-copies the tables.
func (ts Tables) Clone() Tables {
	out := make(Tables, len(ts))
	for name, t := range ts {
		out[name] = t.clone()
	}
	return out
}
