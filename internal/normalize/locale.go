package normalize

import (
	"sort"
	"strings"
)

// Locale holds the regional word lists the aggressive rules and the context
// extractor consult. Swapping the locale swaps the rule table.
type Locale struct {
	PluralForms       map[string]string
	Name              string
	LocationWords     []string
	PaymentKeywords   []string
	ProcessorPrefixes []string
}

// BrazilianLocale returns the default word lists for Brazilian statements.
func BrazilianLocale() Locale {
	return Locale{
		Name: "pt-BR",
		PluralForms: map[string]string{
			"CARTOES":        "CARTAO",
			"SERVICOS":       "SERVICO",
			"PAGAMENTOS":     "PAGAMENTO",
			"COMPRAS":        "COMPRA",
			"TRANSFERENCIAS": "TRANSFERENCIA",
			"RESTAURANTES":   "RESTAURANTE",
			"PRODUTOS":       "PRODUTO",
			"POSTOS":         "POSTO",
			"FARMACIAS":      "FARMACIA",
			"DROGARIAS":      "DROGARIA",
			"SUPERMERCADOS":  "SUPERMERCADO",
			"ASSINATURAS":    "ASSINATURA",
			"PARCELAS":       "PARCELA",
			"COMBUSTIVEIS":   "COMBUSTIVEL",
			"BEBIDAS":        "BEBIDA",
			"ALIMENTOS":      "ALIMENTO",
		},
		LocationWords: []string{
			"SAO PAULO", "RIO DE JANEIRO", "BELO HORIZONTE", "PORTO ALEGRE",
			"CURITIBA", "BRASILIA", "SALVADOR", "RECIFE", "FORTALEZA",
			"CAMPINAS", "OSASCO", "BARUERI", "GUARULHOS", "SANTOS", "NITEROI",
			"SP", "RJ", "MG", "PR", "RS", "SC", "BA", "PE", "CE", "DF",
			"BR", "BRA", "BRASIL",
			"SHOPPING", "CENTRO", "LTDA", "EIRELI", "ONLINE", "DIGITAL",
		},
		PaymentKeywords: []string{
			"PIX", "TED", "DOC", "BOLETO", "CARTAO", "DEBITO", "CREDITO",
			"PAGAMENTO", "PGTO", "TRANSF", "TRANSFERENCIA", "COMPRA", "SAQUE",
			"FATURA", "PARCELA", "ANUIDADE", "TARIFA", "ESTORNO", "RECARGA",
		},
		ProcessorPrefixes: []string{
			"PAG", "PAGSEGURO", "PAGSEG", "MP", "MERCADOPAGO", "MERCPAGO",
			"PICPAY", "PAYPAL", "EC", "SUMUP", "STONE", "CIELO", "GETNET",
			"EBANX", "IFD", "IFOOD",
		},
	}
}

// With returns a copy of l extended with extra location words and plural forms.
func (l Locale) With(locationWords []string, pluralForms map[string]string) Locale {
	out := l
	out.LocationWords = append([]string(nil), l.LocationWords...)
	for _, w := range locationWords {
		w = prepare(w)
		if w != "" {
			out.LocationWords = append(out.LocationWords, w)
		}
	}

	out.PluralForms = make(map[string]string, len(l.PluralForms)+len(pluralForms))
	for k, v := range l.PluralForms {
		out.PluralForms[k] = v
	}
	for k, v := range pluralForms {
		out.PluralForms[prepare(k)] = prepare(v)
	}
	return out
}

// locationSuffixes returns the location words longest first so multi-word
// entries win over their trailing single words.
func (l Locale) locationSuffixes() []string {
	words := make([]string, 0, len(l.LocationWords))
	seen := make(map[string]bool, len(l.LocationWords))
	for _, w := range l.LocationWords {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return words
}

// IsProcessorPrefix reports whether token is a known payment processor prefix.
func (l Locale) IsProcessorPrefix(token string) bool {
	for _, p := range l.ProcessorPrefixes {
		if token == p {
			return true
		}
	}
	return false
}
