package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConservative(t *testing.T) {
	n := Default()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"long numeric suffix", "  uber   trip 123456 ", "UBER TRIP"},
		{"short numeric suffix", "netflix.com 12", "NETFLIX.COM"},
		{"short suffix kept when prefix too short", "AB 12", "AB 12"},
		{"digits only", "99", "99"},
		{"diacritics folded", "São Paulo Padaria", "SAO PAULO PADARIA"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Conservative(tt.raw))
		})
	}
}

func TestAggressive(t *testing.T) {
	n := Default()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"asterisk with long number", "UBER *TRIP 111111", "UBER"},
		{"asterisk run-on", "IFOOD *RESTABCD", "IFOOD"},
		{"processor prefix", "PAG*JOSEDASILVA", "PAG"},
		{"isolated short number", "ZUL 1 CARTAO", "ZUL CARTAO"},
		{"digits fused before space", "ZUL1 CARTAO", "ZUL CARTAO"},
		{"spaced short numeric suffix", "POSTO SHELL 1234", "POSTO SHELL"},
		{"fused trailing digits", "LOJA ABC12", "LOJA ABC"},
		{"fused digits guarded", "A1", "A1"},
		{"hyphen suffix", "MERCADO LIVRE-BR1", "MERCADO LIVRE"},
		{"mixed alphanumeric suffix", "SPOTIFY P1A2B3C4D", "SPOTIFY"},
		{"spaced hex identifier", "AMAZON 3F2A9B1C7E", "AMAZON"},
		{"fused hex identifier", "AMZN3F2A9B1C7E", "AMZN"},
		{"multi word location", "PADARIA REAL SAO PAULO", "PADARIA REAL"},
		{"location exposes number", "DROGASIL 0042 SP", "DROGASIL"},
		{"digital qualifier", "AMAZON DIGITAL", "AMAZON"},
		{"location leaves one letter", "X BR", "X BR"},
		{"plural form", "CARTOES LOJA", "CARTAO LOJA"},
		{"duplicate tokens", "PADARIA PADARIA", "PADARIA"},
		{"diacritics", "Café Pão de Açúcar", "CAFE PAO DE ACUCAR"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Aggressive(tt.raw))
		})
	}
}

func TestAggressivePreservesCleanNames(t *testing.T) {
	n := Default()
	for _, name := range []string{"NETFLIX", "UBER TRIP", "99 FOOD", "OPENAI"} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, n.Aggressive(name))
		})
	}
}

func TestAggressiveGroupsVariations(t *testing.T) {
	n := Default()
	assert.Equal(t, n.Aggressive("UBER *TRIP 111111"), n.Aggressive("UBER *TRIP 222222"))
	assert.Equal(t, n.Aggressive("ZUL 1 CARTAO"), n.Aggressive("ZUL1 CARTAO"))
}

func TestAggressiveIsIdempotent(t *testing.T) {
	n := Default()
	inputs := []string{
		"UBER *TRIP 111111",
		"IFOOD *RESTABCD",
		"ZUL 1 CARTAO",
		"DROGASIL 0042 SP",
		"PADARIA 12 SHOPPING 999999",
		"LOJA 123456 BR",
		"AMZN3F2A9B1C7E",
		"MERCADO LIVRE-BR1",
		"POSTO POSTO 12 RJ",
		"CARTOES CARTAO",
		"  pix transf  maria 0001 ",
		"X",
		"123456",
		"*",
		"PAGAMENTOS 1 2 3 SAO PAULO SP",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := n.Aggressive(in)
			assert.Equal(t, once, n.Aggressive(once))
			if strings.TrimSpace(in) != "" {
				assert.NotEmpty(t, once)
			}
		})
	}
}

func TestAggressiveIsDeterministic(t *testing.T) {
	n := Default()
	first := n.Aggressive("DROGASIL 0042 SP")
	for i := 0; i < 20; i++ {
		require.Equal(t, first, n.Aggressive("DROGASIL 0042 SP"))
	}
}

func TestLocaleWith(t *testing.T) {
	base := BrazilianLocale()
	n := New(base.With([]string{"jundiaí"}, map[string]string{"padarias": "padaria"}))

	assert.Equal(t, "PADARIA", n.Aggressive("PADARIAS JUNDIAI"))
	assert.Equal(t, "PADARIAS JUNDIAI", Default().Aggressive("PADARIAS JUNDIAI"))
	assert.NotContains(t, base.LocationWords, "JUNDIAI")
}

func TestCustomRuleTable(t *testing.T) {
	stripLtda := Rule{Name: "strip-ltda", Apply: func(s string) string {
		return strings.TrimSpace(strings.TrimSuffix(s, "LTDA"))
	}}
	n := NewWithRules(BrazilianLocale(), []Rule{stripLtda})

	assert.Equal(t, []string{"strip-ltda"}, n.Rules())
	assert.Equal(t, "ACME 12", n.Aggressive("acme 12 ltda"))
}

func TestTrace(t *testing.T) {
	steps := Default().Trace("ZUL 1 CARTAO")
	require.NotEmpty(t, steps)

	var changed []string
	for _, s := range steps {
		if s.Changed() {
			changed = append(changed, s.Rule)
		}
	}
	assert.Equal(t, []string{"isolated-short-numbers"}, changed)
	assert.Equal(t, "ZUL CARTAO", steps[len(steps)-1].After)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Uber Trip", DisplayName("UBER TRIP"))
	assert.Equal(t, "", DisplayName("  "))
}
