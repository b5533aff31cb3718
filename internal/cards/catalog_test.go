package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Valquíria", "valquiria"},
		{"Mini P.E.K.K.A", "mini pekka"},
		{"  X-Besta!! ", "x besta"},
		{"Dragão\nInfernal", "dragao infernal"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchFindsCardsInOrder(t *testing.T) {
	c := DefaultCatalog()

	got := Names(c.Match("Deck: Corredor, Mosqueteira, Tronco, Bola de Fogo, Espirito de Gelo, Canhao"))
	assert.Equal(t, []string{"Corredor", "Mosqueteira", "Tronco", "Bola de Fogo", "Espírito de Gelo", "Canhão"}, got)
}

func TestMatchToleratesOCRNoise(t *testing.T) {
	c := DefaultCatalog()

	got := Names(c.Match("Gigamte  Mosqueteyra  Vaiquiria"))
	assert.Equal(t, []string{"Gigante", "Mosqueteira", "Valquíria"}, got)
}

func TestMatchPrefersLongerNames(t *testing.T) {
	c := DefaultCatalog()

	got := Names(c.Match("mini pekka e mago de gelo"))
	assert.Equal(t, []string{"Mini P.E.K.K.A", "Mago de Gelo"}, got)
	assert.NotContains(t, got, "P.E.K.K.A")
	assert.NotContains(t, got, "Mago")
}

func TestMatchAliasesAndDedup(t *testing.T) {
	c := DefaultCatalog()

	got := Names(c.Match("Hog Rider, hog rider, Fireball"))
	assert.Equal(t, []string{"Corredor", "Bola de Fogo"}, got)
}

func TestMatchNothing(t *testing.T) {
	c := DefaultCatalog()
	assert.Empty(t, c.Match(""))
	assert.Empty(t, c.Match("partida muito difícil ontem"))
}

func TestLookup(t *testing.T) {
	c := DefaultCatalog()

	card, ok := c.Lookup("valquiria")
	assert.True(t, ok)
	assert.Equal(t, "Valquíria", card.Name)

	card, ok = c.Lookup("The Log")
	assert.True(t, ok)
	assert.Equal(t, "Tronco", card.Name)

	_, ok = c.Lookup("Dragão Dourado")
	assert.False(t, ok)
}
