// Package cards knows the canonical card names and finds them in noisy text.
package cards

import (
	"sort"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Card is a canonical card entry
type Card struct {
	Name    string
	Icon    string
	Aliases []string
}

var defaultCards = []Card{
	{Name: "Gigante", Icon: "🗿", Aliases: []string{"Giant"}},
	{Name: "Gigante Real", Icon: "👑", Aliases: []string{"Royal Giant"}},
	{Name: "Gigante Elétrico", Icon: "⚡", Aliases: []string{"Electro Giant"}},
	{Name: "Golem", Icon: "🪨"},
	{Name: "P.E.K.K.A", Icon: "🤖", Aliases: []string{"Pekka"}},
	{Name: "Mini P.E.K.K.A", Icon: "🦾", Aliases: []string{"Mini Pekka"}},
	{Name: "Corredor", Icon: "🐗", Aliases: []string{"Hog Rider", "Hog"}},
	{Name: "Porcos Reais", Icon: "🐖", Aliases: []string{"Royal Hogs"}},
	{Name: "Balão", Icon: "🎈", Aliases: []string{"Balloon"}},
	{Name: "Lava Hound", Icon: "🌋", Aliases: []string{"Cão de Lava"}},
	{Name: "X-Besta", Icon: "🏹", Aliases: []string{"X-Bow"}},
	{Name: "Morteiro", Icon: "💣", Aliases: []string{"Mortar"}},
	{Name: "Mineiro", Icon: "⛏️", Aliases: []string{"Miner"}},
	{Name: "Cavaleiro", Icon: "🛡️", Aliases: []string{"Knight"}},
	{Name: "Valquíria", Icon: "🪓", Aliases: []string{"Valkyrie"}},
	{Name: "Mosqueteira", Icon: "🔫", Aliases: []string{"Musketeer"}},
	{Name: "Mago", Icon: "🧙", Aliases: []string{"Wizard"}},
	{Name: "Mago de Gelo", Icon: "❄️", Aliases: []string{"Ice Wizard"}},
	{Name: "Mago Elétrico", Icon: "🔌", Aliases: []string{"Electro Wizard"}},
	{Name: "Bruxa", Icon: "🧹", Aliases: []string{"Witch"}},
	{Name: "Bruxa Sombria", Icon: "🌑", Aliases: []string{"Night Witch"}},
	{Name: "Príncipe", Icon: "🐴", Aliases: []string{"Prince"}},
	{Name: "Príncipe Sombrio", Icon: "🖤", Aliases: []string{"Dark Prince"}},
	{Name: "Bandida", Icon: "🗡️", Aliases: []string{"Bandit"}},
	{Name: "Lenhador", Icon: "🌲", Aliases: []string{"Lumberjack"}},
	{Name: "Megacavaleiro", Icon: "🦿", Aliases: []string{"Mega Knight"}},
	{Name: "Dragão Infernal", Icon: "🐉", Aliases: []string{"Inferno Dragon"}},
	{Name: "Bebê Dragão", Icon: "🐲", Aliases: []string{"Baby Dragon"}},
	{Name: "Esqueletos", Icon: "💀", Aliases: []string{"Skeletons"}},
	{Name: "Exército de Esqueletos", Icon: "☠️", Aliases: []string{"Skeleton Army"}},
	{Name: "Goblins", Icon: "👺"},
	{Name: "Gangue de Goblins", Icon: "👹", Aliases: []string{"Goblin Gang"}},
	{Name: "Barril de Goblins", Icon: "🛢️", Aliases: []string{"Goblin Barrel"}},
	{Name: "Servos", Icon: "🦇", Aliases: []string{"Minions"}},
	{Name: "Horda de Servos", Icon: "🦇", Aliases: []string{"Minion Horde"}},
	{Name: "Espírito de Gelo", Icon: "🧊", Aliases: []string{"Ice Spirit"}},
	{Name: "Torre Inferno", Icon: "🔥", Aliases: []string{"Inferno Tower"}},
	{Name: "Canhão", Icon: "🧱", Aliases: []string{"Cannon"}},
	{Name: "Tesla", Icon: "🗼"},
	{Name: "Bola de Fogo", Icon: "☄️", Aliases: []string{"Fireball"}},
	{Name: "Flechas", Icon: "🏹", Aliases: []string{"Arrows"}},
	{Name: "Zap", Icon: "⚡"},
	{Name: "Tronco", Icon: "🪵", Aliases: []string{"The Log", "Log"}},
	{Name: "Veneno", Icon: "☠️", Aliases: []string{"Poison"}},
	{Name: "Relâmpago", Icon: "🌩️", Aliases: []string{"Lightning"}},
	{Name: "Foguete", Icon: "🚀", Aliases: []string{"Rocket"}},
	{Name: "Fúria", Icon: "😡", Aliases: []string{"Rage"}},
	{Name: "Congelamento", Icon: "🥶", Aliases: []string{"Freeze"}},
	{Name: "Tornado", Icon: "🌪️"},
	{Name: "Sparky", Icon: "⚙️"},
}

// Catalog matches free text against a set of cards
type Catalog struct {
	cards    []Card
	variants []variant
}

type variant struct {
	card  int
	norm  string
	words int
}

// NewCatalog builds a catalog over cards
func NewCatalog(cards []Card) *Catalog {
	c := &Catalog{cards: cards}
	for i, card := range cards {
		for _, name := range append([]string{card.Name}, card.Aliases...) {
			n := Normalize(name)
			if n == "" {
				continue
			}
			c.variants = append(c.variants, variant{card: i, norm: n, words: len(strings.Fields(n))})
		}
	}
	// longer names claim their tokens before their substrings
	sort.SliceStable(c.variants, func(i, j int) bool {
		if c.variants[i].words != c.variants[j].words {
			return c.variants[i].words > c.variants[j].words
		}
		return len(c.variants[i].norm) > len(c.variants[j].norm)
	})
	return c
}

// DefaultCatalog returns the built-in card set
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultCards)
}

// Cards returns the catalog's card list
func (c *Catalog) Cards() []Card {
	return c.cards
}

// Lookup returns the card whose canonical name or alias is exactly name, ignoring case and accents
func (c *Catalog) Lookup(name string) (Card, bool) {
	n := Normalize(name)
	for _, v := range c.variants {
		if v.norm == n {
			return c.cards[v.card], true
		}
	}
	return Card{}, false
}

// Match returns the cards found in text, in order of first appearance.
// Each word window is compared against every name with a Levenshtein
// distance budget of one edit per five characters.
func (c *Catalog) Match(text string) []Card {
	tokens := strings.Fields(Normalize(text))
	if len(tokens) == 0 {
		return nil
	}

	consumed := make([]bool, len(tokens))
	position := make(map[int]int)

	for _, v := range c.variants {
		budget := len([]rune(v.norm)) / 5
		for i := 0; i+v.words <= len(tokens); i++ {
			if anyConsumed(consumed[i : i+v.words]) {
				continue
			}
			window := strings.Join(tokens[i:i+v.words], " ")
			if levenshtein.Distance(window, v.norm) > budget {
				continue
			}
			for k := i; k < i+v.words; k++ {
				consumed[k] = true
			}
			if pos, ok := position[v.card]; !ok || i < pos {
				position[v.card] = i
			}
		}
	}

	found := make([]int, 0, len(position))
	for card := range position {
		found = append(found, card)
	}
	sort.Slice(found, func(i, j int) bool {
		return position[found[i]] < position[found[j]]
	})

	out := make([]Card, len(found))
	for i, idx := range found {
		out[i] = c.cards[idx]
	}
	return out
}

// Names returns the canonical names of cards
func Names(cards []Card) []string {
	names := make([]string, len(cards))
	for i, card := range cards {
		names[i] = card.Name
	}
	return names
}

func anyConsumed(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// Normalize lowercases s, strips accents and dots, and turns any other
// punctuation into single spaces.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r == '.':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
