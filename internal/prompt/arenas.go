package prompt

// MinArena and MaxArena bound the arena numbers a client may select
const (
	MinArena = 1
	MaxArena = 20
)

var arenaNames = [MaxArena]string{
	"Arena de Treinamento",
	"Arena de Ossos",
	"Arena de Bárbaros",
	"Arena P.E.K.K.A",
	"Arena de Feitiços",
	"Arena de Construtores",
	"Arena Real",
	"Arena Congelada",
	"Arena da Selva",
	"Arena do Hog Mountain",
	"Arena Elétrica",
	"Arena Batedeira",
	"Arena do Pico Renegado",
	"Arena Lendária",
	"Arena Campeão",
	"Arena Desafio",
	"Arena Mestre",
	"Arena Suprema",
	"Arena Titã",
	"Arena Final",
}

// ValidArena reports whether n is a selectable arena
func ValidArena(n int) bool {
	return n >= MinArena && n <= MaxArena
}

// ArenaName returns the display name of arena n, or "" when out of range
func ArenaName(n int) string {
	if !ValidArena(n) {
		return ""
	}
	return arenaNames[n-1]
}
