// Package prompt renders the instruction text sent to the AI deck analyzer.
// Build is pure: the same inputs always produce the same prompt.
package prompt

import (
	"fmt"
	"strings"
)

const header = `Você é a Clash IA, especialista em Clash Royale.

Analise as seguintes informações extraídas do deck inimigo:
- Texto detectado: %s
- Labels: %s
`

const arenaClause = `
O jogador está na arena %d (%s). Considere apenas cartas desbloqueadas até essa arena e o meta típico desse nível.
`

const basicClause = `
Com base nessas informações:
1. Identifique as 8 cartas do deck inimigo (se não conseguir identificar todas, use as cartas mais prováveis baseado no contexto de Clash Royale)
2. Crie o melhor deck counter possível (8 cartas)
3. Para cada carta do counter, explique em uma frase curta qual(is) carta(s) do deck inimigo ela neutraliza

Nível de detalhe: básico.
`

const advancedClause = `
Com base nessas informações:
1. Identifique as 8 cartas do deck inimigo (se não conseguir identificar todas, use as cartas mais prováveis baseado no contexto de Clash Royale)
2. Crie o melhor deck counter possível (8 cartas)
3. Para cada carta do counter, explique:
   - Qual(is) carta(s) do deck inimigo ela neutraliza
   - Por que foi escolhida
   - Como e quando usar
4. Indique se o counter é absoluto, ou seja, se vence o deck inimigo em praticamente todas as situações

Nível de detalhe: avançado.
`

const outputClause = `
Responda APENAS com um JSON válido neste formato:
{
  "enemyDeck": [
    {"name": "Nome da Carta", "icon": "emoji"}
  ],
  "counterDeck": [
    {
      "name": "Nome da Carta",
      "icon": "emoji",
      "role": "Papel (ex: Tanque, Suporte)",
      "explanation": "Explicação detalhada",
      "counters": ["Carta Inimiga 1", "Carta Inimiga 2"]
    }
  ],
  "counterName": "Nome épico do deck counter",
  "isAbsoluteCounter": true/false
}`

const noLabels = "nenhuma"

// Build renders the analysis prompt.
// The arena clause is present iff arena is non-nil; isPremium selects the
// advanced verbosity template instead of the basic one.
func Build(detectedText string, labels []string, arena *int, isPremium bool) string {
	var b strings.Builder

	labelText := noLabels
	if len(labels) > 0 {
		labelText = strings.Join(labels, ", ")
	}
	fmt.Fprintf(&b, header, strings.TrimSpace(detectedText), labelText)

	if arena != nil {
		name := ArenaName(*arena)
		if name == "" {
			name = "desconhecida"
		}
		fmt.Fprintf(&b, arenaClause, *arena, name)
	}

	if isPremium {
		b.WriteString(advancedClause)
	} else {
		b.WriteString(basicClause)
	}

	b.WriteString(outputClause)
	return b.String()
}
