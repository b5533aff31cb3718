package parser

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/pkg/models"
)

func sampleResult() models.AnalysisResult {
	return models.AnalysisResult{
		EnemyDeck: []models.EnemyCard{
			{Name: "Gigante", Icon: "🗿"},
			{Name: "Mago", Icon: "🧙"},
		},
		CounterDeck: []models.CounterCard{
			{
				Name:        "Mini P.E.K.K.A",
				Icon:        "🤖",
				Role:        "Defesa",
				Explanation: "Derrete o Gigante na ponte",
				Counters:    []string{"Gigante"},
			},
		},
		CounterName:       "Muralha de Aço",
		IsAbsoluteCounter: false,
	}
}

func TestParseRoundTrip(t *testing.T) {
	want := sampleResult()
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	cases := map[string]string{
		"bare":          string(payload),
		"json fence":    "```json\n" + string(payload) + "\n```",
		"untagged":      "```\n" + string(payload) + "\n```",
		"with prose":    "Aqui está o seu counter:\n```json\n" + string(payload) + "\n```\nBoa sorte!",
		"padded bare":   "\n\n  " + string(payload) + "  \n",
		"crlf fence":    "```json\r\n" + string(payload) + "\r\n```",
		"upper tagged":  "```JSON\n" + string(payload) + "\n```",
		"no final line": "```json\n" + string(payload) + "```",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(raw)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got.Result); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
			assert.JSONEq(t, string(payload), string(got.Raw))
		})
	}
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"plain text":     "hello world",
		"empty":          "",
		"fenced garbage": "```json\nnot json\n```",
		"truncated":      `{"enemyDeck": [`,
		"array":          `[{"name": "Gigante"}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(raw)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedAIResponse))
			assert.Equal(t, MalformedMessage, apperrors.AsAppError(err).Message)
		})
	}
}

func TestParseKeepsPartialObjects(t *testing.T) {
	raw := `{"counterName": "Só o nome", "extra": 1}`
	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Só o nome", got.Result.CounterName)
	assert.Empty(t, got.Result.EnemyDeck)
	assert.Equal(t, raw, string(got.Raw))
}

func TestParseToleratesWrongFieldTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.AnalysisResult
	}{
		{
			name: "string boolean",
			raw:  "```json\n{\"counterName\":\"Ciclo Rápido\",\"isAbsoluteCounter\":\"true\"}\n```",
			want: models.AnalysisResult{CounterName: "Ciclo Rápido"},
		},
		{
			name: "counters as a single string",
			raw:  `{"counterDeck":[{"name":"Zap","counters":"Gigante"}]}`,
			want: models.AnalysisResult{
				CounterDeck: []models.CounterCard{{Name: "Zap", Counters: []string{"Gigante"}}},
			},
		},
		{
			name: "numeric counter name",
			raw:  `{"counterName":42}`,
			want: models.AnalysisResult{},
		},
		{
			name: "deck as a string",
			raw:  `{"enemyDeck":"Gigante","counterName":"Ponte"}`,
			want: models.AnalysisResult{CounterName: "Ponte"},
		},
		{
			name: "non-object entries skipped",
			raw:  `{"enemyDeck":["Gigante",{"name":"Mago","icon":7}]}`,
			want: models.AnalysisResult{EnemyDeck: []models.EnemyCard{{Name: "Mago"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got.Result); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, Extract(tt.raw), string(got.Raw))
		})
	}
}

func TestExtractPrefersFirstFence(t *testing.T) {
	raw := "```json\n{\"a\":1}\n```\n```json\n{\"b\":2}\n```"
	assert.Equal(t, `{"a":1}`, Extract(raw))
	assert.Equal(t, "sem cerca", Extract("  sem cerca \n"))
}
