// Package parser turns the AI's free-form reply into a structured AnalysisResult.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/pkg/models"
)

// MalformedMessage is the error message returned when the reply is not parseable JSON
const MalformedMessage = "Resposta da IA não está em formato JSON válido"

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")

// Parsed holds the decoded result together with the exact JSON payload it came from
type Parsed struct {
	Result models.AnalysisResult
	Raw    json.RawMessage
}

// Extract returns the JSON candidate inside raw: the interior of the first
// fenced code block when one exists, otherwise the whole trimmed text.
func Extract(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// Parse decodes the AI reply. Only JSON syntax is checked: fields of the wrong
// type are left at their zero value and the payload is still returned as is.
func Parse(raw string) (*Parsed, error) {
	candidate := []byte(Extract(raw))
	if len(candidate) == 0 || candidate[0] != '{' {
		return nil, apperrors.NewMalformedAIResponseError(MalformedMessage, nil)
	}
	if !json.Valid(candidate) {
		return nil, apperrors.NewMalformedAIResponseError(MalformedMessage, nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(candidate, &fields); err != nil {
		return nil, apperrors.NewMalformedAIResponseError(MalformedMessage, err)
	}

	var result models.AnalysisResult
	decodeField(fields, "counterName", &result.CounterName)
	decodeField(fields, "isAbsoluteCounter", &result.IsAbsoluteCounter)

	for _, item := range rawItems(fields["enemyDeck"]) {
		var card models.EnemyCard
		decodeField(item, "name", &card.Name)
		decodeField(item, "icon", &card.Icon)
		result.EnemyDeck = append(result.EnemyDeck, card)
	}
	for _, item := range rawItems(fields["counterDeck"]) {
		var card models.CounterCard
		decodeField(item, "name", &card.Name)
		decodeField(item, "icon", &card.Icon)
		decodeField(item, "role", &card.Role)
		decodeField(item, "explanation", &card.Explanation)
		decodeField(item, "counters", &card.Counters)
		result.CounterDeck = append(result.CounterDeck, card)
	}

	return &Parsed{Result: result, Raw: json.RawMessage(candidate)}, nil
}

// decodeField fills dst from fields[key] when the value has a compatible type
func decodeField(fields map[string]json.RawMessage, key string, dst interface{}) {
	value, ok := fields[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(value, dst); err != nil {
		// a string where a list is expected is read as a one-element list
		if list, isList := dst.(*[]string); isList {
			var single string
			if json.Unmarshal(value, &single) == nil && single != "" {
				*list = []string{single}
			}
		}
	}
}

// rawItems returns the objects of a JSON array, skipping anything else
func rawItems(value json.RawMessage) []map[string]json.RawMessage {
	var elems []json.RawMessage
	if len(value) == 0 || json.Unmarshal(value, &elems) != nil {
		return nil
	}
	items := make([]map[string]json.RawMessage, 0, len(elems))
	for _, elem := range elems {
		var item map[string]json.RawMessage
		if json.Unmarshal(elem, &item) == nil && item != nil {
			items = append(items, item)
		}
	}
	return items
}
