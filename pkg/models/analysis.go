package models

import (
	"encoding/json"
	"time"
)

// EnemyCard is one card identified in the opposing deck
type EnemyCard struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// CounterCard is one card of the recommended counter deck
type CounterCard struct {
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Role        string   `json:"role"`
	Explanation string   `json:"explanation"`
	Counters    []string `json:"counters"`
}

// AnalysisResult is the externally observable output of a deck analysis
type AnalysisResult struct {
	EnemyDeck         []EnemyCard   `json:"enemyDeck"`
	CounterDeck       []CounterCard `json:"counterDeck"`
	CounterName       string        `json:"counterName"`
	IsAbsoluteCounter bool          `json:"isAbsoluteCounter"`
}

// InputKind records which input fed an analysis
type InputKind string

const (
	InputKindText  InputKind = "text"
	InputKindImage InputKind = "image"
)

// AnalysisRecord is a stored analysis, kept for premium users' history
type AnalysisRecord struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Arena       *int            `json:"arena,omitempty"`
	InputKind   InputKind       `json:"inputKind"`
	CounterName string          `json:"counterName"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"createdAt"`
}
