package models

import (
	"time"

	"github.com/google/uuid"
)

// InterventionStrength is the UI response recommended for a verdict.
type InterventionStrength string

const (
	StrengthNone      InterventionStrength = "NONE"
	StrengthWarn      InterventionStrength = "WARN"
	StrengthPuzzle    InterventionStrength = "PUZZLE"
	StrengthBlockHard InterventionStrength = "BLOCK_HARD"
)

// Valid reports whether s is one of the four known strengths.
func (s InterventionStrength) Valid() bool {
	switch s {
	case StrengthNone, StrengthWarn, StrengthPuzzle, StrengthBlockHard:
		return true
	}
	return false
}

// ClassificationRequest is what the browser extension sends for one
// keystroke burst.
type ClassificationRequest struct {
	Text      string         `json:"typed_text" binding:"required,max=10000"`
	URL       string         `json:"url,omitempty" binding:"max=2048"`
	Timestamp string         `json:"time_iso,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// ClassificationResult is the only shape ever returned to callers.
type ClassificationResult struct {
	RegretScore          int                  `json:"regret_score"`
	Reason               string               `json:"reason"`
	InterventionStrength InterventionStrength `json:"intervention_strength"`
	LLMMessage           string               `json:"llm_message"`
	Simulation           string               `json:"simulation"`
}

// Verdict is a history record of one classification. Only the length of
// the typed text is kept.
type Verdict struct {
	ID         uuid.UUID            `json:"id"`
	URL        string               `json:"url"`
	TextLength int                  `json:"text_length"`
	Hour       *int                 `json:"hour,omitempty"`
	Result     ClassificationResult `json:"result"`
	Model      string               `json:"model"`
	Fallback   bool                 `json:"fallback"`
	CreatedAt  time.Time            `json:"created_at"`
}
