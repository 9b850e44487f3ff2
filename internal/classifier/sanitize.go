package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
	"github.com/xaenox/regretgpt/internal/models"
)

const (
	defaultReason  = "No reason given."
	defaultMessage = "You sure about this?"

	minScore = 0
	maxScore = 100
)

var strengthReplacer = strings.NewReplacer(" ", "_", "-", "_")

// decodeVerdict parses a model reply into a result. Text-only candidates get
// fence stripping and object extraction first.
func decodeVerdict(text string, structured bool) (models.ClassificationResult, error) {
	raw := strings.TrimSpace(text)
	if !structured {
		obj, err := extractJSONObject(stripCodeFence(raw))
		if err != nil {
			return models.ClassificationResult{}, err
		}
		raw = obj
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("invalid JSON: %w", err)
	}
	fields, ok := decoded.(map[string]any)
	if !ok {
		return models.ClassificationResult{}, errors.New("response is not a JSON object")
	}
	return sanitize(fields)
}

func sanitize(fields map[string]any) (models.ClassificationResult, error) {
	score, err := coerceScore(fields["regret_score"])
	if err != nil {
		return models.ClassificationResult{}, err
	}

	return models.ClassificationResult{
		RegretScore:          score,
		Reason:               stringField(fields, "reason", defaultReason),
		InterventionStrength: normalizeStrength(stringField(fields, "intervention_strength", string(models.StrengthNone))),
		LLMMessage:           stringField(fields, "llm_message", defaultMessage),
		Simulation:           stringField(fields, "future_regret_simulation", ""),
	}, nil
}

// coerceScore truncates numbers, parses numeric strings and clamps the
// outcome to [0, 100]. A missing score is 0. Clamping happens on the float
// value so out-of-range numbers cannot wrap around on conversion.
func coerceScore(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	if s, ok := v.(string); ok {
		if n, err := cast.ToIntE(strings.TrimSpace(s)); err == nil {
			return min(max(n, minScore), maxScore), nil
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("regret_score %v is not an integer: %w", v, err)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("regret_score %v is not a number", v)
	}
	return int(math.Max(minScore, math.Min(maxScore, f))), nil
}

func stringField(fields map[string]any, key, fallback string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return fallback
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}

func normalizeStrength(s string) models.InterventionStrength {
	strength := models.InterventionStrength(strengthReplacer.Replace(strings.ToUpper(strings.TrimSpace(s))))
	if !strength.Valid() {
		return models.StrengthNone
	}
	return strength
}
