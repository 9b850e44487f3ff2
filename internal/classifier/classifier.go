package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/regretgpt/internal/models"
)

var (
	// ErrNoCandidates is returned when the classifier has no models to try.
	ErrNoCandidates = errors.New("no model candidates configured")
	// ErrEmptyResponse is returned when the upstream answered without text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrNoJSONObject is returned when no balanced JSON object can be found
	// in a text-only model's reply.
	ErrNoJSONObject = errors.New("no JSON object in model response")
)

// Classifier turns a request into a verdict. Implementations never fail:
// problems are folded into a default result.
type Classifier interface {
	Classify(ctx context.Context, req models.ClassificationRequest) models.ClassificationResult
}

// Outcome is a result together with how it was produced.
type Outcome struct {
	Result models.ClassificationResult
	// Model is the candidate that answered, empty if none did.
	Model string
	// Fallback is set when Result is a default rather than a model verdict.
	Fallback bool
	Hour     *int
}

func apiErrorResult(err error) models.ClassificationResult {
	return models.ClassificationResult{
		RegretScore:          0,
		Reason:               fmt.Sprintf("API error: %v", err),
		InterventionStrength: models.StrengthNone,
		LLMMessage:           "API error occurred.",
		Simulation:           "",
	}
}

func parseErrorResult(err error) models.ClassificationResult {
	return models.ClassificationResult{
		RegretScore:          0,
		Reason:               fmt.Sprintf("Failed to parse response: %v", err),
		InterventionStrength: models.StrengthNone,
		LLMMessage:           "Error occurred.",
		Simulation:           "",
	}
}

// ValidationErrorResult is the body returned for requests rejected before
// classification.
func ValidationErrorResult(err error) models.ClassificationResult {
	return models.ClassificationResult{
		RegretScore:          0,
		Reason:               fmt.Sprintf("Validation error: %v", err),
		InterventionStrength: models.StrengthNone,
		LLMMessage:           "Invalid input.",
		Simulation:           "",
	}
}
