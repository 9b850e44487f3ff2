package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/xaenox/regretgpt/internal/models"
)

const keyPrefix = "regret:"

// Cache stores verdicts for identical requests.
type Cache interface {
	Get(ctx context.Context, key string) (models.ClassificationResult, bool, error)
	Set(ctx context.Context, key string, result models.ClassificationResult) error
	Close() error
}

type keyMaterial struct {
	Text    string         `json:"t"`
	URL     string         `json:"u"`
	Hour    *int           `json:"h"`
	Context map[string]any `json:"c"`
}

// Key identifies a request by text, URL, hour of day and context. The exact
// timestamp is not part of it, so retries within the same hour share a key.
func Key(req models.ClassificationRequest, hour *int) string {
	// encoding/json sorts map keys, which keeps the digest stable.
	b, err := json.Marshal(keyMaterial{
		Text:    req.Text,
		URL:     req.URL,
		Hour:    hour,
		Context: req.Context,
	})
	if err != nil {
		b, _ = json.Marshal(keyMaterial{Text: req.Text, URL: req.URL, Hour: hour})
	}
	sum := sha256.Sum256(b)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (models.ClassificationResult, bool, error) {
	return models.ClassificationResult{}, false, nil
}

func (NoopCache) Set(context.Context, string, models.ClassificationResult) error { return nil }

func (NoopCache) Close() error { return nil }
