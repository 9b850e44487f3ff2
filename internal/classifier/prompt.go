package classifier

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/xaenox/regretgpt/internal/models"
)

const regretInstructions = `You are RegretGPT, an assistant that predicts whether a user will regret an action within the next 24 hours.
You are blunt, sarcastic, and slightly toxic, but not abusive.

Given:
- The website URL
- The current time
- What the user is typing
- A brief context label (like 'messaging', 'email', 'finance')

You must:
1. Return a "regret_score" from 0 to 100, where:
   - 0-20: very safe
   - 20-50: mildly risky
   - 50-80: risky
   - 80-100: extremely regretful
2. Explain in one sentence why ("reason").
3. Decide an "intervention_strength" as one of:
   - "NONE" (no popup)
   - "WARN" (light warning popup)
   - "PUZZLE" (require puzzle before proceeding)
   - "BLOCK_HARD" (strongly discourage and gate behind puzzle)
4. Craft a short, snarky one-liner "llm_message" (max 1 sentence).
5. Optionally simulate a short "future_regret_simulation" (1-3 short sentences) describing how the user might feel later.

Return a JSON object with keys:
- regret_score (int)
- reason (string)
- intervention_strength (string)
- llm_message (string)
- future_regret_simulation (string)`

const jsonOnlyInstructions = `Respond with ONLY a JSON object with these exact keys and nothing else:
{"regret_score": <int 0-100>, "reason": "<string>", "intervention_strength": "NONE|WARN|PUZZLE|BLOCK_HARD", "llm_message": "<string>", "future_regret_simulation": "<string>"}
Do not wrap it in Markdown and do not add commentary.`

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// HourOf returns the hour of day of an ISO-8601 timestamp in its own offset,
// or nil when ts is empty or unparseable.
func HourOf(ts string) *int {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			hour := t.Hour()
			return &hour
		}
	}
	return nil
}

type promptPayload struct {
	URL       string         `json:"url"`
	Text      string         `json:"typed_text"`
	Timestamp *string        `json:"time_iso"`
	Hour      *int           `json:"hour"`
	Context   map[string]any `json:"context"`
}

func newPromptPayload(req models.ClassificationRequest, hour *int) promptPayload {
	p := promptPayload{
		URL:     req.URL,
		Text:    req.Text,
		Hour:    hour,
		Context: req.Context,
	}
	if req.Timestamp != "" {
		ts := req.Timestamp
		p.Timestamp = &ts
	}
	if p.Context == nil {
		p.Context = map[string]any{}
	}
	return p
}

// userPrompt renders the model input. A non-nil error means the context
// could not be encoded and was dropped; the prompt is usable either way.
func userPrompt(req models.ClassificationRequest, hour *int) (string, error) {
	payload := newPromptPayload(req, hour)
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		payload.Context = map[string]any{}
		b, _ = json.MarshalIndent(payload, "", "  ")
	}
	return string(b), err
}

// composeRequest shapes the upstream call for a candidate's capabilities.
func composeRequest(c ModelCandidate, prompt string, temperature float32, maxTokens int) CompletionRequest {
	req := CompletionRequest{
		Model:       c.Name,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSONMode:    c.Capabilities.StructuredOutput,
	}
	if c.Capabilities.SystemInstruction {
		req.System = regretInstructions
	} else {
		req.Prompt = regretInstructions + "\n\n" + req.Prompt
	}
	if !c.Capabilities.StructuredOutput {
		req.Prompt += "\n\n" + jsonOnlyInstructions
	}
	return req
}
