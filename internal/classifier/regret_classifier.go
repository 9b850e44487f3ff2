package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/regretgpt/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = time.Second
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// Capabilities describes what a model supports.
type Capabilities struct {
	// SystemInstruction is a dedicated channel for the instruction block.
	SystemInstruction bool
	// StructuredOutput is a native JSON response mode.
	StructuredOutput bool
}

// ModelCandidate is one upstream model, tried in list order.
type ModelCandidate struct {
	Name         string
	Capabilities Capabilities
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Options struct {
	Candidates  []ModelCandidate
	MaxRetries  int
	RetryDelay  time.Duration
	Temperature float32
	MaxTokens   int
	// Sleep defaults to a context-aware timer.
	Sleep Sleeper
}

// RegretClassifier asks an upstream model for a regret verdict, falling back
// across candidates and retrying per candidate.
type RegretClassifier struct {
	completer   Completer
	candidates  []ModelCandidate
	maxRetries  int
	retryDelay  time.Duration
	temperature float32
	maxTokens   int
	sleep       Sleeper
	logger      *zap.Logger

	mu        sync.RWMutex
	lastModel string
}

func NewRegretClassifier(completer Completer, opts Options, logger *zap.Logger) *RegretClassifier {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RegretClassifier{
		completer:   completer,
		candidates:  append([]ModelCandidate(nil), opts.Candidates...),
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		sleep:       opts.Sleep,
		logger:      logger,
	}
}

// LastModel returns the first candidate that ever answered, or "" if none
// has yet. It is informational only.
func (c *RegretClassifier) LastModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastModel
}

func (c *RegretClassifier) rememberModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastModel == "" {
		c.lastModel = name
		c.logger.Info("Successfully using model", zap.String("model", name))
	}
}

func (c *RegretClassifier) Classify(ctx context.Context, req models.ClassificationRequest) models.ClassificationResult {
	return c.Evaluate(ctx, req).Result
}

// Evaluate is Classify plus provenance of the result.
func (c *RegretClassifier) Evaluate(ctx context.Context, req models.ClassificationRequest) (out Outcome) {
	hour := HourOf(req.Timestamp)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Classifier panic", zap.Any("panic", r))
			out = Outcome{Result: apiErrorResult(fmt.Errorf("panic: %v", r)), Fallback: true, Hour: hour}
		}
	}()

	prompt, err := userPrompt(req, hour)
	if err != nil {
		c.logger.Warn("Dropped unencodable request context", zap.Error(err))
	}

	text, candidate, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Error("Failed to get model response", zap.Error(err))
		return Outcome{Result: apiErrorResult(err), Fallback: true, Hour: hour}
	}

	result, err := decodeVerdict(text, candidate.Capabilities.StructuredOutput)
	if err != nil {
		c.logger.Error("Failed to parse model response",
			zap.Error(err),
			zap.String("model", candidate.Name),
			zap.String("response", text))
		return Outcome{Result: parseErrorResult(err), Model: candidate.Name, Fallback: true, Hour: hour}
	}

	return Outcome{Result: result, Model: candidate.Name, Hour: hour}
}

// generate walks the candidates in order and returns the first reply.
func (c *RegretClassifier) generate(ctx context.Context, prompt string) (string, ModelCandidate, error) {
	if len(c.candidates) == 0 {
		return "", ModelCandidate{}, ErrNoCandidates
	}

	var lastErr error
	for _, candidate := range c.candidates {
		text, err := c.runCandidate(ctx, candidate, prompt)
		if err == nil {
			c.rememberModel(candidate.Name)
			return text, candidate, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", candidate, fmt.Errorf("classification aborted: %w", ctxErr)
		}
	}
	return "", ModelCandidate{}, fmt.Errorf("all %d model candidates failed: %w", len(c.candidates), lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
