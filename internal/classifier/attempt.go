package classifier

import (
	"context"
	"time"

	"github.com/xaenox/regretgpt/internal/metrics"
	"go.uber.org/zap"
)

// maxBackoff caps the exponential rate-limit delay.
const maxBackoff = 5 * time.Minute

type attemptState int

const (
	stateTrying attemptState = iota
	stateBackoff
	stateExhausted
	stateSuccess
)

// candidateRun is the state carried between transitions for one candidate.
type candidateRun struct {
	candidate ModelCandidate
	request   CompletionRequest
	attempt   int
	delay     time.Duration
	text      string
	err       error
}

// runCandidate drives one candidate from Trying to Success or Exhausted.
func (c *RegretClassifier) runCandidate(ctx context.Context, candidate ModelCandidate, prompt string) (string, error) {
	run := &candidateRun{
		candidate: candidate,
		request:   composeRequest(candidate, prompt, c.temperature, c.maxTokens),
	}

	state := stateTrying
	for {
		switch state {
		case stateTrying:
			state = c.try(ctx, run)
		case stateBackoff:
			state = c.backoff(ctx, run)
		case stateSuccess:
			return run.text, nil
		default:
			return "", run.err
		}
	}
}

func (c *RegretClassifier) try(ctx context.Context, run *candidateRun) attemptState {
	text, err := c.completer.Complete(ctx, run.request)
	if err == nil {
		metrics.UpstreamAttempts.WithLabelValues(run.candidate.Name, "success").Inc()
		run.text = text
		return stateSuccess
	}

	run.err = err
	if ctx.Err() != nil {
		metrics.UpstreamAttempts.WithLabelValues(run.candidate.Name, "cancelled").Inc()
		return stateExhausted
	}

	class := ClassifyError(err)
	metrics.UpstreamAttempts.WithLabelValues(run.candidate.Name, class.String()).Inc()

	switch class {
	case ErrorUnavailable:
		c.logger.Warn("Model not available, trying next",
			zap.String("model", run.candidate.Name),
			zap.Error(err))
		return stateExhausted
	case ErrorRateLimited:
		run.delay = rateLimitDelay(c.retryDelay, run.attempt)
	default:
		run.delay = c.retryDelay
	}

	if run.attempt >= c.maxRetries-1 {
		c.logger.Error("Model attempts exhausted",
			zap.String("model", run.candidate.Name),
			zap.Int("attempts", run.attempt+1),
			zap.Stringer("class", class),
			zap.Error(err))
		return stateExhausted
	}

	c.logger.Warn("Model call failed, retrying",
		zap.String("model", run.candidate.Name),
		zap.Int("attempt", run.attempt+1),
		zap.Int("max_retries", c.maxRetries),
		zap.Stringer("class", class),
		zap.Duration("delay", run.delay),
		zap.Error(err))
	return stateBackoff
}

func (c *RegretClassifier) backoff(ctx context.Context, run *candidateRun) attemptState {
	if err := c.sleep(ctx, run.delay); err != nil {
		run.err = err
		return stateExhausted
	}
	run.attempt++
	return stateTrying
}

// rateLimitDelay is base * 2^attempt, capped at maxBackoff.
func rateLimitDelay(base time.Duration, attempt int) time.Duration {
	if base >= maxBackoff {
		return maxBackoff
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
