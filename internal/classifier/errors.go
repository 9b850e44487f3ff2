package classifier

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorClass determines how the fallback loop reacts to an upstream error.
type ErrorClass int

const (
	// ErrorTransient is retried after a constant delay.
	ErrorTransient ErrorClass = iota
	// ErrorRateLimited is retried with exponential backoff.
	ErrorRateLimited
	// ErrorUnavailable skips the candidate without retrying.
	ErrorUnavailable
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorUnavailable:
		return "unavailable"
	default:
		return "transient"
	}
}

// ClassifyError maps an upstream error to its class. HTTP status codes from
// the OpenAI-compatible client win; otherwise the message is inspected.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if class, ok := classifyStatus(statusCode(err)); ok {
		return class
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "404") || strings.Contains(s, "not found") ||
		strings.Contains(s, "not supported") {
		return ErrorUnavailable
	}
	if strings.Contains(s, "429") || strings.Contains(s, "quota") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "resource_exhausted") || strings.Contains(s, "resource exhausted") {
		return ErrorRateLimited
	}
	return ErrorTransient
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(code int) (ErrorClass, bool) {
	switch code {
	case http.StatusNotFound:
		return ErrorUnavailable, true
	case http.StatusTooManyRequests:
		return ErrorRateLimited, true
	}
	return ErrorTransient, false
}
