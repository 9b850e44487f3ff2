package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/regretgpt/internal/classifier"
	"github.com/xaenox/regretgpt/internal/models"
	"github.com/xaenox/regretgpt/internal/storage"
	"go.uber.org/zap/zaptest"
)

var verdict = models.ClassificationResult{
	RegretScore:          85,
	Reason:               "Late-night impulsive resignation email.",
	InterventionStrength: models.StrengthBlockHard,
	LLMMessage:           "Sleep on it. Seriously.",
	Simulation:           "Tomorrow you panic-email HR.",
}

type fakeEvaluator struct {
	mu       sync.Mutex
	outcome  classifier.Outcome
	requests []models.ClassificationRequest
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req models.ClassificationRequest) classifier.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	out := f.outcome
	out.Hour = classifier.HourOf(req.Timestamp)
	return out
}

func (f *fakeEvaluator) LastModel() string { return f.outcome.Model }

type mapCache struct {
	mu      sync.Mutex
	entries map[string]models.ClassificationResult
	getErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]models.ClassificationResult)}
}

func (m *mapCache) Get(ctx context.Context, key string) (models.ClassificationResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return models.ClassificationResult{}, false, m.getErr
	}
	r, ok := m.entries[key]
	return r, ok, nil
}

func (m *mapCache) Set(ctx context.Context, key string, result models.ClassificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = result
	return nil
}

func (m *mapCache) Close() error { return nil }

type failingStorage struct{ storage.Storage }

func (failingStorage) SaveVerdict(context.Context, *models.Verdict) error {
	return errors.New("DB down")
}

func (failingStorage) RecentVerdicts(context.Context, int) ([]*models.Verdict, error) {
	return nil, errors.New("DB down")
}

type testServer struct {
	evaluator *fakeEvaluator
	store     *storage.MemoryStorage
	cache     *mapCache
	handler   http.Handler
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		evaluator: &fakeEvaluator{outcome: classifier.Outcome{Result: verdict, Model: "gemini-2.5-flash"}},
		store:     storage.NewMemoryStorage(0),
		cache:     newMapCache(),
	}
	s, err := New(cfg, ts.evaluator, ts.store, ts.cache, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts.handler = s.Handler()
	return ts
}

func (ts *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	ts.handler.ServeHTTP(w, req)
	return w
}

const resignationBody = `{"typed_text": "  I quit my job, sending now  ", "url": "mail.example.com", "time_iso": "2024-01-01T02:30:00Z", "context": {"label": "email"}}`

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var res healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, healthResponse{
		Status:  "ok",
		Message: "RegretGPT backend is running",
		Version: Version,
		Model:   "gemini-2.5-flash",
	}, res)
}

func TestClassify_OK(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodPost, "/classify", resignationBody)

	assert.Equal(t, http.StatusOK, w.Code)
	var res models.ClassificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, verdict, res)

	require.Len(t, ts.evaluator.requests, 1)
	req := ts.evaluator.requests[0]
	assert.Equal(t, "I quit my job, sending now", req.Text)
	assert.Equal(t, "mail.example.com", req.URL)
	assert.Equal(t, "2024-01-01T02:30:00Z", req.Timestamp)
	assert.Equal(t, map[string]any{"label": "email"}, req.Context)
}

func TestClassify_Headers(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodPost, "/classify", resignationBody, "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(headerRequestID))
	elapsed, err := strconv.ParseFloat(w.Header().Get(headerProcessTime), 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 0.0)

	w = ts.do(http.MethodGet, "/health", "")
	assert.Len(t, w.Header().Get(headerRequestID), 36)
	assert.NotEmpty(t, w.Header().Get(headerProcessTime))
}

func TestClassify_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"blank text", `{"typed_text": "   "}`},
		{"missing text", `{"url": "mail.example.com"}`},
		{"oversized text", `{"typed_text": "` + strings.Repeat("a", 10001) + `"}`},
		{"oversized url", `{"typed_text": "hi", "url": "` + strings.Repeat("u", 2049) + `"}`},
		{"malformed JSON", `{"typed_text": `},
		{"context not an object", `{"typed_text": "hi", "context": "email"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Config{})

			w := ts.do(http.MethodPost, "/classify", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var res models.ClassificationResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, 0, res.RegretScore)
			assert.Equal(t, models.StrengthNone, res.InterventionStrength)
			assert.True(t, strings.HasPrefix(res.Reason, "Validation error: "), res.Reason)
			assert.Equal(t, "Invalid input.", res.LLMMessage)
			assert.Empty(t, ts.evaluator.requests)
		})
	}
}

func TestClassify_MaxLengthTextAccepted(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodPost, "/classify", `{"typed_text": "`+strings.Repeat("é", 10000)+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassify_RecordsHistory(t *testing.T) {
	ts := newTestServer(t, Config{})

	ts.do(http.MethodPost, "/classify", resignationBody)

	w := ts.do(http.MethodGet, "/verdicts", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var history []models.Verdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "mail.example.com", history[0].URL)
	assert.Equal(t, len("I quit my job, sending now"), history[0].TextLength)
	require.NotNil(t, history[0].Hour)
	assert.Equal(t, 2, *history[0].Hour)
	assert.Equal(t, verdict, history[0].Result)
	assert.Equal(t, "gemini-2.5-flash", history[0].Model)
	assert.False(t, history[0].Fallback)
}

func TestClassify_CachesModelVerdicts(t *testing.T) {
	ts := newTestServer(t, Config{})

	first := ts.do(http.MethodPost, "/classify", resignationBody)
	second := ts.do(http.MethodPost, "/classify", resignationBody)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Len(t, ts.evaluator.requests, 1)

	recent, err := ts.store.RecentVerdicts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, modelCache, recent[0].Model)
}

func TestClassify_DoesNotCacheFallbacks(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.evaluator.outcome = classifier.Outcome{
		Result:   models.ClassificationResult{Reason: "API error: boom", InterventionStrength: models.StrengthNone},
		Fallback: true,
	}

	ts.do(http.MethodPost, "/classify", resignationBody)
	ts.do(http.MethodPost, "/classify", resignationBody)

	assert.Len(t, ts.evaluator.requests, 2)
	assert.Empty(t, ts.cache.entries)
}

func TestClassify_CacheErrorFallsThrough(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.cache.getErr = errors.New("redis down")

	w := ts.do(http.MethodPost, "/classify", resignationBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ts.evaluator.requests, 1)
}

func TestClassify_StorageFailureIsNotFatal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	evaluator := &fakeEvaluator{outcome: classifier.Outcome{Result: verdict}}
	s, err := New(Config{}, evaluator, failingStorage{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(resignationBody))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verdicts", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestVerdicts_Limit(t *testing.T) {
	ts := newTestServer(t, Config{})
	for i := 0; i < 3; i++ {
		body := `{"typed_text": "message ` + strconv.Itoa(i) + `"}`
		ts.do(http.MethodPost, "/classify", body)
	}

	w := ts.do(http.MethodGet, "/verdicts?limit=2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var history []models.Verdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	w = ts.do(http.MethodGet, "/verdicts?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerdicts_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodGet, "/verdicts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestCORS_Development(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodOptions, "/classify", "",
		"Origin", "chrome-extension://abcdef",
		"Access-Control-Request-Method", http.MethodPost)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Production(t *testing.T) {
	ts := newTestServer(t, Config{
		Production:     true,
		AllowedOrigins: []string{"https://regret.example.com"},
	})

	w := ts.do(http.MethodGet, "/health", "", "Origin", "https://regret.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://regret.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = ts.do(http.MethodGet, "/health", "", "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNew_RejectsProductionWithoutOrigins(t *testing.T) {
	_, err := New(Config{Production: true}, &fakeEvaluator{}, storage.NewMemoryStorage(0), nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.do(http.MethodPost, "/classify", resignationBody)

	w := ts.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "regretgpt_classifications_total")
}
