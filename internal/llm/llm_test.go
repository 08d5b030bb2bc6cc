package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/safety"
)

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Generate(context.Context, string) (string, error) { return s.text, s.err }

func TestGeminiClient_Generate(t *testing.T) {
	var gotPrompt, gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"world"}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient("secret", "gemini-2.5-flash", srv.Client()).WithBaseURL(srv.URL)
	text, err := client.Generate(context.Background(), "say hi")
	require.NoError(t, err)

	assert.Equal(t, "hello world", text)
	assert.Equal(t, "say hi", gotPrompt)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
}

func TestGeminiClient_Errors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		_, err := NewGeminiClient("", "m", nil).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("empty candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		_, err := NewGeminiClient("k", "m", srv.Client()).WithBaseURL(srv.URL).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewGeminiClient("k", "m", srv.Client()).WithBaseURL(srv.URL).Generate(context.Background(), "p")
		assert.Error(t, err)
	})
}

func TestMetered(t *testing.T) {
	t.Run("limit", func(t *testing.T) {
		tracker := safety.NewTracker(nil)
		m := NewMetered(stubGenerator{text: "ok"}, safety.ServiceGemini, tracker, 2, zap.NewNop())

		for i := 0; i < 2; i++ {
			text, err := m.Generate(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, "ok", text)
		}
		_, err := m.Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrCallLimit)
		assert.Equal(t, 2, tracker.Calls(safety.ServiceGemini))
		assert.Equal(t, 2, m.Calls())
	})

	t.Run("failure is tracked", func(t *testing.T) {
		tracker := safety.NewTracker(nil)
		m := NewMetered(stubGenerator{err: errors.New("boom")}, safety.ServiceGemini, tracker, 0, zap.NewNop())

		_, err := m.Generate(context.Background(), "p")
		require.Error(t, err)
		assert.Equal(t, 1, tracker.Errors(safety.CategoryGemini))
		assert.Equal(t, 1, tracker.ConsecutiveErrors())
	})

	t.Run("not configured is not an error", func(t *testing.T) {
		tracker := safety.NewTracker(nil)
		m := NewMetered(stubGenerator{err: ErrNotConfigured}, safety.ServiceGemini, tracker, 0, zap.NewNop())

		_, err := m.Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Zero(t, tracker.TotalErrors())
	})
}

func TestAnthropicClient_NotConfigured(t *testing.T) {
	_, err := NewAnthropicClient("", zap.NewNop()).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
