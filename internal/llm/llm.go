package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/safety"
)

// TextGenerator produces free text for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the generator selected by cfg.LLMProvider, metered by tracker.
// limit caps the number of calls made through the returned generator; 0 means no cap.
func New(cfg *config.Config, client *http.Client, tracker *safety.Tracker, limit int, logger *zap.Logger) TextGenerator {
	var (
		gen     TextGenerator
		service = safety.ServiceGemini
	)
	switch cfg.LLMProvider {
	case "anthropic":
		service = safety.ServiceAnthropic
		gen = NewAnthropicClient(cfg.AnthropicAPIKey, logger)
	default:
		gen = NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, client)
	}
	return NewMetered(gen, service, tracker, limit, logger)
}

// Metered records every call on the tracker and enforces an optional call limit
type Metered struct {
	next    TextGenerator
	service string
	tracker *safety.Tracker
	limit   int
	logger  *zap.Logger

	mu    sync.Mutex
	calls int
}

// NewMetered wraps next
func NewMetered(next TextGenerator, service string, tracker *safety.Tracker, limit int, logger *zap.Logger) *Metered {
	return &Metered{
		next:    next,
		service: service,
		tracker: tracker,
		limit:   limit,
		logger:  logger.Named("llm"),
	}
}

// Calls returns the number of calls attempted so far
func (m *Metered) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements TextGenerator
func (m *Metered) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	if m.limit > 0 && m.calls >= m.limit {
		m.mu.Unlock()
		m.logger.Warn("Call limit reached, blocking further calls", zap.Int("limit", m.limit))
		return "", ErrCallLimit
	}
	m.calls++
	n := m.calls
	m.mu.Unlock()

	m.logger.Debug("Calling model", zap.String("service", m.service), zap.Int("call", n))

	text, err := m.next.Generate(ctx, prompt)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			m.tracker.LogError(safety.CategoryGemini)
		}
		return "", fmt.Errorf("failed to generate text: %w", err)
	}
	m.tracker.LogAPICall(m.service)
	return text, nil
}
