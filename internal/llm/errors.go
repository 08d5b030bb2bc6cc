package llm

import "errors"

var (
	// ErrNotConfigured is returned when no API key is set for the provider
	ErrNotConfigured = errors.New("llm provider not configured")

	// ErrCallLimit is returned once the per-run call limit is used up
	ErrCallLimit = errors.New("llm call limit reached")

	// ErrEmptyResponse is returned when the provider answers without text
	ErrEmptyResponse = errors.New("llm returned empty response")
)
