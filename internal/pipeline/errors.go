package pipeline

import "errors"

var (
	// ErrNoKeywords aborts a one-shot run when no trend keywords were found
	ErrNoKeywords = errors.New("no trend keywords")

	// ErrNoArticle aborts a one-shot run when no article was produced
	ErrNoArticle = errors.New("no article generated")

	// ErrAbnormal aborts a one-shot run when the usage tracker reports abnormal behavior
	ErrAbnormal = errors.New("abnormal behavior detected")

	// ErrAllIntegrationsFailed is returned by the social task when every enabled integration failed
	ErrAllIntegrationsFailed = errors.New("all social integrations failed")
)
