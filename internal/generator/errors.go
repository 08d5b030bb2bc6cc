package generator

import "errors"

var (
	// ErrBodyTooShort is returned when generated content is below MinBodyChars
	ErrBodyTooShort = errors.New("generated body too short")

	// ErrNoTopics is returned when the topic planner produced nothing usable
	ErrNoTopics = errors.New("no topics generated")

	// ErrNoKeywords is returned when an article is requested without keywords
	ErrNoKeywords = errors.New("no keywords given")
)
