package queue

import "errors"

var (
	// ErrNoQueue is returned when the queue index file does not exist
	ErrNoQueue = errors.New("queue index not found")

	// ErrDuplicateSlug is returned when an entry's slug is already queued
	ErrDuplicateSlug = errors.New("duplicate slug")
)
