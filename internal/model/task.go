package model

import "time"

// TaskStatus represents the outcome of a scheduled task attempt
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// TaskRun is the event emitted after every scheduled task attempt
type TaskRun struct {
	ID         string        `json:"id"`
	Task       string        `json:"task"`
	Status     TaskStatus    `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// PostPublished is the event emitted when a queue entry goes live
type PostPublished struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}
