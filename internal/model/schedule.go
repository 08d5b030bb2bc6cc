package model

// TaskState is the persisted last-run record of one scheduled task
type TaskState struct {
	LastRun     string `json:"last_run,omitempty"`
	LastAttempt string `json:"last_attempt,omitempty"`
	Status      string `json:"status,omitempty"`
	Failures    int    `json:"failures,omitempty"`
}

// ScheduleState maps task names to their persisted state
type ScheduleState map[string]TaskState
