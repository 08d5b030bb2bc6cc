package scheduler

import "time"

const (
	// DefaultTick is how often the loop checks for due tasks
	DefaultTick = 60 * time.Second

	// Task names
	TaskContent   = "content"
	TaskSEO       = "seo"
	TaskSocial    = "social"
	TaskHeartbeat = "heartbeat"

	statusOK        = "ok"
	statusMaxRunes  = 100
	backoffInitial  = time.Minute
	backoffCronCap  = time.Hour
	backoffMultiple = 2
)

// DefaultSchedules are the built-in intervals of the four pipeline tasks
var DefaultSchedules = map[string]string{
	TaskContent:   "6h",
	TaskSEO:       "1h",
	TaskSocial:    "12h",
	TaskHeartbeat: "5m",
}
