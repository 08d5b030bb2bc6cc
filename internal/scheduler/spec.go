package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Spec describes when a task is due. Exactly one of Interval and Cron is set.
type Spec struct {
	Name     string
	Expr     string
	Interval time.Duration
	Cron     cron.Schedule
	// Advisory tasks advance their last run even when they fail
	Advisory bool
}

// ParseSpec accepts a Go duration ("6h") or a 6-field cron expression
// ("0 0 */6 * * *", or a descriptor such as "@hourly")
func ParseSpec(name, expr string) (Spec, error) {
	expr = strings.TrimSpace(expr)
	spec := Spec{Name: name, Expr: expr}

	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return Spec{}, fmt.Errorf("%w: %s: non-positive interval %q", ErrInvalidSchedule, name, expr)
		}
		spec.Interval = d
		return spec, nil
	}

	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s: %q: %v", ErrInvalidSchedule, name, expr, err)
	}
	spec.Cron = sched
	return spec, nil
}

// Due reports whether a task last run at lastRun is due at now.
// A zero lastRun is always due.
func (s Spec) Due(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	if s.Cron != nil {
		return !now.Before(s.Cron.Next(lastRun))
	}
	return now.Sub(lastRun) >= s.Interval
}

// Next returns when a task last run at lastRun becomes due
func (s Spec) Next(lastRun time.Time) time.Time {
	if s.Cron != nil {
		return s.Cron.Next(lastRun)
	}
	return lastRun.Add(s.Interval)
}
