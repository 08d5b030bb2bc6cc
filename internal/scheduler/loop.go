package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mergestat/timediff"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/metrics"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/service"
	"github.com/t77yq/trendloop/internal/storage"
)

// Task is one unit of scheduled work
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// NewTask adapts a function to the Task interface
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return funcTask{name: name, fn: fn}
}

type entry struct {
	spec Spec
	task Task
}

// Loop runs registered tasks sequentially whenever they become due
type Loop struct {
	store   *StateStore
	history storage.RunHistory
	events  service.Publisher
	logger  *zap.Logger

	tick time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries []entry
	state   model.ScheduleState
	loaded  bool
	cycles  int
}

// NewLoop creates a loop. history may be nil; a nil events publisher
// disables event emission.
func NewLoop(store *StateStore, history storage.RunHistory, events service.Publisher, logger *zap.Logger) *Loop {
	if events == nil {
		events = service.NopEvents{}
	}
	return &Loop{
		store:   store,
		history: history,
		events:  events,
		logger:  logger.Named("scheduler"),
		tick:    DefaultTick,
		now:     time.Now,
		state:   model.ScheduleState{},
	}
}

// SetTick overrides how often Run checks for due tasks
func (l *Loop) SetTick(d time.Duration) {
	if d > 0 {
		l.tick = d
	}
}

// Register adds a task under spec.Name
func (l *Loop) Register(spec Spec, task Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.spec.Name == spec.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, spec.Name)
		}
	}
	if spec.Interval <= 0 && spec.Cron == nil {
		return fmt.Errorf("%w: %s", ErrInvalidSchedule, spec.Name)
	}
	l.entries = append(l.entries, entry{spec: spec, task: task})
	return nil
}

// Load reads persisted state so a restart resumes the previous schedule
func (l *Loop) Load() error {
	state, err := l.store.Load()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.state = state
	l.loaded = true
	l.mu.Unlock()

	now := l.now()
	for name, ts := range state {
		last := ParseTimestamp(ts.LastRun)
		if last.IsZero() {
			l.logger.Info("Task has never run", zap.String("task", name))
			continue
		}
		l.logger.Info("Restored task state",
			zap.String("task", name),
			zap.String("status", ts.Status),
			zap.String("last_run", timediff.TimeDiff(last, timediff.WithStartTime(now))))
	}
	return nil
}

// State returns a copy of the current schedule state
func (l *Loop) State() model.ScheduleState {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(model.ScheduleState, len(l.state))
	for k, v := range l.state {
		out[k] = v
	}
	return out
}

// Cycles returns the number of completed ticks
func (l *Loop) Cycles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles
}

// Due reports whether the named task should run at now
func (l *Loop) Due(name string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.spec.Name == name {
			return l.due(e.spec, now), nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

func (l *Loop) due(spec Spec, now time.Time) bool {
	ts := l.state[spec.Name]
	if !spec.Due(ParseTimestamp(ts.LastRun), now) {
		return false
	}
	if delay := retryDelay(spec, ts.Failures); delay > 0 {
		attempt := ParseTimestamp(ts.LastAttempt)
		if !attempt.IsZero() && now.Sub(attempt) < delay {
			return false
		}
	}
	return true
}

// Tick runs every due task once, in registration order, and returns how
// many were attempted
func (l *Loop) Tick(ctx context.Context) int {
	l.mu.Lock()
	entries := append([]entry(nil), l.entries...)
	l.mu.Unlock()

	ran := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}

		l.mu.Lock()
		due := l.due(e.spec, l.now())
		l.mu.Unlock()
		if !due {
			continue
		}

		l.execute(ctx, e)
		ran++
	}

	l.mu.Lock()
	l.cycles++
	l.mu.Unlock()
	return ran
}

// Run loads state, ticks immediately, then ticks on the configured
// interval until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	if !l.loaded {
		if err := l.Load(); err != nil {
			return fmt.Errorf("failed to load schedule state: %w", err)
		}
	}

	l.logger.Info("Scheduler started",
		zap.Int("tasks", len(l.entries)),
		zap.Duration("tick", l.tick))

	l.Tick(ctx)

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Scheduler stopped", zap.Int("cycles", l.Cycles()))
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

func (l *Loop) execute(ctx context.Context, e entry) {
	name := e.spec.Name
	startedAt := l.now()

	l.mu.Lock()
	prev := l.state[name]
	l.mu.Unlock()

	rec := &storage.RunRecord{
		ID:        uuid.New().String(),
		Task:      name,
		Status:    model.TaskStatusRunning,
		Attempt:   prev.Failures + 1,
		StartedAt: startedAt,
	}
	if l.history != nil {
		if err := l.history.Store(ctx, rec); err != nil {
			l.logger.Warn("Failed to store run record", zap.String("task", name), zap.Error(err))
		}
	}

	l.logger.Info("Running task", zap.String("task", name), zap.Int("attempt", rec.Attempt))

	err := safeRun(ctx, e.task)
	finishedAt := l.now()
	duration := finishedAt.Sub(startedAt)

	next := prev
	next.LastAttempt = FormatTimestamp(startedAt)
	if err == nil {
		next.LastRun = FormatTimestamp(finishedAt)
		next.Status = statusOK
		next.Failures = 0
		rec.Status = model.TaskStatusCompleted
		l.logger.Info("Task completed", zap.String("task", name), zap.Duration("duration", duration))
	} else {
		next.Status = errorStatus(err)
		next.Failures++
		if e.spec.Advisory {
			next.LastRun = FormatTimestamp(finishedAt)
		}
		rec.Status = model.TaskStatusFailed
		rec.Error = err.Error()
		l.logger.Error("Task failed",
			zap.String("task", name),
			zap.Int("failures", next.Failures),
			zap.Error(err))
	}

	l.mu.Lock()
	l.state[name] = next
	snapshot := make(model.ScheduleState, len(l.state))
	for k, v := range l.state {
		snapshot[k] = v
	}
	l.mu.Unlock()

	if err := l.store.Save(snapshot); err != nil {
		l.logger.Error("Failed to save schedule state", zap.Error(err))
	}

	metrics.TaskRuns.WithLabelValues(name, string(rec.Status)).Inc()
	metrics.TaskDuration.WithLabelValues(name).Observe(duration.Seconds())

	rec.FinishedAt = &finishedAt
	rec.Duration = duration
	if l.history != nil {
		if err := l.history.Update(ctx, rec); err != nil {
			l.logger.Warn("Failed to update run record", zap.String("task", name), zap.Error(err))
		}
	}

	run := model.TaskRun{
		ID:         rec.ID,
		Task:       name,
		Status:     rec.Status,
		Error:      rec.Error,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   duration,
	}
	if err := l.events.Publish(ctx, service.SubjectTaskRun, run); err != nil {
		l.logger.Warn("Failed to publish task event", zap.String("task", name), zap.Error(err))
	}
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrTaskPanicked, r, debug.Stack())
		}
	}()
	return task.Run(ctx)
}

func errorStatus(err error) string {
	msg := []rune(err.Error())
	if len(msg) > statusMaxRunes {
		msg = msg[:statusMaxRunes]
	}
	return "error: " + string(msg)
}
