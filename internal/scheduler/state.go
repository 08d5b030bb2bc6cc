package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
)

// StateStore persists the per-task schedule state as a JSON document
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by the file at path
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the backing file path
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty state.
func (s *StateStore) Load() (model.ScheduleState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ScheduleState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	state := model.ScheduleState{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	return state, nil
}

// Save writes the whole state atomically
func (s *StateStore) Save(state model.ScheduleState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := queue.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// ParseTimestamp reads a persisted timestamp. Empty or unparseable values
// yield the zero time, which makes the task immediately due.
func ParseTimestamp(v string) time.Time {
	if strings.TrimSpace(v) == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	t, err := dateparse.ParseLocal(v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTimestamp is the inverse of ParseTimestamp
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
