// Package logfile opens the daemon and alert logs with daily rollover and age-based cleanup.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Config defines configuration for log management
type Config struct {
	MaxFileSize int64         // Size in bytes that starts a new file within the same day; 0 disables
	MaxAge      time.Duration // Maximum age of rotated log files
}

// DefaultConfig keeps 100MB per file and a week of rotated files
var DefaultConfig = Config{
	MaxFileSize: 100 * 1024 * 1024,
	MaxAge:      7 * 24 * time.Hour,
}

// Open opens a log that rolls over to <path>.YYYYMMDD every UTC day, and to
// <path>.YYYYMMDD.N whenever the current file reaches MaxFileSize. path itself
// is kept as a symlink to the current file. Rotated files older than MaxAge
// are removed on rotation.
func Open(path string, config Config) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	opts := []rotatelogs.Option{
		rotatelogs.WithLinkName(path),
		rotatelogs.WithClock(rotatelogs.UTC),
		rotatelogs.WithMaxAge(config.MaxAge),
		rotatelogs.WithRotationTime(24 * time.Hour),
	}
	if config.MaxFileSize > 0 {
		opts = append(opts, rotatelogs.WithRotationSize(config.MaxFileSize))
	}

	logs, err := rotatelogs.New(path+".%Y%m%d", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logs, nil
}

// Daily opens a log rotated only by day
func Daily(path string, maxAge time.Duration) (*rotatelogs.RotateLogs, error) {
	return Open(path, Config{MaxAge: maxAge})
}
