package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
)

// Store is the post queue: one JSON index file plus one HTML file per entry.
// The index is always read and written whole; a single writer process is assumed.
type Store struct {
	indexPath string
	postsDir  string
	logger    *zap.Logger
}

// NewStore creates a new queue store
func NewStore(indexPath, postsDir string, logger *zap.Logger) *Store {
	return &Store{
		indexPath: indexPath,
		postsDir:  postsDir,
		logger:    logger.Named("queue"),
	}
}

// IndexPath returns the location of the JSON index
func (s *Store) IndexPath() string { return s.indexPath }

// Load reads the whole index
func (s *Store) Load() ([]model.QueueEntry, error) {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoQueue
		}
		return nil, fmt.Errorf("failed to read queue index: %w", err)
	}

	var entries []model.QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse queue index: %w", err)
	}
	return entries, nil
}

// Save rewrites the whole index through a temp file and rename
func (s *Store) Save(entries []model.QueueEntry) error {
	if entries == nil {
		entries = []model.QueueEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue index: %w", err)
	}
	if err := WriteFileAtomic(s.indexPath, data); err != nil {
		return fmt.Errorf("failed to write queue index: %w", err)
	}
	return nil
}

// Append merges entries into the stored index and returns how many were added.
// Entries whose slug is already present are skipped.
func (s *Store) Append(entries []model.QueueEntry) (int, error) {
	existing, err := s.Load()
	if err != nil && !errors.Is(err, ErrNoQueue) {
		return 0, err
	}

	seen := lo.SliceToMap(existing, func(e model.QueueEntry) (string, struct{}) {
		return e.Slug, struct{}{}
	})

	added := 0
	for _, e := range entries {
		if _, dup := seen[e.Slug]; dup {
			s.logger.Warn("Skipping queue entry",
				zap.String("slug", e.Slug),
				zap.Error(ErrDuplicateSlug))
			continue
		}
		seen[e.Slug] = struct{}{}
		existing = append(existing, e)
		added++
	}

	if err := s.Save(existing); err != nil {
		return 0, err
	}
	return added, nil
}

// WritePost stores the rendered page of a queued entry and returns its path
func (s *Store) WritePost(slug, html string) (string, error) {
	if err := os.MkdirAll(s.postsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create queue dir: %w", err)
	}
	path := filepath.Join(s.postsDir, slug+".html")
	if err := WriteFileAtomic(path, []byte(html)); err != nil {
		return "", fmt.Errorf("failed to write post %s: %w", slug, err)
	}
	return path, nil
}

// FindDue returns unpublished entries scheduled for date, in index order
func FindDue(entries []model.QueueEntry, date string) []model.QueueEntry {
	return lo.Filter(entries, func(e model.QueueEntry, _ int) bool {
		return e.PubDate == date && !e.Published
	})
}

// MarkPublished flips the entry with slug to published.
// It returns false when the slug is unknown or already published.
func MarkPublished(entries []model.QueueEntry, slug string) bool {
	for i := range entries {
		if entries[i].Slug != slug {
			continue
		}
		if entries[i].Published {
			return false
		}
		entries[i].Published = true
		return true
	}
	return false
}

// DayStatus is the per-date breakdown of a Summary
type DayStatus struct {
	Date      string
	Total     int
	Published int
}

// Pending returns the unpublished count for the day
func (d DayStatus) Pending() int { return d.Total - d.Published }

// Summary aggregates queue state for the status command
type Summary struct {
	Total         int
	Published     int
	Pending       int
	Days          []DayStatus
	EstimatedCost float64
}

// costPerMillionTokens approximates the generation price used for the status estimate
const costPerMillionTokens = 0.15

// Summarize builds the status overview of entries
func Summarize(entries []model.QueueEntry) Summary {
	sum := Summary{Total: len(entries)}
	sum.Published = lo.CountBy(entries, func(e model.QueueEntry) bool { return e.Published })
	sum.Pending = sum.Total - sum.Published

	byDate := lo.GroupBy(entries, func(e model.QueueEntry) string { return e.PubDate })
	for date, group := range byDate {
		sum.Days = append(sum.Days, DayStatus{
			Date:      date,
			Total:     len(group),
			Published: lo.CountBy(group, func(e model.QueueEntry) bool { return e.Published }),
		})
	}
	sort.Slice(sum.Days, func(i, j int) bool { return sum.Days[i].Date < sum.Days[j].Date })

	if sum.Total > 0 {
		chars := lo.SumBy(entries, func(e model.QueueEntry) int {
			if e.Chars == 0 {
				return 5000
			}
			return e.Chars
		})
		avg := float64(chars) / float64(sum.Total)
		tokens := avg / 4 * float64(sum.Total)
		sum.EstimatedCost = tokens / 1_000_000 * costPerMillionTokens
	}
	return sum
}
