package safety

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/t77yq/trendloop/internal/metrics"
)

// AbnormalCallCeiling is the per-run total call count above which a run is abnormal
const AbnormalCallCeiling = 50

// Service names recognized by LogAPICall
const (
	ServiceGemini       = "gemini"
	ServiceAnthropic    = "anthropic"
	ServiceTwitterRead  = "twitter_read"
	ServiceTwitterWrite = "twitter_write"
	ServiceGoogleIndex  = "google_index"
	ServicePinterest    = "pinterest"
	ServiceIndexNow     = "indexnow"
	ServiceTelegram     = "telegram"
	ServiceDistribution = "distribution"
)

// Error categories recognized by LogError
const (
	CategoryGemini  = "gemini"
	CategoryTwitter = "twitter"
	CategoryOther   = "other"
)

var (
	services   = []string{ServiceGemini, ServiceAnthropic, ServiceTwitterRead, ServiceTwitterWrite, ServiceGoogleIndex, ServicePinterest, ServiceIndexNow, ServiceTelegram, ServiceDistribution}
	categories = []string{CategoryGemini, CategoryTwitter, CategoryOther}
)

// Tracker counts API calls and errors for one run.
// Unknown service or category keys are not counted, but they still move
// the consecutive error counter.
type Tracker struct {
	mu          sync.Mutex
	now         func() time.Time
	start       time.Time
	calls       map[string]int
	errors      map[string]int
	consecutive int
}

// NewTracker creates a new tracker; now may be nil
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		now:    now,
		start:  now(),
		calls:  make(map[string]int, len(services)),
		errors: make(map[string]int, len(categories)),
	}
	for _, s := range services {
		t.calls[s] = 0
	}
	for _, c := range categories {
		t.errors[c] = 0
	}
	return t
}

// LogAPICall records one successful call and resets the consecutive error count
func (t *Tracker) LogAPICall(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[service]; ok {
		t.calls[service]++
		metrics.APICalls.WithLabelValues(service).Inc()
	}
	t.consecutive = 0
}

// LogError records one failure
func (t *Tracker) LogError(category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.errors[category]; ok {
		t.errors[category]++
		metrics.APIErrors.WithLabelValues(category).Inc()
	}
	t.consecutive++
}

// IsAbnormal reports whether the run should be stopped
func (t *Tracker) IsAbnormal(maxConsecutive int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutive >= maxConsecutive || t.totalCalls() > AbnormalCallCeiling
}

// Calls returns the count for a single service
func (t *Tracker) Calls(service string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[service]
}

// Errors returns the count for a single error category
func (t *Tracker) Errors(category string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors[category]
}

func (t *Tracker) TotalCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCalls()
}

func (t *Tracker) TotalErrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.errors {
		total += n
	}
	return total
}

func (t *Tracker) ConsecutiveErrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutive
}

func (t *Tracker) totalCalls() int {
	total := 0
	for _, n := range t.calls {
		total += n
	}
	return total
}

// Report writes a human-readable usage summary
func (t *Tracker) Report(w io.Writer) {
	elapsed := t.now().Sub(t.start)
	calls := t.TotalCalls()
	errs := t.TotalErrors()

	t.mu.Lock()
	defer t.mu.Unlock()

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  API usage report")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Elapsed:          %.1fs\n", elapsed.Seconds())
	fmt.Fprintf(w, "  Total API calls:  %d\n", calls)
	fmt.Fprintf(w, "  Total errors:     %d\n", errs)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  [calls]")
	for _, s := range services {
		if n := t.calls[s]; n > 0 {
			fmt.Fprintf(w, "    %s: %d\n", s, n)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  [cost tier]")
	fmt.Fprintf(w, "    LLM:      %d calls (free tier)\n", t.calls[ServiceGemini]+t.calls[ServiceAnthropic])
	fmt.Fprintf(w, "    X API:    %d calls (free tier)\n", t.calls[ServiceTwitterRead]+t.calls[ServiceTwitterWrite])
	fmt.Fprintln(w, rule)
}
