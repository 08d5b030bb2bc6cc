package safety

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_LogAPICall(t *testing.T) {
	tracker := NewTracker(nil)

	tracker.LogAPICall(ServiceGemini)
	tracker.LogAPICall(ServiceGemini)
	tracker.LogAPICall(ServiceIndexNow)
	tracker.LogAPICall("gemini_flash")

	assert.Equal(t, 2, tracker.Calls(ServiceGemini))
	assert.Equal(t, 1, tracker.Calls(ServiceIndexNow))
	assert.Equal(t, 0, tracker.Calls("gemini_flash"))
	assert.Equal(t, 3, tracker.TotalCalls())
}

func TestTracker_LogError(t *testing.T) {
	tracker := NewTracker(nil)

	tracker.LogError(CategoryTwitter)
	tracker.LogError("unknown")

	assert.Equal(t, 1, tracker.Errors(CategoryTwitter))
	assert.Equal(t, 1, tracker.TotalErrors())
	assert.Equal(t, 2, tracker.ConsecutiveErrors())
}

func TestTracker_IsAbnormal(t *testing.T) {
	tests := []struct {
		name      string
		errors    []string
		threshold int
		want      bool
	}{
		{name: "no errors", threshold: 3, want: false},
		{name: "below threshold", errors: []string{CategoryGemini, CategoryGemini}, threshold: 3, want: false},
		{name: "at threshold", errors: []string{CategoryGemini, CategoryGemini, CategoryGemini}, threshold: 3, want: true},
		{name: "mixed categories", errors: []string{CategoryGemini, CategoryTwitter, CategoryOther}, threshold: 3, want: true},
		{name: "unknown categories still count", errors: []string{"x", "y"}, threshold: 2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(nil)
			for _, e := range tt.errors {
				tracker.LogError(e)
			}
			assert.Equal(t, tt.want, tracker.IsAbnormal(tt.threshold))
		})
	}
}

func TestTracker_SuccessResetsConsecutive(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.LogError(CategoryGemini)
	tracker.LogError(CategoryGemini)
	require.Equal(t, 2, tracker.ConsecutiveErrors())

	tracker.LogAPICall("not-a-service")
	assert.Equal(t, 0, tracker.ConsecutiveErrors())
	assert.False(t, tracker.IsAbnormal(3))
}

func TestTracker_CallCeiling(t *testing.T) {
	tracker := NewTracker(nil)
	for i := 0; i < AbnormalCallCeiling; i++ {
		tracker.LogAPICall(ServiceGemini)
	}
	assert.False(t, tracker.IsAbnormal(3))

	tracker.LogAPICall(ServiceTwitterRead)
	assert.True(t, tracker.IsAbnormal(3))

	// success resets the consecutive counter but not the ceiling
	assert.Equal(t, 0, tracker.ConsecutiveErrors())
	assert.True(t, tracker.IsAbnormal(3))
}

func TestTracker_Report(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	tracker := NewTracker(func() time.Time { return now })
	tracker.LogAPICall(ServiceGemini)
	tracker.LogAPICall(ServiceTwitterWrite)
	tracker.LogError(CategoryOther)
	now = start.Add(90 * time.Second)

	var buf bytes.Buffer
	tracker.Report(&buf)

	out := buf.String()
	assert.Contains(t, out, "Elapsed:          90.0s")
	assert.Contains(t, out, "Total API calls:  2")
	assert.Contains(t, out, "Total errors:     1")
	assert.Contains(t, out, "gemini: 1")
	assert.Contains(t, out, "twitter_write: 1")
	assert.NotContains(t, out, "pinterest:")
}
