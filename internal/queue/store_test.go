package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "queue_index.json"), filepath.Join(dir, "post_queue"), zap.NewNop())
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoQueue)
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)
	entries := []model.QueueEntry{
		{Slug: "2026-03-01-a", Title: "A", PubDate: "2026-03-01", Chars: 900},
		{Slug: "2026-03-02-b", Title: "B", PubDate: "2026-03-02", Published: true},
	}
	require.NoError(t, store.Save(entries))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	raw, err := os.ReadFile(store.IndexPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pub_date": "2026-03-01"`)
	assert.Contains(t, string(raw), `"published": true`)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(store.IndexPath()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_Append(t *testing.T) {
	store := newTestStore(t)

	added, err := store.Append([]model.QueueEntry{{Slug: "a"}, {Slug: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = store.Append([]model.QueueEntry{{Slug: "b"}, {Slug: "c"}, {Slug: "c"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	loaded, err := store.Load()
	require.NoError(t, err)
	slugs := make([]string, 0, len(loaded))
	for _, e := range loaded {
		slugs = append(slugs, e.Slug)
	}
	assert.Equal(t, []string{"a", "b", "c"}, slugs)
}

func TestStore_WritePost(t *testing.T) {
	store := newTestStore(t)
	path, err := store.WritePost("2026-03-01-a", "<p>hi</p>")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(data))
	assert.Equal(t, "2026-03-01-a.html", filepath.Base(path))
}

func TestFindDue(t *testing.T) {
	entries := []model.QueueEntry{
		{Slug: "1", PubDate: "2026-03-01"},
		{Slug: "2", PubDate: "2026-03-02"},
		{Slug: "3", PubDate: "2026-03-01", Published: true},
		{Slug: "4", PubDate: "2026-03-01"},
	}

	due := FindDue(entries, "2026-03-01")
	require.Len(t, due, 2)
	assert.Equal(t, "1", due[0].Slug)
	assert.Equal(t, "4", due[1].Slug)

	assert.Empty(t, FindDue(entries, "2026-03-05"))
}

func TestMarkPublished(t *testing.T) {
	entries := []model.QueueEntry{{Slug: "a"}, {Slug: "b"}}

	assert.True(t, MarkPublished(entries, "a"))
	assert.True(t, entries[0].Published)

	t.Run("idempotent", func(t *testing.T) {
		assert.False(t, MarkPublished(entries, "a"))
		assert.True(t, entries[0].Published)
	})

	t.Run("unknown slug", func(t *testing.T) {
		assert.False(t, MarkPublished(entries, "zzz"))
		assert.False(t, entries[1].Published)
	})
}

func TestSummarize(t *testing.T) {
	entries := []model.QueueEntry{
		{Slug: "1", PubDate: "2026-03-02", Chars: 4000},
		{Slug: "2", PubDate: "2026-03-01", Chars: 4000, Published: true},
		{Slug: "3", PubDate: "2026-03-01", Chars: 4000, Published: true},
	}

	sum := Summarize(entries)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Published)
	assert.Equal(t, 1, sum.Pending)
	require.Len(t, sum.Days, 2)
	assert.Equal(t, DayStatus{Date: "2026-03-01", Total: 2, Published: 2}, sum.Days[0])
	assert.Equal(t, 0, sum.Days[0].Pending())
	assert.Equal(t, 1, sum.Days[1].Pending())
	assert.InDelta(t, 3000.0/1_000_000*0.15, sum.EstimatedCost, 1e-12)

	assert.Zero(t, Summarize(nil).EstimatedCost)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "queue_index.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "queue_index.json", entries[0].Name())
}
