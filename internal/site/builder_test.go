package site

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePage(t *testing.T, dir, slug, title, description string) {
	t.Helper()
	html := "<!DOCTYPE html><html><head><title>" + title + " | TrendLoop USA</title>"
	if description != "" {
		html += `<meta name="description" content="` + description + `">`
	}
	html += "</head><body><h1>" + title + "</h1></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, slug+".html"), []byte(html), 0o644))
}

func newTestBuilder(t *testing.T) (*Builder, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBuilder(dir, "https://example.com/", "TrendLoop USA", zap.NewNop())
	b.now = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }
	return b, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestListSlugs(t *testing.T) {
	b, dir := newTestBuilder(t)
	writePage(t, dir, "2026-03-02-b", "B", "")
	writePage(t, dir, "2026-03-01-a", "A", "")
	writePage(t, dir, "index", "Home", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.xml"), []byte("<rss/>"), 0o644))

	slugs, err := b.ListSlugs()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01-a", "2026-03-02-b"}, slugs)
}

func TestPosts(t *testing.T) {
	b, dir := newTestBuilder(t)
	writePage(t, dir, "2026-03-01-quiet-luxury", "Quiet Luxury Guide", "Understated pieces.")
	writePage(t, dir, "2026-03-04-baggy-jeans", "Baggy Jeans", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual-page.html"), []byte("<p>no head</p>"), 0o644))

	posts, err := b.Posts()
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, "2026-03-04-baggy-jeans", posts[0].Slug)
	assert.Equal(t, "2026-03-01", posts[1].Date)
	assert.Equal(t, "Quiet Luxury Guide", posts[1].Title)
	assert.Equal(t, "Understated pieces.", posts[1].Description)
	assert.Equal(t, "Manual Page", posts[2].Title)
	assert.Empty(t, posts[2].Date)
}

func TestTitleHelpers(t *testing.T) {
	assert.Equal(t, "Quiet Luxury", PageTitle("Quiet Luxury | TrendLoop USA"))
	assert.Equal(t, "Plain", PageTitle("  Plain "))
	assert.Equal(t, "Quiet Luxury", TitleFromSlug("2026-03-01-quiet-luxury"))
	assert.Equal(t, "About Us", TitleFromSlug("about-us"))
	assert.Equal(t, "Émile Été", TitleFromSlug("émile-été"))
}

func TestWriteSitemap(t *testing.T) {
	b, dir := newTestBuilder(t)
	require.NoError(t, b.WriteSitemap([]string{"a", "b"}))

	xml := readFile(t, filepath.Join(dir, "sitemap.xml"))
	assert.Contains(t, xml, "<loc>https://example.com/a.html</loc>")
	assert.Contains(t, xml, "<loc>https://example.com/b.html</loc>")
	assert.Contains(t, xml, "<changefreq>daily</changefreq>")
	assert.Contains(t, xml, "2026-03-05")
}

func TestRebuild(t *testing.T) {
	b, dir := newTestBuilder(t)
	writePage(t, dir, "2026-03-01-quiet-luxury", "Quiet Luxury Guide", "Understated pieces.")
	writePage(t, dir, "2026-03-04-baggy-jeans", "Baggy Jeans", "")

	stats, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{URLs: 2, Posts: 2}, stats)

	index := readFile(t, filepath.Join(dir, "index.html"))
	assert.Contains(t, index, "Quiet Luxury Guide")
	assert.Less(t, strings.Index(index, "2026-03-04-baggy-jeans.html"), strings.Index(index, "2026-03-01-quiet-luxury.html"))
	assert.NotContains(t, index, "No posts yet")

	feed := readFile(t, filepath.Join(dir, "feed.xml"))
	assert.Contains(t, feed, "Curated fashion intelligence, delivered daily")
	assert.Contains(t, feed, "https://example.com/2026-03-04-baggy-jeans.html")

	// the rebuilt index must not list itself on the next pass
	stats, err = b.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.URLs)
}

func TestRebuild_EmptyDir(t *testing.T) {
	b, dir := newTestBuilder(t)

	stats, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Posts)
	assert.Contains(t, readFile(t, filepath.Join(dir, "index.html")), "No posts yet. Stay tuned!")
	assert.FileExists(t, filepath.Join(dir, "sitemap.xml"))
	assert.FileExists(t, filepath.Join(dir, "feed.xml"))
}
