package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/feeds"
	"github.com/snabb/sitemap"
	"github.com/tdewolff/minify/v2"
	mHtml "github.com/tdewolff/minify/v2/html"
	mXml "github.com/tdewolff/minify/v2/xml"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
)

const (
	indexFile   = "index.html"
	sitemapFile = "sitemap.xml"
	feedFile    = "feed.xml"

	feedDescription = "Curated fashion intelligence, delivered daily"
	feedItems       = 20

	mimeHTML = "text/html"
	mimeXML  = "text/xml"
	mimeRSS  = "application/rss+xml"
)

var fileDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Stats describes one rebuild
type Stats struct {
	URLs  int
	Posts int
}

// Builder regenerates the site metadata files from the HTML pages found in
// the live directory. The directory, not the queue, is the source of truth.
type Builder struct {
	docsDir string
	baseURL string
	title   string
	logger  *zap.Logger
	min     *minify.M
	now     func() time.Time
}

// NewBuilder creates a new site builder
func NewBuilder(docsDir, baseURL, title string, logger *zap.Logger) *Builder {
	m := minify.New()
	m.AddFunc(mimeHTML, mHtml.Minify)
	m.AddFunc(mimeXML, mXml.Minify)
	m.AddFunc(mimeRSS, mXml.Minify)

	return &Builder{
		docsDir: docsDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		title:   title,
		logger:  logger.Named("site"),
		min:     m,
		now:     time.Now,
	}
}

// DocsDir returns the live directory
func (b *Builder) DocsDir() string { return b.docsDir }

// PageURL returns the public URL of slug
func (b *Builder) PageURL(slug string) string {
	return fmt.Sprintf("%s/%s.html", b.baseURL, slug)
}

// ListSlugs returns the slug of every page in the live directory except the index, sorted
func (b *Builder) ListSlugs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(b.docsDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	slugs := make([]string, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		if name == indexFile {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, ".html"))
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Posts reads the metadata of every page, newest first
func (b *Builder) Posts() ([]model.Post, error) {
	slugs, err := b.ListSlugs()
	if err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(slugs))
	for _, slug := range slugs {
		p, err := ReadPost(filepath.Join(b.docsDir, slug+".html"))
		if err != nil {
			b.logger.Warn("Skipping unreadable page", zap.String("slug", slug), zap.Error(err))
			continue
		}
		posts = append(posts, p)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Date != posts[j].Date {
			return posts[i].Date > posts[j].Date
		}
		return posts[i].Slug > posts[j].Slug
	})
	return posts, nil
}

// ReadPost extracts title, description and date from a rendered page
func ReadPost(path string) (model.Post, error) {
	slug := strings.TrimSuffix(filepath.Base(path), ".html")
	post := model.Post{
		Slug:     slug,
		Title:    TitleFromSlug(slug),
		Date:     fileDate.FindString(slug),
		FilePath: path,
	}

	f, err := os.Open(path)
	if err != nil {
		return post, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return post, fmt.Errorf("failed to parse page: %w", err)
	}

	if title := PageTitle(doc.Find("title").First().Text()); title != "" {
		post.Title = title
	}
	post.Description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	post.Image = strings.TrimSpace(doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
	return post, nil
}

// PageTitle strips the " | Site" suffix from a document title
func PageTitle(title string) string {
	if i := strings.Index(title, "|"); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

// TitleFromSlug turns "2026-03-01-quiet-luxury" into "Quiet Luxury"
func TitleFromSlug(slug string) string {
	s := strings.TrimPrefix(slug, fileDate.FindString(slug))
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// WriteSitemap writes sitemap.xml listing the given slugs
func (b *Builder) WriteSitemap(slugs []string) error {
	today := b.now().UTC().Truncate(24 * time.Hour)

	sm := sitemap.New()
	for _, slug := range slugs {
		sm.Add(&sitemap.URL{
			Loc:        b.PageURL(slug),
			LastMod:    &today,
			ChangeFreq: sitemap.Daily,
		})
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode sitemap: %w", err)
	}
	if err := b.write(sitemapFile, mimeXML, buf.Bytes()); err != nil {
		return err
	}

	b.logger.Info("Sitemap updated", zap.Int("urls", len(slugs)))
	return nil
}

// Rebuild regenerates sitemap.xml, index.html and feed.xml
func (b *Builder) Rebuild(ctx context.Context) (Stats, error) {
	slugs, err := b.ListSlugs()
	if err != nil {
		return Stats{}, err
	}
	if err := b.WriteSitemap(slugs); err != nil {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stats{URLs: len(slugs)}, err
	}

	posts, err := b.Posts()
	if err != nil {
		return Stats{URLs: len(slugs)}, err
	}
	if err := b.writeIndex(posts); err != nil {
		return Stats{URLs: len(slugs)}, err
	}
	if err := b.writeFeed(posts); err != nil {
		return Stats{URLs: len(slugs)}, err
	}

	b.logger.Info("Site rebuilt", zap.Int("urls", len(slugs)), zap.Int("posts", len(posts)))
	return Stats{URLs: len(slugs), Posts: len(posts)}, nil
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} | Fashion Trends &amp; Style Guides</title>
<meta name="description" content="{{.Description}}">
<link rel="canonical" href="{{.BaseURL}}/">
<link rel="alternate" type="application/rss+xml" title="{{.Title}}" href="{{.BaseURL}}/feed.xml">
<style>
body { font-family: Georgia, serif; max-width: 960px; margin: 0 auto; padding: 20px; color: #1a1a1a; background: #fafaf8; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); gap: 24px; }
.card { background: #fff; border: 1px solid #eee; border-radius: 8px; padding: 20px; }
.card a { color: #1a1a1a; text-decoration: none; }
.card time { font-size: 0.8em; color: #999; }
.empty { text-align: center; color: #888; }
</style>
</head>
<body>
<header><h1>{{.Title}}</h1><p>{{.Description}}</p></header>
<main class="grid">
{{- range .Posts}}
<article class="card">
<time datetime="{{.Date}}">{{.Date}}</time>
<h2><a href="{{.Slug}}.html">{{.Title}}</a></h2>
{{- if .Description}}
<p>{{.Description}}</p>
{{- end}}
</article>
{{- else}}
<article class="card empty"><p>No posts yet. Stay tuned!</p></article>
{{- end}}
</main>
<footer><p>&copy; {{.Year}} {{.Title}} &middot; <a href="feed.xml">RSS</a></p></footer>
</body>
</html>
`))

func (b *Builder) writeIndex(posts []model.Post) error {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, map[string]interface{}{
		"Title":       b.title,
		"Description": feedDescription,
		"BaseURL":     b.baseURL,
		"Posts":       posts,
		"Year":        b.now().UTC().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render index: %w", err)
	}
	return b.write(indexFile, mimeHTML, buf.Bytes())
}

func (b *Builder) writeFeed(posts []model.Post) error {
	feed := &feeds.Feed{
		Title:       b.title,
		Link:        &feeds.Link{Href: b.baseURL + "/"},
		Description: feedDescription,
		Created:     b.now().UTC(),
	}

	for i, p := range posts {
		if i == feedItems {
			break
		}
		created, _ := time.Parse(model.DateLayout, p.Date)
		feed.Add(&feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: b.PageURL(p.Slug)},
			Description: p.Description,
			Id:          b.PageURL(p.Slug),
			Created:     created,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return b.write(feedFile, mimeRSS, []byte(rss))
}

// write minifies data and stores it atomically; a minifier failure keeps the raw bytes
func (b *Builder) write(name, mime string, data []byte) error {
	if err := os.MkdirAll(b.docsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create docs dir: %w", err)
	}

	out := data
	if minified, err := b.min.Bytes(mime, data); err == nil {
		out = minified
	} else {
		b.logger.Debug("Minify failed, writing raw", zap.String("file", name), zap.Error(err))
	}

	if err := queue.WriteFileAtomic(filepath.Join(b.docsDir, name), out); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
