package social

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/t77yq/trendloop/internal/model"
)

const headBytes = 2000

var titlePattern = regexp.MustCompile(`<title>(.*?)(?:\||<)`)

// RecentPosts returns up to n of the most recently modified pages in
// docsDir. The index page counts against n but is never returned.
func RecentPosts(docsDir string, n int) ([]model.Post, error) {
	matches, err := filepath.Glob(filepath.Join(docsDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	type page struct {
		path  string
		mtime int64
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		pages = append(pages, page{path: m, mtime: info.ModTime().UnixNano()})
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].mtime > pages[j].mtime })
	if len(pages) > n {
		pages = pages[:n]
	}

	var posts []model.Post
	for _, p := range pages {
		name := filepath.Base(p.path)
		if name == "index.html" {
			continue
		}
		posts = append(posts, readPost(p.path, strings.TrimSuffix(name, ".html")))
	}
	return posts, nil
}

func readPost(path, slug string) model.Post {
	post := model.Post{Slug: slug, Title: slug, FilePath: path}

	f, err := os.Open(path)
	if err != nil {
		return post
	}
	defer f.Close()

	head := make([]byte, headBytes)
	n, _ := io.ReadFull(f, head)
	if m := titlePattern.FindSubmatch(head[:n]); m != nil {
		if t := strings.TrimSpace(string(m[1])); t != "" {
			post.Title = t
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return post
	}
	if doc, err := goquery.NewDocumentFromReader(f); err == nil {
		post.Description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
		post.Image = strings.TrimSpace(doc.Find("article img").First().AttrOr("src", ""))
	}
	return post
}
