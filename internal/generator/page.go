package generator

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// PostPage is the data rendered into a full article page
type PostPage struct {
	SiteName    string
	BaseURL     string
	Title       string
	Description string
	Keyword     string
	Slug        string
	PubDate     string
	Body        string
}

// CanonicalURL returns the public URL of the page
func (p PostPage) CanonicalURL() string {
	return fmt.Sprintf("%s/%s.html", p.BaseURL, p.Slug)
}

var postTemplate = template.Must(template.New("post").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Page.Title}} | {{.Page.SiteName}}</title>
<meta name="description" content="{{.Page.Description}}">
{{- if .Page.Keyword}}
<meta name="keywords" content="{{.Page.Keyword}}, fashion, style guide, outfit ideas">
{{- end}}
<meta property="og:title" content="{{.Page.Title}}">
<meta property="og:description" content="{{.Page.Description}}">
<meta property="og:type" content="article">
<meta property="og:site_name" content="{{.Page.SiteName}}">
<meta property="og:url" content="{{.Canonical}}">
<meta name="twitter:card" content="summary_large_image">
<link rel="canonical" href="{{.Canonical}}">
<link rel="alternate" type="application/rss+xml" title="{{.Page.SiteName}}" href="{{.Page.BaseURL}}/feed.xml">
<script type="application/ld+json">{{.Schema}}</script>
<style>
body { font-family: Georgia, serif; max-width: 800px; margin: 0 auto; padding: 20px; line-height: 1.8; color: #1a1a1a; background: #fafaf8; }
h1 { font-size: 2em; line-height: 1.25; }
h2 { font-size: 1.4em; margin-top: 2em; border-bottom: 1px solid #ddd; padding-bottom: 0.3em; }
a { color: #8B4513; }
.affiliate-disclosure { font-size: 0.85em; color: #888; margin-top: 3em; padding-top: 1em; border-top: 1px solid #eee; }
footer { margin-top: 2em; padding-top: 1em; border-top: 1px solid #ddd; font-size: 0.9em; color: #666; }
</style>
</head>
<body>
<header><div class="brand">{{.Page.SiteName}}</div><div class="date">{{.Page.PubDate}}</div></header>
<article>
<h1>{{.Page.Title}}</h1>
{{.Body}}
</article>
<p class="affiliate-disclosure"><em>This article contains affiliate links. {{.Page.SiteName}} may earn a commission at no extra cost to you.</em></p>
<footer>
<p>&copy; {{.Year}} <a href="{{.Page.BaseURL}}">{{.Page.SiteName}}</a></p>
</footer>
</body>
</html>
`))

var (
	bodyPolicy = newBodyPolicy()
	leadingH1  = regexp.MustCompile(`(?is)^\s*<h1[^>]*>.*?</h1>`)
)

func newBodyPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("div", "section", "p")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// SanitizeBody strips scripts, styles and unsafe attributes from model HTML
func SanitizeBody(body string) string {
	return bodyPolicy.Sanitize(body)
}

// RenderPost renders a complete HTML document for page
func RenderPost(page PostPage) (string, error) {
	if page.Description == "" {
		page.Description = page.Title + " - Expert fashion advice and curated product picks."
	}
	year := page.PubDate
	if len(year) >= 4 {
		year = year[:4]
	} else {
		year = time.Now().UTC().Format("2006")
	}

	body := leadingH1.ReplaceAllString(SanitizeBody(page.Body), "")

	var buf bytes.Buffer
	err := postTemplate.Execute(&buf, map[string]interface{}{
		"Page":      page,
		"Canonical": page.CanonicalURL(),
		"Body":      template.HTML(body),
		"Year":      year,
		"Schema": map[string]interface{}{
			"@context":         "https://schema.org",
			"@type":            "Article",
			"headline":         page.Title,
			"author":           map[string]string{"@type": "Organization", "name": page.SiteName},
			"publisher":        map[string]string{"@type": "Organization", "name": page.SiteName, "url": page.BaseURL},
			"datePublished":    page.PubDate,
			"mainEntityOfPage": page.CanonicalURL(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render post %s: %w", page.Slug, err)
	}
	return buf.String(), nil
}
