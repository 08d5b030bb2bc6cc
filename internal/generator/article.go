package generator

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/llm"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
)

const (
	articleSlugMax = 50
	summaryMax     = 250
)

// Article is a page produced by the one-shot writer
type Article struct {
	Title    string
	Slug     string
	HTML     string
	Summary  string
	FilePath string
}

// Post converts the article to the shape social posters consume
func (a *Article) Post() model.Post {
	return model.Post{Slug: a.Slug, Title: a.Title, Summary: a.Summary, FilePath: a.FilePath}
}

// ArticleWriter turns trending keywords into a single published page
type ArticleWriter struct {
	llm       llm.TextGenerator
	docsDir   string
	siteName  string
	baseURL   string
	amazonTag string
	logger    *zap.Logger
	now       func() time.Time
}

// NewArticleWriter creates a new article writer
func NewArticleWriter(gen llm.TextGenerator, docsDir, siteName, baseURL, amazonTag string, logger *zap.Logger) *ArticleWriter {
	return &ArticleWriter{
		llm:       gen,
		docsDir:   docsDir,
		siteName:  siteName,
		baseURL:   baseURL,
		amazonTag: amazonTag,
		logger:    logger.Named("writer"),
		now:       time.Now,
	}
}

// AmazonLink builds an affiliate search link for keyword
func AmazonLink(keyword, tag string) string {
	return fmt.Sprintf("https://www.amazon.com/s?k=%s&tag=%s", url.QueryEscape(keyword), url.QueryEscape(tag))
}

func (w *ArticleWriter) articlePrompt(names []string) string {
	links := lo.Map(names, func(k string, _ int) string {
		return fmt.Sprintf("- %s: %s", k, AmazonLink(k, w.amazonTag))
	})
	return fmt.Sprintf(`You are a professional fashion blogger writing for a US audience.

Write an engaging, SEO-optimized blog post about today's hottest fashion trends.

Trending keywords to cover: %s

Amazon affiliate links to include naturally in the article:
%s

Requirements:
1. Write a catchy title (H1)
2. Write 800-1200 words
3. Include each keyword at least twice for SEO
4. Naturally embed the Amazon links as product recommendations (use HTML <a> tags with target="_blank")
5. Add a "Shop the Look" section at the end with all Amazon links
6. Use a friendly, conversational tone
7. Include an intro paragraph and a conclusion
8. Use H2 subheadings for each trend
9. Output pure HTML content (no code fences, no <html>/<head>/<body> tags)
10. Add a small disclaimer at the bottom: "This post contains affiliate links. We may earn a commission at no extra cost to you."`,
		strings.Join(names, ", "), strings.Join(links, "\n"))
}

// Write generates, renders and stores an article for keywords
func (w *ArticleWriter) Write(ctx context.Context, keywords []model.Keyword) (*Article, error) {
	names := lo.FilterMap(keywords, func(k model.Keyword, _ int) (string, bool) {
		return k.Keyword, strings.TrimSpace(k.Keyword) != ""
	})
	if len(names) == 0 {
		return nil, ErrNoKeywords
	}

	text, err := w.llm.Generate(ctx, w.articlePrompt(names))
	if err != nil {
		return nil, fmt.Errorf("failed to generate article: %w", err)
	}
	body := StripFences(text)

	title := ExtractTitle(body)
	if title == "" {
		title = "Fashion Trends: " + titleCase(names[0])
	}

	today := w.now().UTC().Format(model.DateLayout)
	slug := DatedSlug(today, title, articleSlugMax)
	summary := w.summarize(ctx, title, names)

	page, err := RenderPost(PostPage{
		SiteName:    w.siteName,
		BaseURL:     w.baseURL,
		Title:       title,
		Description: title + " - Discover the latest fashion trends in the USA.",
		Keyword:     names[0],
		Slug:        slug,
		PubDate:     today,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}

	path := filepath.Join(w.docsDir, slug+".html")
	if err := queue.WriteFileAtomic(path, []byte(page)); err != nil {
		return nil, fmt.Errorf("failed to write article: %w", err)
	}

	w.logger.Info("Article written",
		zap.String("title", title),
		zap.String("path", path),
		zap.String("summary", summary))

	return &Article{Title: title, Slug: slug, HTML: page, Summary: summary, FilePath: path}, nil
}

func (w *ArticleWriter) summarize(ctx context.Context, title string, names []string) string {
	prompt := fmt.Sprintf(`Summarize this fashion blog post title in a compelling tweet (max %d chars).
Include 2-3 relevant hashtags. Do NOT use markdown.

Title: %s
Keywords: %s

Tweet:`, summaryMax, title, strings.Join(names, ", "))

	text, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		w.logger.Warn("Summary generation failed, using fallback", zap.Error(err))
		text = ""
	}
	text = truncate(strings.TrimSpace(text), summaryMax)
	if text == "" {
		text = fmt.Sprintf("New fashion trends alert! %s #Fashion #Trending", strings.Join(lo.Slice(names, 0, 3), ", "))
	}
	return text
}

// ExtractTitle returns the text of the first h1 in an HTML fragment
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
