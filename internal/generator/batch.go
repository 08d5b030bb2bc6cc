package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/llm"
	"github.com/t77yq/trendloop/internal/metrics"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
)

const (
	// MinBodyChars is the shortest generated body that is kept
	MinBodyChars = 500

	batchSlugMax = 60
)

var jsonArray = regexp.MustCompile(`\[[\s\S]+\]`)

// BatchOptions tunes a BatchGenerator
type BatchOptions struct {
	PostsPerDay int
	DaysAhead   int
	PauseEvery  int
	Pause       time.Duration
	SiteName    string
	BaseURL     string
	AmazonTag   string
}

// BatchGenerator fills the post queue with a week of generated articles
type BatchGenerator struct {
	llm    llm.TextGenerator
	store  *queue.Store
	opts   BatchOptions
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
}

// NewBatchGenerator creates a new batch generator
func NewBatchGenerator(gen llm.TextGenerator, store *queue.Store, opts BatchOptions, logger *zap.Logger) *BatchGenerator {
	if opts.PostsPerDay <= 0 {
		opts.PostsPerDay = 10
	}
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = 7
	}
	if opts.PauseEvery <= 0 {
		opts.PauseEvery = 5
	}
	if opts.Pause == 0 {
		opts.Pause = 2 * time.Second
	}
	return &BatchGenerator{
		llm:    gen,
		store:  store,
		opts:   opts,
		logger: logger.Named("batch-generator"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// BatchSize is PostsPerDay x DaysAhead
func (g *BatchGenerator) BatchSize() int {
	return g.opts.PostsPerDay * g.opts.DaysAhead
}

func (g *BatchGenerator) topicsPrompt(count int) string {
	return fmt.Sprintf(`You are an elite SEO strategist for %s fashion blog.

Generate exactly %d unique blog post ideas.
Each post targets a DIFFERENT long-tail keyword (4-7 words).

TOPIC MIX: evergreen guides, trend pieces, shopping guides, body-type/inclusive, occasion-specific.

Categories: workwear, casual, date-night, seasonal, body-type, budget, occasion, luxury, streetwear, minimalist, athleisure, denim

Return ONLY a JSON array of %d objects:
[{"title":"...","keyword":"...","category":"...","day":1}]
Assign day 1-%d evenly (%d per day).`,
		g.opts.SiteName, count, count, g.opts.DaysAhead, g.opts.PostsPerDay)
}

// GenerateTopics asks the model for count topic ideas. Any call or parse
// failure yields an empty slice.
func (g *BatchGenerator) GenerateTopics(ctx context.Context, count int) []model.Topic {
	g.logger.Info("Generating topic ideas", zap.Int("count", count))

	text, err := g.llm.Generate(ctx, g.topicsPrompt(count))
	if err != nil {
		g.logger.Error("Topic generation failed", zap.Error(err))
		return nil
	}

	topics, err := ParseTopics(text)
	if err != nil {
		g.logger.Error("Topic response unusable", zap.Error(err))
		return nil
	}

	g.logger.Info("Generated topics", zap.Int("count", len(topics)))
	return topics
}

// ParseTopics extracts the first JSON array from free text
func ParseTopics(text string) ([]model.Topic, error) {
	raw := jsonArray.FindString(text)
	if raw == "" {
		return nil, ErrNoTopics
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}

	topics := make([]model.Topic, 0, len(items))
	for _, item := range items {
		topics = append(topics, model.Topic{
			Title:    cast.ToString(item["title"]),
			Keyword:  cast.ToString(item["keyword"]),
			Category: cast.ToString(item["category"]),
			Day:      cast.ToInt(item["day"]),
		})
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	return topics, nil
}

func (g *BatchGenerator) bodyPrompt(topic model.Topic) string {
	return fmt.Sprintf(`You are a senior fashion editor at %s.

Write a premium SEO-optimized article.
Title: %s
Target keyword: %s
Amazon tag: %s

Requirements:
1. 1200-1800 words, engaging editorial voice for US women 20-40
2. Use target keyword 4-6 times naturally including the first paragraph
3. Include 5-8 Amazon product links:
   <a href="https://www.amazon.com/s?k=KEYWORD&tag=%s" target="_blank" rel="nofollow sponsored">Product</a>
4. Use H2 subheadings with related keywords
5. Include FAQ section (3 questions) for featured snippets
6. Practical, actionable advice - not generic filler
7. Do NOT use em dashes. Use regular hyphens.
8. End with a clear CTA

Output pure HTML only. No markdown. No code fences.`,
		g.opts.SiteName, topic.Title, topic.Keyword, g.opts.AmazonTag, g.opts.AmazonTag)
}

// GenerateBody produces the article HTML for one topic. Bodies shorter than
// MinBodyChars are rejected with ErrBodyTooShort.
func (g *BatchGenerator) GenerateBody(ctx context.Context, topic model.Topic) (string, error) {
	text, err := g.llm.Generate(ctx, g.bodyPrompt(topic))
	if err != nil {
		return "", err
	}
	body := StripFences(text)
	if len(body) < MinBodyChars {
		return "", fmt.Errorf("%w: %d chars", ErrBodyTooShort, len(body))
	}
	return body, nil
}

// BatchGenerate plans count topics, writes one page per usable body and
// appends the new entries to the queue. It returns the number of entries
// generated; a topic failure yields 0 without an error.
func (g *BatchGenerator) BatchGenerate(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		count = g.BatchSize()
	}

	topics := g.GenerateTopics(ctx, count)
	if len(topics) == 0 {
		g.logger.Error("Failed to generate topics")
		return 0, nil
	}
	if len(topics) > count {
		topics = topics[:count]
	}

	existing, err := g.store.Load()
	if err != nil && !errors.Is(err, queue.ErrNoQueue) {
		return 0, fmt.Errorf("failed to load queue: %w", err)
	}
	queued := make(map[string]bool, len(existing))
	for _, e := range existing {
		queued[e.Slug] = true
	}

	today := g.now().UTC()
	used := make(map[string]int)
	var entries []model.QueueEntry

	for i, topic := range topics {
		if ctx.Err() != nil {
			g.logger.Warn("Batch interrupted", zap.Error(ctx.Err()))
			break
		}

		topic = withDefaults(topic, i)
		day := topic.Day
		if day <= 0 || day > g.opts.DaysAhead {
			day = i/g.opts.PostsPerDay + 1
		}
		pubDate := today.AddDate(0, 0, day-1).Format(model.DateLayout)
		slug := uniqueSlug(used, DatedSlug(pubDate, topic.Title, batchSlugMax))
		if queued[slug] {
			g.logger.Warn("Skipped (already queued)", zap.String("slug", slug))
			continue
		}

		g.logger.Info("Generating post",
			zap.Int("index", i+1),
			zap.Int("total", len(topics)),
			zap.String("title", truncate(topic.Title, 50)))

		body, err := g.GenerateBody(ctx, topic)
		if err != nil {
			g.logger.Warn("Skipped (too short or failed)",
				zap.String("slug", slug),
				zap.Error(err))
			continue
		}

		page, err := RenderPost(PostPage{
			SiteName: g.opts.SiteName,
			BaseURL:  g.opts.BaseURL,
			Title:    topic.Title,
			Keyword:  topic.Keyword,
			Slug:     slug,
			PubDate:  pubDate,
			Body:     body,
		})
		if err != nil {
			g.logger.Warn("Skipped (render failed)", zap.String("slug", slug), zap.Error(err))
			continue
		}

		path, err := g.store.WritePost(slug, page)
		if err != nil {
			return len(entries), err
		}

		entries = append(entries, model.QueueEntry{
			Slug:     slug,
			Title:    topic.Title,
			Keyword:  topic.Keyword,
			Category: topic.Category,
			PubDate:  pubDate,
			File:     path,
			Chars:    len(page),
		})
		metrics.PostsGenerated.Inc()
		g.logger.Info("Post queued", zap.String("slug", slug), zap.Int("chars", len(page)))

		if (i+1)%g.opts.PauseEvery == 0 {
			g.logger.Info("Progress", zap.Int("generated", len(entries)), zap.Int("total", len(topics)))
			g.sleep(ctx, g.opts.Pause)
		}
	}

	if len(entries) == 0 {
		g.logger.Warn("Batch produced no posts", zap.Int("topics", len(topics)))
		return 0, nil
	}

	added, err := g.store.Append(entries)
	if err != nil {
		return 0, fmt.Errorf("failed to save queue: %w", err)
	}

	for _, day := range queue.Summarize(entries).Days {
		g.logger.Info("Scheduled", zap.String("date", day.Date), zap.Int("posts", day.Total))
	}
	g.logger.Info("Batch generation complete",
		zap.Int("generated", added),
		zap.Int("topics", len(topics)),
		zap.String("queue", g.store.IndexPath()))
	return added, nil
}

func withDefaults(t model.Topic, i int) model.Topic {
	if strings.TrimSpace(t.Title) == "" {
		t.Title = fmt.Sprintf("Fashion Guide #%d", i+1)
	}
	if t.Keyword == "" {
		t.Keyword = "fashion trends"
	}
	if t.Category == "" {
		t.Category = "casual"
	}
	return t
}

func uniqueSlug(used map[string]int, slug string) string {
	used[slug]++
	if n := used[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
