package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cp "github.com/otiai10/copy"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/metrics"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
	"github.com/t77yq/trendloop/internal/service"
	"github.com/t77yq/trendloop/internal/site"
)

// Rebuilder regenerates the site metadata from the live directory
type Rebuilder interface {
	Rebuild(ctx context.Context) (site.Stats, error)
}

// Indexer requests crawling of a published page
type Indexer interface {
	Notify(ctx context.Context, slug string) model.Result
}

// Publisher moves due queue entries into the live directory
type Publisher struct {
	store   *queue.Store
	docsDir string
	baseURL string
	site    Rebuilder
	indexer Indexer
	events  service.Publisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewPublisher creates a new daily publisher
func NewPublisher(store *queue.Store, docsDir, baseURL string, rebuilder Rebuilder, indexer Indexer, events service.Publisher, logger *zap.Logger) *Publisher {
	if events == nil {
		events = service.NopEvents{}
	}
	return &Publisher{
		store:   store,
		docsDir: docsDir,
		baseURL: baseURL,
		site:    rebuilder,
		indexer: indexer,
		events:  events,
		logger:  logger.Named("publisher"),
		now:     time.Now,
	}
}

// PublishDue publishes every unpublished entry scheduled for today and
// returns how many went live. It never fails: problems are logged and the
// affected entry stays queued.
func (p *Publisher) PublishDue(ctx context.Context, today string) int {
	entries, err := p.store.Load()
	if errors.Is(err, queue.ErrNoQueue) {
		p.logger.Warn("No queue found, run batch generation first", zap.String("path", p.store.IndexPath()))
		return 0
	}
	if err != nil {
		p.logger.Error("Failed to load queue", zap.Error(err))
		return 0
	}

	due := queue.FindDue(entries, today)
	if len(due) == 0 {
		p.logger.Info("No posts scheduled", zap.String("date", today))
		return 0
	}

	p.logger.Info("Publishing due posts", zap.String("date", today), zap.Int("due", len(due)))

	published := 0
	for _, entry := range due {
		if ctx.Err() != nil {
			p.logger.Warn("Publishing interrupted", zap.Error(ctx.Err()))
			break
		}

		if _, err := os.Stat(entry.File); err != nil {
			p.logger.Warn("Queued file missing, skipping", zap.String("slug", entry.Slug), zap.String("file", entry.File))
			continue
		}

		dest := filepath.Join(p.docsDir, entry.Slug+".html")
		if err := cp.Copy(entry.File, dest); err != nil {
			p.logger.Error("Failed to copy post", zap.String("slug", entry.Slug), zap.Error(err))
			continue
		}

		if !queue.MarkPublished(entries, entry.Slug) {
			continue
		}
		published++
		metrics.PostsPublished.Inc()
		p.logger.Info("Published", zap.String("slug", entry.Slug), zap.String("title", entry.Title))

		if p.indexer != nil {
			if res := p.indexer.Notify(ctx, entry.Slug); !res.IsOK() {
				p.logger.Debug("Indexing not confirmed", zap.String("slug", entry.Slug), zap.Stringer("result", res))
			}
		}

		event := model.PostPublished{
			Slug:        entry.Slug,
			Title:       entry.Title,
			URL:         fmt.Sprintf("%s/%s.html", p.baseURL, entry.Slug),
			PublishedAt: p.now().UTC(),
		}
		if err := p.events.Publish(ctx, service.SubjectPostPublished, event); err != nil {
			p.logger.Warn("Failed to emit publish event", zap.String("slug", entry.Slug), zap.Error(err))
		}
	}

	if err := p.store.Save(entries); err != nil {
		p.logger.Error("Failed to save queue", zap.Error(err))
	}

	if published > 0 {
		if _, err := p.site.Rebuild(ctx); err != nil {
			p.logger.Warn("Site rebuild failed", zap.Error(err))
		}
	}

	p.logger.Info("Publishing complete", zap.Int("published", published), zap.Int("due", len(due)))
	return published
}
