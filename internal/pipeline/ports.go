package pipeline

import (
	"context"
	"io"

	"github.com/t77yq/trendloop/internal/generator"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/site"
)

// DuePublisher moves due queue entries live
type DuePublisher interface {
	PublishDue(ctx context.Context, today string) int
}

// BatchGenerator fills the queue
type BatchGenerator interface {
	BatchGenerate(ctx context.Context, count int) (int, error)
}

// KeywordSource supplies trending keywords
type KeywordSource interface {
	FetchKeywords(ctx context.Context) ([]model.Keyword, error)
}

// ArticleWriter produces the one-shot article
type ArticleWriter interface {
	Write(ctx context.Context, keywords []model.Keyword) (*generator.Article, error)
}

// SitemapWriter lists live slugs and rewrites the sitemap
type SitemapWriter interface {
	ListSlugs() ([]string, error)
	WriteSitemap(slugs []string) error
}

// Snapshotter backs up the live directory before a run
type Snapshotter interface {
	CreateBackup() (string, error)
	RecoveryCommands(w io.Writer)
}

// Tweeter posts a status update linking to a page
type Tweeter interface {
	Post(ctx context.Context, summary, slug string) model.Result
}

// Pinner pins a page
type Pinner interface {
	Pin(ctx context.Context, post model.Post, keywords []string) model.Result
}

// Messenger sends a page announcement
type Messenger interface {
	Send(ctx context.Context, post model.Post) model.Result
}

// Distributor forwards a page to custom channels
type Distributor interface {
	Distribute(ctx context.Context, post model.Post) (int, model.Result)
}

// Indexer submits a page to search engines
type Indexer interface {
	Notify(ctx context.Context, slug string) model.Result
}

// HostSampler samples host resource usage
type HostSampler interface {
	Collect(ctx context.Context) (*model.HostStatus, error)
}

// QueueReader loads the queue index
type QueueReader interface {
	Load() ([]model.QueueEntry, error)
}

// SiteRebuilder regenerates the sitemap, index and feed
type SiteRebuilder interface {
	Rebuild(ctx context.Context) (site.Stats, error)
}
