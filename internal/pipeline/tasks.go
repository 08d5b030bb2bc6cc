package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
	"github.com/t77yq/trendloop/internal/scheduler"
	"github.com/t77yq/trendloop/internal/service"
	"github.com/t77yq/trendloop/internal/social"
)

const (
	socialScanPages = 3
	socialPostPages = 2
	socialSuffix    = " - Read more on TrendLoop USA!"

	heartbeatCPUWarn  = 70
	heartbeatDiskWarn = 85
)

// BatchCompleted is the payload of the post.generated event
type BatchCompleted struct {
	Generated   int       `json:"generated"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ContentTask publishes today's queue entries and refills an empty backlog
type ContentTask struct {
	publisher DuePublisher
	queue     QueueReader
	generator BatchGenerator
	events    service.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewContentTask creates the content task
func NewContentTask(publisher DuePublisher, q QueueReader, gen BatchGenerator, events service.Publisher, logger *zap.Logger) *ContentTask {
	if events == nil {
		events = service.NopEvents{}
	}
	return &ContentTask{
		publisher: publisher,
		queue:     q,
		generator: gen,
		events:    events,
		logger:    logger.Named("content"),
		now:       time.Now,
	}
}

func (t *ContentTask) Name() string { return scheduler.TaskContent }

func (t *ContentTask) Run(ctx context.Context) error {
	now := t.now().UTC()
	if n := t.publisher.PublishDue(ctx, now.Format(model.DateLayout)); n > 0 {
		t.logger.Info("Published pre-generated posts", zap.Int("count", n))
	}

	entries, err := t.queue.Load()
	if err != nil && !errors.Is(err, queue.ErrNoQueue) {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	pending := queue.Summarize(entries).Pending
	if pending > 0 {
		t.logger.Info("Backlog still pending", zap.Int("pending", pending))
		return nil
	}

	generated, err := t.generator.BatchGenerate(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to generate batch: %w", err)
	}
	t.logger.Info("Content generation complete", zap.Int("generated", generated))

	if generated > 0 {
		evt := BatchCompleted{Generated: generated, GeneratedAt: t.now().UTC()}
		if err := t.events.Publish(ctx, service.SubjectPostGenerated, evt); err != nil {
			t.logger.Warn("Failed to publish batch event", zap.Error(err))
		}
	}
	return nil
}

// SEOTask rebuilds the sitemap, index and feed
type SEOTask struct {
	site   SiteRebuilder
	logger *zap.Logger
}

// NewSEOTask creates the SEO task
func NewSEOTask(site SiteRebuilder, logger *zap.Logger) *SEOTask {
	return &SEOTask{site: site, logger: logger.Named("seo")}
}

func (t *SEOTask) Name() string { return scheduler.TaskSEO }

func (t *SEOTask) Run(ctx context.Context) error {
	stats, err := t.site.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild site: %w", err)
	}
	t.logger.Info("SEO update complete", zap.Int("urls", stats.URLs), zap.Int("posts", stats.Posts))
	return nil
}

// SocialTask shares the newest pages. Any integration may be nil.
type SocialTask struct {
	docsDir   string
	twitter   Tweeter
	pinterest Pinner
	telegram  Messenger
	channels  Distributor
	logger    *zap.Logger
}

// NewSocialTask creates the social task
func NewSocialTask(docsDir string, twitter Tweeter, pinterest Pinner, telegram Messenger, channels Distributor, logger *zap.Logger) *SocialTask {
	return &SocialTask{
		docsDir:   docsDir,
		twitter:   twitter,
		pinterest: pinterest,
		telegram:  telegram,
		channels:  channels,
		logger:    logger.Named("social"),
	}
}

func (t *SocialTask) Name() string { return scheduler.TaskSocial }

type tally struct {
	attempted int
	ok        int
	errs      []error
}

func (s *tally) add(name string, r model.Result) {
	if r.IsSkipped() {
		return
	}
	s.attempted++
	if r.IsError() {
		s.errs = append(s.errs, fmt.Errorf("%s: %w", name, r.Err))
		return
	}
	s.ok++
}

// Run returns an error only when every attempted integration failed
func (t *SocialTask) Run(ctx context.Context) error {
	posts, err := social.RecentPosts(t.docsDir, socialScanPages)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		t.logger.Info("No posts found for social sharing")
		return nil
	}
	if len(posts) > socialPostPages {
		posts = posts[:socialPostPages]
	}

	var s tally
	for _, post := range posts {
		if t.twitter != nil {
			r := t.twitter.Post(ctx, post.Title+socialSuffix, post.Slug)
			t.logResult("twitter", post, r)
			s.add("twitter", r)
		}
		if t.pinterest != nil {
			r := t.pinterest.Pin(ctx, post, nil)
			t.logResult("pinterest", post, r)
			s.add("pinterest", r)
		}
		if t.telegram != nil {
			r := t.telegram.Send(ctx, post)
			t.logResult("telegram", post, r)
			s.add("telegram", r)
		}
		if t.channels != nil {
			_, r := t.channels.Distribute(ctx, post)
			t.logResult("channels", post, r)
			s.add("channels", r)
		}
	}

	t.logger.Info("Social posting complete",
		zap.Int("shared", s.ok),
		zap.Int("attempted", s.attempted))

	if s.attempted > 0 && s.ok == 0 {
		return fmt.Errorf("%w: %w", ErrAllIntegrationsFailed, errors.Join(s.errs...))
	}
	return nil
}

func (t *SocialTask) logResult(integration string, post model.Post, r model.Result) {
	fields := []zap.Field{
		zap.String("integration", integration),
		zap.String("slug", post.Slug),
		zap.String("result", r.String()),
	}
	if r.IsError() {
		t.logger.Warn("Share failed", fields...)
		return
	}
	t.logger.Debug("Share attempted", fields...)
}

// HeartbeatTask samples host usage and warns when it is high
type HeartbeatTask struct {
	sampler HostSampler
	logger  *zap.Logger
}

// NewHeartbeatTask creates the heartbeat task
func NewHeartbeatTask(sampler HostSampler, logger *zap.Logger) *HeartbeatTask {
	return &HeartbeatTask{sampler: sampler, logger: logger.Named("heartbeat")}
}

func (t *HeartbeatTask) Name() string { return scheduler.TaskHeartbeat }

func (t *HeartbeatTask) Run(ctx context.Context) error {
	status, err := t.sampler.Collect(ctx)
	if status == nil {
		return err
	}
	if status.CPUPercent > heartbeatCPUWarn || status.DiskPercent > heartbeatDiskWarn {
		t.logger.Warn("Heartbeat",
			zap.Float64("cpu_percent", status.CPUPercent),
			zap.Float64("disk_percent", status.DiskPercent))
	}
	return err
}
