package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

// Report summarizes a one-shot run
type Report struct {
	Backup   string
	Keywords []model.Keyword
	Title    string
	Slug     string
	FilePath string
	Sitemap  int
	Tweet    model.Result
	Index    model.Result
	Elapsed  time.Duration
}

// Print writes the human-readable run summary
func (r *Report) Print(w io.Writer) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Run summary")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Keywords:     %d\n", len(r.Keywords))
	fmt.Fprintf(w, "  Article:      %s\n", r.Title)
	fmt.Fprintf(w, "  Saved to:     %s\n", r.FilePath)
	fmt.Fprintf(w, "  Sitemap URLs: %d\n", r.Sitemap)
	fmt.Fprintf(w, "  Tweet:        %s\n", outcome(r.Tweet))
	fmt.Fprintf(w, "  Indexing:     %s\n", outcome(r.Index))
	fmt.Fprintf(w, "  Elapsed:      %.1fs\n", r.Elapsed.Seconds())
	fmt.Fprintln(w, rule)
}

func outcome(r model.Result) string {
	if r.IsOK() {
		return "ok"
	}
	return "skipped/failed (" + r.String() + ")"
}

// OrchestratorDeps are the collaborators of a one-shot run
type OrchestratorDeps struct {
	Backup   Snapshotter
	Keywords KeywordSource
	Writer   ArticleWriter
	Sitemap  SitemapWriter
	Twitter  Tweeter
	Indexer  Indexer
	Tracker  *safety.Tracker
}

// Orchestrator runs keywords -> article -> sitemap -> promotion once
type Orchestrator struct {
	deps           OrchestratorDeps
	maxConsecutive int
	out            io.Writer
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrchestrator creates an orchestrator writing operator output to out
func NewOrchestrator(deps OrchestratorDeps, maxConsecutive int, out io.Writer, logger *zap.Logger) *Orchestrator {
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		deps:           deps,
		maxConsecutive: maxConsecutive,
		out:            out,
		logger:         logger.Named("orchestrator"),
		now:            time.Now,
	}
}

// Run executes one pass. The returned report is never nil; on a fatal
// condition it holds whatever completed before the failure.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := o.now()
	report := &Report{}
	defer func() { report.Elapsed = o.now().Sub(start) }()

	path, err := o.deps.Backup.CreateBackup()
	if err != nil {
		o.logger.Warn("Backup failed", zap.Error(err))
	}
	report.Backup = path
	o.deps.Backup.RecoveryCommands(o.out)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	o.logger.Info("Step 1: extracting trend keywords")
	keywords, err := o.deps.Keywords.FetchKeywords(ctx)
	if err != nil {
		o.logger.Error("Keyword extraction failed", zap.Error(err))
		o.deps.Tracker.LogError(safety.CategoryTwitter)
	}
	if len(keywords) == 0 {
		return report, o.fatal(ctx, ErrNoKeywords, err)
	}
	report.Keywords = keywords
	o.logger.Info("Step 1 complete",
		zap.Int("keywords", len(keywords)),
		zap.Duration("elapsed", o.now().Sub(start)))

	if o.deps.Tracker.IsAbnormal(o.maxConsecutive) {
		return report, ErrAbnormal
	}

	o.logger.Info("Step 2: writing article")
	article, err := o.deps.Writer.Write(ctx, keywords)
	if err != nil {
		o.logger.Error("Article generation failed", zap.Error(err))
	}

	if o.deps.Tracker.IsAbnormal(o.maxConsecutive) {
		return report, ErrAbnormal
	}
	if article == nil {
		return report, o.fatal(ctx, ErrNoArticle, err)
	}
	report.Title = article.Title
	report.Slug = article.Slug
	report.FilePath = article.FilePath
	o.logger.Info("Step 2 complete",
		zap.String("title", article.Title),
		zap.Duration("elapsed", o.now().Sub(start)))

	o.logger.Info("Step 3: updating sitemap")
	slugs, err := o.deps.Sitemap.ListSlugs()
	if err != nil {
		o.logger.Warn("Failed to list live pages", zap.Error(err))
	}
	if !lo.Contains(slugs, article.Slug) {
		slugs = append(slugs, article.Slug)
	}
	if err := o.deps.Sitemap.WriteSitemap(slugs); err != nil {
		o.logger.Warn("Sitemap update failed", zap.Error(err))
	} else {
		report.Sitemap = len(slugs)
	}

	o.logger.Info("Step 4: promoting")
	report.Tweet = o.deps.Twitter.Post(ctx, article.Summary, article.Slug)
	report.Index = o.deps.Indexer.Notify(ctx, article.Slug)

	return report, nil
}

// fatal prefers the context error so a deadline is reported as such
func (o *Orchestrator) fatal(ctx context.Context, sentinel, cause error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if cause != nil {
		return fmt.Errorf("%w: %w", sentinel, cause)
	}
	return sentinel
}
