package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/generator"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
	"github.com/t77yq/trendloop/internal/safety"
	"github.com/t77yq/trendloop/internal/site"
)

type fakePublisher struct {
	dates []string
	n     int
}

func (f *fakePublisher) PublishDue(_ context.Context, today string) int {
	f.dates = append(f.dates, today)
	return f.n
}

type fakeQueue struct {
	entries []model.QueueEntry
	err     error
}

func (f *fakeQueue) Load() ([]model.QueueEntry, error) { return f.entries, f.err }

type fakeGenerator struct {
	calls int
	n     int
	err   error
}

func (f *fakeGenerator) BatchGenerate(context.Context, int) (int, error) {
	f.calls++
	return f.n, f.err
}

type recordingEvents struct{ subjects []string }

func (e *recordingEvents) Publish(_ context.Context, subject string, _ interface{}) error {
	e.subjects = append(e.subjects, subject)
	return nil
}

func TestContentTask(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	t.Run("pending backlog skips generation", func(t *testing.T) {
		pub := &fakePublisher{n: 1}
		gen := &fakeGenerator{}
		q := &fakeQueue{entries: []model.QueueEntry{{Slug: "a", Published: true}, {Slug: "b"}}}

		task := NewContentTask(pub, q, gen, nil, zap.NewNop())
		task.now = now
		require.NoError(t, task.Run(context.Background()))
		assert.Equal(t, []string{"2026-03-01"}, pub.dates)
		assert.Zero(t, gen.calls)
	})

	t.Run("empty backlog generates a batch", func(t *testing.T) {
		gen := &fakeGenerator{n: 70}
		events := &recordingEvents{}
		q := &fakeQueue{entries: []model.QueueEntry{{Slug: "a", Published: true}}}

		task := NewContentTask(&fakePublisher{}, q, gen, events, zap.NewNop())
		task.now = now
		require.NoError(t, task.Run(context.Background()))
		assert.Equal(t, 1, gen.calls)
		assert.Equal(t, []string{"post.generated"}, events.subjects)
	})

	t.Run("missing queue generates a batch", func(t *testing.T) {
		gen := &fakeGenerator{}
		task := NewContentTask(&fakePublisher{}, &fakeQueue{err: queue.ErrNoQueue}, gen, nil, zap.NewNop())
		require.NoError(t, task.Run(context.Background()))
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("unreadable queue fails", func(t *testing.T) {
		gen := &fakeGenerator{}
		task := NewContentTask(&fakePublisher{}, &fakeQueue{err: errors.New("bad json")}, gen, nil, zap.NewNop())
		require.Error(t, task.Run(context.Background()))
		assert.Zero(t, gen.calls)
	})

	t.Run("generation failure fails", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("disk full")}
		task := NewContentTask(&fakePublisher{}, &fakeQueue{}, gen, nil, zap.NewNop())
		require.Error(t, task.Run(context.Background()))
	})
}

type fakeRebuilder struct {
	stats site.Stats
	err   error
}

func (f *fakeRebuilder) Rebuild(context.Context) (site.Stats, error) { return f.stats, f.err }

func TestSEOTask(t *testing.T) {
	require.NoError(t, NewSEOTask(&fakeRebuilder{stats: site.Stats{URLs: 3, Posts: 2}}, zap.NewNop()).Run(context.Background()))
	require.Error(t, NewSEOTask(&fakeRebuilder{err: errors.New("read-only fs")}, zap.NewNop()).Run(context.Background()))
}

type fakeTweeter struct {
	summaries []string
	result    model.Result
}

func (f *fakeTweeter) Post(_ context.Context, summary, _ string) model.Result {
	f.summaries = append(f.summaries, summary)
	return f.result
}

type fakePinner struct {
	slugs  []string
	result model.Result
}

func (f *fakePinner) Pin(_ context.Context, post model.Post, _ []string) model.Result {
	f.slugs = append(f.slugs, post.Slug)
	return f.result
}

type fakeMessenger struct{ result model.Result }

func (f *fakeMessenger) Send(context.Context, model.Post) model.Result { return f.result }

type fakeDistributor struct{ result model.Result }

func (f *fakeDistributor) Distribute(context.Context, model.Post) (int, model.Result) {
	return 0, f.result
}

func writePage(t *testing.T, dir, name, title string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	html := "<html><head><title>" + title + " | TrendLoop USA</title></head><body></body></html>"
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func socialDocs(t *testing.T) string {
	dir := t.TempDir()
	writePage(t, dir, "index.html", "Home", time.Minute)
	writePage(t, dir, "2026-03-01-denim.html", "Denim Is Back", 2*time.Minute)
	writePage(t, dir, "2026-02-28-loafers.html", "Loafers Everywhere", 3*time.Minute)
	writePage(t, dir, "2026-02-27-scarves.html", "Silk Scarves", 4*time.Minute)
	return dir
}

func TestSocialTask(t *testing.T) {
	t.Run("shares the newest pages", func(t *testing.T) {
		tw := &fakeTweeter{result: model.OK("1")}
		pin := &fakePinner{result: model.OK("p")}
		task := NewSocialTask(socialDocs(t), tw, pin, &fakeMessenger{result: model.Skipped("off")}, &fakeDistributor{result: model.Skipped("none")}, zap.NewNop())

		require.NoError(t, task.Run(context.Background()))
		// index.html counts toward the three scanned pages
		assert.Equal(t, []string{
			"Denim Is Back - Read more on TrendLoop USA!",
			"Loafers Everywhere - Read more on TrendLoop USA!",
		}, tw.summaries)
		assert.Equal(t, []string{"2026-03-01-denim", "2026-02-28-loafers"}, pin.slugs)
	})

	t.Run("partial failure is not an error", func(t *testing.T) {
		tw := &fakeTweeter{result: model.Failed(errors.New("401"))}
		pin := &fakePinner{result: model.OK("p")}
		task := NewSocialTask(socialDocs(t), tw, pin, nil, nil, zap.NewNop())
		require.NoError(t, task.Run(context.Background()))
	})

	t.Run("every integration failed", func(t *testing.T) {
		tw := &fakeTweeter{result: model.Failed(errors.New("401"))}
		pin := &fakePinner{result: model.Failed(errors.New("500"))}
		task := NewSocialTask(socialDocs(t), tw, pin, nil, nil, zap.NewNop())
		err := task.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAllIntegrationsFailed))
	})

	t.Run("all skipped", func(t *testing.T) {
		task := NewSocialTask(socialDocs(t), &fakeTweeter{result: model.Skipped("no creds")}, nil, nil, nil, zap.NewNop())
		require.NoError(t, task.Run(context.Background()))
	})

	t.Run("no pages", func(t *testing.T) {
		tw := &fakeTweeter{}
		task := NewSocialTask(t.TempDir(), tw, nil, nil, nil, zap.NewNop())
		require.NoError(t, task.Run(context.Background()))
		assert.Empty(t, tw.summaries)
	})
}

type fakeSampler struct {
	status *model.HostStatus
	err    error
}

func (f *fakeSampler) Collect(context.Context) (*model.HostStatus, error) { return f.status, f.err }

func TestHeartbeatTask(t *testing.T) {
	require.NoError(t, NewHeartbeatTask(&fakeSampler{status: &model.HostStatus{CPUPercent: 95, DiskPercent: 20}}, zap.NewNop()).Run(context.Background()))

	sampleErr := errors.New("no /proc")
	err := NewHeartbeatTask(&fakeSampler{status: &model.HostStatus{}, err: sampleErr}, zap.NewNop()).Run(context.Background())
	assert.True(t, errors.Is(err, sampleErr))
}

type fakeBackup struct{ calls int }

func (f *fakeBackup) CreateBackup() (string, error) {
	f.calls++
	return "_backups/backup_20260301_090000", nil
}

func (f *fakeBackup) RecoveryCommands(w io.Writer) { io.WriteString(w, "recovery\n") }

type fakeKeywords struct {
	keywords []model.Keyword
	err      error
	tracker  *safety.Tracker
}

func (f *fakeKeywords) FetchKeywords(context.Context) ([]model.Keyword, error) {
	if f.err == nil && f.tracker != nil {
		f.tracker.LogAPICall(safety.ServiceTwitterRead)
	}
	return f.keywords, f.err
}

type fakeWriter struct {
	article *generator.Article
	err     error
	tracker *safety.Tracker
}

func (f *fakeWriter) Write(context.Context, []model.Keyword) (*generator.Article, error) {
	if f.err != nil && f.tracker != nil {
		f.tracker.LogError(safety.CategoryGemini)
	}
	return f.article, f.err
}

type fakeSitemap struct {
	slugs   []string
	written []string
}

func (f *fakeSitemap) ListSlugs() ([]string, error) { return f.slugs, nil }

func (f *fakeSitemap) WriteSitemap(slugs []string) error {
	f.written = slugs
	return nil
}

type fakeIndexer struct{ slugs []string }

func (f *fakeIndexer) Notify(_ context.Context, slug string) model.Result {
	f.slugs = append(f.slugs, slug)
	return model.OK("indexnow")
}

type orchestratorFixture struct {
	tracker  *safety.Tracker
	backup   *fakeBackup
	keywords *fakeKeywords
	writer   *fakeWriter
	sitemap  *fakeSitemap
	twitter  *fakeTweeter
	indexer  *fakeIndexer
	out      *bytes.Buffer
}

func newOrchestratorFixture() *orchestratorFixture {
	tracker := safety.NewTracker(nil)
	return &orchestratorFixture{
		tracker:  tracker,
		backup:   &fakeBackup{},
		keywords: &fakeKeywords{keywords: []model.Keyword{{Keyword: "denim", Count: 9}}, tracker: tracker},
		writer: &fakeWriter{tracker: tracker, article: &generator.Article{
			Title:    "Denim Is Back",
			Slug:     "2026-03-01-denim-is-back",
			Summary:  "Denim is back for spring",
			FilePath: "docs/2026-03-01-denim-is-back.html",
		}},
		sitemap: &fakeSitemap{slugs: []string{"2026-02-28-loafers"}},
		twitter: &fakeTweeter{result: model.Skipped("no credentials")},
		indexer: &fakeIndexer{},
		out:     &bytes.Buffer{},
	}
}

func (f *orchestratorFixture) orchestrator(maxConsecutive int) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		Backup:   f.backup,
		Keywords: f.keywords,
		Writer:   f.writer,
		Sitemap:  f.sitemap,
		Twitter:  f.twitter,
		Indexer:  f.indexer,
		Tracker:  f.tracker,
	}, maxConsecutive, f.out, zap.NewNop())
}

func TestOrchestrator_Run(t *testing.T) {
	f := newOrchestratorFixture()
	report, err := f.orchestrator(3).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.backup.calls)
	assert.Contains(t, f.out.String(), "recovery")
	assert.Equal(t, []string{"2026-02-28-loafers", "2026-03-01-denim-is-back"}, f.sitemap.written)
	assert.Equal(t, []string{"Denim is back for spring"}, f.twitter.summaries)
	assert.Equal(t, []string{"2026-03-01-denim-is-back"}, f.indexer.slugs)

	assert.Equal(t, "Denim Is Back", report.Title)
	assert.Equal(t, 2, report.Sitemap)
	assert.True(t, report.Tweet.IsSkipped())
	assert.True(t, report.Index.IsOK())

	var buf bytes.Buffer
	report.Print(&buf)
	assert.Contains(t, buf.String(), "Denim Is Back")
}

func TestOrchestrator_ExistingSlugNotDuplicated(t *testing.T) {
	f := newOrchestratorFixture()
	f.sitemap.slugs = []string{"2026-03-01-denim-is-back"}
	_, err := f.orchestrator(3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01-denim-is-back"}, f.sitemap.written)
}

func TestOrchestrator_NoKeywords(t *testing.T) {
	f := newOrchestratorFixture()
	f.keywords.keywords = nil
	f.keywords.err = errors.New("search failed")

	_, err := f.orchestrator(3).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoKeywords))
	assert.Equal(t, 1, f.tracker.Errors(safety.CategoryTwitter))
	assert.Nil(t, f.sitemap.written)
}

func TestOrchestrator_NoArticle(t *testing.T) {
	f := newOrchestratorFixture()
	f.writer.article = nil
	f.writer.err = errors.New("quota")

	_, err := f.orchestrator(3).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoArticle))
	assert.Empty(t, f.twitter.summaries)
}

func TestOrchestrator_AbnormalAfterThirdFailure(t *testing.T) {
	f := newOrchestratorFixture()
	// Two earlier failures in this run.
	f.tracker.LogError(safety.CategoryOther)
	f.tracker.LogError(safety.CategoryOther)
	assert.False(t, f.tracker.IsAbnormal(3))

	// The keyword source here does not log a success, so the third failure is consecutive.
	f.keywords.tracker = nil
	f.writer.article = nil
	f.writer.err = errors.New("quota")

	_, err := f.orchestrator(3).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAbnormal))
	assert.True(t, f.tracker.IsAbnormal(3))
	assert.Nil(t, f.sitemap.written)
}

func TestOrchestrator_Deadline(t *testing.T) {
	f := newOrchestratorFixture()
	f.keywords.keywords = nil
	f.keywords.err = context.DeadlineExceeded

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := f.orchestrator(3).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
