// Package app assembles the pipeline components from configuration.
package app

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/generator"
	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/indexing"
	"github.com/t77yq/trendloop/internal/llm"
	"github.com/t77yq/trendloop/internal/publisher"
	"github.com/t77yq/trendloop/internal/queue"
	"github.com/t77yq/trendloop/internal/safety"
	"github.com/t77yq/trendloop/internal/service"
	"github.com/t77yq/trendloop/internal/site"
	"github.com/t77yq/trendloop/internal/social"
	"github.com/t77yq/trendloop/internal/trends"
)

// NewLogger builds a development logger, or a production (JSON) one when
// format is "json". Every extra sink receives JSON records at info level.
func NewLogger(format string, sinks ...zapcore.WriteSyncer) (*zap.Logger, error) {
	var (
		base *zap.Logger
		err  error
	)
	if format == "json" {
		base, err = zap.NewProduction()
	} else {
		base, err = zap.NewDevelopment()
	}
	if err != nil || len(sinks) == 0 {
		return base, err
	}

	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	cores := []zapcore.Core{base.Core()}
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(enc, sink, zap.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Components are the wired collaborators shared by every binary
type Components struct {
	Config  *config.Config
	Tracker *safety.Tracker
	Client  *http.Client

	Backup    *safety.Backup
	Queue     *queue.Store
	Site      *site.Builder
	Indexer   *indexing.Notifier
	Twitter   *social.Twitter
	Pinterest *social.Pinterest
	Telegram  *social.Telegram
	Channels  *social.Channels
	Analyst   *trends.Analyst
	Publisher *publisher.Publisher
	Batch     *generator.BatchGenerator
	Writer    *generator.ArticleWriter
}

// New wires every component. A nil events publisher disables events.
func New(cfg *config.Config, events service.Publisher, logger *zap.Logger) *Components {
	if events == nil {
		events = service.NopEvents{}
	}

	tracker := safety.NewTracker(nil)
	client := httpclient.New(cfg.APITimeout)

	c := &Components{
		Config:  cfg,
		Tracker: tracker,
		Client:  client,
	}

	c.Backup = safety.NewBackup(cfg.DocsDir, cfg.BackupDir, cfg.DeletedDir, logger)
	c.Queue = queue.NewStore(cfg.QueueIndexPath(), cfg.QueueDir(), logger)
	c.Site = site.NewBuilder(cfg.DocsDir, cfg.BaseURL, cfg.BlogTitle, logger)
	c.Indexer = indexing.NewNotifier(cfg.BaseURL, cfg.IndexNowKey, client, tracker, logger)

	c.Twitter = social.NewTwitter(social.TwitterCredentials{
		APIKey:            cfg.XAPIKey,
		APISecret:         cfg.XAPISecret,
		AccessToken:       cfg.XAccessToken,
		AccessTokenSecret: cfg.XAccessTokenSecret,
	}, cfg.BaseURL, client, tracker, logger)
	c.Pinterest = social.NewPinterest(cfg.PinterestToken, cfg.PinterestBoardID, cfg.BaseURL, client, tracker, logger)
	c.Telegram = social.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.BaseURL, client, tracker, logger)
	c.Channels = social.NewChannels(cfg.DistributionChannels(), cfg.BaseURL, client, tracker, logger)
	c.Analyst = trends.NewAnalyst(cfg.XBearerToken, client, tracker, logger)

	c.Publisher = publisher.NewPublisher(c.Queue, cfg.DocsDir, cfg.BaseURL, c.Site, c.Indexer, events, logger)

	// The batch run is capped by the queue size, the one-shot writer by the daily call limit.
	c.Batch = generator.NewBatchGenerator(llm.New(cfg, client, tracker, 0, logger), c.Queue, generator.BatchOptions{
		PostsPerDay: cfg.PostsPerDay,
		DaysAhead:   cfg.DaysAhead,
		SiteName:    cfg.BlogTitle,
		BaseURL:     cfg.BaseURL,
		AmazonTag:   cfg.AmazonTag,
	}, logger)
	c.Writer = generator.NewArticleWriter(llm.New(cfg, client, tracker, cfg.GeminiDailyCallLimit, logger),
		cfg.DocsDir, cfg.BlogTitle, cfg.BaseURL, cfg.AmazonTag, logger)

	return c
}

// Events connects to NATS when url is set. The returned close function is never nil.
func Events(url string, logger *zap.Logger) (service.Publisher, func(), error) {
	if url == "" {
		return service.NopEvents{}, func() {}, nil
	}
	svc, closeFn, err := service.Connect(url, logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to connect events: %w", err)
	}
	return svc, closeFn, nil
}
