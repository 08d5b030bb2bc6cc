package social

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

type channelPayload struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Markdown string `json:"markdown,omitempty"`
}

// Channels fans a post out to the custom endpoints of DISTRIBUTION_CHANNELS
type Channels struct {
	channels  []config.Channel
	baseURL   string
	client    *http.Client
	converter *md.Converter
	tracker   *safety.Tracker
	logger    *zap.Logger
}

// NewChannels creates a new distributor
func NewChannels(channels []config.Channel, baseURL string, client *http.Client, tracker *safety.Tracker, logger *zap.Logger) *Channels {
	if client == nil {
		client = httpclient.New(0)
	}
	return &Channels{
		channels:  channels,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		converter: md.NewConverter("", true, nil),
		tracker:   tracker,
		logger:    logger.Named("channels"),
	}
}

// articleMarkdown converts the article body of a rendered page; any failure yields ""
func (c *Channels) articleMarkdown(path string) string {
	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return ""
	}
	sel := doc.Find("article")
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	return c.converter.Convert(sel.First())
}

// Distribute posts post to every complete channel and returns the number of
// channels that accepted it
func (c *Channels) Distribute(ctx context.Context, post model.Post) (int, model.Result) {
	if len(c.channels) == 0 {
		c.logger.Info("No distribution channels configured")
		return 0, model.Skipped("no distribution channels")
	}

	payload := channelPayload{
		Title:    post.Title,
		Summary:  post.Summary,
		URL:      fmt.Sprintf("%s/%s.html", c.baseURL, post.Slug),
		Markdown: c.articleMarkdown(post.FilePath),
	}

	attempted, succeeded := 0, 0
	for _, ch := range c.channels {
		name := ch.Name
		if name == "" {
			name = "unknown"
		}
		if ch.Endpoint == "" || ch.APIKey == "" {
			c.logger.Warn("Channel incomplete, skipping", zap.String("channel", name))
			continue
		}
		attempted++

		err := requests.URL(ch.Endpoint).
			Client(c.client).
			Method(http.MethodPost).
			Header("Authorization", "Bearer "+ch.APIKey).
			BodyJSON(payload).
			AddValidator(httpclient.ExpectStatus(http.StatusOK, http.StatusCreated, http.StatusAccepted)).
			Fetch(ctx)
		switch {
		case err == nil:
			c.tracker.LogAPICall(safety.ServiceDistribution)
			succeeded++
			c.logger.Info("Channel accepted post", zap.String("channel", name))
		case httpclient.Responded(err):
			c.tracker.LogAPICall(safety.ServiceDistribution)
			c.logger.Warn("Channel rejected post", zap.String("channel", name), zap.Error(err))
		default:
			c.tracker.LogError(safety.CategoryOther)
			c.logger.Warn("Channel request failed", zap.String("channel", name), zap.Error(err))
		}
	}

	c.logger.Info("Distribution finished",
		zap.Int("succeeded", succeeded),
		zap.Int("channels", len(c.channels)))

	detail := fmt.Sprintf("%d/%d", succeeded, len(c.channels))
	switch {
	case attempted == 0:
		return 0, model.Skipped("no complete channel")
	case succeeded == 0:
		return 0, model.Failed(fmt.Errorf("failed to distribute to any channel: %s", detail))
	default:
		return succeeded, model.OK(detail)
	}
}
