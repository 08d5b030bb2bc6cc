package social

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/carlmjohnson/requests"
	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

const (
	tweetLimit       = 280
	defaultTweetsURL = "https://api.twitter.com/2/tweets"
)

// TwitterCredentials are the OAuth 1.0a user-context keys used for posting
type TwitterCredentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

func (c TwitterCredentials) complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Twitter posts tweets through the X v2 API
type Twitter struct {
	enabled   bool
	baseURL   string
	tweetsURL string
	client    *http.Client
	tracker   *safety.Tracker
	logger    *zap.Logger
}

// NewTwitter creates a new poster; incomplete credentials disable it
func NewTwitter(creds TwitterCredentials, baseURL string, base *http.Client, tracker *safety.Tracker, logger *zap.Logger) *Twitter {
	if base == nil {
		base = httpclient.New(0)
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	client := oauth1.NewConfig(creds.APIKey, creds.APISecret).
		Client(ctx, oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret))
	client.Timeout = base.Timeout

	return &Twitter{
		enabled:   creds.complete(),
		baseURL:   strings.TrimRight(baseURL, "/"),
		tweetsURL: defaultTweetsURL,
		client:    client,
		tracker:   tracker,
		logger:    logger.Named("twitter"),
	}
}

// ComposeTweet appends the read-more link to summary, shortening summary
// with "..." when the tweet would exceed 280 characters
func ComposeTweet(summary, link string) string {
	suffix := "\n\nRead more: " + link
	text := summary + suffix
	if utf8.RuneCountInString(text) <= tweetLimit {
		return text
	}

	keep := tweetLimit - utf8.RuneCountInString(suffix) - 3
	if keep < 0 {
		keep = 0
	}
	r := []rune(summary)
	if len(r) > keep {
		r = r[:keep]
	}
	return string(r) + "..." + suffix
}

// Post tweets summary with a link to the page of slug
func (t *Twitter) Post(ctx context.Context, summary, slug string) model.Result {
	if !t.enabled {
		t.logger.Info("X credentials incomplete, skipping tweet")
		return model.Skipped("x credentials incomplete")
	}

	text := ComposeTweet(summary, fmt.Sprintf("%s/%s.html", t.baseURL, slug))

	var resp tweetResponse
	err := requests.URL(t.tweetsURL).
		Client(t.client).
		Method(http.MethodPost).
		BodyJSON(tweetRequest{Text: text}).
		AddValidator(httpclient.ExpectStatus(http.StatusOK, http.StatusCreated)).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		t.tracker.LogError(safety.CategoryTwitter)
		t.logger.Warn("Tweet failed", zap.String("slug", slug), zap.Error(err))
		return model.Failed(fmt.Errorf("failed to post tweet: %w", err))
	}

	t.tracker.LogAPICall(safety.ServiceTwitterWrite)
	t.logger.Info("Tweet posted",
		zap.String("id", resp.Data.ID),
		zap.String("url", "https://x.com/i/status/"+resp.Data.ID))
	return model.OK(resp.Data.ID)
}
