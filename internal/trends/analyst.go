package trends

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

const (
	defaultSearchURL = "https://api.twitter.com/2/tweets/search/recent"

	// MaxKeywords is the number of keywords returned by FetchKeywords
	MaxKeywords = 5

	resultsPerQuery = 20
)

// SeedQueries are searched in order on every fetch
var SeedQueries = []string{
	"fashion trend 2026",
	"outfit of the day OOTD",
	"streetwear trend USA",
	"spring fashion must have",
	"trending fashion style",
}

// FallbackKeywords are used whenever no tweets could be fetched
var FallbackKeywords = []model.Keyword{
	{Keyword: "coquette fashion"},
	{Keyword: "quiet luxury"},
	{Keyword: "streetwear aesthetic"},
	{Keyword: "baggy jeans trend"},
	{Keyword: "minimalist outfit"},
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

type searchResponse struct {
	Data []struct {
		Text     string `json:"text"`
		Entities struct {
			Hashtags []struct {
				Tag string `json:"tag"`
			} `json:"hashtags"`
		} `json:"entities"`
	} `json:"data"`
}

// Analyst extracts trending fashion keywords from recent tweets
type Analyst struct {
	bearer    string
	searchURL string
	client    *http.Client
	tracker   *safety.Tracker
	logger    *zap.Logger
}

// NewAnalyst creates a new analyst; without a bearer token it only returns FallbackKeywords
func NewAnalyst(bearer string, client *http.Client, tracker *safety.Tracker, logger *zap.Logger) *Analyst {
	if client == nil {
		client = httpclient.New(0)
	}
	return &Analyst{
		bearer:    bearer,
		searchURL: defaultSearchURL,
		client:    client,
		tracker:   tracker,
		logger:    logger.Named("analyst"),
	}
}

// FetchKeywords returns the top keywords across all seed queries. It never
// returns an empty list unless ctx is done.
func (a *Analyst) FetchKeywords(ctx context.Context) ([]model.Keyword, error) {
	if a.bearer == "" {
		a.logger.Warn("X_BEARER_TOKEN not set, using fallback keywords")
		return fallback(), nil
	}

	var texts, hashtags []string
	for _, q := range SeedQueries {
		resp, err := a.search(ctx, q)
		if errors.Is(err, ErrRateLimited) {
			a.logger.Warn("Rate limit reached, continuing with collected tweets", zap.String("query", q))
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("Search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, tweet := range resp.Data {
			texts = append(texts, tweet.Text)
			for _, h := range tweet.Entities.Hashtags {
				hashtags = append(hashtags, strings.ToLower(h.Tag))
			}
		}
	}

	if len(texts) == 0 && len(hashtags) == 0 {
		a.logger.Warn("No tweets fetched, using fallback keywords")
		return fallback(), nil
	}

	keywords := Rank(texts, hashtags, MaxKeywords)
	for _, k := range keywords {
		a.logger.Info("Trending keyword", zap.String("keyword", k.Keyword), zap.Int("count", k.Count))
	}
	return keywords, nil
}

func (a *Analyst) search(ctx context.Context, query string) (*searchResponse, error) {
	var resp searchResponse
	err := requests.URL(a.searchURL).
		Client(a.client).
		Header("Authorization", "Bearer "+a.bearer).
		Param("query", query+" lang:en -is:retweet").
		Param("max_results", fmt.Sprint(resultsPerQuery)).
		Param("tweet.fields", "text,entities").
		AddValidator(httpclient.ExpectStatus(http.StatusOK)).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		a.tracker.LogError(safety.CategoryTwitter)
		if httpclient.HasStatus(err, http.StatusTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("failed to search tweets: %w", err)
	}
	a.tracker.LogAPICall(safety.ServiceTwitterRead)
	return &resp, nil
}

// Rank counts hashtags twice and body words once, ignoring stopwords, and
// returns the n most frequent terms. Ties keep first-seen order.
func Rank(texts, hashtags []string, n int) []model.Keyword {
	counts := make(map[string]int)
	var order []string
	add := func(term string, weight int) {
		if _, seen := counts[term]; !seen {
			order = append(order, term)
		}
		counts[term] += weight
	}

	for _, tag := range hashtags {
		if !stopWords[tag] && len(tag) > 2 {
			add(tag, 2)
		}
	}
	for _, text := range texts {
		for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			if !stopWords[w] {
				add(w, 1)
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return lo.Map(lo.Slice(order, 0, n), func(term string, _ int) model.Keyword {
		return model.Keyword{Keyword: term, Count: counts[term]}
	})
}

func fallback() []model.Keyword {
	return append([]model.Keyword(nil), FallbackKeywords...)
}
