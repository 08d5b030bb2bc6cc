package indexing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

const (
	defaultPingURL     = "https://www.google.com/ping"
	defaultIndexNowURL = "https://api.indexnow.org/indexnow"
)

type indexNowRequest struct {
	Host    string   `json:"host"`
	Key     string   `json:"key,omitempty"`
	URLList []string `json:"urlList"`
}

// Notifier asks search engines to crawl newly published pages
type Notifier struct {
	baseURL     string
	key         string
	pingURL     string
	indexNowURL string
	client      *http.Client
	tracker     *safety.Tracker
	logger      *zap.Logger
}

// NewNotifier creates a new notifier; key is the optional IndexNow key
func NewNotifier(baseURL, key string, client *http.Client, tracker *safety.Tracker, logger *zap.Logger) *Notifier {
	if client == nil {
		client = httpclient.New(0)
	}
	return &Notifier{
		baseURL:     strings.TrimRight(baseURL, "/"),
		key:         key,
		pingURL:     defaultPingURL,
		indexNowURL: defaultIndexNowURL,
		client:      client,
		tracker:     tracker,
		logger:      logger.Named("indexing"),
	}
}

// Notify pings the sitemap and submits the page of slug to IndexNow.
// The result is ok when either request succeeds.
func (n *Notifier) Notify(ctx context.Context, slug string) model.Result {
	if n.baseURL == "" {
		return model.Skipped("base url not configured")
	}

	pageURL := fmt.Sprintf("%s/%s.html", n.baseURL, slug)
	pingErr := n.pingSitemap(ctx)
	submitErr := n.submit(ctx, pageURL)

	if pingErr == nil || submitErr == nil {
		n.logger.Info("Indexing requested", zap.String("url", pageURL))
		return model.OK(pageURL)
	}

	n.logger.Warn("All indexing requests failed, page is still published",
		zap.String("url", pageURL),
		zap.NamedError("ping", pingErr),
		zap.NamedError("indexnow", submitErr))
	return model.Failed(errors.Join(pingErr, submitErr))
}

func (n *Notifier) pingSitemap(ctx context.Context) error {
	err := requests.URL(n.pingURL).
		Client(n.client).
		Param("sitemap", n.baseURL+"/sitemap.xml").
		AddValidator(httpclient.ExpectStatus(http.StatusOK)).
		Fetch(ctx)
	return n.record(safety.ServiceGoogleIndex, err)
}

func (n *Notifier) submit(ctx context.Context, pageURL string) error {
	host := strings.TrimPrefix(strings.TrimPrefix(n.baseURL, "https://"), "http://")
	err := requests.URL(n.indexNowURL).
		Client(n.client).
		Method(http.MethodPost).
		BodyJSON(indexNowRequest{Host: host, Key: n.key, URLList: []string{pageURL}}).
		AddValidator(httpclient.ExpectStatus(http.StatusOK, http.StatusAccepted)).
		Fetch(ctx)
	return n.record(safety.ServiceIndexNow, err)
}

// record counts a call whenever the service answered, and an error only for transport failures
func (n *Notifier) record(service string, err error) error {
	switch {
	case err == nil:
		n.tracker.LogAPICall(service)
		return nil
	case httpclient.Responded(err):
		n.tracker.LogAPICall(service)
		n.logger.Warn("Indexing endpoint rejected request", zap.String("service", service), zap.Error(err))
	default:
		n.tracker.LogError(safety.CategoryOther)
		n.logger.Warn("Indexing request failed", zap.String("service", service), zap.Error(err))
	}
	return fmt.Errorf("failed to notify %s: %w", service, err)
}
