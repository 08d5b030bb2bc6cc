package social

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

const (
	defaultPinterestAPI = "https://api.pinterest.com/v5"

	pinTitleMax       = 100
	pinDescriptionMax = 500
	pinHashtagMax     = 10
)

var (
	baseHashtags = []string{"FashionTrends", "USFashion", "TrendLoopUSA", "OOTD"}
	nonTagChars  = regexp.MustCompile(`[^a-zA-Z0-9]`)
	hashtagWords = regexp.MustCompile(`#\S+`)
	imageExts    = map[string]string{".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".webp": "image/webp"}
)

type mediaSource struct {
	SourceType  string `json:"source_type"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"`
}

type pinRequest struct {
	BoardID     string      `json:"board_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Link        string      `json:"link"`
	MediaSource mediaSource `json:"media_source"`
}

type pinResponse struct {
	ID string `json:"id"`
}

// Pinterest creates pins through the Pinterest v5 API
type Pinterest struct {
	token   string
	boardID string
	baseURL string
	apiURL  string
	client  *http.Client
	tracker *safety.Tracker
	logger  *zap.Logger
}

// NewPinterest creates a new pinner; an empty token or board disables it
func NewPinterest(token, boardID, baseURL string, client *http.Client, tracker *safety.Tracker, logger *zap.Logger) *Pinterest {
	if client == nil {
		client = httpclient.New(0)
	}
	return &Pinterest{
		token:   token,
		boardID: boardID,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiURL:  defaultPinterestAPI,
		client:  client,
		tracker: tracker,
		logger:  logger.Named("pinterest"),
	}
}

func (p *Pinterest) configured() bool {
	return p.token != "" && p.token != "placeholder" && p.boardID != ""
}

// Hashtags returns the fixed tags followed by tags derived from keywords
func Hashtags(keywords []string) []string {
	tags := append([]string{}, baseHashtags...)
	for _, kw := range lo.Slice(keywords, 0, 5) {
		tag := nonTagChars.ReplaceAllString(kw, "")
		if len(tag) > 2 {
			tags = append(tags, tag)
		}
	}
	return lo.Slice(tags, 0, pinHashtagMax)
}

// PinDescription builds the pin text: title, summary without hashtags, tags
func PinDescription(title, summary string, tags []string) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	if clean := strings.TrimSpace(hashtagWords.ReplaceAllString(summary, "")); clean != "" {
		sb.WriteString(clean)
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.Join(lo.Map(tags, func(t string, _ int) string { return "#" + t }), " "))
	return truncateRunes(sb.String(), pinDescriptionMax)
}

// media picks the pin image: the page's own image, a file next to the page
// named after the slug, or the site's og-image
func (p *Pinterest) media(post model.Post) mediaSource {
	if img := post.Image; img != "" {
		if strings.HasPrefix(img, "/") {
			img = p.baseURL + img
		}
		return mediaSource{SourceType: "image_url", URL: img}
	}

	if post.FilePath != "" {
		dir := filepath.Dir(post.FilePath)
		for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp"} {
			data, err := os.ReadFile(filepath.Join(dir, post.Slug+ext))
			if err != nil {
				continue
			}
			return mediaSource{
				SourceType:  "image_base64",
				ContentType: imageExts[ext],
				Data:        base64.StdEncoding.EncodeToString(data),
			}
		}
	}

	p.logger.Debug("No page image, using og-image", zap.String("slug", post.Slug))
	return mediaSource{SourceType: "image_url", URL: p.baseURL + "/og-image.png"}
}

// Pin creates a pin linking to post
func (p *Pinterest) Pin(ctx context.Context, post model.Post, keywords []string) model.Result {
	if !p.configured() {
		p.logger.Info("Pinterest not configured, skipping pin")
		return model.Skipped("pinterest not configured")
	}

	title := post.Title
	if title == "" {
		title = "Fashion Trend"
	}

	req := pinRequest{
		BoardID:     p.boardID,
		Title:       truncateRunes(title, pinTitleMax),
		Description: PinDescription(title, post.Summary, Hashtags(keywords)),
		Link:        fmt.Sprintf("%s/%s.html", p.baseURL, post.Slug),
		MediaSource: p.media(post),
	}

	var resp pinResponse
	err := requests.URL(p.apiURL+"/pins").
		Client(p.client).
		Method(http.MethodPost).
		Header("Authorization", "Bearer "+p.token).
		BodyJSON(req).
		AddValidator(httpclient.ExpectStatus(http.StatusOK, http.StatusCreated)).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		p.tracker.LogError(safety.CategoryOther)
		p.logger.Warn("Pin failed", zap.String("slug", post.Slug), zap.Error(err))
		return model.Failed(fmt.Errorf("failed to create pin: %w", err))
	}

	p.tracker.LogAPICall(safety.ServicePinterest)
	p.logger.Info("Pin created",
		zap.String("id", resp.ID),
		zap.String("url", "https://www.pinterest.com/pin/"+resp.ID),
		zap.String("link", req.Link))
	return model.OK(resp.ID)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
