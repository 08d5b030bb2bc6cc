package social

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

// Telegram announces new posts in a chat. The bot is created on first use
// because creating it already calls getMe.
type Telegram struct {
	token     string
	chatID    int64
	baseURL   string
	endpoint  string
	client    *http.Client
	converter *md.Converter
	tracker   *safety.Tracker
	logger    *zap.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram creates a new announcer; an empty token or chat disables it
func NewTelegram(token string, chatID int64, baseURL string, client *http.Client, tracker *safety.Tracker, logger *zap.Logger) *Telegram {
	if client == nil {
		client = httpclient.New(0)
	}
	return &Telegram{
		token:     token,
		chatID:    chatID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoint:  tgbotapi.APIEndpoint,
		client:    client,
		converter: md.NewConverter("", true, &md.Options{StrongDelimiter: "*", EmDelimiter: "_"}),
		tracker:   tracker,
		logger:    logger.Named("telegram"),
	}
}

func (t *Telegram) botAPI() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, err
	}
	t.bot = bot
	return bot, nil
}

// Message renders the chat text for post as Telegram markdown
func (t *Telegram) Message(post model.Post) (string, error) {
	summary := post.Summary
	if summary == "" {
		summary = post.Description
	}
	link := fmt.Sprintf("%s/%s.html", t.baseURL, post.Slug)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<p><strong>%s</strong></p>", html.EscapeString(post.Title))
	if summary != "" {
		fmt.Fprintf(&sb, "<p>%s</p>", html.EscapeString(summary))
	}
	fmt.Fprintf(&sb, `<p><a href="%s">Read more</a></p>`, html.EscapeString(link))

	return t.converter.ConvertString(sb.String())
}

// Send posts an announcement for post
func (t *Telegram) Send(ctx context.Context, post model.Post) model.Result {
	if t.token == "" || t.chatID == 0 {
		t.logger.Info("Telegram not configured, skipping")
		return model.Skipped("telegram not configured")
	}
	if err := ctx.Err(); err != nil {
		return model.Failed(err)
	}

	text, err := t.Message(post)
	if err != nil {
		return model.Failed(fmt.Errorf("failed to render telegram message: %w", err))
	}

	bot, err := t.botAPI()
	if err != nil {
		t.tracker.LogError(safety.CategoryOther)
		t.logger.Warn("Telegram bot unavailable", zap.Error(err))
		return model.Failed(fmt.Errorf("failed to create telegram bot: %w", err))
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := bot.Send(msg)
	if err != nil {
		t.tracker.LogError(safety.CategoryOther)
		t.logger.Warn("Telegram send failed", zap.String("slug", post.Slug), zap.Error(err))
		return model.Failed(fmt.Errorf("failed to send telegram message: %w", err))
	}

	t.tracker.LogAPICall(safety.ServiceTelegram)
	t.logger.Info("Telegram message sent", zap.Int("message_id", sent.MessageID))
	return model.OK(fmt.Sprintf("%d", sent.MessageID))
}
