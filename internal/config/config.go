package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Channel is a custom distribution target registered via DISTRIBUTION_CHANNELS
type Channel struct {
	Name     string `json:"name"`
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

// Config holds every tunable of the pipeline
type Config struct {
	XBearerToken       string
	XAPIKey            string
	XAPISecret         string
	XAccessToken       string
	XAccessTokenSecret string

	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string

	AmazonTag string
	BaseURL   string
	BlogTitle string

	APITimeout           time.Duration
	MaxTotalRuntime      time.Duration
	GeminiDailyCallLimit int
	MaxConsecutiveErrors int
	PostsPerDay          int
	DaysAhead            int

	PinterestToken   string
	PinterestBoardID string
	TelegramToken    string
	TelegramChatID   int64
	IndexNowKey      string
	WebhookURL       string
	NATSURL          string
	MetricsAddr      string
	LogFormat        string

	DataDir    string
	DocsDir    string
	LogDir     string
	BackupDir  string
	DeletedDir string

	Schedules map[string]string

	channelsRaw string
}

var defaults = map[string]interface{}{
	"llm_provider":              "gemini",
	"gemini_model":              "gemini-2.5-flash",
	"amazon_tag":                "trendloop-20",
	"blog_base_url":             "https://trendloopusa.net",
	"blog_title":                "TrendLoop USA",
	"api_timeout_seconds":       30,
	"max_total_runtime_seconds": 300,
	"gemini_daily_call_limit":   5,
	"max_consecutive_errors":    3,
	"posts_per_day":             10,
	"days_ahead":                7,
	"distribution_channels":     "[]",
	"log_format":                "console",
	"data_dir":                  "data",
	"docs_dir":                  "docs",
	"log_dir":                   "logs",
	"backup_dir":                "_backups",
	"deleted_dir":               "_deleted_items",
	"schedule_content":          "6h",
	"schedule_seo":              "1h",
	"schedule_social":           "12h",
	"schedule_heartbeat":        "5m",
}

// envKeys are bound explicitly so they resolve even without a config file
var envKeys = []string{
	"x_bearer_token", "x_api_key", "x_api_secret", "x_access_token", "x_access_token_secret",
	"gemini_api_key", "anthropic_api_key", "pinterest_access_token", "pinterest_board_id",
	"telegram_bot_token", "telegram_chat_id", "indexnow_key", "monitor_webhook_url",
	"nats_url", "metrics_addr",
}

// Load reads .env, the optional config file in dir and the environment
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range append(envKeys, keysOf(defaults)...) {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		XBearerToken:         v.GetString("x_bearer_token"),
		XAPIKey:              v.GetString("x_api_key"),
		XAPISecret:           v.GetString("x_api_secret"),
		XAccessToken:         v.GetString("x_access_token"),
		XAccessTokenSecret:   v.GetString("x_access_token_secret"),
		LLMProvider:          strings.ToLower(v.GetString("llm_provider")),
		GeminiAPIKey:         v.GetString("gemini_api_key"),
		GeminiModel:          v.GetString("gemini_model"),
		AnthropicAPIKey:      v.GetString("anthropic_api_key"),
		AmazonTag:            v.GetString("amazon_tag"),
		BaseURL:              strings.TrimSuffix(v.GetString("blog_base_url"), "/"),
		BlogTitle:            v.GetString("blog_title"),
		APITimeout:           time.Duration(v.GetInt("api_timeout_seconds")) * time.Second,
		MaxTotalRuntime:      time.Duration(v.GetInt("max_total_runtime_seconds")) * time.Second,
		GeminiDailyCallLimit: v.GetInt("gemini_daily_call_limit"),
		MaxConsecutiveErrors: v.GetInt("max_consecutive_errors"),
		PostsPerDay:          v.GetInt("posts_per_day"),
		DaysAhead:            v.GetInt("days_ahead"),
		PinterestToken:       v.GetString("pinterest_access_token"),
		PinterestBoardID:     v.GetString("pinterest_board_id"),
		TelegramToken:        v.GetString("telegram_bot_token"),
		TelegramChatID:       v.GetInt64("telegram_chat_id"),
		IndexNowKey:          v.GetString("indexnow_key"),
		WebhookURL:           v.GetString("monitor_webhook_url"),
		NATSURL:              v.GetString("nats_url"),
		MetricsAddr:          v.GetString("metrics_addr"),
		LogFormat:            v.GetString("log_format"),
		DataDir:              v.GetString("data_dir"),
		DocsDir:              v.GetString("docs_dir"),
		LogDir:               v.GetString("log_dir"),
		BackupDir:            v.GetString("backup_dir"),
		DeletedDir:           v.GetString("deleted_dir"),
		channelsRaw:          v.GetString("distribution_channels"),
		Schedules: map[string]string{
			"content":   v.GetString("schedule_content"),
			"seo":       v.GetString("schedule_seo"),
			"social":    v.GetString("schedule_social"),
			"heartbeat": v.GetString("schedule_heartbeat"),
		},
	}
	return cfg
}

// DistributionChannels parses DISTRIBUTION_CHANNELS; malformed input yields none
func (c *Config) DistributionChannels() []Channel {
	var channels []Channel
	if err := json.Unmarshal([]byte(c.channelsRaw), &channels); err != nil {
		return nil
	}
	return channels
}

// QueueIndexPath is the JSON index of the post queue
func (c *Config) QueueIndexPath() string { return filepath.Join(c.DataDir, "queue_index.json") }

// QueueDir holds the rendered HTML of queued posts
func (c *Config) QueueDir() string { return filepath.Join(c.DataDir, "post_queue") }

// StatePath is the persisted scheduler state
func (c *Config) StatePath() string { return filepath.Join(c.LogDir, "master_state.json") }

// HistoryPath is the SQLite run history database
func (c *Config) HistoryPath() string { return filepath.Join(c.DataDir, "run_history.db") }

// StatusPath is the last host health snapshot
func (c *Config) StatusPath() string { return filepath.Join(c.LogDir, "server_status.json") }

// AlertLogPath is the plain-text log of host alerts
func (c *Config) AlertLogPath() string { return filepath.Join(c.LogDir, "monitor_alerts.log") }

// TwitterWriteEnabled reports whether all four user-context credentials are set
func (c *Config) TwitterWriteEnabled() bool {
	return c.XAPIKey != "" && c.XAPISecret != "" && c.XAccessToken != "" && c.XAccessTokenSecret != ""
}

// PinterestEnabled reports whether pins can be created
func (c *Config) PinterestEnabled() bool {
	return c.PinterestToken != "" && c.PinterestBoardID != ""
}

// TelegramEnabled reports whether the Telegram channel is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func keysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
