// Package config handles application configuration from environment
// variables and the keyword file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"shopwatch/internal/model"
	"shopwatch/internal/source"
	"shopwatch/internal/source/feed"
)

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// SMTP holds mail delivery settings. It is nil when mail is not configured.
type SMTP struct {
	Server   string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Config holds the application configuration.
type Config struct {
	DatabasePath     string
	LogLevel         string
	KeywordsPath     string
	RequestTimeout   time.Duration
	BaselineFirstRun bool

	YahooBaseURL      string
	MercariBaseURL    string
	LashinbangBaseURL string
	LashinbangShopURL string
	// FeedURLTemplate enables the feed source when set.
	FeedURLTemplate string
	ExtraHeaders    map[model.Source]source.HeaderSigner

	TelegramBotToken string
	TelegramChatID   int64
	SMTP             *SMTP
}

// LoadDotEnv reads an optional .env file into the environment.
// Variables already set are not overridden.
func LoadDotEnv(log *slog.Logger) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("no .env file found, using process environment")
			return
		}
		log.Warn("read .env file", "error", err)
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:      getEnv("DATABASE_PATH", "./data/shopwatch.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		KeywordsPath:      getEnv("KEYWORDS_PATH", "./keywords.json5"),
		YahooBaseURL:      os.Getenv("YAHOO_BASE_URL"),
		MercariBaseURL:    os.Getenv("MERCARI_BASE_URL"),
		LashinbangBaseURL: os.Getenv("LASHINBANG_BASE_URL"),
		LashinbangShopURL: os.Getenv("LASHINBANG_SHOP_URL"),
		FeedURLTemplate:   os.Getenv("FEED_URL_TEMPLATE"),
		ExtraHeaders:      make(map[model.Source]source.HeaderSigner),
	}

	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil || timeout <= 0 {
		return nil, &ConfigError{Field: "REQUEST_TIMEOUT", Reason: "must be a positive duration such as 15s"}
	}
	cfg.RequestTimeout = timeout

	if raw := os.Getenv("BASELINE_FIRST_RUN"); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &ConfigError{Field: "BASELINE_FIRST_RUN", Reason: fmt.Sprintf("invalid boolean %q", raw)}
		}
		cfg.BaselineFirstRun = on
	}

	if cfg.FeedURLTemplate != "" && !strings.Contains(cfg.FeedURLTemplate, feed.Placeholder) {
		return nil, &ConfigError{Field: "FEED_URL_TEMPLATE", Reason: "must contain " + feed.Placeholder}
	}

	for _, src := range model.Sources {
		key := "EXTRA_HEADERS_" + strings.ToUpper(string(src))
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		h, err := source.ParseHeaders(raw)
		if err != nil {
			return nil, &ConfigError{Field: key, Reason: err.Error()}
		}
		cfg.ExtraHeaders[src] = h
	}

	if err := loadTelegram(cfg); err != nil {
		return nil, err
	}
	if err := loadSMTP(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Sources lists the sources this configuration can search, in visit order.
func (c *Config) Sources() []model.Source {
	var out []model.Source
	for _, src := range model.Sources {
		if src == model.SourceFeed && c.FeedURLTemplate == "" {
			continue
		}
		out = append(out, src)
	}
	return out
}

func loadTelegram(cfg *Config) error {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chat := os.Getenv("TELEGRAM_CHAT_ID")
	switch {
	case token == "" && chat == "":
		return nil
	case token == "":
		return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Reason: "required when TELEGRAM_CHAT_ID is set"}
	case chat == "":
		return &ConfigError{Field: "TELEGRAM_CHAT_ID", Reason: "required when TELEGRAM_BOT_TOKEN is set"}
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return &ConfigError{Field: "TELEGRAM_CHAT_ID", Reason: fmt.Sprintf("invalid chat ID %q", chat)}
	}
	cfg.TelegramBotToken = token
	cfg.TelegramChatID = id
	return nil
}

func loadSMTP(cfg *Config) error {
	server := os.Getenv("SMTP_SERVER")
	if server == "" {
		for _, key := range []string{"SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "MAIL_FROM", "MAIL_TO"} {
			if os.Getenv(key) != "" {
				return &ConfigError{Field: "SMTP_SERVER", Reason: "required when " + key + " is set"}
			}
		}
		return nil
	}

	port, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil || port <= 0 || port > 65535 {
		return &ConfigError{Field: "SMTP_PORT", Reason: "must be a port number"}
	}
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		return &ConfigError{Field: "MAIL_FROM", Reason: "required when SMTP_SERVER is set"}
	}
	var to []string
	for _, s := range strings.Split(os.Getenv("MAIL_TO"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			to = append(to, s)
		}
	}
	if len(to) == 0 {
		return &ConfigError{Field: "MAIL_TO", Reason: "required when SMTP_SERVER is set"}
	}

	cfg.SMTP = &SMTP{
		Server:   server,
		Port:     port,
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     from,
		To:       to,
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
