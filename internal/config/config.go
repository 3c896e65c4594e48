package config

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // Timezones must resolve in minimal containers.

	"github.com/caarlos0/env/v11"
)

const (
	SummarizerProviderHTTP   = "http"
	SummarizerProviderOpenAI = "openai"
)

type Config struct {
	DBPath     string `env:"DB_PATH"     envDefault:"db.sqlite"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	Timezone   string `env:"TIMEZONE"    envDefault:"UTC"`

	SummarizerProvider  string        `env:"SUMMARIZER_PROVIDER"   envDefault:"http"`
	SummarizerURL       string        `env:"SUMMARIZER_URL"        envDefault:"https://summarizer-u8mc.onrender.com/summarize"`
	SummarizerTimeout   time.Duration `env:"SUMMARIZER_TIMEOUT"    envDefault:"10s"`
	SummarizerCharLimit int           `env:"SUMMARIZER_CHAR_LIMIT" envDefault:"190000"`
	OpenAIAPIKey        string        `env:"OPENAI_API_KEY"`

	LinkedInAPIURL string        `env:"LINKEDIN_API_URL" envDefault:"https://api.linkedin.com/v2/ugcPosts"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT"     envDefault:"30s"`

	CycleSpec             string        `env:"CYCLE_SPEC"`
	CycleTimeout          time.Duration `env:"CYCLE_TIMEOUT"            envDefault:"15m"`
	CycleConcurrency      int           `env:"CYCLE_CONCURRENCY"        envDefault:"1"`
	LeaseTTL              time.Duration `env:"LEASE_TTL"                envDefault:"10m"`
	CoverImageFromContent bool          `env:"COVER_IMAGE_FROM_CONTENT" envDefault:"false"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.SummarizerProvider {
	case SummarizerProviderHTTP, SummarizerProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("unknown summarizer provider %q", cfg.SummarizerProvider)
	}

	if _, err = cfg.Location(); err != nil {
		return Config{}, err
	}

	if _, err = cfg.SlogLevel(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", c.LogLevel, err)
	}

	return level, nil
}

func (c Config) NotifierEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
