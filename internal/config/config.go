// Package config
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

/*
YAML config example:

server:
  port: 8000
  frontend_url: "https://quantdesk.netlify.app"
market:
  rest_url: "https://api.binance.us/api/v3"
  ws_url: "wss://stream.binance.us:9443/stream"
  symbols: ["BTCUSDT", "ETHUSDT"]
  intervals: ["1m", "15m", "1h"]
  history_limit: 300
  reconnect_wait: 5s
gemini:
  model: "gemini-3-flash-preview"
telegram: {}
log_level: "info"

Secrets (GEMINI_API_KEY, NEWS_API_KEY, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID)
come from the environment or a .env file, never from the YAML file.
*/

type ServerConfig struct {
	Port        int    `yaml:"port" env:"PORT"`
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL"`
}

type MarketConfig struct {
	RESTURL       string        `yaml:"rest_url" env:"BINANCE_REST_URL"`
	WSURL         string        `yaml:"ws_url" env:"BINANCE_WS_URL"`
	Symbols       []string      `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	Intervals     []string      `yaml:"intervals" env:"INTERVALS" envSeparator:","`
	HistoryLimit  int           `yaml:"history_limit" env:"HISTORY_LIMIT"`
	ReconnectWait time.Duration `yaml:"reconnect_wait" env:"RECONNECT_WAIT"`
}

type GeminiConfig struct {
	APIKey string `yaml:"-" env:"GEMINI_API_KEY"`
	Model  string `yaml:"model" env:"GEMINI_MODEL"`
}

type NewsConfig struct {
	APIKey string `yaml:"-" env:"NEWS_API_KEY"`
}

type TelegramConfig struct {
	BotToken string `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"-" env:"TELEGRAM_CHAT_ID"`
}

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Market   MarketConfig   `yaml:"market"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	News     NewsConfig     `yaml:"news"`
	Telegram TelegramConfig `yaml:"telegram"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL"`
}

// Load reads config from a YAML file (if present), then applies environment
// variable overrides and defaults. A .env file is honored when it exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = "https://quantdesk.netlify.app"
	}
	if c.Market.RESTURL == "" {
		c.Market.RESTURL = "https://api.binance.us/api/v3"
	}
	if c.Market.WSURL == "" {
		c.Market.WSURL = "wss://stream.binance.us:9443/stream"
	}
	if len(c.Market.Symbols) == 0 {
		c.Market.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT"}
	}
	if len(c.Market.Intervals) == 0 {
		c.Market.Intervals = []string{"1m", "15m", "1h"}
	}
	if c.Market.HistoryLimit == 0 {
		c.Market.HistoryLimit = 300
	}
	if c.Market.ReconnectWait == 0 {
		c.Market.ReconnectWait = 5 * time.Second
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-3-flash-preview"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Market.HistoryLimit <= 0 {
		return fmt.Errorf("market.history_limit must be positive")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols is required")
	}
	if len(c.Market.Intervals) == 0 {
		return fmt.Errorf("market.intervals is required")
	}
	if c.Market.ReconnectWait <= 0 {
		return fmt.Errorf("market.reconnect_wait must be positive")
	}
	return nil
}
