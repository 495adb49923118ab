// Package config loads application settings from .env, an optional config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port         int    `mapstructure:"port"`
	LogLevel     string `mapstructure:"log_level"`
	LogPretty    bool   `mapstructure:"log_pretty"`
	StaticDir    string `mapstructure:"static_dir"`
	ArticlesFile string `mapstructure:"articles_file"`

	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
}

type CoinGeckoConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SingleFlight bool          `mapstructure:"single_flight"`
}

type TelegramConfig struct {
	Token string `mapstructure:"bot_token"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

func (c TelegramConfig) Enabled() bool { return c.Token != "" }

func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

var defaults = map[string]any{
	"port":                    4173,
	"log_level":               "info",
	"log_pretty":              false,
	"static_dir":              "dist/public",
	"articles_file":           "data/articles.json",
	"coingecko.base_url":      "https://api.coingecko.com/api/v3",
	"coingecko.api_key":       "",
	"coingecko.timeout":       "10s",
	"coingecko.single_flight": false,
	"telegram.bot_token":      "",
	"openai.api_key":          "",
	"openai.model":            "gpt-4o-mini",
}

// Load reads configuration. Environment variables (keys upper-cased, dots as underscores,
// e.g. COINGECKO_API_KEY) win over config.yaml, which wins over the defaults.
// A .env file, when present, is loaded into the environment first.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

// loadDotEnv loads path into the environment. Only a missing file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CoinGecko.BaseURL == "" {
		return errors.New("coingecko base url must not be empty")
	}
	if c.CoinGecko.Timeout <= 0 {
		return fmt.Errorf("invalid coingecko timeout: %s", c.CoinGecko.Timeout)
	}
	return nil
}
