// Package config loads chronicle's settings from a YAML file with
// CHRONICLE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"github.com/talgya/chronicle/internal/encounter"
	"github.com/talgya/chronicle/internal/engine"
	"github.com/talgya/chronicle/internal/llm"
	"github.com/talgya/chronicle/internal/notify"
	"github.com/talgya/chronicle/internal/router"
	"github.com/talgya/chronicle/internal/turn"
	"github.com/talgya/chronicle/internal/worldstate"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHRONICLE_"

type Config struct {
	Server   ServerConfig        `yaml:"server"`
	Database DatabaseConfig      `yaml:"database" envPrefix:"DB_"`
	Engine   EngineConfig        `yaml:"engine"`
	LLM      llm.Config          `yaml:"llm" envPrefix:"LLM_"`
	Redis    notify.RedisOptions `yaml:"redis" envPrefix:"REDIS_"`
	Router   RouterConfig        `yaml:"router"`
	Logging  LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	AdminKey     string        `yaml:"admin_key" env:"ADMIN_KEY"`
	TurnsPerMin  int           `yaml:"turns_per_minute" env:"TURNS_PER_MINUTE"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Stream       bool          `yaml:"stream" env:"STREAM"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type EngineConfig struct {
	TickLength        int64             `yaml:"tick_length"`
	NewsFeedSize      int               `yaml:"news_feed_size"`
	IntroWindow       int64             `yaml:"intro_throttle_minutes"`
	ChoiceCount       int               `yaml:"choice_count"`
	BanterCooldown    int               `yaml:"banter_cooldown"`
	Strict            bool              `yaml:"strict" env:"STRICT"`
	NarrationTimeout  time.Duration     `yaml:"narration_timeout"`
	SuggestionTimeout time.Duration     `yaml:"suggestion_timeout"`
	RecentEvents      int               `yaml:"recent_events"`
	Limits            worldstate.Limits `yaml:"limits"`
}

type RouterConfig struct {
	RulesFile string `yaml:"rules_file" env:"ROUTER_RULES"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			TurnsPerMin:  60,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			Stream:       true,
		},
		Database: DatabaseConfig{Path: "chronicle.db"},
		Engine: EngineConfig{
			TickLength:        engine.DefaultTickLength,
			NewsFeedSize:      worldstate.DefaultNewsFeedSize,
			IntroWindow:       encounter.DefaultWindow,
			ChoiceCount:       3,
			BanterCooldown:    engine.DefaultBanterCooldown,
			NarrationTimeout:  8 * time.Second,
			SuggestionTimeout: 5 * time.Second,
			RecentEvents:      20,
		},
		LLM: llm.Config{
			Model:     "gpt-4o-mini",
			Timeout:   30 * time.Second,
			MaxTokens: 400,
			MaxPerMin: 30,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TurnOptions converts the engine section into pipeline options.
func (c Config) TurnOptions() turn.Options {
	limits := c.Engine.Limits
	if c.Engine.NewsFeedSize > 0 {
		limits.NewsFeed = c.Engine.NewsFeedSize
	}
	return turn.Options{
		TickLength:        c.Engine.TickLength,
		IntroWindow:       c.Engine.IntroWindow,
		ChoiceCount:       c.Engine.ChoiceCount,
		BanterCooldown:    c.Engine.BanterCooldown,
		Strict:            c.Engine.Strict,
		NarrationTimeout:  c.Engine.NarrationTimeout,
		SuggestionTimeout: c.Engine.SuggestionTimeout,
		RecentEvents:      c.Engine.RecentEvents,
		Limits:            limits,
	}
}

// IntentRouter builds the intent router, from the rules file when one is set.
func (c Config) IntentRouter() (*router.Router, error) {
	if c.Router.RulesFile == "" {
		return router.Default(), nil
	}
	rules, err := router.LoadRules(c.Router.RulesFile)
	if err != nil {
		return nil, err
	}
	return router.New(rules), nil
}

// Logger builds the process logger from the logging section.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
