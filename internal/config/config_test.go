package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.TickLength != 240 || cfg.Engine.ChoiceCount != 3 || cfg.Database.Path != "chronicle.db" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronicle.yaml")
	yml := `
server:
  addr: ":9090"
database:
  path: /var/lib/chronicle/game.db
engine:
  tick_length: 120
  choice_count: 4
  narration_timeout: 3s
  limits:
    facts: 20
llm:
  model: local-model
redis:
  addr: redis:6379
  recent_turns: 10
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHRONICLE_DB_PATH", "/tmp/override.db")
	t.Setenv("CHRONICLE_LLM_API_KEY", "sk-test")
	t.Setenv("CHRONICLE_STRICT", "true")
	t.Setenv("CHRONICLE_REDIS_ADDR", "cache:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != "local-model" {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
	if !cfg.Engine.Strict || cfg.Engine.NarrationTimeout != 3*time.Second {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.Redis.Addr != "cache:6380" || cfg.Redis.RecentTurns != 10 {
		t.Fatalf("redis = %+v", cfg.Redis)
	}

	opts := cfg.TurnOptions()
	if opts.TickLength != 120 || opts.ChoiceCount != 4 || !opts.Strict {
		t.Fatalf("options = %+v", opts)
	}
	if opts.Limits.Facts != 20 || opts.Limits.NewsFeed != 10 {
		t.Fatalf("limits = %+v", opts.Limits)
	}
	if !cfg.Logger().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug logging not enabled")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRouterFromRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("meta: [ooc, pause]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Router.RulesFile = path
	r, err := cfg.IntentRouter()
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Classify("pause"); got.Category != "META" {
		t.Fatalf("category = %s", got.Category)
	}
}
