// Command chronicle runs the narrative turn engine: an HTTP server plus
// operator commands for creating campaigns, playing turns and replaying
// event logs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/talgya/chronicle/internal/config"
	"github.com/talgya/chronicle/internal/llm"
	"github.com/talgya/chronicle/internal/notify"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/turn"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "chronicle",
		Usage: "Event-sourced turn engine for narrative campaigns",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "chronicle.yaml", Usage: "YAML config file", Sources: cli.EnvVars("CHRONICLE_CONFIG")},
			&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides config)"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			newCommand(),
			turnCommand(),
			eventsCommand(),
			replayCommand(),
			archiveCommand(),
			watchCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.Run(ctx, args); err != nil {
		slog.Error("chronicle failed", "error", err)
		os.Exit(1)
	}
}

// app is the wired engine shared by every command.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	db       *persistence.DB
	llm      *llm.Client
	pipeline *turn.Pipeline
	redis    *notify.RedisPublisher
}

func setup(ctx context.Context, c *cli.Command) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if p := c.String("db"); p != "" {
		cfg.Database.Path = p
	}
	log := cfg.Logger()
	slog.SetDefault(log)

	db, err := persistence.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Debug("database opened", "path", cfg.Database.Path)

	rt, err := cfg.IntentRouter()
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, llm: llm.NewClient(cfg.LLM)}
	deps := turn.Deps{Store: db, Router: rt, Logger: log}
	if a.llm.Enabled() {
		teller := llm.NewStoryteller(a.llm, cfg.LLM.MaxTokens)
		deps.Narrator = teller
		deps.Suggester = teller
		log.Info("narration model enabled", "model", cfg.LLM.Model)
	} else {
		log.Info("no model configured, using deterministic narration")
	}

	if cfg.Redis.Addr != "" {
		pub, err := notify.NewRedisPublisher(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, turns will not be published", "addr", cfg.Redis.Addr, "error", err)
		} else {
			a.redis = pub
			deps.Observers = append(deps.Observers, pub)
		}
	}

	a.pipeline = turn.New(deps, cfg.TurnOptions())
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
