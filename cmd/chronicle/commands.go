package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/talgya/chronicle/internal/api"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/notify"
	"github.com/talgya/chronicle/internal/turn"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides config)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &api.Server{
				Pipeline:    a.pipeline,
				DB:          a.db,
				LLM:         a.llm,
				Addr:        a.cfg.Server.Addr,
				AdminKey:    a.cfg.Server.AdminKey,
				Logger:      a.log,
				TurnLimiter: api.NewRateLimiter(a.cfg.Server.TurnsPerMin, time.Minute),
			}
			if addr := c.String("addr"); addr != "" {
				srv.Addr = addr
			}
			if a.redis != nil {
				srv.Feed = a.redis
			}
			if a.cfg.Server.Stream {
				hub := notify.NewHub(a.log)
				go hub.Run(ctx)
				a.pipeline.AddObserver(hub)
				srv.Hub = hub
			}
			return srv.ListenAndServe(ctx)
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a campaign from a JSON setup file",
		ArgsUsage: "<setup.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "campaign title when no setup file is given"},
			&cli.StringFlag{Name: "player", Value: "Wanderer", Usage: "player name when no setup file is given"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var s turn.Setup
			if path := c.Args().First(); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read setup: %w", err)
				}
				if err := json.Unmarshal(data, &s); err != nil {
					return fmt.Errorf("parse setup: %w", err)
				}
			} else {
				s = turn.Setup{Title: c.String("title"), Player: turn.PlayerSeed{Name: c.String("player")}}
			}

			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.pipeline.CreateCampaign(ctx, s)
			if err != nil {
				return err
			}
			fmt.Printf("campaign %s created: %q, next turn %d\n", m.Campaign.ID, m.Campaign.Title, m.Campaign.NextTurnNumber)
			return nil
		},
	}
}

func turnCommand() *cli.Command {
	return &cli.Command{
		Name:      "turn",
		Usage:     "Play turns; reads one input per line from stdin when none is given",
		ArgsUsage: "<campaign-id> [input...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the full turn result"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("campaign id required")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			play := func(input string) error {
				res, err := a.pipeline.Execute(ctx, id, input)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return printJSON(res)
				}
				printTurn(res)
				return nil
			}

			if rest := c.Args().Tail(); len(rest) > 0 {
				return play(strings.Join(rest, " "))
			}
			sc := bufio.NewScanner(os.Stdin)
			fmt.Print("> ")
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" {
					if err := play(line); err != nil {
						return err
					}
				}
				fmt.Print("> ")
			}
			return sc.Err()
		},
	}
}

func printTurn(res *turn.Result) {
	fmt.Printf("\n[turn %d, %s, %s]\n", res.Turn, res.Clock, res.Location.Name)
	if res.Narration != "" {
		fmt.Println(res.Narration)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  ! %s: %s\n", w.Code, w.Message)
	}
	for i, ch := range res.Choices {
		fmt.Printf("  %d. %s\n", i+1, ch.Text)
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Print a campaign's event log",
		ArgsUsage: "<campaign-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hidden", Usage: "include hidden bookkeeping events"},
			&cli.IntFlag{Name: "after", Usage: "only events after this id"},
			&cli.IntFlag{Name: "limit", Value: 0, Usage: "maximum events (0 for all)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("campaign id required")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			evts, err := a.db.ListEvents(ctx, id, c.Int("after"), int(c.Int("limit")), c.Bool("hidden"))
			if err != nil {
				return err
			}
			for _, e := range evts {
				printEvent(e)
			}
			return nil
		},
	}
}

func printEvent(e event.Event) {
	payload, _ := event.Encode(e.Payload)
	flag := " "
	if e.Hidden {
		flag = "h"
	}
	fmt.Printf("%6d  t%-4d %s %-22s %s\n", e.ID, e.TurnNumber, flag, e.Type, payload)
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Rebuild projections from the event log and report drift",
		ArgsUsage: "<campaign-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("campaign id required")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.pipeline.Rebuild(ctx, id)
			if err != nil {
				return err
			}
			if err := printJSON(rep); err != nil {
				return err
			}
			if rep.Drifted() {
				return cli.Exit("live state had drifted from the event log", 2)
			}
			return nil
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Close a campaign and write its legacy record",
		ArgsUsage: "<campaign-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "summary", Usage: "closing summary"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("campaign id required")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.pipeline.Archive(ctx, id, c.String("summary"))
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a campaign's committed turns over Redis",
		ArgsUsage: "<campaign-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("campaign id required")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.redis == nil {
				return errors.New("watch needs redis.addr configured")
			}

			turns, err := a.redis.Subscribe(ctx, id)
			if err != nil {
				return err
			}
			a.log.Info("watching campaign", "campaign", id, "channel", notify.ChannelFor(id))
			for s := range turns {
				fmt.Printf("\n[turn %d, %s] %s\n", s.Turn, s.Clock, s.Narration)
			}
			return nil
		},
	}
}
