package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/giftgate/giftbot/internal/app"
	"github.com/giftgate/giftbot/internal/config"
	"github.com/giftgate/giftbot/internal/pool"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Error("giftbot exited")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	a := cli.NewApp()
	a.Name = "giftbot"
	a.Usage = "Telegram bot handing out one gift per channel subscriber"
	a.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML config file",
			Value:   config.DefaultConfigPath,
			EnvVars: []string{"GIFTBOT_CONFIG"},
		},
	}
	a.Action = cli.ShowAppHelp
	a.Commands = []*cli.Command{
		{
			Name:        "serve",
			Usage:       "Start the bot",
			Category:    "Server",
			Description: `Runs update ingestion (webhook or long polling), the HTTP server and the pool monitor.`,
			Action: func(c *cli.Context) error {
				return app.RunServer(c.Context, appConfig(c))
			},
		},
		{
			Name:     "migrate",
			Usage:    "Apply database migrations",
			Category: "Database",
			Action: func(c *cli.Context) error {
				return app.Migrate(c.Context, appConfig(c))
			},
		},
		{
			Name:     "tokens",
			Usage:    "Manage the promo code pool",
			Category: "Database",
			Subcommands: []*cli.Command{
				{
					Name:      "add",
					Usage:     "Add promo codes from arguments or a file",
					ArgsUsage: "[code...]",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "file with codes separated by whitespace or commas"},
					},
					Action: addTokens,
				},
				{
					Name:  "export",
					Usage: "Print available promo codes",
					Flags: []cli.Flag{
						&cli.IntFlag{Name: "limit", Usage: "maximum number of codes, 0 for all"},
					},
					Action: exportTokens,
				},
				{
					Name:   "count",
					Usage:  "Print pool statistics",
					Action: countTokens,
				},
			},
		},
		{
			Name:     "admin-token",
			Usage:    "Issue a bearer token for the admin API",
			Category: "Admin",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Value: "operator", Usage: "operator name stored in the token"},
				&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
			},
			Action: func(c *cli.Context) error {
				token, err := app.IssueAdminToken(appConfig(c), c.String("name"), c.Duration("ttl"))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, token)
				return nil
			},
		},
	}
	return a
}

func appConfig(c *cli.Context) config.AppConfig {
	return config.AppConfig{ConfigPath: config.ResolveConfigPath(c.String("config"))}
}

func addTokens(c *cli.Context) error {
	codes := pool.NormalizeCodes(c.Args().Slice())
	if path := strings.TrimSpace(c.String("file")); path != "" {
		raw, errRead := os.ReadFile(path)
		if errRead != nil {
			return fmt.Errorf("read codes: %w", errRead)
		}
		codes = pool.NormalizeCodes(append(codes, pool.ParseCodes(string(raw))...))
	}
	if len(codes) == 0 {
		return fmt.Errorf("no codes given")
	}

	p, closeDB, err := app.OpenPool(c.Context, appConfig(c))
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	inserted, err := p.AddTokens(c.Context, codes)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "received %d, added %d\n", len(codes), inserted)
	return nil
}

func exportTokens(c *cli.Context) error {
	p, closeDB, err := app.OpenPool(c.Context, appConfig(c))
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	codes, err := p.ListAvailable(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, code := range codes {
		fmt.Fprintln(c.App.Writer, code)
	}
	return nil
}

func countTokens(c *cli.Context) error {
	p, closeDB, err := app.OpenPool(c.Context, appConfig(c))
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	stats, err := p.Stats(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "available %d, consumed %d\n", stats.Available, stats.Consumed)
	return nil
}
