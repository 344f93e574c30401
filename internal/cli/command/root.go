// Package command provides CLI command definitions for lettuce-cli.
//
// It uses urfave/cli/v2 for command parsing. Every subcommand builds
// a short-lived client from the global flags, runs, and tears it
// down again.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/thachlp/lettuce/client"
	"github.com/thachlp/lettuce/config"
	"github.com/thachlp/lettuce/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "lettuce-cli",
		Usage:   "Cluster-aware command runner and topology inspector",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SendCommand(),
			TopologyCommand(),
			PingCommand(),
			ReplCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "seeds",
			Aliases: []string{"s"},
			Usage:   "Comma-separated seed addresses (host:port,...)",
			EnvVars: []string{"LETTUCE_SEEDS"},
			Value:   config.DefaultSeed,
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"LETTUCE_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "single",
			Usage: "Disable cluster mode and pin to the first seed",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"LETTUCE_LOG_LEVEL"},
			Value:   "warn",
		},
	}
}

// buildConfig layers the config file under the global flags.
func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	loader := config.NewLoader(config.WithConfigFile(c.String("config")))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if c.IsSet("seeds") || len(cfg.Seeds) == 0 {
		cfg.Seeds = splitSeeds(c.String("seeds"))
	}
	if c.Bool("single") {
		cfg.Cluster.Enabled = false
	}
	cfg.Log.Level = c.String("log-level")
	cfg.Log.Format = "text"

	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitSeeds(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// connect builds a client from the flags; the caller must Close it.
func connect(ctx context.Context, c *cli.Context) (*client.Client, error) {
	cfg, err := buildConfig(c)
	if err != nil {
		return nil, err
	}
	cl, err := client.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return cl, nil
}
