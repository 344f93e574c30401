// Package command provides CLI command definitions for lettuce-cli.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// PingCommand returns the ping subcommand.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check node reachability and round-trip time",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of pings",
				Value:   1,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline",
				Value: 10 * time.Second,
			},
		},
		Action: pingAction,
	}
}

func pingAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	cl, err := connect(ctx, c)
	if err != nil {
		return err
	}
	defer cl.Close()

	for i := 0; i < c.Int("count"); i++ {
		start := time.Now()
		reply, err := cl.Do(ctx, "PING", nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s  %.3fms\n", reply.Text(), float64(time.Since(start).Microseconds())/1000)
	}
	return nil
}
