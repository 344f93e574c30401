// Package command provides CLI command definitions for lettuce-cli.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/internal/cli/repl"
)

// ReplCommand returns the interactive shell subcommand.
func ReplCommand() *cli.Command {
	return &cli.Command{
		Name:    "repl",
		Aliases: []string{"shell"},
		Usage:   "Interactive shell against the cluster",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-command deadline",
				Value: 10 * time.Second,
			},
		},
		Action: replAction,
	}
}

func replAction(c *cli.Context) error {
	ctx := context.Background()
	cl, err := connect(ctx, c)
	if err != nil {
		return err
	}
	defer cl.Close()

	perCmd := c.Duration("timeout")
	eval := func(name string, args []string) (string, error) {
		raw := make([][]byte, 0, len(args))
		for _, a := range args {
			raw = append(raw, []byte(a))
		}
		var keys [][]byte
		if len(raw) > 0 && !keyless(name) {
			keys = [][]byte{raw[0]}
		}

		cctx, cancel := context.WithTimeout(ctx, perCmd)
		defer cancel()
		reply, err := cl.Dispatch(cctx, command.New(name, keys, raw...)).Wait(cctx)
		if err != nil {
			return "", err
		}
		return FormatReply(reply), nil
	}

	fmt.Fprintln(c.App.Writer, "Connected. Type help for usage, exit to leave.")
	return repl.New(eval).Run()
}

// keyless lists commands whose first argument is not a key, so the
// shell does not route them by it.
func keyless(name string) bool {
	switch strings.ToUpper(name) {
	case "CLUSTER", "PING", "ECHO", "INFO", "COMMAND", "CONFIG", "CLIENT", "SELECT", "AUTH", "HELLO":
		return true
	}
	return false
}
