// Package command provides CLI command definitions for lettuce-cli.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/thachlp/lettuce/command"
)

// SendCommand returns the send subcommand.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send one command and print its reply",
		ArgsUsage: "NAME [ARG...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Routing key (repeatable); defaults to the first argument",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline for the command",
				Value: 10 * time.Second,
			},
		},
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("send needs a command name, e.g. send GET mykey")
	}
	name := c.Args().First()

	var args [][]byte
	for _, a := range c.Args().Tail() {
		args = append(args, []byte(a))
	}

	var keys [][]byte
	for _, k := range c.StringSlice("key") {
		keys = append(keys, []byte(k))
	}
	if len(keys) == 0 && len(args) > 0 {
		keys = [][]byte{args[0]}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	cl, err := connect(ctx, c)
	if err != nil {
		return err
	}
	defer cl.Close()

	reply, err := cl.Dispatch(ctx, command.New(name, keys, args...)).Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, FormatReply(reply))
	return nil
}
