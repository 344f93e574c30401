// Package command provides CLI command definitions for lettuce-cli.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// TopologyCommand returns the topology subcommand.
func TopologyCommand() *cli.Command {
	return &cli.Command{
		Name:    "topology",
		Aliases: []string{"topo"},
		Usage:   "Print the discovered cluster topology",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Force a fresh discovery before printing",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline",
				Value: 10 * time.Second,
			},
		},
		Action: topologyAction,
	}
}

func topologyAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	cl, err := connect(ctx, c)
	if err != nil {
		return err
	}
	defer cl.Close()

	topo := cl.Topology()
	if c.Bool("refresh") {
		if topo, err = cl.RefreshTopology(ctx); err != nil {
			return err
		}
	}
	if topo == nil {
		return fmt.Errorf("no topology discovered")
	}

	w := c.App.Writer
	fmt.Fprintf(w, "version: %d\n\nnodes:\n", topo.Version())
	for _, n := range topo.Nodes() {
		id := n.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "  %-24s %-8s %s\n", n.Addr, n.Role, id)
	}

	fmt.Fprintf(w, "\nslots:\n")
	for _, r := range topo.SlotRanges() {
		fmt.Fprintf(w, "  %5d-%-5d -> %s\n", r.From, r.To, r.Addr)
	}
	return nil
}
