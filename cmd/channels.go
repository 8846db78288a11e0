package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"
)

// ChannelsCommand returns the command listing tracked channels.
func ChannelsCommand() *cli.Command {
	return &cli.Command{
		Name:   "channels",
		Usage:  "List tracked channels and their classification targets",
		Action: runChannels,
	}
}

func runChannels(c *cli.Context) error {
	a, err := buildApp(c)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(a.cfg.Channels))
	for id := range a.cfg.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Printf("%d tracked channel(s):\n", len(ids))
	for _, id := range ids {
		name := "(unresolvable)"
		if ch, err := a.client.Channel(ctx, id); err == nil {
			name = "#" + ch.Name
		}
		fmt.Printf("  %s  %s -> %s\n", id, name, a.cfg.Channels[id])
	}
	return nil
}
