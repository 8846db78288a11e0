package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fragbridge/internal/sweep"
	"github.com/fragbridge/pkg/models"
)

// SweepCommand returns the reconciliation sweep command.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Find and process previously unmirrored threads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Sweep only this channel ID (default: all tracked channels)",
			},
			&cli.IntFlag{
				Name:  "max-age-hours",
				Usage: "Only consider threads created within this many hours (0 = no limit)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Archived threads fetched per channel",
				Value: 25,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Classify and count without creating fragments",
			},
		},
		Action: runSweep,
	}
}

func runSweep(c *cli.Context) error {
	a, err := buildApp(c)
	if err != nil {
		return err
	}

	opts := sweep.Options{
		MaxAge:        time.Duration(c.Int("max-age-hours")) * time.Hour,
		ArchivedLimit: c.Int("limit"),
		DryRun:        c.Bool("dry-run"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	var result models.SyncResult
	if channelID := c.String("channel"); channelID != "" {
		if _, ok := a.cfg.Channels[channelID]; !ok {
			return fmt.Errorf("channel %s is not tracked", channelID)
		}
		result, err = a.sweeper.Channel(ctx, channelID, opts)
	} else {
		channelIDs := make([]string, 0, len(a.cfg.Channels))
		for id := range a.cfg.Channels {
			channelIDs = append(channelIDs, id)
		}
		result, err = a.sweeper.All(ctx, channelIDs, opts)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Sweep complete (dry-run: %v)\n", opts.DryRun)
	fmt.Printf("  scanned:     %d\n", result.ScannedThreads)
	fmt.Printf("  unprocessed: %d\n", result.UnprocessedThreads)
	fmt.Printf("  processed:   %d\n", result.ProcessedThreads)
	fmt.Printf("  skipped:     %d\n", result.SkippedThreads)
	fmt.Printf("  failed:      %d\n", result.FailedThreads)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s: %s\n", e.ThreadID, e.Message)
	}
	return nil
}
