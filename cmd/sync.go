package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fragbridge/internal/syncer"
)

// SyncCommand returns the command syncing a single thread by ID.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Sync one thread to the knowledge base",
		ArgsUsage: "THREAD_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Re-run the create path even if the thread is already processed (creates a duplicate fragment)",
			},
		},
		Action: runSync,
	}
}

func runSync(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: THREAD_ID")
	}
	threadID := c.Args().Get(0)

	a, err := buildApp(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	thread, err := a.client.Thread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to fetch thread %s: %w", threadID, err)
	}

	outcome, err := a.syncer.ProcessThread(ctx, thread, c.Bool("force"))
	msg, err := reportSync(threadID, thread.ChannelID, outcome, err)
	if err != nil {
		return err
	}
	fmt.Print(msg)
	return nil
}

// reportSync turns a sync outcome into either one operator-facing success
// line or one error, never both. A created fragment whose marker post
// failed is an error: the fragment exists but the thread will resolve as
// unprocessed.
func reportSync(threadID, channelID string, outcome syncer.Outcome, err error) (string, error) {
	switch outcome {
	case syncer.OutcomeUntracked:
		return "", fmt.Errorf("thread %s belongs to channel %s, which is not tracked", threadID, channelID)
	case syncer.OutcomeCreated:
		if err != nil {
			return "", fmt.Errorf("thread %s was mirrored, but the confirmation marker could not be posted: %w", threadID, err)
		}
		return fmt.Sprintf("Thread %s mirrored to the knowledge base\n", threadID), nil
	case syncer.OutcomeSkipped:
		if err != nil {
			return "", fmt.Errorf("thread %s could not be resolved: %w", threadID, err)
		}
		return fmt.Sprintf("Thread %s is already processed; use --force to reprocess\n", threadID), nil
	case syncer.OutcomeFailed:
		return "", fmt.Errorf("sync of thread %s failed: %w", threadID, err)
	}
	return "", err
}
