// Package sweep implements the retroactive reconciliation pass: enumerate
// threads in tracked channels, classify each via the resolver, and drive
// unprocessed ones through the create path. Safe to run concurrently with
// live event processing; each thread's sync is self-contained.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fragbridge/internal/resolver"
	"github.com/fragbridge/internal/syncer"
	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

// Options bound one sweep invocation.
type Options struct {
	// MaxAge excludes threads created earlier than now-MaxAge. Zero means
	// no age filter.
	MaxAge time.Duration

	// ArchivedLimit caps how many archived threads are fetched per
	// channel on top of the active ones.
	ArchivedLimit int

	// DryRun classifies and counts without creating fragments or posting
	// messages.
	DryRun bool
}

// Sweeper runs reconciliation over the tracked channels.
type Sweeper struct {
	tr       transport.Transport
	sync     *syncer.Syncer
	lookback int
}

func New(tr transport.Transport, sync *syncer.Syncer, lookback int) *Sweeper {
	return &Sweeper{tr: tr, sync: sync, lookback: lookback}
}

// Channel sweeps one tracked channel. Per-thread failures are recorded in
// the result's error list and never abort the sweep; only the thread
// enumeration itself can fail the call.
func (s *Sweeper) Channel(ctx context.Context, channelID string, opts Options) (models.SyncResult, error) {
	var result models.SyncResult

	threads, err := s.enumerate(ctx, channelID, opts)
	if err != nil {
		return result, fmt.Errorf("enumerating threads in channel %s: %w", channelID, err)
	}

	cutoff := time.Time{}
	if opts.MaxAge > 0 {
		cutoff = time.Now().Add(-opts.MaxAge)
	}

	for _, thread := range threads {
		if !cutoff.IsZero() && thread.CreatedAt.Before(cutoff) {
			continue
		}
		result.ScannedThreads++

		if opts.DryRun {
			s.classifyOnly(ctx, thread, &result)
			continue
		}

		outcome, err := s.sync.ProcessThread(ctx, thread, false)
		switch outcome {
		case syncer.OutcomeCreated:
			result.UnprocessedThreads++
			result.ProcessedThreads++
		case syncer.OutcomeSkipped:
			if err != nil {
				result.FailedThreads++
				result.Errors = append(result.Errors, models.SyncError{ThreadID: thread.ID, Message: err.Error()})
			} else {
				result.SkippedThreads++
			}
		case syncer.OutcomeFailed:
			result.UnprocessedThreads++
			result.FailedThreads++
			result.Errors = append(result.Errors, models.SyncError{ThreadID: thread.ID, Message: err.Error()})
		case syncer.OutcomeUntracked:
			// Enumeration only covers tracked channels; an untracked
			// outcome here means the mapping changed mid-run. Count as
			// skipped.
			result.SkippedThreads++
		}
	}

	log.Info().Str("channel_id", channelID).
		Int("scanned", result.ScannedThreads).
		Int("processed", result.ProcessedThreads).
		Int("skipped", result.SkippedThreads).
		Int("failed", result.FailedThreads).
		Bool("dry_run", opts.DryRun).
		Msg("Channel sweep complete")
	return result, nil
}

// All sweeps every tracked channel and sums the results field-wise.
func (s *Sweeper) All(ctx context.Context, channelIDs []string, opts Options) (models.SyncResult, error) {
	var total models.SyncResult
	for _, channelID := range channelIDs {
		result, err := s.Channel(ctx, channelID, opts)
		if err != nil {
			// Enumeration failures degrade to a recorded error rather
			// than aborting the remaining channels.
			log.Error().Err(err).Str("channel_id", channelID).Msg("Channel sweep failed")
			total.Errors = append(total.Errors, models.SyncError{ThreadID: "channel:" + channelID, Message: err.Error()})
			continue
		}
		total.Add(result)
	}
	return total, nil
}

func (s *Sweeper) enumerate(ctx context.Context, channelID string, opts Options) ([]models.Thread, error) {
	active, err := s.tr.ActiveThreads(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if opts.ArchivedLimit <= 0 {
		return active, nil
	}
	archived, err := s.tr.ArchivedThreads(ctx, channelID, opts.ArchivedLimit)
	if err != nil {
		return nil, err
	}
	return append(active, archived...), nil
}

func (s *Sweeper) classifyOnly(ctx context.Context, thread models.Thread, result *models.SyncResult) {
	botID, err := s.tr.BotUserID(ctx)
	if err != nil {
		result.Errors = append(result.Errors, models.SyncError{ThreadID: thread.ID, Message: err.Error()})
		return
	}
	res, err := resolver.Resolve(ctx, s.tr, thread.ID, botID, s.lookback)
	if err != nil {
		result.Errors = append(result.Errors, models.SyncError{ThreadID: thread.ID, Message: err.Error()})
		return
	}
	if res.Processed {
		result.SkippedThreads++
	} else {
		result.UnprocessedThreads++
	}
}
