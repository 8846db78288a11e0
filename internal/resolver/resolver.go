// Package resolver determines whether a thread has already been mirrored by
// scanning a bounded page of its recent messages for the bridge's own marker
// message. This scan is the system's substitute for a thread→fragment index.
package resolver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fragbridge/internal/marker"
	"github.com/fragbridge/internal/retry"
	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

// DefaultLookback bounds the page of messages scanned per thread. A thread
// whose marker has scrolled past this window is misclassified as
// unprocessed and will get a duplicate fragment on next sync; that is an
// accepted trade-off of the database-free design, tunable via config.
const DefaultLookback = 50

// Resolution is the outcome of a thread-state lookup.
type Resolution struct {
	Processed  bool
	FragmentID string
}

// Resolve fetches up to lookback recent messages of the thread, filters to
// those authored by the bridge, and looks for a marker. When multiple
// marker messages exist the most recently created one wins; carrying more
// than one distinct identifier is a protocol violation and is logged as a
// warning, never an error.
//
// Transport fetch failures (after the transient-class retry) are returned
// to the caller, which treats the thread as unresolvable and skips it.
func Resolve(ctx context.Context, tr transport.Transport, threadID, botUserID string, lookback int) (Resolution, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	var msgs []models.Message
	fetch := func() error {
		var err error
		msgs, err = tr.RecentMessages(ctx, threadID, lookback)
		return err
	}
	if err := retry.Do(ctx, retry.DefaultConfig(transport.IsNotVisibleYet), fetch); err != nil {
		if transport.IsPermission(err) {
			log.Warn().
				Str("thread_id", threadID).
				Err(err).
				Msg("Missing permissions for thread; treating as unresolvable")
		}
		return Resolution{}, fmt.Errorf("fetching messages for thread %s: %w", threadID, err)
	}

	var (
		best      models.Message
		bestID    string
		found     bool
		seenOther bool
	)
	for _, m := range msgs {
		if m.AuthorID != botUserID {
			continue
		}
		id, ok := marker.Decode(m.Content)
		if !ok {
			if !marker.Contains(m.Content) {
				continue
			}
			// Label without a parseable identifier: a mangled marker.
			log.Warn().
				Str("thread_id", threadID).
				Str("message_id", m.ID).
				Msg("Marker label present but identifier unparseable")
			continue
		}
		if found && id != bestID {
			seenOther = true
		}
		if !found || m.CreatedAt.After(best.CreatedAt) {
			best = m
			bestID = id
			found = true
		}
	}

	if !found {
		return Resolution{}, nil
	}
	if seenOther {
		log.Warn().
			Str("thread_id", threadID).
			Str("fragment_id", bestID).
			Msg("Multiple distinct markers in one thread; using most recent")
	}
	return Resolution{Processed: true, FragmentID: bestID}, nil
}
