// Package bridge wires gateway events to the sync orchestrator. Each event
// spawns one self-contained goroutine keyed by its own thread; the only
// state shared between them is a transient snapshot cache used to diff
// thread updates.
package bridge

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fragbridge/internal/syncer"
	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

// Bridge reacts to live platform events. It implements discord.Handler.
type Bridge struct {
	sync *syncer.Syncer
	tr   transport.Transport

	// snapshots holds the last-seen mutable properties per thread so
	// update events can be diffed. Purely transient: after a restart the
	// first update event rewrites both fields, which is a safe overwrite.
	snapshots sync.Map // thread ID -> models.ThreadSnapshot

	wg sync.WaitGroup
}

func New(sync *syncer.Syncer, tr transport.Transport) *Bridge {
	return &Bridge{sync: sync, tr: tr}
}

// Wait blocks until in-flight event handlers finish. Called during
// shutdown after the gateway stops delivering events.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// HandleThreadCreate mirrors a newly created thread in a tracked channel.
func (b *Bridge) HandleThreadCreate(ctx context.Context, thread models.Thread) {
	if _, ok := b.sync.Tracked(thread.ChannelID); !ok {
		return
	}
	b.snapshots.Store(thread.ID, thread.Snapshot())

	b.spawn(func() {
		outcome, err := b.sync.ProcessNewThread(ctx, thread)
		logOutcome("thread_create", thread.ID, outcome, err)
	})
}

// HandleThreadUpdate syncs title/tag changes on a tracked thread.
func (b *Bridge) HandleThreadUpdate(ctx context.Context, thread models.Thread) {
	if _, ok := b.sync.Tracked(thread.ChannelID); !ok {
		return
	}

	var before *models.ThreadSnapshot
	if prev, ok := b.snapshots.Load(thread.ID); ok {
		snap := prev.(models.ThreadSnapshot)
		before = &snap
	}
	b.snapshots.Store(thread.ID, thread.Snapshot())

	b.spawn(func() {
		outcome, err := b.sync.ProcessThreadUpdate(ctx, before, thread)
		logOutcome("thread_update", thread.ID, outcome, err)
	})
}

// HandleMessageCreate tracks human replies in processed threads. The
// message's container may be an ordinary channel; non-thread containers
// and bot-authored messages are filtered out before any sync work.
func (b *Bridge) HandleMessageCreate(ctx context.Context, msg models.Message) {
	if msg.Bot {
		return
	}

	b.spawn(func() {
		thread, err := b.tr.Thread(ctx, msg.ThreadID)
		if err != nil {
			log.Debug().Err(err).Str("container_id", msg.ThreadID).Msg("Message container not resolvable as thread")
			return
		}
		if !thread.Forum {
			return
		}
		outcome, err := b.sync.ProcessReply(ctx, thread)
		logOutcome("message_create", thread.ID, outcome, err)
	})
}

// spawn runs fn on its own goroutine with a catch-all recover: a panic in
// one thread's sync must never take down the process.
func (b *Bridge) spawn(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Recovered panic in event handler")
			}
		}()
		fn()
	}()
}

func logOutcome(event, threadID string, outcome syncer.Outcome, err error) {
	switch {
	case err != nil:
		log.Error().Err(err).Str("event", event).Str("thread_id", threadID).
			Str("outcome", string(outcome)).Msg("Event sync failed")
	case outcome == syncer.OutcomeUntracked:
		// untracked threads produce no log line
	default:
		log.Info().Str("event", event).Str("thread_id", threadID).
			Str("outcome", string(outcome)).Msg("Event sync finished")
	}
}
