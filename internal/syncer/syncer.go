// Package syncer is the per-thread state machine deciding whether to
// create, update, or skip a fragment, and posting the confirmation marker
// back into the thread. Both live event handling and the reconciliation
// sweep drive threads through this package.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fragbridge/internal/changes"
	"github.com/fragbridge/internal/conversation"
	"github.com/fragbridge/internal/kb"
	"github.com/fragbridge/internal/marker"
	"github.com/fragbridge/internal/resolver"
	"github.com/fragbridge/internal/retry"
	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

// Outcome is a terminal state of one thread's sync.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeSkipped   Outcome = "skipped_already_processed"
	OutcomeFailed    Outcome = "failed"
	OutcomeUntracked Outcome = "untracked" // silent, never counted as failure
)

// Config is the static routing and bounds configuration, loaded once at
// startup and read-only afterwards.
type Config struct {
	// Channels maps tracked channel IDs to classification IDs. Threads in
	// channels absent from this map are never processed.
	Channels map[string]string

	WorkspaceID       string
	RepositoryTag     string
	Lookback          int
	ConversationLimit int
}

// Syncer orchestrates one thread at a time. It holds no per-thread state;
// everything is re-read from the platform on each invocation.
type Syncer struct {
	tr  transport.Transport
	api kb.API
	cfg Config
}

func New(tr transport.Transport, api kb.API, cfg Config) *Syncer {
	return &Syncer{tr: tr, api: api, cfg: cfg}
}

// Tracked reports whether the channel is configured for mirroring, and its
// classification target if so.
func (s *Syncer) Tracked(channelID string) (string, bool) {
	classification, ok := s.cfg.Channels[channelID]
	return classification, ok
}

// ProcessNewThread handles the thread-created trigger. Re-delivery of a
// create event for an already-processed thread is an idempotent skip.
func (s *Syncer) ProcessNewThread(ctx context.Context, thread models.Thread) (Outcome, error) {
	classification, ok := s.Tracked(thread.ChannelID)
	if !ok {
		return OutcomeUntracked, nil
	}

	res, err := s.resolve(ctx, thread.ID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if res.Processed {
		log.Debug().Str("thread_id", thread.ID).Str("fragment_id", res.FragmentID).
			Msg("Thread already processed; create event skipped")
		return OutcomeSkipped, nil
	}

	return s.create(ctx, thread, classification)
}

// ProcessThread is the combined operation used by the sweep and the manual
// sync command: resolve, then create if unprocessed. force bypasses the
// already-processed skip and deliberately re-runs the create path; the
// operator owns the resulting duplicate fragment.
func (s *Syncer) ProcessThread(ctx context.Context, thread models.Thread, force bool) (Outcome, error) {
	classification, ok := s.Tracked(thread.ChannelID)
	if !ok {
		return OutcomeUntracked, nil
	}

	res, err := s.resolve(ctx, thread.ID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if res.Processed && !force {
		return OutcomeSkipped, nil
	}
	if res.Processed && force {
		log.Warn().Str("thread_id", thread.ID).Str("fragment_id", res.FragmentID).
			Msg("Force-reprocessing an already-processed thread")
	}

	return s.create(ctx, thread, classification)
}

// ProcessThreadUpdate handles the thread-updated trigger. before is the
// snapshot prior to the change when the event source has one; nil means
// unknown, in which case both mutable fields are rewritten (updates are
// full overwrites, so this is safe).
func (s *Syncer) ProcessThreadUpdate(ctx context.Context, before *models.ThreadSnapshot, thread models.Thread) (Outcome, error) {
	classification, ok := s.Tracked(thread.ChannelID)
	if !ok {
		return OutcomeUntracked, nil
	}

	res, err := s.resolve(ctx, thread.ID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !res.Processed {
		// Update delivered before the create marker exists. Re-reading
		// current state resolves the ordering: just create.
		return s.create(ctx, thread, classification)
	}

	changed := []string{changes.FieldTitle, changes.FieldTags}
	if before != nil {
		changed = changes.Detect(*before, thread.Snapshot())
	}
	if len(changed) == 0 {
		log.Debug().Str("thread_id", thread.ID).Msg("No changes detected")
		return OutcomeSkipped, nil
	}

	req := kb.UpdateRequest{}
	for _, field := range changed {
		switch field {
		case changes.FieldTitle:
			title := thread.Name
			req.Title = &title
		case changes.FieldTags:
			guildName, channelName, err := s.names(ctx, thread)
			if err != nil {
				return OutcomeFailed, err
			}
			req.Tags = RegeneratedTags(guildName, channelName, thread.Tags)
		}
	}

	if err := s.api.UpdateFragment(ctx, res.FragmentID, req); err != nil {
		return OutcomeFailed, fmt.Errorf("updating fragment %s for thread %s: %w", res.FragmentID, thread.ID, err)
	}
	log.Info().Str("thread_id", thread.ID).Str("fragment_id", res.FragmentID).
		Strs("fields", changed).Msg("Fragment updated")
	return OutcomeUpdated, nil
}

// ProcessReply handles a new human message in a tracked, already-processed
// thread: the fragment body is rebuilt from the full conversation and
// overwritten, not diffed.
func (s *Syncer) ProcessReply(ctx context.Context, thread models.Thread) (Outcome, error) {
	if _, ok := s.Tracked(thread.ChannelID); !ok {
		return OutcomeUntracked, nil
	}

	res, err := s.resolve(ctx, thread.ID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !res.Processed {
		log.Debug().Str("thread_id", thread.ID).Msg("Reply in unprocessed thread; nothing to update")
		return OutcomeSkipped, nil
	}

	botID, err := s.tr.BotUserID(ctx)
	if err != nil {
		return OutcomeSkipped, err
	}
	doc, ok, err := conversation.Build(ctx, s.tr, thread.ID, botID, s.cfg.ConversationLimit)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !ok {
		return OutcomeSkipped, nil
	}

	body := fmt.Sprintf("%s\n\n---\n\n_Last updated: %s_", doc, time.Now().UTC().Format(time.RFC3339))
	if err := s.api.UpdateFragment(ctx, res.FragmentID, kb.UpdateRequest{Body: &body}); err != nil {
		return OutcomeFailed, fmt.Errorf("updating fragment %s body for thread %s: %w", res.FragmentID, thread.ID, err)
	}
	log.Info().Str("thread_id", thread.ID).Str("fragment_id", res.FragmentID).Msg("Fragment body rebuilt from conversation")
	return OutcomeUpdated, nil
}

func (s *Syncer) resolve(ctx context.Context, threadID string) (resolver.Resolution, error) {
	botID, err := s.tr.BotUserID(ctx)
	if err != nil {
		return resolver.Resolution{}, err
	}
	return resolver.Resolve(ctx, s.tr, threadID, botID, s.cfg.Lookback)
}

// create runs the create path: starter fetch, fragment creation, and the
// confirmation post whose embedded marker is the persisted state.
func (s *Syncer) create(ctx context.Context, thread models.Thread, classification string) (Outcome, error) {
	var starter models.Message
	fetch := func() error {
		var err error
		starter, err = s.tr.StarterMessage(ctx, thread)
		return err
	}
	if err := retry.Do(ctx, retry.DefaultConfig(transport.IsNotVisibleYet), fetch); err != nil {
		return OutcomeSkipped, fmt.Errorf("fetching starter message for thread %s: %w", thread.ID, err)
	}

	guildName, channelName, err := s.names(ctx, thread)
	if err != nil {
		return OutcomeFailed, err
	}

	req := kb.CreateRequest{
		Title:            thread.Name,
		Body:             starterBody(guildName, channelName, thread, starter),
		WorkspaceID:      s.cfg.WorkspaceID,
		ClassificationID: classification,
		Tags:             GeneratedTags(guildName, channelName),
		RepositoryTag:    s.cfg.RepositoryTag,
	}

	frag, err := s.api.CreateFragment(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("thread_id", thread.ID).Msg("Fragment creation failed")
		if postErr := s.tr.PostMessage(ctx, thread.ID, marker.Failure(err.Error())); postErr != nil {
			log.Error().Err(postErr).Str("thread_id", thread.ID).Msg("Could not post failure notice")
		}
		return OutcomeFailed, err
	}

	if err := s.tr.PostMessage(ctx, thread.ID, marker.Confirmation(frag.ID)); err != nil {
		// The fragment exists but its marker was not persisted; the next
		// resolve will misread this thread as unprocessed. Surface loudly.
		log.Error().Err(err).Str("thread_id", thread.ID).Str("fragment_id", frag.ID).
			Msg("Fragment created but confirmation marker could not be posted")
		return OutcomeCreated, fmt.Errorf("fragment %s created but marker post failed: %w", frag.ID, err)
	}

	log.Info().Str("thread_id", thread.ID).Str("fragment_id", frag.ID).Msg("Thread mirrored to knowledge base")
	return OutcomeCreated, nil
}

func (s *Syncer) names(ctx context.Context, thread models.Thread) (guildName, channelName string, err error) {
	guildName, err = s.tr.GuildName(ctx, thread.GuildID)
	if err != nil {
		return "", "", fmt.Errorf("resolving guild name: %w", err)
	}
	ch, err := s.tr.Channel(ctx, thread.ChannelID)
	if err != nil {
		return "", "", fmt.Errorf("resolving channel: %w", err)
	}
	return guildName, ch.Name, nil
}

func starterBody(guildName, channelName string, thread models.Thread, starter models.Message) string {
	return fmt.Sprintf(
		"**Server:** %s\n**Channel:** #%s\n**Thread:** %s\n**Author:** %s\n**Posted:** %s\n\n---\n\n%s",
		guildName,
		channelName,
		thread.Name,
		starter.AuthorName,
		starter.CreatedAt.UTC().Format(time.RFC3339),
		starter.Content,
	)
}
