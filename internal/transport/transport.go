// Package transport defines the chat-platform boundary consumed by the sync
// core. Implementations handle platform-specific API calls; the interface is
// platform-agnostic.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/fragbridge/pkg/models"
)

// Transport abstracts the chat platform's REST surface. All calls are
// stateless request methods on a long-lived shared client; implementations
// must enforce per-call timeouts rather than hang.
type Transport interface {
	// RecentMessages returns up to limit of the thread's most recent
	// messages. Order within the page is platform-defined.
	RecentMessages(ctx context.Context, threadID string, limit int) ([]models.Message, error)

	// StarterMessage returns the thread's originating message. Forum
	// threads have a directly addressable starter; for generic threads
	// implementations fall back to the earliest fetched message.
	StarterMessage(ctx context.Context, thread models.Thread) (models.Message, error)

	// Thread fetches a single thread by its identifier.
	Thread(ctx context.Context, id string) (models.Thread, error)

	// ActiveThreads lists the channel's currently active threads.
	ActiveThreads(ctx context.Context, channelID string) ([]models.Thread, error)

	// ArchivedThreads lists up to limit of the channel's archived threads,
	// most recently archived first.
	ArchivedThreads(ctx context.Context, channelID string, limit int) ([]models.Thread, error)

	// PostMessage appends a message to a thread.
	PostMessage(ctx context.Context, threadID, content string) error

	// Channel fetches a channel, including its forum-or-not type flag.
	Channel(ctx context.Context, id string) (models.Channel, error)

	// GuildName resolves a guild (server) identifier to its display name.
	GuildName(ctx context.Context, guildID string) (string, error)

	// BotUserID returns the bridge's own user identifier on the platform.
	BotUserID(ctx context.Context) (string, error)
}

// APIError is a platform REST failure with enough context to classify it.
type APIError struct {
	Status int    // HTTP status
	Code   int    // platform-specific error code, 0 if absent
	Detail string // response body or platform message
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("platform api error: status %d code %d: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("platform api error: status %d: %s", e.Status, e.Detail)
}

// Platform error codes for resources that a just-created entity may not yet
// expose. Fetches failing with these are the known eventual-consistency
// symptom and are worth a short retry.
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
)

// IsNotVisibleYet reports whether err belongs to the transient
// "resource not yet visible" class. Everything else fails fast.
func IsNotVisibleYet(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeUnknownChannel || apiErr.Code == codeUnknownMessage
}

// IsPermission reports permission-class failures, which are permanent and
// never retried.
func IsPermission(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == 401 || apiErr.Status == 403
}
