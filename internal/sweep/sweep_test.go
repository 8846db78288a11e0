package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fragbridge/internal/kb"
	"github.com/fragbridge/internal/marker"
	"github.com/fragbridge/internal/syncer"
	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

const (
	botID          = "bot-1"
	classification = "11111111-2222-3333-4444-555555555555"
)

type fakeTransport struct {
	transport.Transport

	active   map[string][]models.Thread
	archived map[string][]models.Thread
	messages map[string][]models.Message
	posted   int
}

func (f *fakeTransport) BotUserID(ctx context.Context) (string, error) { return botID, nil }

func (f *fakeTransport) ActiveThreads(ctx context.Context, channelID string) ([]models.Thread, error) {
	return f.active[channelID], nil
}

func (f *fakeTransport) ArchivedThreads(ctx context.Context, channelID string, limit int) ([]models.Thread, error) {
	threads := f.archived[channelID]
	if len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

func (f *fakeTransport) RecentMessages(ctx context.Context, threadID string, limit int) ([]models.Message, error) {
	return f.messages[threadID], nil
}

func (f *fakeTransport) StarterMessage(ctx context.Context, thread models.Thread) (models.Message, error) {
	return models.Message{ID: "m1", AuthorID: "u1", AuthorName: "sam", Content: "starter", CreatedAt: thread.CreatedAt}, nil
}

func (f *fakeTransport) PostMessage(ctx context.Context, threadID, content string) error {
	f.posted++
	f.messages[threadID] = append(f.messages[threadID], models.Message{
		AuthorID: botID, Bot: true, Content: content, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeTransport) GuildName(ctx context.Context, guildID string) (string, error) {
	return "Acme", nil
}

func (f *fakeTransport) Channel(ctx context.Context, id string) (models.Channel, error) {
	return models.Channel{ID: id, Name: "help", GuildID: "guild-1", Forum: true}, nil
}

type fakeKB struct {
	creates int
}

func (f *fakeKB) CreateFragment(ctx context.Context, req kb.CreateRequest) (kb.Fragment, error) {
	f.creates++
	return kb.Fragment{ID: "frag-new"}, nil
}

func (f *fakeKB) UpdateFragment(ctx context.Context, fragmentID string, req kb.UpdateRequest) error {
	return nil
}

func thread(id, channelID string, age time.Duration) models.Thread {
	return models.Thread{
		ID: id, Name: "t-" + id, ChannelID: channelID, GuildID: "guild-1",
		Forum: true, CreatedAt: time.Now().Add(-age),
	}
}

func processedMessages() []models.Message {
	return []models.Message{{
		AuthorID: botID, Bot: true, Content: marker.Confirmation("abc-123"), CreatedAt: time.Now(),
	}}
}

func newSweeper(tr *fakeTransport, api *fakeKB, channels map[string]string) *Sweeper {
	if tr.messages == nil {
		tr.messages = make(map[string][]models.Message)
	}
	s := syncer.New(tr, api, syncer.Config{
		Channels:    channels,
		WorkspaceID: "ws-1",
		Lookback:    50,
	})
	return New(tr, s, 50)
}

func TestChannelSweepProcessesUnprocessed(t *testing.T) {
	tr := &fakeTransport{
		active: map[string][]models.Thread{"chan-1": {
			thread("th-1", "chan-1", time.Hour),
			thread("th-2", "chan-1", time.Hour),
		}},
		messages: map[string][]models.Message{
			"th-2": processedMessages(),
		},
	}
	api := &fakeKB{}
	sw := newSweeper(tr, api, map[string]string{"chan-1": classification})

	result, err := sw.Channel(context.Background(), "chan-1", Options{})
	require.NoError(t, err)
	require.Equal(t, 2, result.ScannedThreads)
	require.Equal(t, 1, result.UnprocessedThreads)
	require.Equal(t, 1, result.ProcessedThreads)
	require.Equal(t, 1, result.SkippedThreads)
	require.Zero(t, result.FailedThreads)
	require.Equal(t, 1, api.creates)
}

func TestChannelSweepDryRun(t *testing.T) {
	tr := &fakeTransport{
		active: map[string][]models.Thread{"chan-1": {
			thread("th-1", "chan-1", time.Hour),
			thread("th-2", "chan-1", time.Hour),
		}},
	}
	api := &fakeKB{}
	sw := newSweeper(tr, api, map[string]string{"chan-1": classification})

	result, err := sw.Channel(context.Background(), "chan-1", Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 2, result.UnprocessedThreads)
	require.Zero(t, result.ProcessedThreads)
	require.Zero(t, api.creates, "dry run must not call the external API")
	require.Zero(t, tr.posted, "dry run must not post messages")
}

func TestChannelSweepMaxAgeFilter(t *testing.T) {
	tr := &fakeTransport{
		active: map[string][]models.Thread{"chan-1": {
			thread("fresh", "chan-1", time.Hour),
			thread("stale", "chan-1", 100*time.Hour),
		}},
	}
	api := &fakeKB{}
	sw := newSweeper(tr, api, map[string]string{"chan-1": classification})

	result, err := sw.Channel(context.Background(), "chan-1", Options{MaxAge: 48 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 1, result.ScannedThreads)
	require.Equal(t, 1, api.creates)
}

func TestChannelSweepIncludesArchived(t *testing.T) {
	tr := &fakeTransport{
		active: map[string][]models.Thread{"chan-1": {thread("th-1", "chan-1", time.Hour)}},
		archived: map[string][]models.Thread{"chan-1": {
			thread("th-2", "chan-1", 2*time.Hour),
			thread("th-3", "chan-1", 3*time.Hour),
		}},
	}
	api := &fakeKB{}
	sw := newSweeper(tr, api, map[string]string{"chan-1": classification})

	result, err := sw.Channel(context.Background(), "chan-1", Options{ArchivedLimit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, result.ScannedThreads, "archived fetch respects the per-channel limit")
}

func TestSweepSecondPassSkipsWithinRun(t *testing.T) {
	// After Create posts its marker, a subsequent resolve of the same
	// thread must see it and skip.
	tr := &fakeTransport{
		active: map[string][]models.Thread{"chan-1": {thread("th-1", "chan-1", time.Hour)}},
	}
	api := &fakeKB{}
	sw := newSweeper(tr, api, map[string]string{"chan-1": classification})

	first, err := sw.Channel(context.Background(), "chan-1", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.ProcessedThreads)

	second, err := sw.Channel(context.Background(), "chan-1", Options{})
	require.NoError(t, err)
	require.Zero(t, second.ProcessedThreads)
	require.Equal(t, 1, second.SkippedThreads)
	require.Equal(t, 1, api.creates)
}

func TestAllAggregatesAcrossChannels(t *testing.T) {
	tr := &fakeTransport{
		active: map[string][]models.Thread{
			"chan-1": {thread("a1", "chan-1", time.Hour), thread("a2", "chan-1", time.Hour), thread("a3", "chan-1", time.Hour)},
			"chan-2": {thread("b1", "chan-2", time.Hour), thread("b2", "chan-2", time.Hour), thread("b3", "chan-2", time.Hour), thread("b4", "chan-2", time.Hour), thread("b5", "chan-2", time.Hour)},
		},
	}
	api := &fakeKB{}
	channels := map[string]string{"chan-1": classification, "chan-2": classification}
	sw := newSweeper(tr, api, channels)

	result, err := sw.All(context.Background(), []string{"chan-1", "chan-2"}, Options{})
	require.NoError(t, err)
	require.Equal(t, 8, result.ScannedThreads)
	require.Equal(t, 8, result.ProcessedThreads)
	require.Empty(t, result.Errors)
}
