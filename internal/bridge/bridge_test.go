package bridge

import (
	"context"
	"sync"
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
	trackedChannel = "chan-1"
)

type fakeTransport struct {
	transport.Transport

	mu       sync.Mutex
	messages map[string][]models.Message
	threads  map[string]models.Thread
	posted   []string
}

func (f *fakeTransport) BotUserID(ctx context.Context) (string, error) { return botID, nil }

func (f *fakeTransport) RecentMessages(ctx context.Context, threadID string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[threadID], nil
}

func (f *fakeTransport) StarterMessage(ctx context.Context, thread models.Thread) (models.Message, error) {
	return models.Message{ID: "m1", AuthorID: "u1", AuthorName: "sam", Content: "starter"}, nil
}

func (f *fakeTransport) PostMessage(ctx context.Context, threadID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, content)
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

func (f *fakeTransport) Thread(ctx context.Context, id string) (models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threads[id], nil
}

type fakeKB struct {
	mu      sync.Mutex
	creates int
	updates int
}

func (f *fakeKB) CreateFragment(ctx context.Context, req kb.CreateRequest) (kb.Fragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return kb.Fragment{ID: "frag-1"}, nil
}

func (f *fakeKB) UpdateFragment(ctx context.Context, fragmentID string, req kb.UpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func newBridge(tr *fakeTransport, api *fakeKB) *Bridge {
	if tr.messages == nil {
		tr.messages = make(map[string][]models.Message)
	}
	if tr.threads == nil {
		tr.threads = make(map[string]models.Thread)
	}
	s := syncer.New(tr, api, syncer.Config{
		Channels:    map[string]string{trackedChannel: "class-1"},
		WorkspaceID: "ws-1",
		Lookback:    50,
	})
	return New(s, tr)
}

func forumThread(id string) models.Thread {
	return models.Thread{ID: id, Name: "help me", ChannelID: trackedChannel, GuildID: "guild-1", Forum: true}
}

func TestHandleThreadCreateMirrors(t *testing.T) {
	tr := &fakeTransport{}
	api := &fakeKB{}
	b := newBridge(tr, api)

	b.HandleThreadCreate(context.Background(), forumThread("th-1"))
	b.Wait()

	require.Equal(t, 1, api.creates)
	require.Len(t, tr.posted, 1)
	_, ok := marker.Decode(tr.posted[0])
	require.True(t, ok)
}

func TestHandleThreadCreateUntrackedIgnored(t *testing.T) {
	tr := &fakeTransport{}
	api := &fakeKB{}
	b := newBridge(tr, api)

	th := forumThread("th-1")
	th.ChannelID = "other"
	b.HandleThreadCreate(context.Background(), th)
	b.Wait()

	require.Zero(t, api.creates)
}

func TestHandleThreadUpdateUsesSnapshotDiff(t *testing.T) {
	tr := &fakeTransport{messages: map[string][]models.Message{
		"th-1": {{AuthorID: botID, Bot: true, Content: marker.Confirmation("frag-1"), CreatedAt: time.Now()}},
	}}
	api := &fakeKB{}
	b := newBridge(tr, api)

	th := forumThread("th-1")
	b.snapshots.Store(th.ID, th.Snapshot())

	// Identical snapshot: no changes, no update call.
	b.HandleThreadUpdate(context.Background(), th)
	b.Wait()
	require.Zero(t, api.updates)

	renamed := th
	renamed.Name = "renamed"
	b.HandleThreadUpdate(context.Background(), renamed)
	b.Wait()
	require.Equal(t, 1, api.updates)
}

func TestHandleMessageCreateBotMessagesIgnored(t *testing.T) {
	tr := &fakeTransport{}
	api := &fakeKB{}
	b := newBridge(tr, api)

	b.HandleMessageCreate(context.Background(), models.Message{
		ID: "m1", ThreadID: "th-1", AuthorID: botID, Bot: true, Content: marker.Confirmation("frag-1"),
	})
	b.Wait()

	require.Zero(t, api.updates)
}

func TestHandleMessageCreateReplyTriggersRebuild(t *testing.T) {
	tr := &fakeTransport{
		threads: map[string]models.Thread{"th-1": forumThread("th-1")},
		messages: map[string][]models.Message{
			"th-1": {
				{AuthorID: "u1", AuthorName: "sam", Content: "starter", CreatedAt: time.Now().Add(-time.Hour)},
				{AuthorID: botID, Bot: true, Content: marker.Confirmation("frag-1"), CreatedAt: time.Now().Add(-30 * time.Minute)},
				{AuthorID: "u2", AuthorName: "casey", Content: "a reply", CreatedAt: time.Now()},
			},
		},
	}
	api := &fakeKB{}
	b := newBridge(tr, api)

	b.HandleMessageCreate(context.Background(), models.Message{
		ID: "m3", ThreadID: "th-1", AuthorID: "u2", AuthorName: "casey", Content: "a reply",
	})
	b.Wait()

	require.Equal(t, 1, api.updates)
	require.Zero(t, api.creates)
}
