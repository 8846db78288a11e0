// Package discord implements the chat transport over the platform's REST
// and gateway APIs. The REST client covers only the endpoints the bridge
// touches.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

const defaultBaseURL = "https://discord.com/api/v10"

const requestTimeout = 30 * time.Second

// Client is a long-lived REST transport for one bot token. Request methods
// are stateless; the forum-tag cache is the only internal state and is
// mutex-guarded.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	mu       sync.Mutex
	tagNames map[string]map[string]string // channel ID -> tag ID -> name
	botID    string
}

var _ transport.Transport = (*Client)(nil)

// NewClient creates a transport client. baseURL is overridable for tests.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		token:      token,
		tagNames:   make(map[string]map[string]string),
	}
}

// RecentMessages returns up to limit of the thread's most recent messages.
func (c *Client) RecentMessages(ctx context.Context, threadID string, limit int) ([]models.Message, error) {
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", url.PathEscape(threadID), limit)
	var raw []apiMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, m.toModel())
	}
	return msgs, nil
}

// StarterMessage returns the thread's originating message. Forum posts have
// a starter message whose ID equals the thread ID; generic threads fall
// back to the earliest message of the recent page.
func (c *Client) StarterMessage(ctx context.Context, thread models.Thread) (models.Message, error) {
	if thread.Forum {
		path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(thread.ID), url.PathEscape(thread.ID))
		var raw apiMessage
		if err := c.get(ctx, path, &raw); err != nil {
			return models.Message{}, err
		}
		return raw.toModel(), nil
	}

	msgs, err := c.RecentMessages(ctx, thread.ID, 100)
	if err != nil {
		return models.Message{}, err
	}
	if len(msgs) == 0 {
		return models.Message{}, fmt.Errorf("thread %s has no messages", thread.ID)
	}
	earliest := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt.Before(earliest.CreatedAt) {
			earliest = m
		}
	}
	return earliest, nil
}

// Thread fetches a single thread by ID. Threads share the channel endpoint
// on the platform side; the parent channel is fetched as well to determine
// whether the container is forum-style.
func (c *Client) Thread(ctx context.Context, id string) (models.Thread, error) {
	var raw apiThread
	if err := c.get(ctx, "/channels/"+url.PathEscape(id), &raw); err != nil {
		return models.Thread{}, err
	}
	if raw.ParentID == "" {
		// Not a thread at all (a plain channel has no parent).
		return raw.toModel(false, nil), nil
	}
	parent, err := c.channelRaw(ctx, raw.ParentID)
	if err != nil {
		return models.Thread{}, err
	}
	return raw.toModel(parent.Type == channelTypeGuildForum, c.resolveTagNames(parent, raw.AppliedTagIDs)), nil
}

// ActiveThreads lists the channel's active threads. The platform exposes
// active threads per guild, so the result is filtered by parent channel.
func (c *Client) ActiveThreads(ctx context.Context, channelID string) ([]models.Thread, error) {
	ch, err := c.channelRaw(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var list apiThreadList
	path := fmt.Sprintf("/guilds/%s/threads/active", url.PathEscape(ch.GuildID))
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}

	var threads []models.Thread
	for _, t := range list.Threads {
		if t.ParentID != channelID {
			continue
		}
		threads = append(threads, t.toModel(ch.Type == channelTypeGuildForum, c.resolveTagNames(ch, t.AppliedTagIDs)))
	}
	return threads, nil
}

// ArchivedThreads lists up to limit archived threads of the channel, most
// recently archived first.
func (c *Client) ArchivedThreads(ctx context.Context, channelID string, limit int) ([]models.Thread, error) {
	ch, err := c.channelRaw(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var list apiThreadList
	path := fmt.Sprintf("/channels/%s/threads/archived/public?limit=%d", url.PathEscape(channelID), limit)
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}

	threads := make([]models.Thread, 0, len(list.Threads))
	for _, t := range list.Threads {
		threads = append(threads, t.toModel(ch.Type == channelTypeGuildForum, c.resolveTagNames(ch, t.AppliedTagIDs)))
	}
	return threads, nil
}

// PostMessage appends a message to a thread.
func (c *Client) PostMessage(ctx context.Context, threadID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(threadID))
	return c.post(ctx, path, map[string]string{"content": content}, nil)
}

// Channel fetches a channel with its forum type flag.
func (c *Client) Channel(ctx context.Context, id string) (models.Channel, error) {
	raw, err := c.channelRaw(ctx, id)
	if err != nil {
		return models.Channel{}, err
	}
	return raw.toModel(), nil
}

// GuildName resolves a guild ID to its display name.
func (c *Client) GuildName(ctx context.Context, guildID string) (string, error) {
	var g apiGuild
	if err := c.get(ctx, "/guilds/"+url.PathEscape(guildID), &g); err != nil {
		return "", err
	}
	return g.Name, nil
}

// BotUserID returns the bridge's own user ID, fetched once and cached for
// the process lifetime.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.botID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var me apiUser
	if err := c.get(ctx, "/users/@me", &me); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.botID = me.ID
	c.mu.Unlock()
	return me.ID, nil
}

// parentContext resolves a thread's parent channel to its forum flag and
// maps the thread's applied tag IDs to names. Used by the gateway when
// converting THREAD_* events, which carry the raw thread only.
func (c *Client) parentContext(ctx context.Context, parentChannelID string, tagIDs []string) (bool, []string) {
	if parentChannelID == "" {
		return false, nil
	}
	ch, err := c.channelRaw(ctx, parentChannelID)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", parentChannelID).Msg("Could not resolve parent channel")
		return false, nil
	}
	return ch.Type == channelTypeGuildForum, c.resolveTagNames(ch, tagIDs)
}

func (c *Client) channelRaw(ctx context.Context, id string) (apiChannel, error) {
	var ch apiChannel
	if err := c.get(ctx, "/channels/"+url.PathEscape(id), &ch); err != nil {
		return apiChannel{}, err
	}
	c.cacheTagNames(ch)
	return ch, nil
}

func (c *Client) cacheTagNames(ch apiChannel) {
	if len(ch.AvailableTags) == 0 {
		return
	}
	names := make(map[string]string, len(ch.AvailableTags))
	for _, tag := range ch.AvailableTags {
		names[tag.ID] = tag.Name
	}
	c.mu.Lock()
	c.tagNames[ch.ID] = names
	c.mu.Unlock()
}

func (c *Client) resolveTagNames(ch apiChannel, tagIDs []string) []string {
	if len(tagIDs) == 0 {
		return nil
	}
	c.mu.Lock()
	names := c.tagNames[ch.ID]
	c.mu.Unlock()

	var resolved []string
	for _, id := range tagIDs {
		if name, ok := names[id]; ok {
			resolved = append(resolved, name)
		}
	}
	return resolved
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode platform response: %w", err)
		}
	}
	return nil
}

func apiErrorFromResponse(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	detail := string(respBody)
	if err := json.Unmarshal(respBody, &wire); err == nil && wire.Message != "" {
		detail = wire.Message + " (code " + strconv.Itoa(wire.Code) + ")"
	}
	return &transport.APIError{Status: resp.StatusCode, Code: wire.Code, Detail: detail}
}
