package discord

import (
	"strconv"
	"time"

	"github.com/fragbridge/pkg/models"
)

// Wire representations of the platform's REST and gateway payloads. Only
// the fields the bridge consumes are mapped.

const channelTypeGuildForum = 15

type apiUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

func (u apiUser) displayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

type apiMessage struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Author    apiUser `json:"author"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
}

func (m apiMessage) toModel() models.Message {
	return models.Message{
		ID:         m.ID,
		ThreadID:   m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.displayName(),
		Bot:        m.Author.Bot,
		Content:    m.Content,
		CreatedAt:  parseTimestamp(m.Timestamp, m.ID),
	}
}

type apiThreadMetadata struct {
	Archived        bool   `json:"archived"`
	Locked          bool   `json:"locked"`
	CreateTimestamp string `json:"create_timestamp"`
}

type apiThread struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ParentID       string            `json:"parent_id"`
	GuildID        string            `json:"guild_id"`
	Type           int               `json:"type"`
	AppliedTagIDs  []string          `json:"applied_tags"`
	ThreadMetadata apiThreadMetadata `json:"thread_metadata"`
}

const threadTypePublicThread = 11

// toModel converts a wire thread. The thread's own type cannot distinguish
// a forum post from a thread spawned inside an ordinary text channel (both
// are public threads), so forum-ness comes from the parent channel's type.
func (t apiThread) toModel(parentForum bool, tagNames []string) models.Thread {
	return models.Thread{
		ID:        t.ID,
		Name:      t.Name,
		ChannelID: t.ParentID,
		GuildID:   t.GuildID,
		Tags:      tagNames,
		Archived:  t.ThreadMetadata.Archived,
		Locked:    t.ThreadMetadata.Locked,
		Forum:     parentForum && t.Type == threadTypePublicThread,
		CreatedAt: parseTimestamp(t.ThreadMetadata.CreateTimestamp, t.ID),
	}
}

type apiForumTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiChannel struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	GuildID       string        `json:"guild_id"`
	Type          int           `json:"type"`
	AvailableTags []apiForumTag `json:"available_tags"`
}

func (c apiChannel) toModel() models.Channel {
	return models.Channel{
		ID:      c.ID,
		Name:    c.Name,
		GuildID: c.GuildID,
		Forum:   c.Type == channelTypeGuildForum,
	}
}

type apiGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiThreadList struct {
	Threads []apiThread `json:"threads"`
}

// snowflakeEpochMillis is the platform's custom epoch (2015-01-01).
const snowflakeEpochMillis = 1420070400000

// parseTimestamp prefers the explicit ISO-8601 timestamp and falls back to
// decoding the snowflake identifier's embedded creation time.
func parseTimestamp(iso, snowflake string) time.Time {
	if iso != "" {
		if ts, err := time.Parse(time.RFC3339, iso); err == nil {
			return ts
		}
	}
	id, err := strconv.ParseUint(snowflake, 10, 64)
	if err != nil {
		return time.Time{}
	}
	millis := int64(id>>22) + snowflakeEpochMillis
	return time.UnixMilli(millis).UTC()
}
