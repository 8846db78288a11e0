package models

import (
	"time"
)

// Thread is a point-in-time view of a platform conversation container.
// Threads are created and mutated by the chat platform; the bridge only
// reads them and appends messages.
type Thread struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ChannelID string    `json:"channel_id"`
	GuildID   string    `json:"guild_id"`
	Tags      []string  `json:"tags,omitempty"` // platform-applied tag names
	Archived  bool      `json:"archived"`
	Locked    bool      `json:"locked"`
	Forum     bool      `json:"forum"` // parent channel is forum-style
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot captures the mutable properties compared by change detection.
func (t Thread) Snapshot() ThreadSnapshot {
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)
	return ThreadSnapshot{Name: t.Name, Tags: tags}
}

// ThreadSnapshot holds the mutable thread properties at one observation.
type ThreadSnapshot struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

// Message is a single message within a thread. Messages are immutable once
// created; the bridge does not react to platform-side edits or deletes.
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Bot        bool      `json:"bot"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Channel is a point-in-time view of a platform channel.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GuildID string `json:"guild_id"`
	Forum   bool   `json:"forum"`
}

// SyncError records a single thread failure inside a sweep run.
type SyncError struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// SyncResult aggregates the outcome of one reconciliation sweep. It is
// created fresh per invocation, returned to the caller and discarded.
type SyncResult struct {
	ScannedThreads     int         `json:"scanned_threads"`
	UnprocessedThreads int         `json:"unprocessed_threads"`
	ProcessedThreads   int         `json:"processed_threads"`
	SkippedThreads     int         `json:"skipped_threads"`
	FailedThreads      int         `json:"failed_threads"`
	Errors             []SyncError `json:"errors,omitempty"`
}

// Add folds another result into this one. Aggregation across channels is
// field-wise summation plus error-list concatenation.
func (r *SyncResult) Add(other SyncResult) {
	r.ScannedThreads += other.ScannedThreads
	r.UnprocessedThreads += other.UnprocessedThreads
	r.ProcessedThreads += other.ProcessedThreads
	r.SkippedThreads += other.SkippedThreads
	r.FailedThreads += other.FailedThreads
	r.Errors = append(r.Errors, other.Errors...)
}
