// Package conversation assembles a thread's human-authored history into one
// ordered, attributable document for full-body fragment updates.
package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fragbridge/internal/transport"
	"github.com/fragbridge/pkg/models"
)

// DefaultLimit is the platform's typical single-page message cap. Threads
// longer than this are truncated: the fetch keeps the most recent page, so
// the oldest messages silently drop out of very long threads.
const DefaultLimit = 100

const blockSeparator = "\n\n---\n\n"

// Build renders the thread's messages, excluding bot-authored ones, as
// attributable blocks sorted ascending by creation time. The second return
// value is false when no qualifying messages remain; an empty document is
// never rendered.
func Build(ctx context.Context, tr transport.Transport, threadID, botUserID string, limit int) (string, bool, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	msgs, err := tr.RecentMessages(ctx, threadID, limit)
	if err != nil {
		return "", false, fmt.Errorf("fetching conversation for thread %s: %w", threadID, err)
	}

	human := msgs[:0:0]
	for _, m := range msgs {
		if m.Bot || m.AuthorID == botUserID {
			continue
		}
		human = append(human, m)
	}
	if len(human) == 0 {
		return "", false, nil
	}

	sort.Slice(human, func(i, j int) bool {
		return human[i].CreatedAt.Before(human[j].CreatedAt)
	})

	blocks := make([]string, 0, len(human))
	for _, m := range human {
		blocks = append(blocks, renderBlock(m))
	}
	return strings.Join(blocks, blockSeparator), true, nil
}

func renderBlock(m models.Message) string {
	return fmt.Sprintf("### %s — %s\n\n%s",
		m.AuthorName,
		m.CreatedAt.UTC().Format(time.RFC3339),
		m.Content,
	)
}
