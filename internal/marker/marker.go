// Package marker implements the durable-marker text protocol. A fragment
// identifier is embedded into a bridge-authored confirmation message using a
// fixed template; parsing that template back out of message history is the
// bridge's only persistence mechanism.
package marker

import (
	"fmt"
	"regexp"
	"strings"
)

// Label is the literal substring preceding the identifier. Downstream
// parsing depends on it byte-for-byte; do not reword.
const Label = "Fragment ID:"

// pattern matches the label followed by a backtick-delimited token of hex
// digits and hyphens. Case-insensitive on both the label and the token.
var pattern = regexp.MustCompile("(?i)Fragment ID:\\s*`([a-f0-9-]+)`")

// Encode renders the marker template for a fragment identifier.
func Encode(fragmentID string) string {
	return fmt.Sprintf("%s `%s`", Label, fragmentID)
}

// Decode extracts a fragment identifier from arbitrary text. The second
// return value is false when no marker is present, which is the normal
// outcome for most human messages.
func Decode(text string) (string, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Contains reports whether text carries the confirmation label, with or
// without a parseable identifier.
func Contains(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(Label))
}

// Confirmation builds the human-readable success message posted back into a
// thread after a fragment is created. The embedded marker is the persisted
// state; everything else is for humans.
func Confirmation(fragmentID string) string {
	return fmt.Sprintf(
		"✅ This thread has been saved to the knowledge base.\n%s\nReplies here will be synced automatically.",
		Encode(fragmentID),
	)
}

// Failure builds the message posted when fragment creation fails. It must
// not contain a marker: a thread with a failure notice is still unprocessed.
func Failure(reason string) string {
	return fmt.Sprintf("⚠️ Failed to save this thread to the knowledge base: %s\nA moderator can retry with the sync command.", reason)
}
