package syncer

import (
	"strings"
	"unicode"
)

// platformTagPrefix namespaces the platform's own classification tags so
// they cannot collide with generated ones.
const platformTagPrefix = "discord-tag-"

// GeneratedTags is the deterministic tag set attached to every created
// fragment: platform literal, content-kind literal, then the normalized
// server and channel names.
func GeneratedTags(guildName, channelName string) []string {
	return []string{
		"discord",
		"forum-post",
		normalizeTag(guildName),
		normalizeTag(channelName),
	}
}

// RegeneratedTags rebuilds the full tag list for an update: the generated
// set plus a namespaced encoding of each platform tag currently applied to
// the thread.
func RegeneratedTags(guildName, channelName string, platformTags []string) []string {
	tags := GeneratedTags(guildName, channelName)
	for _, t := range platformTags {
		tags = append(tags, platformTagPrefix+normalizeTag(t))
	}
	return tags
}

// normalizeTag lower-cases and hyphenates a display name into a stable tag
// token. Runs of non-alphanumeric characters collapse to one hyphen.
func normalizeTag(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
