package syncer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"Bug Report":      "bug-report",
		"  Acme Support ": "acme-support",
		"already-clean":   "already-clean",
		"C++ / Rust":      "c-rust",
		"ÜBER thread":     "über-thread",
		"":                "",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeTag(in), "input %q", in)
	}
}

func TestGeneratedTagsDeterministic(t *testing.T) {
	a := GeneratedTags("Acme Support", "Help Desk")
	b := GeneratedTags("Acme Support", "Help Desk")
	require.Equal(t, a, b)
	require.Equal(t, []string{"discord", "forum-post", "acme-support", "help-desk"}, a)
}

func TestRegeneratedTagsFoldInPlatformTags(t *testing.T) {
	tags := RegeneratedTags("Acme", "Help", []string{"Bug Report", "Question"})
	require.Contains(t, tags, "discord-tag-bug-report")
	require.Contains(t, tags, "discord-tag-question")
	require.Contains(t, tags, "forum-post")
}
