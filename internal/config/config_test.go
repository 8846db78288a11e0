package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validToml = `
[discord]
token = "bot-token"

[knowledgebase]
api_key = "kb-key"
workspace_id = "550e8400-e29b-41d4-a716-446655440000"

[channels]
"123456789012345678" = "11111111-2222-3333-4444-555555555555"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fragbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validToml))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "bot-token", cfg.Discord.Token)
	require.Equal(t, "kb-key", cfg.KnowledgeBase.APIKey)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", cfg.Channels["123456789012345678"])

	// Defaults applied when the file omits them.
	require.Equal(t, 50, cfg.Sync.Lookback)
	require.Equal(t, 100, cfg.Sync.ConversationLimit)
	require.Equal(t, 8080, cfg.Server.Port)
	require.NotEmpty(t, cfg.KnowledgeBase.BaseURL)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FRAGBRIDGE_DISCORD__TOKEN", "env-token")
	t.Setenv("FRAGBRIDGE_SYNC__LOOKBACK", "25")

	cfg, err := Load(writeConfig(t, validToml))
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.Discord.Token)
	require.Equal(t, 25, cfg.Sync.Lookback)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Discord.Token = "" }},
		{"missing api key", func(c *Config) { c.KnowledgeBase.APIKey = "" }},
		{"missing workspace", func(c *Config) { c.KnowledgeBase.WorkspaceID = "" }},
		{"workspace not uuid", func(c *Config) { c.KnowledgeBase.WorkspaceID = "not-a-uuid" }},
		{"no channels", func(c *Config) { c.Channels = nil }},
		{"classification not uuid", func(c *Config) { c.Channels = map[string]string{"1": "nope"} }},
		{"zero lookback", func(c *Config) { c.Sync.Lookback = 0 }},
		{"zero conversation limit", func(c *Config) { c.Sync.ConversationLimit = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validToml))
			require.NoError(t, err)
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, validToml)
	require.Error(t, Init(path))
}

func TestInitWritesLoadableSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	require.NoError(t, Init(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	// The sample is a template: it loads but does not validate until the
	// operator fills in real identifiers.
	require.Error(t, cfg.Validate())
}
