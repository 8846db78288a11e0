// Package config loads and eagerly validates the bridge configuration.
// Invalid configuration is a fatal startup error, never a runtime one.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fragbridge/internal/kb"
)

// Config is the full application configuration. Loaded once at process
// start and read-only for the process lifetime.
type Config struct {
	Discord struct {
		Token string `koanf:"token"`
	} `koanf:"discord"`

	KnowledgeBase struct {
		BaseURL       string `koanf:"base_url"`
		APIKey        string `koanf:"api_key"`
		WorkspaceID   string `koanf:"workspace_id"`
		RepositoryTag string `koanf:"repository_tag"`
	} `koanf:"knowledgebase"`

	Sync struct {
		Lookback          int `koanf:"lookback"`
		ConversationLimit int `koanf:"conversation_limit"`
	} `koanf:"sync"`

	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	// Channels maps tracked channel IDs to fragment classification IDs.
	// Channels absent from this map are never processed.
	Channels map[string]string `koanf:"channels"`
}

// Load reads configuration from defaults, an optional TOML file, and
// FRAGBRIDGE_* environment variables (double underscore separates nested
// keys, e.g. FRAGBRIDGE_DISCORD__TOKEN).
func Load(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"knowledgebase.base_url":       kb.DefaultBaseURL,
		"knowledgebase.repository_tag": "community",
		"sync.lookback":                50,
		"sync.conversation_limit":      100,
		"server.port":                  8080,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./fragbridge.toml", "$HOME/.fragbridge.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("FRAGBRIDGE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "FRAGBRIDGE_")
		return strings.Replace(strings.ToLower(s), "__", ".", -1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration eagerly so every failure is caught at
// startup.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required")
	}
	if c.KnowledgeBase.APIKey == "" {
		return fmt.Errorf("knowledge base api key is required")
	}
	if c.KnowledgeBase.WorkspaceID == "" {
		return fmt.Errorf("knowledge base workspace_id is required")
	}
	if _, err := uuid.Parse(c.KnowledgeBase.WorkspaceID); err != nil {
		return fmt.Errorf("workspace_id %q is not a valid UUID: %w", c.KnowledgeBase.WorkspaceID, err)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one tracked channel is required")
	}
	for channelID, classificationID := range c.Channels {
		if channelID == "" {
			return fmt.Errorf("tracked channel with empty ID")
		}
		if _, err := uuid.Parse(classificationID); err != nil {
			return fmt.Errorf("classification for channel %s is not a valid UUID: %w", channelID, err)
		}
	}
	if c.Sync.Lookback <= 0 {
		return fmt.Errorf("sync.lookback must be positive")
	}
	if c.Sync.ConversationLimit <= 0 {
		return fmt.Errorf("sync.conversation_limit must be positive")
	}
	return nil
}

// Init writes a sample configuration file.
func Init(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# fragbridge configuration

[discord]
token = "your-bot-token"

[knowledgebase]
api_key = "your-api-key"
workspace_id = "00000000-0000-0000-0000-000000000000"
# base_url = "https://api.fragmentbase.io"
# repository_tag = "community"

[sync]
lookback = 50
conversation_limit = 100

[server]
port = 8080

# Tracked channels: channel ID -> fragment classification ID
[channels]
# "123456789012345678" = "00000000-0000-0000-0000-000000000000"
`

	return os.WriteFile(configPath, []byte(sample), 0644)
}
