// Package cmd holds the CLI command constructors.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/fragbridge/internal/config"
	"github.com/fragbridge/internal/discord"
	"github.com/fragbridge/internal/kb"
	"github.com/fragbridge/internal/sweep"
	"github.com/fragbridge/internal/syncer"
)

// app bundles the long-lived collaborators every command needs.
type app struct {
	cfg     *config.Config
	client  *discord.Client
	kb      *kb.Client
	syncer  *syncer.Syncer
	sweeper *sweep.Sweeper
}

func buildApp(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := discord.NewClient(cfg.Discord.Token, "")
	kbClient := kb.NewClient(cfg.KnowledgeBase.BaseURL, cfg.KnowledgeBase.APIKey)
	s := syncer.New(client, kbClient, syncer.Config{
		Channels:          cfg.Channels,
		WorkspaceID:       cfg.KnowledgeBase.WorkspaceID,
		RepositoryTag:     cfg.KnowledgeBase.RepositoryTag,
		Lookback:          cfg.Sync.Lookback,
		ConversationLimit: cfg.Sync.ConversationLimit,
	})

	return &app{
		cfg:     cfg,
		client:  client,
		kb:      kbClient,
		syncer:  s,
		sweeper: sweep.New(client, s, cfg.Sync.Lookback),
	}, nil
}
