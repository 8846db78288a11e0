package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/fragbridge/internal/config"
)

// ConfigCommand returns the configuration management command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the bridge configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if path == "" {
						path = "fragbridge.toml"
					}
					if err := config.Init(path); err != nil {
						return err
					}
					fmt.Printf("Wrote sample configuration to %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Load and validate the configuration",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := cfg.Validate(); err != nil {
						return err
					}
					fmt.Printf("Configuration OK: %d tracked channel(s)\n", len(cfg.Channels))
					return nil
				},
			},
		},
	}
}
