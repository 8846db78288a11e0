package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/fragbridge/internal/api"
	"github.com/fragbridge/internal/bridge"
	"github.com/fragbridge/internal/discord"
)

// ServeCommand returns the command running the live bridge: gateway event
// processing plus the probe HTTP server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the live bridge (gateway listener and probe server)",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the probe server port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	a, err := buildApp(c)
	if err != nil {
		return err
	}

	port := a.cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	b := bridge.New(a.syncer, a.client)
	gw := discord.NewGateway(a.cfg.Discord.Token, a.client, b)
	probes := api.NewServer(port, gw.Ready)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gatewayDone := make(chan error, 1)
	go func() { gatewayDone <- gw.Run(ctx) }()
	go func() {
		if err := probes.Start(); err != nil {
			log.Error().Err(err).Msg("Probe server failed")
		}
	}()

	log.Info().Int("port", port).Int("tracked_channels", len(a.cfg.Channels)).Msg("Bridge running")

	<-ctx.Done()
	log.Info().Msg("Shutting down; waiting for in-flight syncs")

	// Stop accepting events, then let in-flight operations finish or fail
	// naturally.
	<-gatewayDone
	b.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return probes.Shutdown(shutdownCtx)
}
