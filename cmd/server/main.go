// The server command is the main entrypoint for running the game server. It
// loads configuration, brings up the worlds, and runs the network core until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emberfell/emberfell/internal/core"
	"github.com/emberfell/emberfell/internal/data"
	"github.com/emberfell/emberfell/internal/debug"
	"github.com/emberfell/emberfell/internal/game"
	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/world"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "emberfell",
		Short:        "Run the Emberfell game server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "./", "Path to the directory containing the server config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := core.NewLogger(config)
	if err != nil {
		return err
	}

	debug.SetPacketLogging(config.Debugging.PacketLoggingEnabled)

	var store *data.Store
	if config.Database.Filename != "" {
		store, err = data.Open(config.Database.Filename)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Infof("player database: %s", config.Database.Filename)
	}

	chunks := world.NewChunkProvider()
	worlds := make([]*world.World, 0, len(config.Game.Worlds))
	for _, name := range config.Game.Worlds {
		worlds = append(worlds, world.New(name, chunks))
	}

	backend, err := game.NewBackend(config, logger, worlds, store)
	if err != nil {
		return err
	}

	server := network.NewServer(network.ServerConfig{
		Addr:           config.ListenAddress(),
		MaxConnections: config.MaxConnections,
	}, logger, backend)
	backend.Bind(server)

	// Ctrl-C and SIGTERM shut the server down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend.Start(ctx)

	logger.Infof("%s (max %d players)", config.Game.MOTD, config.Game.MaxPlayers)
	return server.ListenAndServe(ctx)
}
