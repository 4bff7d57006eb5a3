package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/config"
	"github.com/antoniostano/kindred/internal/logging"
)

const rootLongDesc string = `Kindred keeps short memories of the people who visit.

Run the service or work with the memory store directly:
  kindred serve                        Run the HTTP and websocket API
  kindred process <person-id> <file>   Transcribe and summarize one recording
  kindred people                       List remembered people`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "kindred",
		Short:        "Kindred - conversation memories",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newPeopleCmd())
	return cmd
}

// loadRuntime reads the environment configuration and builds the logger the
// subcommands share. --debug overrides APP_LOG_DEBUG.
func loadRuntime(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogDebug = true
	}
	return cfg, logging.New(cfg.LogDebug), nil
}
