package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/antoniostano/kindred/internal/app"
)

const processLongDesc string = `Transcribe one recording, summarize it and record the visit.

Examples:
  kindred process jake ./visit.webm
  kindred process mia ./visit.wav`

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <person-id> <audio-file>",
		Short: "Process one recorded conversation",
		Long:  processLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}

			built, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = built.Cleanup() }()

			res, err := built.Visits.OneShot(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
