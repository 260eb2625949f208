package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"satchel/internal/logs"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logPath := filepath.Join(cfg.Paths.LogDir, "satchel.log")

			limit := lines
			if limit < 0 {
				limit = 0
			}
			offset := int64(-1)
			if limit == 0 {
				// --lines 0 means the whole file.
				offset = 0
			}

			result, err := logs.Tail(cmd.Context(), logPath, logs.TailOptions{Offset: offset, Limit: limit})
			if err != nil {
				return fmt.Errorf("tail logs: %w", err)
			}

			out := cmd.OutOrStdout()
			printed := false
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
				printed = true
			}
			if !follow {
				if !printed {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}

			offset = result.Offset
			for {
				result, err := logs.Tail(cmd.Context(), logPath, logs.TailOptions{
					Offset: offset,
					Follow: true,
					Wait:   time.Second,
				})
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				offset = result.Offset

				select {
				case <-cmd.Context().Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}
