package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"satchel/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the sync queue",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))

	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show sync queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}

				out := cmd.OutOrStdout()
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, table)

				if len(stats.ByTable) > 0 {
					fmt.Fprintln(out)
					table := renderTable(
						[]string{"Table", "Queued"},
						buildTableCountRows(stats.ByTable),
						[]columnAlignment{alignLeft, alignRight},
					)
					fmt.Fprintln(out, table)
				}
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"items": items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Operation", "Table", "Status", "Retries", "Enqueued"},
					buildQueueListRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show one queued mutation in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("item id is required")
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %s not found\n", id)
					return nil
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, item)
				}
				printQueueItemDetail(cmd.OutOrStdout(), *item)
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				removed, err := access.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed items\n", removed)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Retry failed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				outcome, err := access.Retry(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if outcome.Report != nil {
					printSyncReport(out, *outcome.Report)
					return nil
				}
				fmt.Fprintf(out, "Reset %d failed items to pending\n", outcome.Reset)
				if outcome.Reset > 0 {
					fmt.Fprintln(out, "Start the daemon or run `satchel sync` to push them")
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <itemID>...",
		Short: "Remove queue items by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id := strings.TrimSpace(arg)
				if id == "" {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				removed, err := access.Remove(cmd.Context(), ids)
				if removed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items\n", removed)
				}
				return err
			})
		},
	}
}
