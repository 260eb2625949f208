package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/ipc"
	"satchel/internal/localstore"
	"satchel/internal/logging"
	"satchel/internal/remotestore"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued mutations to the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				defer client.Close()
				report, err := client.Sync(retryFailed)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, report)
				}
				printSyncReport(cmd.OutOrStdout(), *report)
				return nil
			}
			return runDirectSync(cmd, ctx, retryFailed)
		},
	}

	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Reset failed items to pending before draining")
	return cmd
}

// runDirectSync drains the queue without a daemon by wiring the local store,
// sync queue, and remote client in-process.
func runDirectSync(cmd *cobra.Command, ctx *commandContext, retryFailed bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	store, err := localstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer store.Close()

	queue, err := syncqueue.NewStore(store.DB())
	if err != nil {
		return fmt.Errorf("bind sync queue: %w", err)
	}

	remote, err := remotestore.New(cfg.Remote.BaseURL, cfg.Remote.APIKey,
		time.Duration(cfg.Remote.RequestTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("create remote client: %w", err)
	}

	sm, err := syncer.NewManager(cfg, queue, store, remote, logging.NewNop())
	if err != nil {
		return fmt.Errorf("create sync manager: %w", err)
	}

	var result syncer.Result
	if retryFailed {
		result, err = sm.RetryFailed(cmd.Context())
	} else {
		result, err = sm.Sync(cmd.Context(), syncer.Options{Trigger: "manual"})
	}
	if err != nil {
		return err
	}

	report := api.FromSyncResult(result)
	if ctx.JSONMode() {
		return writeJSON(cmd, report)
	}
	printSyncReport(cmd.OutOrStdout(), report)
	return nil
}
