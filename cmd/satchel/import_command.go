package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/config"
	"satchel/internal/connectivity"
	"satchel/internal/ipc"
	"satchel/internal/localstore"
	"satchel/internal/logging"
	"satchel/internal/offline"
	"satchel/internal/remotestore"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Bulk-import player records from a JSON file",
		Long: `Bulk-import player records from a JSON file containing an array of
objects, e.g. [{"name": "Ada Lovelace"}, {"name": "Grace Hopper"}].
Records are staged locally and queued for sync; a running daemon pushes
them once the import settles.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			players, err := readPlayersFile(args[0])
			if err != nil {
				return err
			}

			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				defer client.Close()
				resp, err := client.Import(players)
				if err != nil {
					return err
				}
				return printImported(cmd, ctx, resp.Players, true)
			}
			return runDirectImport(cmd, ctx, players)
		},
	}
	return cmd
}

func readPlayersFile(path string) ([]map[string]any, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve import path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	var players []map[string]any
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("parse import file %q: expected a JSON array of objects: %w", path, err)
	}
	if len(players) == 0 {
		return nil, errors.New("import file contains no players")
	}
	return players, nil
}

// runDirectImport stages players without a daemon. Records land in the local
// store and the sync queue; nothing is pushed until a daemon drains the queue
// or the user runs `satchel sync`.
func runDirectImport(cmd *cobra.Command, ctx *commandContext, players []map[string]any) error {
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

	logger := logging.NewNop()
	sm, err := syncer.NewManager(cfg, queue, store, remote, logger)
	if err != nil {
		return fmt.Errorf("create sync manager: %w", err)
	}

	// Treat the remote as offline so the import only stages and enqueues;
	// the short-lived CLI process should not race a background drain.
	facade, err := offline.NewManager(cfg, store, remote, queue, sm, connectivity.NewManual(false), logger)
	if err != nil {
		return fmt.Errorf("create offline manager: %w", err)
	}
	defer facade.Close()

	records, err := facade.ImportPlayers(cmd.Context(), players)
	if err != nil {
		return err
	}
	return printImported(cmd, ctx, api.FromImportedRecords(records), false)
}

func printImported(cmd *cobra.Command, ctx *commandContext, players []api.ImportedPlayer, daemonReachable bool) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, map[string]any{"players": players})
	}

	out := cmd.OutOrStdout()
	if daemonReachable {
		fmt.Fprintf(out, "Imported %d players\n", len(players))
	} else {
		fmt.Fprintf(out, "Staged %d players locally\n", len(players))
	}
	for _, player := range players {
		if player.Name != "" {
			fmt.Fprintf(out, "  %s  %s\n", player.ID, player.Name)
		} else {
			fmt.Fprintf(out, "  %s\n", player.ID)
		}
	}
	if !daemonReachable {
		fmt.Fprintln(out, "Start the daemon or run `satchel sync` to push them")
	}
	return nil
}
