package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"satchel/internal/ipc"
	"satchel/internal/localstore"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check local database health (schema, integrity, tables)",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchDatabaseHealth(cmd, ctx)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
			fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
			fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
			fmt.Fprintf(out, "Schema version: %s\n", resp.SchemaVersion)
			if len(resp.TablesPresent) > 0 {
				present := append([]string(nil), resp.TablesPresent...)
				sort.Strings(present)
				fmt.Fprintf(out, "Tables present: %s\n", strings.Join(present, ", "))
			}
			if len(resp.TablesMissing) > 0 {
				missing := append([]string(nil), resp.TablesMissing...)
				sort.Strings(missing)
				fmt.Fprintf(out, "Tables missing: %s\n", strings.Join(missing, ", "))
			} else {
				fmt.Fprintln(out, "Tables missing: none")
			}
			fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
			if resp.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", resp.Error)
			}
			return nil
		},
	}
}

// fetchDatabaseHealth prefers the daemon's view and falls back to opening the
// database directly, since health checks matter most when the daemon is down.
func fetchDatabaseHealth(cmd *cobra.Command, ctx *commandContext) (*ipc.DatabaseHealthResponse, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		defer client.Close()
		return client.DatabaseHealth()
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := localstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	defer store.Close()

	health, err := store.CheckHealth(cmd.Context())
	if err != nil && health.Error == "" {
		return nil, err
	}
	resp := &ipc.DatabaseHealthResponse{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		SchemaVersion:    health.SchemaVersion,
		IntegrityCheck:   health.IntegrityCheck,
		Error:            health.Error,
	}
	resp.TablesPresent = append(resp.TablesPresent, health.TablesPresent...)
	resp.TablesMissing = append(resp.TablesMissing, health.TablesMissing...)
	return resp, nil
}
