package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"satchel/internal/daemonctl"
	"satchel/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the satchel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the satchel daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, sync, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range buildDaemonStatusLines(statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Sync Queue", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(statusResp.Queue)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
			} else {
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(stdout, table)
				if statusResp.OldestPendingAt != "" {
					fmt.Fprintf(stdout, "Oldest pending since %s\n", statusResp.OldestPendingAt)
				}
			}

			if len(statusResp.TableCounts) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Local Tables", colorize) {
					fmt.Fprintln(stdout, line)
				}
				table := renderTable(
					[]string{"Table", "Records"},
					buildTableCountRows(statusResp.TableCounts),
					[]columnAlignment{alignLeft, alignRight},
				)
				fmt.Fprintln(stdout, table)
			}
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the satchel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func buildDaemonStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 4)

	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		if status.Online {
			lines = append(lines, renderStatusLine("Connectivity", statusOK, "Remote reachable", colorize))
		} else {
			lines = append(lines, renderStatusLine("Connectivity", statusWarn, "Offline (writes queue locally)", colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}

	if status.DBPath != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, status.DBPath, colorize))
	}

	switch {
	case status.LastSyncAt != "" && status.LastSync != nil:
		detail := fmt.Sprintf("%s (%d pushed)", status.LastSyncAt, status.LastSync.Synced)
		kind := statusOK
		if !status.LastSync.Success {
			detail = fmt.Sprintf("%s (%d pushed, %d failed)", status.LastSyncAt, status.LastSync.Synced, status.LastSync.Failed)
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Last sync", kind, detail, colorize))
	case status.Running:
		lines = append(lines, renderStatusLine("Last sync", statusInfo, "No syncs since start", colorize))
	}

	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
