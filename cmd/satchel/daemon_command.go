package main

import (
	"strings"

	"github.com/spf13/cobra"

	"satchel/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the satchel daemon (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: strings.TrimSpace(logLevel),
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	return cmd
}
