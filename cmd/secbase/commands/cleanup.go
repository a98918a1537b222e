package commands

import (
	"github.com/spf13/cobra"

	"github.com/secbase/secbase/cmd/secbase/handlers"
)

// Cleanup returns the command that sweeps a session's leftover resources.
func Cleanup() *cobra.Command {
	var configPath, sessionID string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Reclaim all resources of a session",
		Long: `Discover and tear down every resource tagged with a session id.

Use this when a run was interrupted before its final sweep. The sweep is
idempotent: rerunning it against an already-clean session is a no-op.

Examples:
  secbase cleanup --session ec2-20260824-120000-abcd1234`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), configPath, sessionID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to reclaim (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}
