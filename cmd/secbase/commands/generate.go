package commands

import (
	"github.com/spf13/cobra"

	"github.com/secbase/secbase/cmd/secbase/handlers"
	"github.com/secbase/secbase/internal/config"
)

// Generate returns the command that produces a requirement list without
// provisioning anything.
func Generate() *cobra.Command {
	var configPath, outputPath string
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate baseline requirements without validating them",
		Long: `Generate security baseline requirements for the configured service and
emit them as YAML. The output can be reviewed, edited, and fed back into
'secbase run' through the requirements_file configuration key.

Examples:
  secbase generate --service EC2 -o requirements.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Generate(cmd.Context(), configPath, outputPath, overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path for the YAML output (default: stdout)")
	cmd.Flags().StringVar(&overrides.ServiceName, "service", "", "Service to generate the baseline for")

	return cmd
}
