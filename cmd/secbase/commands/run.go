package commands

import (
	"github.com/spf13/cobra"

	"github.com/secbase/secbase/cmd/secbase/handlers"
	"github.com/secbase/secbase/internal/config"
)

// Run returns the command that executes a full baseline session.
//
// Optional flags:
//
//	--config, -c: Path to run configuration YAML (defaults apply without it)
//	--output, -o: Path for the JSON report (default: stdout)
//	--service, --environment, --region, --requirements: config file overrides
//
// Environment variables:
//
//	AWS credential chain variables for the aws platform
//	HCLOUD_TOKEN for the hetzner platform
//	GEMINI_API_KEY for model-backed generation and refinement
func Run() *cobra.Command {
	var configPath, outputPath string
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a baseline validation session",
		Long: `Run one end-to-end baseline session.

Requirements are generated for the configured service (or loaded from a
requirements file), each is validated against freshly provisioned test
infrastructure with bounded refine-retry cycles, and all session resources
are reclaimed before the report is written.

Examples:
  # Run with defaults (EC2, us-east-1, aws platform)
  secbase run

  # Run with a config file and write the report to disk
  secbase run -c secbase.yaml -o report.json

  # Override the service and region from the command line
  secbase run --service S3 --region eu-central-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Run(cmd.Context(), configPath, outputPath, overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path for the JSON report (default: stdout)")
	cmd.Flags().StringVar(&overrides.ServiceName, "service", "", "Service to generate the baseline for")
	cmd.Flags().StringVar(&overrides.Environment, "environment", "", "Deployment environment label")
	cmd.Flags().StringVar(&overrides.Region, "region", "", "Provider region")
	cmd.Flags().StringVar(&overrides.RequirementsFile, "requirements", "", "Requirements YAML file instead of model generation")

	return cmd
}
