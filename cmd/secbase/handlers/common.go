// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and called by the command definitions in
// the commands package. Collaborators are created through package-level
// factory variables so tests can inject fakes.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/config"
	"github.com/secbase/secbase/internal/generate"
	"github.com/secbase/secbase/internal/orchestration"
	"github.com/secbase/secbase/internal/platform/awsec2"
	"github.com/secbase/secbase/internal/platform/hetzner"
	"github.com/secbase/secbase/internal/refine"
	"github.com/secbase/secbase/internal/validation"
)

// Backend is the platform surface a session needs: provisioning,
// inspection, and reclamation.
type Backend interface {
	orchestration.Provisioner
	orchestration.Reclaimer
	validation.Inspector
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads the run configuration.
	loadConfigFile = func(path string) (*config.Config, error) {
		if path == "" {
			return config.Default(), nil
		}
		return config.Load(path)
	}

	// newLogger builds the process logger.
	newLogger = func() (*zap.Logger, error) {
		return zap.NewProduction()
	}

	// newBackend creates the provisioning backend for the configured
	// platform.
	newBackend = func(ctx context.Context, cfg *config.Config, log *zap.Logger) (Backend, error) {
		switch cfg.Platform {
		case config.PlatformHetzner:
			return hetzner.NewClient(os.Getenv("HCLOUD_TOKEN"), log)
		default:
			return awsec2.NewClient(ctx, cfg.Region, log)
		}
	}

	// newGenerator creates the requirement source: a YAML file when one is
	// configured, the generation model otherwise.
	newGenerator = func(cfg *config.Config) (orchestration.Generator, error) {
		if cfg.RequirementsFile != "" {
			return generate.NewFileSource(cfg.RequirementsFile), nil
		}
		return generate.NewModelSource(os.Getenv("GEMINI_API_KEY"), cfg.Model)
	}

	// newRefiner creates the refinement chain. Without an API key the
	// deterministic rules stand alone.
	newRefiner = func(cfg *config.Config) orchestration.Refiner {
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return refine.Chain{refine.NewRuleRefiner()}
		}
		model, err := refine.NewModelRefiner(apiKey, cfg.Model)
		if err != nil {
			return refine.Chain{refine.NewRuleRefiner()}
		}
		return refine.Chain{model, refine.NewRuleRefiner()}
	}

	// writeFile writes an output artifact.
	writeFile = os.WriteFile

	// stdout is where handlers print results.
	stdout io.Writer = os.Stdout
)

// emit writes data either to the given path or to stdout.
func emit(path string, data []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, string(data))
		return err
	}
	return writeFile(path, data, 0o644)
}
