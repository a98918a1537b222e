package handlers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/secbase/secbase/internal/config"
)

// requirementsDoc is the YAML document shape consumed by the file-based
// requirement source, so a generated list can be fed back into `run`.
type requirementsDoc struct {
	Requirements any `yaml:"requirements"`
}

// Generate produces a requirement list for the configured service without
// provisioning anything, and emits it as YAML.
func Generate(ctx context.Context, configPath, outputPath string, overrides config.Overrides) error {
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return err
	}
	cfg.Apply(overrides)

	generator, err := newGenerator(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize requirement generator: %w", err)
	}

	requirements, err := generator.Generate(ctx, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("requirement generation failed: %w", err)
	}
	if len(requirements) == 0 {
		return fmt.Errorf("no security requirements generated for service %s", cfg.ServiceName)
	}

	data, err := yaml.Marshal(requirementsDoc{Requirements: requirements})
	if err != nil {
		return fmt.Errorf("failed to encode requirements: %w", err)
	}
	return emit(outputPath, data)
}
