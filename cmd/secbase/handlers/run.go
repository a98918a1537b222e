package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/config"
	"github.com/secbase/secbase/internal/metrics"
	"github.com/secbase/secbase/internal/orchestration"
	"github.com/secbase/secbase/internal/validation"
)

// Run executes one full baseline session: generate requirements, drive each
// through the provision-validate-refine-reclaim loop, sweep the session,
// and emit the report as JSON. Flag overrides win over the config file.
func Run(ctx context.Context, configPath, outputPath string, overrides config.Overrides) error {
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return err
	}
	cfg.Apply(overrides)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize %s backend: %w", cfg.Platform, err)
	}
	generator, err := newGenerator(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize requirement generator: %w", err)
	}

	observer := orchestration.NewZapObserver(log)
	loop := orchestration.NewLoop(
		backend,
		validation.NewService(backend),
		newRefiner(cfg),
		backend,
		orchestration.WithMaxAttempts(cfg.MaxAttempts),
		orchestration.WithRetryWait(cfg.RetryWait),
		orchestration.WithObserver(observer),
		orchestration.WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	orch := orchestration.NewOrchestrator(generator, loop, backend,
		orchestration.WithConcurrency(cfg.Concurrency),
		orchestration.WithSessionObserver(observer),
	)

	log.Info("starting baseline session",
		zap.String("service", cfg.ServiceName),
		zap.String("platform", cfg.Platform),
		zap.String("region", cfg.Region))

	result, err := orch.Run(ctx, cfg.ServiceName, cfg.Environment, cfg.Region)
	if err != nil {
		return err
	}

	log.Info("session complete",
		zap.String("session_id", result.SessionID),
		zap.Int("validated", result.ValidatedCount),
		zap.Int("failed", result.FailedCount),
		zap.String("success_rate", result.Report.Summary.SuccessRate))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}
	return emit(outputPath, data)
}
