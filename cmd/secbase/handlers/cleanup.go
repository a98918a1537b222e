package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Cleanup sweeps all resources tagged with a session id. It is the manual
// escape hatch for sessions that were interrupted before their final sweep.
// Individual teardown failures are reported, not fatal; rerunning converges.
func Cleanup(ctx context.Context, configPath, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("a session id is required")
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
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

	report := backend.ReclaimSession(ctx, sessionID)
	if len(report.Errors) > 0 {
		log.Warn("cleanup completed with errors",
			zap.String("session_id", sessionID),
			zap.Strings("errors", report.Errors))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cleanup report: %w", err)
	}
	return emit("", data)
}
