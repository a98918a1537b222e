package orchestration

import (
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/baseline"
)

// Observer receives structured events as a session progresses. It exists so
// the loop and orchestrator stay free of logging-backend concerns and so
// tests can run silent.
type Observer interface {
	// AttemptStarted is emitted when a requirement begins an attempt.
	AttemptStarted(req *baseline.Requirement, index, attempt, maxAttempts int)

	// StateChanged is emitted on every loop state transition.
	StateChanged(index int, from, to State)

	// ResourcesReclaimed is emitted after each reclamation pass.
	ResourcesReclaimed(index int, report baseline.CleanupReport)

	// RequirementFinished is emitted when a requirement reaches a terminal
	// status.
	RequirementFinished(req *baseline.Requirement, index int)

	// SessionSwept is emitted after the final session-wide sweep.
	SessionSwept(sessionID string, report baseline.CleanupReport)
}

// ZapObserver implements Observer on a zap logger.
type ZapObserver struct {
	log *zap.Logger
}

// NewZapObserver creates an observer writing structured events to log.
func NewZapObserver(log *zap.Logger) *ZapObserver {
	return &ZapObserver{log: log}
}

func (o *ZapObserver) AttemptStarted(req *baseline.Requirement, index, attempt, maxAttempts int) {
	o.log.Info("attempt started",
		zap.Int("requirement", index),
		zap.String("objective", req.Objective),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", maxAttempts))
}

func (o *ZapObserver) StateChanged(index int, from, to State) {
	o.log.Debug("state transition",
		zap.Int("requirement", index),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

func (o *ZapObserver) ResourcesReclaimed(index int, report baseline.CleanupReport) {
	if len(report.Errors) > 0 {
		o.log.Warn("reclamation completed with errors",
			zap.Int("requirement", index),
			zap.Int("reclaimed", len(report.Reclaimed)),
			zap.Strings("errors", report.Errors))
		return
	}
	o.log.Info("resources reclaimed",
		zap.Int("requirement", index),
		zap.Int("reclaimed", len(report.Reclaimed)))
}

func (o *ZapObserver) RequirementFinished(req *baseline.Requirement, index int) {
	o.log.Info("requirement finished",
		zap.Int("requirement", index),
		zap.String("objective", req.Objective),
		zap.String("status", string(req.Status)),
		zap.Int("attempts", req.TestAttempts),
		zap.String("error", req.ValidationError))
}

func (o *ZapObserver) SessionSwept(sessionID string, report baseline.CleanupReport) {
	if len(report.Errors) > 0 {
		o.log.Warn("session sweep completed with errors",
			zap.String("session", sessionID),
			zap.Int("reclaimed", len(report.Reclaimed)),
			zap.Strings("errors", report.Errors))
		return
	}
	o.log.Info("session sweep complete",
		zap.String("session", sessionID),
		zap.Int("reclaimed", len(report.Reclaimed)))
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) AttemptStarted(*baseline.Requirement, int, int, int) {}
func (NopObserver) StateChanged(int, State, State)                      {}
func (NopObserver) ResourcesReclaimed(int, baseline.CleanupReport)      {}
func (NopObserver) RequirementFinished(*baseline.Requirement, int)      {}
func (NopObserver) SessionSwept(string, baseline.CleanupReport)         {}
