// Package orchestration drives security baseline sessions: it fans a
// requirement list out across requirement loops, each of which takes one
// requirement through provision, validate, refine and reclaim to a terminal
// status under a fixed attempt bound.
//
// The collaborators below are injected as explicit interface values at
// construction. There is no process-wide client state.
package orchestration

import (
	"context"

	"github.com/secbase/secbase/internal/baseline"
)

// Provisioner creates tagged, isolated test infrastructure from a
// requirement's configuration. On error the returned set may still carry
// partial handles, which the caller must hand to the reclaimer.
type Provisioner interface {
	Deploy(ctx context.Context, req *baseline.Requirement, session baseline.Session, index int) (*baseline.ResourceSet, error)
}

// Validator runs checks against a provisioned resource set and returns
// pass/fail with structured per-check detail.
type Validator interface {
	Validate(ctx context.Context, req *baseline.Requirement, set *baseline.ResourceSet, sessionID string) (*baseline.ValidationResult, error)
}

// Refiner proposes a revised configuration from validation failure detail.
type Refiner interface {
	Refine(ctx context.Context, req *baseline.Requirement, result *baseline.ValidationResult, attempt int) (*baseline.Refinement, error)
}

// Reclaimer tears down test infrastructure. Both methods are idempotent and
// best-effort: a redundant delete against an already-absent resource
// succeeds silently, and errors are reported in the CleanupReport, never
// returned.
type Reclaimer interface {
	// Reclaim tears down one attempt's resource set. A nil or empty set is
	// a no-op.
	Reclaim(ctx context.Context, set *baseline.ResourceSet) baseline.CleanupReport

	// ReclaimSession discovers and tears down everything tagged with the
	// session id, independent of what any caller is tracking. It must be
	// safe to re-run any number of times.
	ReclaimSession(ctx context.Context, sessionID string) baseline.CleanupReport
}

// Generator produces the requirement list for a service.
type Generator interface {
	Generate(ctx context.Context, serviceName string) ([]*baseline.Requirement, error)
}
