package orchestration

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/secbase/secbase/internal/baseline"
)

// Orchestrator runs a full baseline session: requirement generation,
// concurrent requirement loops, report aggregation, and a final
// session-wide reclamation sweep as a safety net.
type Orchestrator struct {
	generator Generator
	loop      *Loop
	reclaimer Reclaimer
	observer  Observer

	// concurrency caps how many requirement loops run at once, which also
	// caps how many live resource sets exist simultaneously. It must
	// respect the provisioner's external rate limits.
	concurrency int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency sets the requirement loop concurrency cap.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithSessionObserver sets the event observer.
func WithSessionObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = obs }
}

// NewOrchestrator creates a session orchestrator. The reclaimer must be the
// same one the loop uses so the final sweep covers everything the loops
// tagged.
func NewOrchestrator(gen Generator, loop *Loop, rec Reclaimer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		generator:   gen,
		loop:        loop,
		reclaimer:   rec,
		observer:    NopObserver{},
		concurrency: 2,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one end-to-end session and returns its result. Individual
// requirement failures are data in the report, not run failures; only an
// empty requirement list aborts the run, before any provisioning happens.
func (o *Orchestrator) Run(ctx context.Context, serviceName, environment, region string) (*baseline.RunResult, error) {
	session := baseline.NewSession(serviceName, environment, region)

	requirements, err := o.generator.Generate(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("requirement generation failed: %w", err)
	}
	if len(requirements) == 0 {
		return nil, fmt.Errorf("no security requirements generated for service %s", serviceName)
	}

	// Results are collected keyed by original index so report ordering is
	// deterministic regardless of completion order.
	results := make([]*baseline.Requirement, len(requirements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, req := range requirements {
		g.Go(func() error {
			results[i] = o.processSafely(gctx, session, req, i)
			return nil
		})
	}
	// Loop goroutines never return errors; faults are captured per
	// requirement.
	_ = g.Wait()

	report := baseline.BuildReport(session, results)

	// Safety net for anything per-attempt reclamation missed: partial
	// provisioning, interrupted refine cycles, crashes. Errors are logged,
	// never escalated.
	sweep := o.reclaimer.ReclaimSession(ctx, session.ID)
	o.observer.SessionSwept(session.ID, sweep)

	return baseline.NewRunResult(session, report), nil
}

// processSafely runs one requirement loop, converting any panic into a
// FAILED requirement rather than aborting the session.
func (o *Orchestrator) processSafely(ctx context.Context, session baseline.Session, req *baseline.Requirement, index int) (out *baseline.Requirement) {
	defer func() {
		if r := recover(); r != nil {
			req.MarkFailed(req.TestAttempts, fmt.Sprintf("requirement processing panicked: %v", r))
			o.observer.RequirementFinished(req, index)
			out = req
		}
	}()
	return o.loop.Process(ctx, session, req, index)
}
