package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/metrics"
	"github.com/secbase/secbase/internal/util/poll"
)

// State is one phase of the requirement loop's finite-state machine.
type State string

const (
	// StateProvisioning deploys test infrastructure from the requirement's
	// current configuration.
	StateProvisioning State = "PROVISIONING"
	// StateValidating runs checks against the provisioned resource set.
	StateValidating State = "VALIDATING"
	// StateRefining asks the refiner for a revised configuration.
	StateRefining State = "REFINING"
	// StateReclaiming tears down the attempt's resource set. Every attempt
	// passes through this state exactly once, on every exit path.
	StateReclaiming State = "RECLAIMING"
	// StateValidated is the successful terminal state.
	StateValidated State = "VALIDATED"
	// StateFailed is the unsuccessful terminal state.
	StateFailed State = "FAILED"
)

// DefaultMaxAttempts bounds the provision-validate-refine cycles per
// requirement when no override is configured.
const DefaultMaxAttempts = 3

// Loop drives one requirement through the test-validate-refine-reclaim
// cycle to a terminal status. Each loop is single-threaded and shares no
// mutable state with other loops beyond the immutable session.
type Loop struct {
	provisioner Provisioner
	validator   Validator
	refiner     Refiner
	reclaimer   Reclaimer
	observer    Observer
	metrics     *metrics.Metrics

	maxAttempts int
	retryWait   time.Duration
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxAttempts overrides the attempt bound.
func WithMaxAttempts(n int) LoopOption {
	return func(l *Loop) { l.maxAttempts = n }
}

// WithRetryWait overrides the courtesy pause between attempts.
func WithRetryWait(d time.Duration) LoopOption {
	return func(l *Loop) { l.retryWait = d }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) LoopOption {
	return func(l *Loop) { l.observer = o }
}

// WithMetrics sets the metric sink.
func WithMetrics(m *metrics.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// NewLoop creates a requirement loop with the given collaborators.
func NewLoop(p Provisioner, v Validator, r Refiner, rec Reclaimer, opts ...LoopOption) *Loop {
	l := &Loop{
		provisioner: p,
		validator:   v,
		refiner:     r,
		reclaimer:   rec,
		observer:    NopObserver{},
		maxAttempts: DefaultMaxAttempts,
		retryWait:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// machine carries the mutable per-requirement state across transitions.
type machine struct {
	attempt      int
	set          *baseline.ResourceSet
	lastResult   *baseline.ValidationResult
	provisionErr error

	// next is the state to enter after RECLAIMING completes, so that every
	// path out of an attempt funnels through exactly one reclamation.
	next State
}

// Process takes the requirement to a terminal status and returns it. The
// requirement is mutated in place; it is the same object that was passed
// in. A requirement that is already terminal is returned unchanged.
func (l *Loop) Process(ctx context.Context, session baseline.Session, req *baseline.Requirement, index int) *baseline.Requirement {
	if req.Terminal() {
		return req
	}
	req.Status = baseline.StatusPending

	m := &machine{attempt: 1}
	state := StateProvisioning
	attemptStart := time.Now()

	for {
		next := l.step(ctx, session, req, index, m, state, &attemptStart)
		l.observer.StateChanged(index, state, next)
		state = next

		switch state {
		case StateValidated:
			req.MarkValidated(m.attempt, fmt.Sprintf("validated on attempt %d: %d checks passed",
				m.attempt, len(m.lastResult.Checks)))
			l.observer.RequirementFinished(req, index)
			return req

		case StateFailed:
			req.MarkFailed(m.attempt, l.terminalError(m))
			l.observer.RequirementFinished(req, index)
			return req
		}
	}
}

// step executes one state and returns the next. Terminal states are never
// passed in.
func (l *Loop) step(ctx context.Context, session baseline.Session, req *baseline.Requirement, index int, m *machine, state State, attemptStart *time.Time) State {
	switch state {
	case StateProvisioning:
		*attemptStart = time.Now()
		l.observer.AttemptStarted(req, index, m.attempt, l.maxAttempts)

		set, err := l.provisioner.Deploy(ctx, req, session, index)
		l.metrics.ObserveProvision()
		m.set = set
		if err != nil {
			// Fatal to the requirement, never retried. Partial handles
			// still go through reclamation.
			m.provisionErr = err
			m.next = StateFailed
			return StateReclaiming
		}
		return StateValidating

	case StateValidating:
		result, err := l.validator.Validate(ctx, req, m.set, session.ID)
		if err != nil {
			// A validator transport fault counts as a failed validation and
			// drives the same refine-retry path.
			result = &baseline.ValidationResult{Success: false, Error: err.Error()}
		}
		m.lastResult = result
		l.metrics.ObserveValidation(result.Success)

		if result.Success {
			m.next = StateValidated
			return StateReclaiming
		}
		if m.attempt < l.maxAttempts {
			return StateRefining
		}
		m.next = StateFailed
		return StateReclaiming

	case StateRefining:
		refinement, err := l.refiner.Refine(ctx, req, m.lastResult, m.attempt)
		l.metrics.ObserveRefinement()
		if err != nil {
			// Refinement failure ends retries early. The requirement keeps
			// the last validation detail as its terminal error.
			req.RefinementNotes = append(req.RefinementNotes,
				fmt.Sprintf("refinement failed on attempt %d: %v", m.attempt, err))
			m.next = StateFailed
			return StateReclaiming
		}
		req.Configuration = refinement.Configuration
		req.RefinementNotes = append(req.RefinementNotes, refinement.Notes...)
		m.next = StateProvisioning
		return StateReclaiming

	case StateReclaiming:
		report := l.reclaimer.Reclaim(ctx, m.set)
		m.set = nil
		l.metrics.ObserveReclamation(len(report.Errors) > 0)
		l.metrics.ObserveAttempt(time.Since(*attemptStart).Seconds())
		l.observer.ResourcesReclaimed(index, report)

		if m.next == StateProvisioning {
			// Courtesy pause between attempts: respects provider rate
			// limits and lets async teardown settle. Attempt N+1's
			// provisioning strictly follows attempt N's reclamation.
			if err := poll.Wait(ctx, l.retryWait); err != nil {
				return StateFailed
			}
			m.attempt++
		}
		return m.next
	}

	// Unreachable: terminal states are handled by the caller.
	return StateFailed
}

// terminalError selects the error recorded on a FAILED requirement. When
// refinement itself failed mid-retry, the last validation failure is still
// the reported error; the refinement fault lives in the notes.
func (l *Loop) terminalError(m *machine) string {
	if m.provisionErr != nil {
		return fmt.Sprintf("provisioning failed: %v", m.provisionErr)
	}
	if m.lastResult != nil && m.lastResult.Error != "" {
		return m.lastResult.Error
	}
	return "maximum retry attempts exceeded"
}
