package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/secbase/secbase/internal/baseline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockGenerator struct {
	requirements []*baseline.Requirement
	err          error
}

func (m *mockGenerator) Generate(context.Context, string) ([]*baseline.Requirement, error) {
	return m.requirements, m.err
}

func requirementList(n int) []*baseline.Requirement {
	reqs := make([]*baseline.Requirement, n)
	for i := range reqs {
		reqs[i] = &baseline.Requirement{
			Objective:     "Access Control",
			Description:   "metadata hardening",
			Configuration: map[string]any{},
			Status:        baseline.StatusPending,
		}
	}
	return reqs
}

func TestRunAggregatesResultsInOrder(t *testing.T) {
	reqs := requirementList(3)
	reqs[0].Objective = "Encryption"
	reqs[1].Objective = "Network Security"
	reqs[2].Objective = "Logging"

	calls := 0
	var mu sync.Mutex
	v := &mockValidator{validate: func(_ context.Context, req *baseline.Requirement, _ *baseline.ResourceSet, _ string) (*baseline.ValidationResult, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if req.Objective == "Network Security" {
			return &baseline.ValidationResult{Success: false, Error: "open ingress found"}, nil
		}
		return &baseline.ValidationResult{Success: true}, nil
	}}
	rec := &mockReclaimer{}
	loop := newTestLoop(&mockProvisioner{}, v, &mockRefiner{}, rec)
	orch := NewOrchestrator(&mockGenerator{requirements: reqs}, loop, rec)

	result, err := orch.Run(context.Background(), "EC2", "sandbox", "us-east-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRequirements)
	assert.Equal(t, 2, result.ValidatedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Report.Requirements, 3)
	assert.Equal(t, "Encryption", result.Report.Requirements[0].Objective)
	assert.Equal(t, "Network Security", result.Report.Requirements[1].Objective)
	assert.Equal(t, "Logging", result.Report.Requirements[2].Objective)
	assert.Equal(t, "66.7%", result.Report.Summary.SuccessRate)
	assert.True(t, strings.HasPrefix(result.SessionID, "ec2-"))
}

func TestRunSweepsSessionOnceAfterAllLoops(t *testing.T) {
	rec := &mockReclaimer{}
	loop := newTestLoop(&mockProvisioner{}, &mockValidator{}, &mockRefiner{}, rec)
	orch := NewOrchestrator(&mockGenerator{requirements: requirementList(2)}, loop, rec)

	result, err := orch.Run(context.Background(), "EC2", "sandbox", "us-east-1")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.sweeps, 1)
	assert.Equal(t, result.SessionID, rec.sweeps[0])
	assert.Len(t, rec.reclaims, 2, "each requirement reclaims its own attempt before the sweep")
}

func TestRunGenerationFailureAbortsBeforeProvisioning(t *testing.T) {
	p := &mockProvisioner{}
	rec := &mockReclaimer{}
	loop := newTestLoop(p, &mockValidator{}, &mockRefiner{}, rec)
	orch := NewOrchestrator(&mockGenerator{err: errors.New("model unavailable")}, loop, rec)

	_, err := orch.Run(context.Background(), "EC2", "sandbox", "us-east-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirement generation failed")
	assert.Zero(t, p.count())
	assert.Empty(t, rec.sweeps)
}

func TestRunEmptyRequirementListIsAnError(t *testing.T) {
	p := &mockProvisioner{}
	rec := &mockReclaimer{}
	loop := newTestLoop(p, &mockValidator{}, &mockRefiner{}, rec)
	orch := NewOrchestrator(&mockGenerator{}, loop, rec)

	_, err := orch.Run(context.Background(), "EC2", "sandbox", "us-east-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no security requirements generated")
	assert.Zero(t, p.count())
}

func TestRunCapsConcurrentResourceSets(t *testing.T) {
	var mu sync.Mutex
	live, peak := 0, 0

	p := &mockProvisioner{deploy: func(context.Context, *baseline.Requirement, baseline.Session, int) (*baseline.ResourceSet, error) {
		mu.Lock()
		live++
		if live > peak {
			peak = live
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return &baseline.ResourceSet{InstanceID: "i-1"}, nil
	}}
	rec := &mockReclaimer{}
	v := &mockValidator{validate: func(context.Context, *baseline.Requirement, *baseline.ResourceSet, string) (*baseline.ValidationResult, error) {
		mu.Lock()
		live--
		mu.Unlock()
		return &baseline.ValidationResult{Success: true}, nil
	}}
	loop := newTestLoop(p, v, &mockRefiner{}, rec)
	orch := NewOrchestrator(&mockGenerator{requirements: requirementList(8)}, loop, rec,
		WithConcurrency(2))

	_, err := orch.Run(context.Background(), "EC2", "sandbox", "us-east-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "live resource sets must never exceed the concurrency cap")
}

func TestRunRecoversPanickedRequirement(t *testing.T) {
	reqs := requirementList(2)
	p := &mockProvisioner{deploy: func(_ context.Context, req *baseline.Requirement, _ baseline.Session, index int) (*baseline.ResourceSet, error) {
		if index == 0 {
			panic("nil map write in provider shim")
		}
		return &baseline.ResourceSet{InstanceID: "i-2"}, nil
	}}
	rec := &mockReclaimer{}
	loop := newTestLoop(p, &mockValidator{}, &mockRefiner{}, rec)
	orch := NewOrchestrator(&mockGenerator{requirements: reqs}, loop, rec)

	result, err := orch.Run(context.Background(), "EC2", "sandbox", "us-east-1")
	require.NoError(t, err)

	assert.Equal(t, baseline.StatusFailed, result.Report.Requirements[0].Status)
	assert.Contains(t, result.Report.Requirements[0].ValidationError, "panicked")
	assert.Equal(t, baseline.StatusValidated, result.Report.Requirements[1].Status)

	// The sweep still runs so anything the panicked loop left behind is
	// discovered by tag.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.sweeps, 1)
}
