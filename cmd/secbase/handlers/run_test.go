package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/config"
	"github.com/secbase/secbase/internal/orchestration"
)

// saveAndRestoreFactories snapshots the factory variables and restores them
// when the test finishes.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origLoad := loadConfigFile
	origLogger := newLogger
	origBackend := newBackend
	origGenerator := newGenerator
	origRefiner := newRefiner
	origWrite := writeFile
	origStdout := stdout
	t.Cleanup(func() {
		loadConfigFile = origLoad
		newLogger = origLogger
		newBackend = origBackend
		newGenerator = origGenerator
		newRefiner = origRefiner
		writeFile = origWrite
		stdout = origStdout
	})
}

// fakeBackend satisfies Backend in-memory and records what was reclaimed.
type fakeBackend struct {
	mu       sync.Mutex
	deploys  int
	reclaims int
	sweeps   []string
}

func (f *fakeBackend) Deploy(_ context.Context, _ *baseline.Requirement, _ baseline.Session, _ int) (*baseline.ResourceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys++
	return &baseline.ResourceSet{InstanceID: "i-1"}, nil
}

func (f *fakeBackend) Inspect(_ context.Context, _ *baseline.ResourceSet) (*baseline.InstanceDetails, error) {
	return &baseline.InstanceDetails{
		State: "running",
		Metadata: baseline.MetadataOptions{
			HTTPTokens:   "required",
			HTTPEndpoint: "enabled",
			HopLimit:     1,
		},
	}, nil
}

func (f *fakeBackend) Reclaim(_ context.Context, set *baseline.ResourceSet) baseline.CleanupReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaims++
	var report baseline.CleanupReport
	if !set.Empty() {
		report.Add("instance", set.InstanceID, "terminated")
	}
	return report
}

func (f *fakeBackend) ReclaimSession(_ context.Context, sessionID string) baseline.CleanupReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps = append(f.sweeps, sessionID)
	return baseline.CleanupReport{}
}

type fakeGenerator struct {
	requirements []*baseline.Requirement
	err          error
	service      string
}

func (g *fakeGenerator) Generate(_ context.Context, serviceName string) ([]*baseline.Requirement, error) {
	g.service = serviceName
	return g.requirements, g.err
}

func quietTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Concurrency = 1
	cfg.RetryWait = 0
	return cfg
}

func wireDefaults(t *testing.T, backend *fakeBackend, gen orchestration.Generator) *bytes.Buffer {
	t.Helper()
	loadConfigFile = func(string) (*config.Config, error) { return quietTestConfig(), nil }
	newLogger = func() (*zap.Logger, error) { return zap.NewNop(), nil }
	newBackend = func(context.Context, *config.Config, *zap.Logger) (Backend, error) { return backend, nil }
	newGenerator = func(*config.Config) (orchestration.Generator, error) { return gen, nil }

	var out bytes.Buffer
	stdout = &out
	return &out
}

func TestRun_ValidatesRequirementsAndSweepsSession(t *testing.T) {
	saveAndRestoreFactories(t)

	backend := &fakeBackend{}
	gen := &fakeGenerator{requirements: []*baseline.Requirement{
		{Objective: "General", Description: "instance hardening", Configuration: map[string]any{}},
	}}
	out := wireDefaults(t, backend, gen)

	err := Run(context.Background(), "", "", config.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 1, backend.deploys)
	assert.Equal(t, 1, backend.reclaims, "every attempt's resources must be reclaimed")
	require.Len(t, backend.sweeps, 1, "the session must be swept once at the end")

	assert.Contains(t, out.String(), `"validated_requirements": 1`)
	assert.Contains(t, out.String(), backend.sweeps[0])
}

func TestRun_WritesReportToFile(t *testing.T) {
	saveAndRestoreFactories(t)

	backend := &fakeBackend{}
	gen := &fakeGenerator{requirements: []*baseline.Requirement{
		{Objective: "General", Description: "instance hardening", Configuration: map[string]any{}},
	}}
	wireDefaults(t, backend, gen)

	var wrotePath string
	var wroteData []byte
	writeFile = func(path string, data []byte, _ os.FileMode) error {
		wrotePath = path
		wroteData = data
		return nil
	}

	err := Run(context.Background(), "", "report.json", config.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "report.json", wrotePath)
	assert.Contains(t, string(wroteData), `"total_requirements": 1`)
}

func TestRun_GenerationFailureAbortsBeforeProvisioning(t *testing.T) {
	saveAndRestoreFactories(t)

	backend := &fakeBackend{}
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	wireDefaults(t, backend, gen)

	err := Run(context.Background(), "", "", config.Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirement generation failed")
	assert.Zero(t, backend.deploys)
}

func TestRun_EmptyRequirementListIsAnError(t *testing.T) {
	saveAndRestoreFactories(t)

	backend := &fakeBackend{}
	gen := &fakeGenerator{}
	wireDefaults(t, backend, gen)

	err := Run(context.Background(), "", "", config.Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no security requirements generated")
	assert.Zero(t, backend.deploys)
}

func TestRun_FlagOverridesWinOverConfig(t *testing.T) {
	saveAndRestoreFactories(t)

	backend := &fakeBackend{}
	gen := &fakeGenerator{requirements: []*baseline.Requirement{
		{Objective: "General", Description: "bucket hardening", Configuration: map[string]any{}},
	}}
	out := wireDefaults(t, backend, gen)

	err := Run(context.Background(), "", "", config.Overrides{ServiceName: "S3", Region: "eu-central-1"})
	require.NoError(t, err)

	assert.Equal(t, "S3", gen.service)
	assert.Contains(t, out.String(), `"session_id": "s3-`)
}

func TestRun_ConfigLoadFailure(t *testing.T) {
	saveAndRestoreFactories(t)

	loadConfigFile = func(string) (*config.Config, error) {
		return nil, errors.New("failed to read config file")
	}

	err := Run(context.Background(), "missing.yaml", "", config.Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
