package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name      string
		validated int
		total     int
		want      string
	}{
		{"empty set", 0, 0, "0%"},
		{"all validated", 5, 5, "100.0%"},
		{"partial", 2, 5, "40.0%"},
		{"none", 0, 3, "0.0%"},
		{"rounded", 2, 3, "66.7%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuccessRate(tt.validated, tt.total))
		})
	}
}

func TestBuildReportSummarizesOutcomes(t *testing.T) {
	session := NewSession("EC2", "sandbox", "us-east-1")
	reqs := []*Requirement{
		{Objective: "Encryption", Status: StatusValidated},
		{Objective: "Access Control", Status: StatusFailed, ValidationError: "IMDS validation failed"},
		{Objective: "Network Security", Status: StatusValidated},
	}

	report := BuildReport(session, reqs)

	assert.Equal(t, session.ID, report.SessionID)
	assert.Equal(t, "EC2", report.ServiceName)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Validated)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, "66.7%", report.Summary.SuccessRate)
	assert.False(t, report.Timestamp.IsZero())

	// Requirements keep generation order.
	require.Len(t, report.Requirements, 3)
	assert.Equal(t, "Encryption", report.Requirements[0].Objective)

	require.Len(t, report.Recommendations, 2)
	assert.Contains(t, report.Recommendations[0], "1 failed requirements")
	assert.Contains(t, report.Recommendations[1], "2 validated configurations")
	assert.NotEmpty(t, report.NextSteps)
}

func TestBuildReportAllValidatedSkipsFailureAdvice(t *testing.T) {
	session := NewSession("EC2", "sandbox", "us-east-1")
	report := BuildReport(session, []*Requirement{{Status: StatusValidated}})

	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "validated configurations")
}

func TestNewRunResultMirrorsReportCounts(t *testing.T) {
	session := NewSession("EC2", "sandbox", "us-east-1")
	reqs := []*Requirement{
		{Status: StatusValidated},
		{Status: StatusFailed},
	}
	result := NewRunResult(session, BuildReport(session, reqs))

	assert.Equal(t, session.ID, result.SessionID)
	assert.Equal(t, 2, result.TotalRequirements)
	assert.Equal(t, 1, result.ValidatedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, result.Requirements, 2)
}
