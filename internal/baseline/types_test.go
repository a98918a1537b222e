package baseline

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionIDFormat(t *testing.T) {
	session := NewSession("EC2", "sandbox", "us-east-1")

	// <service>-<timestamp>-<fragment>, service lowercased.
	assert.Regexp(t, regexp.MustCompile(`^ec2-\d{8}-\d{6}-[0-9a-f]{8}$`), session.ID)
	assert.Equal(t, "EC2", session.ServiceName)
	assert.Equal(t, "sandbox", session.Environment)
	assert.Equal(t, "us-east-1", session.Region)
}

func TestNewSessionIDsAreUnique(t *testing.T) {
	a := NewSession("EC2", "sandbox", "us-east-1")
	b := NewSession("EC2", "sandbox", "us-east-1")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRequirementLifecycle(t *testing.T) {
	req := &Requirement{Objective: "Encryption", Status: StatusPending}
	assert.False(t, req.Terminal())

	req.MarkFailed(3, "maximum retry attempts exceeded")
	assert.True(t, req.Terminal())
	assert.Equal(t, StatusFailed, req.Status)
	assert.Equal(t, 3, req.TestAttempts)
	assert.Equal(t, "maximum retry attempts exceeded", req.ValidationError)
	assert.False(t, req.ValidationTimestamp.IsZero())

	// Validation after a recorded failure clears the error.
	req.MarkValidated(4, "validated on attempt 4")
	assert.Equal(t, StatusValidated, req.Status)
	assert.Empty(t, req.ValidationError)
	assert.Equal(t, "validated on attempt 4", req.ValidationDetails)
}

func TestResourceSetEmpty(t *testing.T) {
	var nilSet *ResourceSet
	assert.True(t, nilSet.Empty())
	assert.True(t, (&ResourceSet{}).Empty())
	assert.True(t, (&ResourceSet{Details: &InstanceDetails{State: "running"}}).Empty(),
		"details alone are not a reclaimable handle")
	assert.False(t, (&ResourceSet{InstanceID: "i-1"}).Empty())
	assert.False(t, (&ResourceSet{NetworkID: "vpc-1"}).Empty())
}

func TestValidationResultFailedChecks(t *testing.T) {
	result := &ValidationResult{Checks: []CheckResult{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false, Detail: "mismatch"},
		{Name: "c", Passed: false},
	}}

	failed := result.FailedChecks()
	require.Len(t, failed, 2)
	assert.Equal(t, "b", failed[0].Name)
	assert.Equal(t, "c", failed[1].Name)
	assert.Empty(t, (&ValidationResult{}).FailedChecks())
}

func TestCleanupReportAccumulates(t *testing.T) {
	var report CleanupReport
	report.Add("instance", "i-1", "terminated")
	report.AddError("failed to delete vpc %s: %v", "vpc-1", "dependency violation")

	other := CleanupReport{}
	other.Add("security_group", "sg-1", "deleted")
	report.Merge(other)

	require.Len(t, report.Reclaimed, 2)
	assert.Equal(t, ReclaimedResource{Type: "instance", ID: "i-1", Action: "terminated"}, report.Reclaimed[0])
	assert.Equal(t, "security_group", report.Reclaimed[1].Type)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "vpc-1")
}
