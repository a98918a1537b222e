// Package baseline defines the data model for security baseline sessions:
// requirements, provisioned resource sets, validation results, and reports.
//
// Requirements are created by a generation source and mutated only by the
// requirement loop that owns them. Sessions are immutable once created and
// their id is stamped as a tag on every resource, which is the sole durable
// record used for later reclamation.
package baseline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidationStatus is the lifecycle state of a requirement.
type ValidationStatus string

const (
	// StatusPending means the requirement has not completed validation.
	StatusPending ValidationStatus = "PENDING"
	// StatusValidated means the requirement's configuration passed validation.
	StatusValidated ValidationStatus = "VALIDATED"
	// StatusFailed means the requirement exhausted its attempts or hit a
	// fatal provisioning error.
	StatusFailed ValidationStatus = "FAILED"
)

// Priority levels for requirements.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Requirement is one security configuration rule to enforce and validate.
//
// Objective, Description, Configuration, TestMethod and Priority come from
// the generation source. The remaining fields are owned by the requirement
// loop and are terminal once Status is VALIDATED or FAILED.
type Requirement struct {
	Objective     string         `json:"objective" yaml:"objective"`
	Description   string         `json:"description" yaml:"description"`
	Configuration map[string]any `json:"configuration" yaml:"configuration"`
	TestMethod    string         `json:"test_method,omitempty" yaml:"test_method,omitempty"`
	Priority      string         `json:"priority,omitempty" yaml:"priority,omitempty"`

	Status              ValidationStatus `json:"validation_status" yaml:"validation_status"`
	ValidationError     string           `json:"validation_error,omitempty" yaml:"validation_error,omitempty"`
	ValidationDetails   string           `json:"validation_details,omitempty" yaml:"validation_details,omitempty"`
	TestAttempts        int              `json:"test_attempts" yaml:"test_attempts"`
	ValidationTimestamp time.Time        `json:"validation_timestamp,omitempty" yaml:"validation_timestamp,omitempty"`
	RefinementNotes     []string         `json:"refinement_notes,omitempty" yaml:"refinement_notes,omitempty"`
}

// Terminal reports whether the requirement has reached a final status.
func (r *Requirement) Terminal() bool {
	return r.Status == StatusValidated || r.Status == StatusFailed
}

// MarkValidated records a successful validation after the given attempt.
func (r *Requirement) MarkValidated(attempts int, details string) {
	r.Status = StatusValidated
	r.TestAttempts = attempts
	r.ValidationDetails = details
	r.ValidationError = ""
	r.ValidationTimestamp = time.Now().UTC()
}

// MarkFailed records a terminal failure with the last known error.
func (r *Requirement) MarkFailed(attempts int, errMsg string) {
	r.Status = StatusFailed
	r.TestAttempts = attempts
	r.ValidationError = errMsg
	r.ValidationTimestamp = time.Now().UTC()
}

// Session identifies one end-to-end run. It is immutable once created and
// referenced as a tag on every resource the run provisions.
type Session struct {
	ID          string `json:"session_id" yaml:"session_id"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Environment string `json:"environment" yaml:"environment"`
	Region      string `json:"region" yaml:"region"`
}

// NewSession creates a session with a unique id derived from the service
// name, a UTC timestamp, and a random fragment. Id collision is treated as a
// precondition violation, not a runtime state to recover from.
func NewSession(serviceName, environment, region string) Session {
	id := fmt.Sprintf("%s-%s-%s",
		strings.ToLower(serviceName),
		time.Now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8])
	return Session{
		ID:          id,
		ServiceName: serviceName,
		Environment: environment,
		Region:      region,
	}
}

// ResourceSet holds the handles for one attempt's provisioned test
// infrastructure. It is exclusively owned by the attempt that created it and
// must be reclaimed before the next attempt for the same requirement
// provisions a new one.
type ResourceSet struct {
	InstanceID string `json:"instance_id,omitempty"`
	NetworkID  string `json:"network_id,omitempty"`
	BoundaryID string `json:"boundary_id,omitempty"`
	SubnetID   string `json:"subnet_id,omitempty"`
	GatewayID  string `json:"gateway_id,omitempty"`

	// Details carries provider-specific facts captured at provision time
	// (IPs, metadata options) used by validators.
	Details *InstanceDetails `json:"details,omitempty"`
}

// Empty reports whether the set holds no reclaimable handles.
func (rs *ResourceSet) Empty() bool {
	if rs == nil {
		return true
	}
	return rs.InstanceID == "" && rs.NetworkID == "" && rs.BoundaryID == "" &&
		rs.SubnetID == "" && rs.GatewayID == ""
}

// MetadataOptions describes an instance's metadata service configuration.
type MetadataOptions struct {
	HTTPTokens   string `json:"http_tokens,omitempty"`
	HTTPEndpoint string `json:"http_endpoint,omitempty"`
	HopLimit     int32  `json:"hop_limit,omitempty"`
}

// IngressRule is one inbound rule on the instance's security boundary.
type IngressRule struct {
	Protocol string `json:"protocol"`
	FromPort int32  `json:"from_port"`
	ToPort   int32  `json:"to_port"`
	CIDR     string `json:"cidr"`
}

// InstanceDetails are the observed facts about a provisioned instance that
// validation checks assert against.
type InstanceDetails struct {
	State                string          `json:"state,omitempty"`
	PrivateIP            string          `json:"private_ip,omitempty"`
	PublicIP             string          `json:"public_ip,omitempty"`
	Metadata             MetadataOptions `json:"metadata_options,omitempty"`
	RootVolumeEncrypted  bool            `json:"root_volume_encrypted,omitempty"`
	IngressRules         []IngressRule   `json:"ingress_rules,omitempty"`
	PublicIPAddressGiven bool            `json:"public_ip_assigned,omitempty"`
}

// CheckResult is the outcome of one named validation check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ValidationResult is the outcome of validating one attempt's resource set.
// It is transient: the requirement loop consumes it immediately to decide
// retry vs terminal, and it is never persisted.
type ValidationResult struct {
	Success bool          `json:"success"`
	Checks  []CheckResult `json:"test_results,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// FailedChecks returns the checks that did not pass.
func (v *ValidationResult) FailedChecks() []CheckResult {
	var failed []CheckResult
	for _, c := range v.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Refinement is a refiner's proposed configuration revision.
type Refinement struct {
	Configuration map[string]any `json:"refined_configuration"`
	Notes         []string       `json:"notes,omitempty"`
}

// ReclaimedResource records one teardown action taken by the reclaimer.
type ReclaimedResource struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Action string `json:"action"`
}

// CleanupReport accumulates the outcome of a reclamation pass. Errors are
// recorded for observability but never escalate: a reclamation failure must
// never fail the loop or the run.
type CleanupReport struct {
	Reclaimed []ReclaimedResource `json:"cleanup_results,omitempty"`
	Errors    []string            `json:"errors,omitempty"`
}

// Add records a completed teardown action.
func (c *CleanupReport) Add(resourceType, id, action string) {
	c.Reclaimed = append(c.Reclaimed, ReclaimedResource{Type: resourceType, ID: id, Action: action})
}

// AddError records a non-fatal teardown error.
func (c *CleanupReport) AddError(format string, args ...any) {
	c.Errors = append(c.Errors, fmt.Sprintf(format, args...))
}

// Merge folds another report into this one.
func (c *CleanupReport) Merge(other CleanupReport) {
	c.Reclaimed = append(c.Reclaimed, other.Reclaimed...)
	c.Errors = append(c.Errors, other.Errors...)
}
