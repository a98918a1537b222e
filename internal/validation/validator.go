// Package validation runs category-specific security checks against
// provisioned test infrastructure.
//
// Checkers are platform-neutral: they assert against observed
// InstanceDetails supplied by a platform Inspector, never against provider
// SDK types. The checker for a requirement is selected from its objective
// and description, mirroring how requirements are categorized at
// generation time.
package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/secbase/secbase/internal/baseline"
)

// Inspector fetches the observed facts about a provisioned resource set.
// Implemented by the platform packages.
type Inspector interface {
	Inspect(ctx context.Context, set *baseline.ResourceSet) (*baseline.InstanceDetails, error)
}

// Checker runs one category of security checks. It returns the individual
// check results plus the overall verdict; a checker may treat some of its
// checks as advisory when deciding the verdict.
type Checker interface {
	Name() string
	Check(req *baseline.Requirement, details *baseline.InstanceDetails) (checks []baseline.CheckResult, ok bool)
}

// Service implements the validator collaborator by dispatching to a
// category checker.
type Service struct {
	inspector Inspector
}

// NewService creates a validation service backed by the given inspector.
func NewService(inspector Inspector) *Service {
	return &Service{inspector: inspector}
}

// Validate inspects the resource set and runs the checker selected for the
// requirement. An inspection fault is returned as an error; the loop treats
// it as a failed validation.
func (s *Service) Validate(ctx context.Context, req *baseline.Requirement, set *baseline.ResourceSet, sessionID string) (*baseline.ValidationResult, error) {
	details, err := s.inspector.Inspect(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect instance %s: %w", set.InstanceID, err)
	}

	checker := CheckerFor(req)
	checks, ok := checker.Check(req, details)

	result := &baseline.ValidationResult{Success: ok, Checks: checks}
	if !ok {
		var failed []string
		for _, c := range checks {
			if !c.Passed {
				failed = append(failed, c.Name)
			}
		}
		result.Error = fmt.Sprintf("%s validation failed: %s", checker.Name(), strings.Join(failed, ", "))
	}
	return result, nil
}

// CheckerFor selects the checker for a requirement from its description
// and objective.
func CheckerFor(req *baseline.Requirement) Checker {
	description := strings.ToLower(req.Description)
	objective := strings.ToLower(req.Objective)

	switch {
	case strings.Contains(description, "metadata") || strings.Contains(description, "imds"):
		return MetadataChecker{}
	case strings.Contains(objective, "encryption"):
		return EncryptionChecker{}
	case strings.Contains(objective, "network") || strings.Contains(objective, "access control"):
		return NetworkChecker{}
	default:
		return GeneralChecker{}
	}
}

// configSection returns a nested map from the requirement's opaque
// configuration document, or nil when absent.
func configSection(cfg map[string]any, key string) map[string]any {
	if cfg == nil {
		return nil
	}
	section, _ := cfg[key].(map[string]any)
	return section
}

// configString reads a string value from a configuration section.
func configString(section map[string]any, key string) string {
	if section == nil {
		return ""
	}
	s, _ := section[key].(string)
	return s
}

// configBool reads a boolean value and reports whether it was present.
func configBool(cfg map[string]any, key string) (value, present bool) {
	if cfg == nil {
		return false, false
	}
	v, ok := cfg[key].(bool)
	return v, ok
}
