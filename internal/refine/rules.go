// Package refine proposes revised security configurations from validation
// failure detail.
//
// Two refiners are provided: ModelRefiner consults a generative model, and
// RuleRefiner applies deterministic, attempt-staged tightening. Chain runs
// the model first and falls back to the rules, so a session can always make
// refinement progress offline.
package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/secbase/secbase/internal/baseline"
)

// RuleRefiner tightens configurations deterministically, escalating
// restrictions with each attempt.
type RuleRefiner struct{}

// NewRuleRefiner creates the deterministic fallback refiner.
func NewRuleRefiner() *RuleRefiner {
	return &RuleRefiner{}
}

// Refine returns a stricter configuration derived from the requirement's
// category and the attempt number.
func (r *RuleRefiner) Refine(_ context.Context, req *baseline.Requirement, result *baseline.ValidationResult, attempt int) (*baseline.Refinement, error) {
	refined := cloneConfig(req.Configuration)
	description := strings.ToLower(req.Description)
	objective := strings.ToLower(req.Objective)

	switch {
	case strings.Contains(description, "metadata") || strings.Contains(description, "imds"):
		refineMetadata(refined, attempt)
	case strings.Contains(objective, "encryption"):
		refineEncryption(refined)
	case strings.Contains(objective, "network") || strings.Contains(objective, "access control"):
		refineNetwork(refined, attempt)
	default:
		// Nothing rule-based to tighten for this category.
		return nil, fmt.Errorf("no refinement rule for objective %q", req.Objective)
	}

	return &baseline.Refinement{
		Configuration: refined,
		Notes: []string{
			fmt.Sprintf("Configuration refined based on test failure analysis - Attempt %d", attempt),
			fmt.Sprintf("Original validation error: %s", errorOf(result)),
		},
	}, nil
}

// refineMetadata escalates metadata service restrictions: first require
// tokens, then disable the endpoint entirely.
func refineMetadata(cfg map[string]any, attempt int) {
	options, _ := cfg["MetadataOptions"].(map[string]any)
	if options == nil {
		options = make(map[string]any)
	}
	switch {
	case attempt <= 1:
		options["HttpTokens"] = "required"
		options["HttpEndpoint"] = "enabled"
		options["HttpPutResponseHopLimit"] = 1
	default:
		options["HttpTokens"] = "required"
		options["HttpEndpoint"] = "disabled"
	}
	cfg["MetadataOptions"] = options
}

// refineNetwork removes public exposure, then adds further hardening.
func refineNetwork(cfg map[string]any, attempt int) {
	cfg["AssociatePublicIpAddress"] = false
	if attempt >= 2 {
		cfg["EbsOptimized"] = true
	}
}

// refineEncryption forces an encrypted root volume mapping.
func refineEncryption(cfg map[string]any) {
	if _, ok := cfg["BlockDeviceMappings"]; ok {
		cfg["Encrypted"] = true
		return
	}
	cfg["BlockDeviceMappings"] = []any{
		map[string]any{
			"DeviceName": "/dev/xvda",
			"Ebs": map[string]any{
				"VolumeSize":          8,
				"VolumeType":          "gp3",
				"Encrypted":           true,
				"DeleteOnTermination": true,
			},
		},
	}
}

// cloneConfig deep-copies a configuration document so refinement never
// mutates the requirement's current configuration in place.
func cloneConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneConfig(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func errorOf(result *baseline.ValidationResult) string {
	if result == nil || result.Error == "" {
		return "test validation failed"
	}
	return result.Error
}
