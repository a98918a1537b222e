package validation

import (
	"fmt"

	"github.com/secbase/secbase/internal/baseline"
)

// Metadata option values as they appear in configurations and instance
// state.
const (
	tokensRequired   = "required"
	endpointEnabled  = "enabled"
	endpointDisabled = "disabled"
)

// MetadataChecker validates instance metadata service configuration: token
// enforcement, v1 lockout, and hop limit. The hop limit check is advisory;
// the other three decide the verdict.
type MetadataChecker struct{}

func (MetadataChecker) Name() string { return "IMDS" }

func (MetadataChecker) Check(req *baseline.Requirement, details *baseline.InstanceDetails) ([]baseline.CheckResult, bool) {
	checks := []baseline.CheckResult{
		checkMetadataConfiguration(req, details),
		checkIMDSv1Blocked(details),
		checkIMDSv2Tokens(details),
	}
	ok := true
	for _, c := range checks {
		if !c.Passed {
			ok = false
		}
	}
	checks = append(checks, checkHopLimit(details))
	return checks, ok
}

// checkMetadataConfiguration compares each expected MetadataOptions setting
// against the observed instance state.
func checkMetadataConfiguration(req *baseline.Requirement, details *baseline.InstanceDetails) baseline.CheckResult {
	expected := configSection(req.Configuration, "MetadataOptions")
	observed := map[string]string{
		"HttpTokens":   details.Metadata.HTTPTokens,
		"HttpEndpoint": details.Metadata.HTTPEndpoint,
	}

	for key, want := range expected {
		wantStr := fmt.Sprintf("%v", want)
		var got string
		switch key {
		case "HttpPutResponseHopLimit":
			got = fmt.Sprintf("%d", details.Metadata.HopLimit)
		default:
			got = observed[key]
		}
		if got != wantStr {
			return baseline.CheckResult{
				Name:   "MetadataOptions Configuration",
				Passed: false,
				Detail: fmt.Sprintf("%s: expected %q, got %q", key, wantStr, got),
			}
		}
	}
	return baseline.CheckResult{
		Name:   "MetadataOptions Configuration",
		Passed: true,
		Detail: "observed metadata options match the requirement configuration",
	}
}

// checkIMDSv1Blocked verifies IMDSv1 is unreachable, either because tokens
// are required or the endpoint is disabled entirely.
func checkIMDSv1Blocked(details *baseline.InstanceDetails) baseline.CheckResult {
	tokens := details.Metadata.HTTPTokens
	if tokens == tokensRequired || details.Metadata.HTTPEndpoint == endpointDisabled {
		return baseline.CheckResult{
			Name:   "IMDSv1 Access Block",
			Passed: true,
			Detail: "IMDSv1 requests are blocked",
		}
	}
	return baseline.CheckResult{
		Name:   "IMDSv1 Access Block",
		Passed: false,
		Detail: fmt.Sprintf("IMDSv1 is still accessible (HttpTokens: %s)", tokens),
	}
}

// checkIMDSv2Tokens verifies token enforcement: either tokens are required
// with the endpoint enabled, or the endpoint is disabled for maximum
// restriction.
func checkIMDSv2Tokens(details *baseline.InstanceDetails) baseline.CheckResult {
	tokens := details.Metadata.HTTPTokens
	endpoint := details.Metadata.HTTPEndpoint

	switch {
	case endpoint == endpointDisabled:
		return baseline.CheckResult{
			Name:   "IMDSv2 Token Requirement",
			Passed: true,
			Detail: "metadata endpoint disabled entirely",
		}
	case tokens == tokensRequired && endpoint == endpointEnabled:
		return baseline.CheckResult{
			Name:   "IMDSv2 Token Requirement",
			Passed: true,
			Detail: "session tokens required for all metadata access",
		}
	default:
		return baseline.CheckResult{
			Name:   "IMDSv2 Token Requirement",
			Passed: false,
			Detail: fmt.Sprintf("token requirement not enforced (HttpTokens: %s, HttpEndpoint: %s)", tokens, endpoint),
		}
	}
}

// checkHopLimit flags hop limits above 1, which allow metadata access from
// containers and forwarded requests. Advisory only.
func checkHopLimit(details *baseline.InstanceDetails) baseline.CheckResult {
	if details.Metadata.HTTPEndpoint == endpointDisabled || details.Metadata.HopLimit == 1 {
		return baseline.CheckResult{
			Name:   "IMDS Hop Limit",
			Passed: true,
			Detail: "hop limit restricts metadata access to the instance itself",
		}
	}
	return baseline.CheckResult{
		Name:   "IMDS Hop Limit",
		Passed: false,
		Detail: fmt.Sprintf("hop limit is %d, consider reducing to 1", details.Metadata.HopLimit),
	}
}
