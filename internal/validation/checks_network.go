package validation

import (
	"fmt"
	"strings"

	"github.com/secbase/secbase/internal/baseline"
)

const anyCIDR = "0.0.0.0/0"

// NetworkChecker validates network exposure: public IP assignment and
// security boundary ingress rules.
type NetworkChecker struct{}

func (NetworkChecker) Name() string { return "network" }

func (NetworkChecker) Check(req *baseline.Requirement, details *baseline.InstanceDetails) ([]baseline.CheckResult, bool) {
	checks := []baseline.CheckResult{
		checkPublicIP(req, details),
		checkIngressExposure(details),
	}
	ok := true
	for _, c := range checks {
		if !c.Passed {
			ok = false
		}
	}
	return checks, ok
}

// checkPublicIP verifies public IP assignment matches the configuration.
// Absent configuration means no public IP, the secure default.
func checkPublicIP(req *baseline.Requirement, details *baseline.InstanceDetails) baseline.CheckResult {
	wantPublic, present := configBool(req.Configuration, "AssociatePublicIpAddress")
	if !present {
		wantPublic = false
	}

	if details.PublicIPAddressGiven == wantPublic {
		return baseline.CheckResult{
			Name:   "Public IP Assignment",
			Passed: true,
			Detail: fmt.Sprintf("public ip assignment matches configuration (assigned: %t)", wantPublic),
		}
	}
	return baseline.CheckResult{
		Name:   "Public IP Assignment",
		Passed: false,
		Detail: fmt.Sprintf("expected public ip assigned=%t, instance has %q", wantPublic, details.PublicIP),
	}
}

// checkIngressExposure verifies no ingress rule is open to the whole
// internet.
func checkIngressExposure(details *baseline.InstanceDetails) baseline.CheckResult {
	var open []string
	for _, rule := range details.IngressRules {
		if rule.CIDR == anyCIDR {
			open = append(open, fmt.Sprintf("%s %d-%d from %s", rule.Protocol, rule.FromPort, rule.ToPort, rule.CIDR))
		}
	}
	if len(open) == 0 {
		return baseline.CheckResult{
			Name:   "Ingress Exposure",
			Passed: true,
			Detail: "no ingress rule is open to 0.0.0.0/0",
		}
	}
	return baseline.CheckResult{
		Name:   "Ingress Exposure",
		Passed: false,
		Detail: "world-open ingress: " + strings.Join(open, ", "),
	}
}

// EncryptionChecker validates storage encryption settings.
type EncryptionChecker struct{}

func (EncryptionChecker) Name() string { return "encryption" }

func (EncryptionChecker) Check(req *baseline.Requirement, details *baseline.InstanceDetails) ([]baseline.CheckResult, bool) {
	check := checkRootVolumeEncryption(req, details)
	return []baseline.CheckResult{check}, check.Passed
}

// checkRootVolumeEncryption verifies the root volume is encrypted whenever
// the configuration asks for encryption, via either the Encrypted shorthand
// or explicit block device mappings.
func checkRootVolumeEncryption(req *baseline.Requirement, details *baseline.InstanceDetails) baseline.CheckResult {
	wantEncrypted, present := configBool(req.Configuration, "Encrypted")
	if !present {
		// Block device mappings in the configuration imply encryption is
		// the point of this requirement.
		_, hasMappings := req.Configuration["BlockDeviceMappings"]
		wantEncrypted = hasMappings
	}

	if !wantEncrypted || details.RootVolumeEncrypted {
		return baseline.CheckResult{
			Name:   "Root Volume Encryption",
			Passed: true,
			Detail: fmt.Sprintf("root volume encrypted: %t", details.RootVolumeEncrypted),
		}
	}
	return baseline.CheckResult{
		Name:   "Root Volume Encryption",
		Passed: false,
		Detail: "configuration requires encryption but the root volume is not encrypted",
	}
}

// GeneralChecker is the default comprehensive checker for requirements that
// fit no specific category: instance health, public exposure, and token
// enforcement together.
type GeneralChecker struct{}

func (GeneralChecker) Name() string { return "access control" }

func (GeneralChecker) Check(req *baseline.Requirement, details *baseline.InstanceDetails) ([]baseline.CheckResult, bool) {
	checks := []baseline.CheckResult{
		checkInstanceRunning(details),
		checkPublicIP(req, details),
		checkIMDSv2Tokens(details),
	}
	ok := true
	for _, c := range checks {
		if !c.Passed {
			ok = false
		}
	}
	return checks, ok
}

// checkInstanceRunning verifies the instance reached a healthy running
// state with the configuration applied.
func checkInstanceRunning(details *baseline.InstanceDetails) baseline.CheckResult {
	if details.State == "running" {
		return baseline.CheckResult{
			Name:   "Instance State",
			Passed: true,
			Detail: "instance is running with the configuration applied",
		}
	}
	return baseline.CheckResult{
		Name:   "Instance State",
		Passed: false,
		Detail: fmt.Sprintf("instance is in state %q, expected running", details.State),
	}
}
