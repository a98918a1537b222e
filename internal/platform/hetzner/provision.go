package hetzner

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/util/naming"
	"github.com/secbase/secbase/internal/util/poll"
)

const (
	networkCIDR = "10.0.0.0/16"
	subnetCIDR  = "10.0.1.0/24"
)

// Deploy provisions a private network, a firewall, and a server for one
// requirement attempt. The returned set carries partial handles on error so
// the caller can still reclaim.
func (c *Client) Deploy(ctx context.Context, req *baseline.Requirement, session baseline.Session, index int) (*baseline.ResourceSet, error) {
	set := &baseline.ResourceSet{}
	labels := sessionLabels(session.ID, index)

	log := c.log.With(zap.String("session_id", session.ID), zap.Int("requirement", index))
	log.Info("provisioning test infrastructure", zap.String("objective", req.Objective))

	network, err := c.createNetwork(ctx, session.ID, labels)
	if err != nil {
		return set, err
	}
	set.NetworkID = formatID(network.ID)

	firewall, err := c.createFirewall(ctx, session.ID, index, labels)
	if err != nil {
		return set, err
	}
	set.BoundaryID = formatID(firewall.ID)

	server, err := c.createServer(ctx, req, session, index, network, firewall, labels)
	if err != nil {
		return set, err
	}
	set.InstanceID = formatID(server.ID)

	if err := c.waitServerRunning(ctx, server.ID); err != nil {
		return set, err
	}
	log.Info("server running", zap.String("server_id", set.InstanceID))

	details, err := c.Inspect(ctx, set)
	if err != nil {
		return set, fmt.Errorf("failed to inspect provisioned server: %w", err)
	}
	set.Details = details
	return set, nil
}

func (c *Client) createNetwork(ctx context.Context, sessionID string, labels map[string]string) (*hcloud.Network, error) {
	_, ipRange, err := net.ParseCIDR(networkCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid network CIDR: %w", err)
	}
	_, subnetRange, err := net.ParseCIDR(subnetCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet CIDR: %w", err)
	}

	network, _, err := c.networks.Create(ctx, hcloud.NetworkCreateOpts{
		Name:    naming.Network(sessionID),
		IPRange: ipRange,
		Labels:  labels,
		Subnets: []hcloud.NetworkSubnet{{
			Type:        hcloud.NetworkSubnetTypeCloud,
			IPRange:     subnetRange,
			NetworkZone: hcloud.NetworkZoneEUCentral,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	return network, nil
}

func (c *Client) createFirewall(ctx context.Context, sessionID string, index int, labels map[string]string) (*hcloud.Firewall, error) {
	_, intraNet, err := net.ParseCIDR(networkCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid network CIDR: %w", err)
	}

	result, _, err := c.firewalls.Create(ctx, hcloud.FirewallCreateOpts{
		Name:   naming.SecurityBoundary(sessionID, index),
		Labels: labels,
		Rules: []hcloud.FirewallRule{{
			Direction: hcloud.FirewallRuleDirectionIn,
			Protocol:  hcloud.FirewallRuleProtocolTCP,
			Port:      hcloud.Ptr("22"),
			SourceIPs: []net.IPNet{*intraNet},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create firewall: %w", err)
	}
	return result.Firewall, nil
}

func (c *Client) createServer(ctx context.Context, req *baseline.Requirement, session baseline.Session, index int, network *hcloud.Network, firewall *hcloud.Firewall, labels map[string]string) (*hcloud.Server, error) {
	publicIP := false
	if v, ok := req.Configuration["AssociatePublicIpAddress"].(bool); ok {
		publicIP = v
	}

	result, _, err := c.servers.Create(ctx, hcloud.ServerCreateOpts{
		Name:       naming.Instance(session.ID, index),
		ServerType: &hcloud.ServerType{Name: c.serverType},
		Image:      &hcloud.Image{Name: c.image},
		Location:   &hcloud.Location{Name: c.location},
		Labels:     labels,
		Networks:   []*hcloud.Network{network},
		Firewalls:  []*hcloud.ServerCreateFirewall{{Firewall: *firewall}},
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: publicIP,
			EnableIPv6: publicIP,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return result.Server, nil
}

func (c *Client) waitServerRunning(ctx context.Context, serverID int64) error {
	err := poll.Until(ctx, c.timeouts.PollInterval, c.timeouts.InstanceRunning, func(ctx context.Context) (bool, error) {
		server, _, err := c.servers.GetByID(ctx, serverID)
		if err != nil {
			return false, err
		}
		if server == nil {
			return false, fmt.Errorf("server %d disappeared while waiting for running status", serverID)
		}
		return server.Status == hcloud.ServerStatusRunning, nil
	})
	if err != nil {
		return fmt.Errorf("server %d did not reach running status: %w", serverID, err)
	}
	return nil
}

// Inspect maps the server's observed state into the validation model.
// Hetzner has no instance metadata service options; those checks only apply
// to the AWS backend.
func (c *Client) Inspect(ctx context.Context, set *baseline.ResourceSet) (*baseline.InstanceDetails, error) {
	if set == nil || set.InstanceID == "" {
		return nil, fmt.Errorf("no server to inspect")
	}
	serverID, err := parseID(set.InstanceID)
	if err != nil {
		return nil, err
	}

	server, _, err := c.servers.GetByID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %d: %w", serverID, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %d not found", serverID)
	}

	details := &baseline.InstanceDetails{
		State: string(server.Status),
	}
	if len(server.PrivateNet) > 0 {
		details.PrivateIP = server.PrivateNet[0].IP.String()
	}
	if server.PublicNet.IPv4.IP != nil && !server.PublicNet.IPv4.IP.IsUnspecified() {
		details.PublicIP = server.PublicNet.IPv4.IP.String()
		details.PublicIPAddressGiven = true
	}

	if set.BoundaryID != "" {
		rules, err := c.ingressRules(ctx, set.BoundaryID)
		if err != nil {
			return nil, err
		}
		details.IngressRules = rules
	}
	return details, nil
}

func (c *Client) ingressRules(ctx context.Context, boundaryID string) ([]baseline.IngressRule, error) {
	firewallID, err := parseID(boundaryID)
	if err != nil {
		return nil, err
	}
	firewall, _, err := c.firewalls.GetByID(ctx, firewallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get firewall %d: %w", firewallID, err)
	}
	if firewall == nil {
		return nil, nil
	}

	var rules []baseline.IngressRule
	for _, rule := range firewall.Rules {
		if rule.Direction != hcloud.FirewallRuleDirectionIn {
			continue
		}
		from, to := portRange(rule.Port)
		for _, src := range rule.SourceIPs {
			rules = append(rules, baseline.IngressRule{
				Protocol: string(rule.Protocol),
				FromPort: from,
				ToPort:   to,
				CIDR:     src.String(),
			})
		}
	}
	return rules, nil
}

// portRange parses hcloud's "80" or "80-85" port notation.
func portRange(port *string) (int32, int32) {
	if port == nil {
		return 0, 0
	}
	parts := strings.SplitN(*port, "-", 2)
	from, _ := strconv.ParseInt(parts[0], 10, 32)
	to := from
	if len(parts) == 2 {
		to, _ = strconv.ParseInt(parts[1], 10, 32)
	}
	return int32(from), int32(to)
}

func sessionLabels(sessionID string, index int) map[string]string {
	return map[string]string{
		LabelSession:     sessionID,
		LabelPurpose:     PurposeBaselineTesting,
		LabelRequirement: strconv.Itoa(index),
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resource id %q: %w", s, err)
	}
	return id, nil
}
