package hetzner

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/util/poll"
	"github.com/secbase/secbase/internal/util/retry"
)

// Reclaim tears down one attempt's resource set: server first, then the
// firewall, then the network. Already-absent resources count as reclaimed
// and errors only go into the report.
func (c *Client) Reclaim(ctx context.Context, set *baseline.ResourceSet) baseline.CleanupReport {
	var report baseline.CleanupReport
	if set.Empty() {
		return report
	}

	if set.InstanceID != "" {
		c.reclaimServer(ctx, set.InstanceID, &report)
	}
	if set.BoundaryID != "" {
		c.reclaimFirewall(ctx, set.BoundaryID, &report)
	}
	if set.NetworkID != "" {
		c.reclaimNetwork(ctx, set.NetworkID, &report)
	}
	return report
}

func (c *Client) reclaimServer(ctx context.Context, instanceID string, report *baseline.CleanupReport) {
	serverID, err := parseID(instanceID)
	if err != nil {
		report.AddError("%v", err)
		return
	}

	_, _, err = c.servers.DeleteWithResult(ctx, &hcloud.Server{ID: serverID})
	if err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			report.Add("server", instanceID, "already_deleted")
			return
		}
		report.AddError("failed to delete server %s: %v", instanceID, err)
		return
	}

	// The firewall stays undeletable until the server is fully gone.
	err = poll.Until(ctx, c.timeouts.PollInterval, c.timeouts.InstanceTerminated, func(ctx context.Context) (bool, error) {
		server, _, err := c.servers.GetByID(ctx, serverID)
		if err != nil {
			if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
				return true, nil
			}
			return false, err
		}
		return server == nil, nil
	})
	if err != nil {
		report.AddError("server %s still present after delete: %v", instanceID, err)
		return
	}
	report.Add("server", instanceID, "deleted")
}

// reclaimFirewall deletes a firewall, retrying while it is still attached
// to a server that is being deleted.
func (c *Client) reclaimFirewall(ctx context.Context, boundaryID string, report *baseline.CleanupReport) {
	firewallID, err := parseID(boundaryID)
	if err != nil {
		report.AddError("%v", err)
		return
	}

	err = retry.Do(ctx, func() error {
		_, err := c.firewalls.Delete(ctx, &hcloud.Firewall{ID: firewallID})
		if err == nil || hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return nil
		}
		if hcloud.IsError(err, hcloud.ErrorCodeResourceInUse) {
			return err
		}
		return retry.Fatal(err)
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		report.AddError("failed to delete firewall %s: %v", boundaryID, err)
		return
	}
	report.Add("firewall", boundaryID, "deleted")
}

func (c *Client) reclaimNetwork(ctx context.Context, networkID string, report *baseline.CleanupReport) {
	id, err := parseID(networkID)
	if err != nil {
		report.AddError("%v", err)
		return
	}

	if _, err := c.networks.Delete(ctx, &hcloud.Network{ID: id}); err != nil {
		if !hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			report.AddError("failed to delete network %s: %v", networkID, err)
			return
		}
	}
	report.Add("network", networkID, "deleted")
}

// ReclaimSession deletes every resource labeled with the session id:
// servers, then firewalls, then networks. It discovers by label selector
// and is safe to run repeatedly.
func (c *Client) ReclaimSession(ctx context.Context, sessionID string) baseline.CleanupReport {
	var report baseline.CleanupReport
	selector := fmt.Sprintf("%s=%s", LabelSession, sessionID)
	log := c.log.With(zap.String("session_id", sessionID))
	log.Info("sweeping session resources", zap.String("selector", selector))

	c.sweepServers(ctx, selector, &report)
	c.sweepFirewalls(ctx, selector, &report)
	c.sweepNetworks(ctx, selector, &report)

	log.Info("session sweep finished",
		zap.Int("reclaimed", len(report.Reclaimed)),
		zap.Int("errors", len(report.Errors)))
	return report
}

func (c *Client) sweepServers(ctx context.Context, selector string, report *baseline.CleanupReport) {
	servers, err := c.servers.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		report.AddError("failed to list session servers: %v", err)
		return
	}
	for _, server := range servers {
		c.reclaimServer(ctx, formatID(server.ID), report)
	}
}

func (c *Client) sweepFirewalls(ctx context.Context, selector string, report *baseline.CleanupReport) {
	firewalls, err := c.firewalls.AllWithOpts(ctx, hcloud.FirewallListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		report.AddError("failed to list session firewalls: %v", err)
		return
	}
	for _, firewall := range firewalls {
		c.reclaimFirewall(ctx, formatID(firewall.ID), report)
	}
}

func (c *Client) sweepNetworks(ctx context.Context, selector string, report *baseline.CleanupReport) {
	networks, err := c.networks.AllWithOpts(ctx, hcloud.NetworkListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		report.AddError("failed to list session networks: %v", err)
		return
	}
	for _, network := range networks {
		c.reclaimNetwork(ctx, formatID(network.ID), report)
	}
}
