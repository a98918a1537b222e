// Package hetzner is the Hetzner Cloud provisioning backend. It mirrors the
// AWS backend's contracts with servers, firewalls and private networks, and
// reclaims session leftovers through label selectors.
package hetzner

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/config"
)

// Label keys stamped on every provisioned resource. Hetzner label keys are
// lowercase, so these differ from the AWS tag keys by convention only.
const (
	LabelSession     = "session"
	LabelPurpose     = "purpose"
	LabelRequirement = "requirement"

	PurposeBaselineTesting = "security-baseline-testing"
)

// ServerAPI is the slice of the hcloud server client the backend uses.
type ServerAPI interface {
	Create(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error)
	GetByID(ctx context.Context, id int64) (*hcloud.Server, *hcloud.Response, error)
	DeleteWithResult(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error)
	AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
}

// NetworkAPI is the slice of the hcloud network client the backend uses.
type NetworkAPI interface {
	Create(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, *hcloud.Response, error)
	GetByID(ctx context.Context, id int64) (*hcloud.Network, *hcloud.Response, error)
	Delete(ctx context.Context, network *hcloud.Network) (*hcloud.Response, error)
	AllWithOpts(ctx context.Context, opts hcloud.NetworkListOpts) ([]*hcloud.Network, error)
}

// FirewallAPI is the slice of the hcloud firewall client the backend uses.
type FirewallAPI interface {
	Create(ctx context.Context, opts hcloud.FirewallCreateOpts) (hcloud.FirewallCreateResult, *hcloud.Response, error)
	GetByID(ctx context.Context, id int64) (*hcloud.Firewall, *hcloud.Response, error)
	Delete(ctx context.Context, firewall *hcloud.Firewall) (*hcloud.Response, error)
	AllWithOpts(ctx context.Context, opts hcloud.FirewallListOpts) ([]*hcloud.Firewall, error)
}

// Client implements the provisioner, inspector and reclaimer contracts on
// Hetzner Cloud.
type Client struct {
	servers   ServerAPI
	networks  NetworkAPI
	firewalls FirewallAPI
	timeouts  *config.Timeouts
	log       *zap.Logger

	serverType string
	image      string
	location   string
}

// Option configures a Client.
type Option func(*Client)

// WithServerType overrides the default server type.
func WithServerType(name string) Option {
	return func(c *Client) { c.serverType = name }
}

// WithImage overrides the default server image.
func WithImage(name string) Option {
	return func(c *Client) { c.image = name }
}

// WithLocation overrides the default location.
func WithLocation(name string) Option {
	return func(c *Client) { c.location = name }
}

// WithTimeouts overrides the default timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

// NewClient creates a client from an API token.
func NewClient(token string, log *zap.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("hetzner backend requires an API token")
	}
	hc := hcloud.NewClient(hcloud.WithToken(token))
	return NewClientWithAPIs(&hc.Server, &hc.Network, &hc.Firewall, log, opts...), nil
}

// NewClientWithAPIs creates a client over explicit API implementations,
// used by tests with mocks.
func NewClientWithAPIs(servers ServerAPI, networks NetworkAPI, firewalls FirewallAPI, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		servers:    servers,
		networks:   networks,
		firewalls:  firewalls,
		timeouts:   config.LoadTimeouts(),
		log:        log,
		serverType: "cx22",
		image:      "ubuntu-24.04",
		location:   "fsn1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
