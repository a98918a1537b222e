package hetzner

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MockServerAPI is a func-field mock of ServerAPI. A nil func returns an
// empty success response.
type MockServerAPI struct {
	CreateFunc           func(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error)
	GetByIDFunc          func(ctx context.Context, id int64) (*hcloud.Server, *hcloud.Response, error)
	DeleteWithResultFunc func(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error)
	AllWithOptsFunc      func(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
}

func (m *MockServerAPI) Create(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
	if m.CreateFunc == nil {
		return hcloud.ServerCreateResult{}, nil, nil
	}
	return m.CreateFunc(ctx, opts)
}

func (m *MockServerAPI) GetByID(ctx context.Context, id int64) (*hcloud.Server, *hcloud.Response, error) {
	if m.GetByIDFunc == nil {
		return nil, nil, nil
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockServerAPI) DeleteWithResult(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error) {
	if m.DeleteWithResultFunc == nil {
		return &hcloud.ServerDeleteResult{}, nil, nil
	}
	return m.DeleteWithResultFunc(ctx, server)
}

func (m *MockServerAPI) AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error) {
	if m.AllWithOptsFunc == nil {
		return nil, nil
	}
	return m.AllWithOptsFunc(ctx, opts)
}

// MockNetworkAPI is a func-field mock of NetworkAPI.
type MockNetworkAPI struct {
	CreateFunc      func(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, *hcloud.Response, error)
	GetByIDFunc     func(ctx context.Context, id int64) (*hcloud.Network, *hcloud.Response, error)
	DeleteFunc      func(ctx context.Context, network *hcloud.Network) (*hcloud.Response, error)
	AllWithOptsFunc func(ctx context.Context, opts hcloud.NetworkListOpts) ([]*hcloud.Network, error)
}

func (m *MockNetworkAPI) Create(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, *hcloud.Response, error) {
	if m.CreateFunc == nil {
		return &hcloud.Network{}, nil, nil
	}
	return m.CreateFunc(ctx, opts)
}

func (m *MockNetworkAPI) GetByID(ctx context.Context, id int64) (*hcloud.Network, *hcloud.Response, error) {
	if m.GetByIDFunc == nil {
		return nil, nil, nil
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockNetworkAPI) Delete(ctx context.Context, network *hcloud.Network) (*hcloud.Response, error) {
	if m.DeleteFunc == nil {
		return nil, nil
	}
	return m.DeleteFunc(ctx, network)
}

func (m *MockNetworkAPI) AllWithOpts(ctx context.Context, opts hcloud.NetworkListOpts) ([]*hcloud.Network, error) {
	if m.AllWithOptsFunc == nil {
		return nil, nil
	}
	return m.AllWithOptsFunc(ctx, opts)
}

// MockFirewallAPI is a func-field mock of FirewallAPI.
type MockFirewallAPI struct {
	CreateFunc      func(ctx context.Context, opts hcloud.FirewallCreateOpts) (hcloud.FirewallCreateResult, *hcloud.Response, error)
	GetByIDFunc     func(ctx context.Context, id int64) (*hcloud.Firewall, *hcloud.Response, error)
	DeleteFunc      func(ctx context.Context, firewall *hcloud.Firewall) (*hcloud.Response, error)
	AllWithOptsFunc func(ctx context.Context, opts hcloud.FirewallListOpts) ([]*hcloud.Firewall, error)
}

func (m *MockFirewallAPI) Create(ctx context.Context, opts hcloud.FirewallCreateOpts) (hcloud.FirewallCreateResult, *hcloud.Response, error) {
	if m.CreateFunc == nil {
		return hcloud.FirewallCreateResult{}, nil, nil
	}
	return m.CreateFunc(ctx, opts)
}

func (m *MockFirewallAPI) GetByID(ctx context.Context, id int64) (*hcloud.Firewall, *hcloud.Response, error) {
	if m.GetByIDFunc == nil {
		return nil, nil, nil
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockFirewallAPI) Delete(ctx context.Context, firewall *hcloud.Firewall) (*hcloud.Response, error) {
	if m.DeleteFunc == nil {
		return nil, nil
	}
	return m.DeleteFunc(ctx, firewall)
}

func (m *MockFirewallAPI) AllWithOpts(ctx context.Context, opts hcloud.FirewallListOpts) ([]*hcloud.Firewall, error) {
	if m.AllWithOptsFunc == nil {
		return nil, nil
	}
	return m.AllWithOptsFunc(ctx, opts)
}
