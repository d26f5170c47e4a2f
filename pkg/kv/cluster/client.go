// Package cluster provides the lifecycle-managed client for a Redis cluster.
package cluster

import (
	"fmt"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/leafsii/kvconn/pkg/kv/redistransport"
	"github.com/redis/go-redis/v9"
)

// Client is the cluster lifecycle manager. Its WaitUntilConnected ignores error
// events and leaves recovery to the cluster retry strategy (kv.ClusterPolicy).
type Client struct {
	*kv.Lifecycle
	transport *redistransport.Transport
}

var _ kv.Client = (*Client)(nil)

// New validates cfg and builds a client over cfg.URLs without connecting.
// Key prefixes are not supported on clusters and are ignored.
func New(cfg kv.Config, name string, opts ...kv.Option) (*Client, error) {
	return newClient(cfg, name, kv.NewOptions(opts...))
}

func newClient(cfg kv.Config, name string, opts kv.Options, transportOpts ...redistransport.Option) (*Client, error) {
	if cfg.Topology != kv.TopologyCluster {
		return nil, fmt.Errorf("%w: cluster client expects topology %s, got %q",
			kv.ErrConfiguration, kv.TopologyCluster, cfg.Topology)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t, err := redistransport.NewCluster(cfg, name, transportOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Lifecycle: kv.NewLifecycle(t, kv.TopologyCluster, name, kv.ClusterPolicy, opts),
		transport: t,
	}
	if opts.KeyPrefix != "" && opts.Logger != nil {
		opts.Logger.Warnw("key prefix is not supported on cluster clients; ignoring",
			"connectionName", name, "keyPrefix", opts.KeyPrefix)
	}
	return c, nil
}

// Redis returns the typed go-redis cluster client
func (c *Client) Redis() *redis.ClusterClient {
	return c.transport.ClusterClient()
}
