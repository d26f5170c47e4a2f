// Package standalone provides the lifecycle-managed client for a single Redis node.
package standalone

import (
	"fmt"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/leafsii/kvconn/pkg/kv/redistransport"
	"github.com/redis/go-redis/v9"
)

// Client is the standalone lifecycle manager. Its WaitUntilConnected also fails
// on the transport's next error event (kv.StandalonePolicy).
type Client struct {
	*kv.Lifecycle
	transport *redistransport.Transport
}

var _ kv.Client = (*Client)(nil)

// New validates cfg and builds a client for cfg.Host:cfg.Port without connecting
func New(cfg kv.Config, name string, opts ...kv.Option) (*Client, error) {
	return newClient(cfg, name, kv.NewOptions(opts...))
}

func newClient(cfg kv.Config, name string, opts kv.Options, transportOpts ...redistransport.Option) (*Client, error) {
	if cfg.Topology != kv.TopologyStandalone {
		return nil, fmt.Errorf("%w: standalone client expects topology %s, got %q",
			kv.ErrConfiguration, kv.TopologyStandalone, cfg.Topology)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := redistransport.NewStandalone(cfg, name, opts.KeyPrefix, transportOpts...)
	return &Client{
		Lifecycle: kv.NewLifecycle(t, kv.TopologyStandalone, name, kv.StandalonePolicy, opts),
		transport: t,
	}, nil
}

// Redis returns the typed go-redis client
func (c *Client) Redis() *redis.Client {
	return c.transport.Client()
}
