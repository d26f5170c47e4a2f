package redistransport

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// ClusterTuning is the typed form of kv.Config.ClusterOptions
type ClusterTuning struct {
	MaxRedirects   int           `mapstructure:"max-redirects"`
	ReadOnly       bool          `mapstructure:"read-only"`
	RouteByLatency bool          `mapstructure:"route-by-latency"`
	RouteRandomly  bool          `mapstructure:"route-randomly"`
	PoolSize       int           `mapstructure:"pool-size"`
	MinIdleConns   int           `mapstructure:"min-idle-conns"`
	DialTimeout    time.Duration `mapstructure:"dial-timeout"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout"`

	// RetryBaseDelay, RetryStep and RetryMaxDelay shape the reconnect strategy
	RetryBaseDelay time.Duration `mapstructure:"retry-base-delay"`
	RetryStep      time.Duration `mapstructure:"retry-step"`
	RetryMaxDelay  time.Duration `mapstructure:"retry-max-delay"`
}

// DefaultClusterTuning returns the tuning used for absent keys
func DefaultClusterTuning() ClusterTuning {
	return ClusterTuning{
		MaxRedirects:   3,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryStep:      2 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
	}
}

// DecodeClusterTuning decodes raw cluster options over the defaults. Durations
// may be strings such as "250ms". Unknown keys are rejected.
func DecodeClusterTuning(raw map[string]any) (ClusterTuning, error) {
	tuning := DefaultClusterTuning()
	if len(raw) == 0 {
		return tuning, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tuning,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return tuning, err
	}
	if err := decoder.Decode(raw); err != nil {
		return tuning, fmt.Errorf("%w: cluster options: %v", kv.ErrConfiguration, err)
	}
	return tuning, nil
}

// RetryStrategy returns the reconnect strategy described by the tuning
func (c ClusterTuning) RetryStrategy() RetryStrategy {
	return LinearRetry(c.RetryBaseDelay, c.RetryStep, c.RetryMaxDelay)
}

// NewCluster builds a transport over the cluster seed endpoints. It does not connect.
func NewCluster(cfg kv.Config, name string, opts ...Option) (*Transport, error) {
	endpoints, err := kv.ParseEndpoints(cfg.URLs)
	if err != nil {
		return nil, err
	}
	tuning, err := DecodeClusterTuning(cfg.ClusterOptions)
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		addrs = append(addrs, ep.Addr())
	}

	options := &redis.ClusterOptions{
		Addrs:          addrs,
		ClientName:     name,
		Password:       cfg.Password,
		MaxRedirects:   tuning.MaxRedirects,
		ReadOnly:       tuning.ReadOnly,
		RouteByLatency: tuning.RouteByLatency,
		RouteRandomly:  tuning.RouteRandomly,
		PoolSize:       tuning.PoolSize,
		MinIdleConns:   tuning.MinIdleConns,
		DialTimeout:    tuning.DialTimeout,
		ReadTimeout:    tuning.ReadTimeout,
		WriteTimeout:   tuning.WriteTimeout,
	}
	if cfg.TLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClusterClient(options)
	t := newTransport(client, tuning.RetryStrategy(), opts)

	client.AddHook(observer{t: t})
	// node clients do the dialing, so connect events come from them
	client.OnNewNode(func(node *redis.Client) {
		node.AddHook(dialOnly{observer{t: t}})
	})
	return t, nil
}

// ClusterClient returns the typed cluster client
func (t *Transport) ClusterClient() *redis.ClusterClient {
	client, _ := t.client.(*redis.ClusterClient)
	return client
}

// dialOnly forwards only the dial hook, so node-level command failures are
// not reported twice
type dialOnly struct {
	observer
}

func (d dialOnly) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (d dialOnly) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}
