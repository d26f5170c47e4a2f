package kv

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options holds the optional construction inputs shared by both topologies
type Options struct {
	// KeyPrefix namespaces every key. Honored by the standalone topology only.
	KeyPrefix string

	// Logger receives lifecycle logs. Nil discards them.
	Logger *zap.SugaredLogger

	// Recorder receives lifecycle measurements. Nil discards them.
	Recorder Recorder

	// ReadyTimeout bounds WaitUntilConnected. Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration
}

// Option configures Options
type Option func(*Options)

// WithKeyPrefix namespaces keys on standalone clients
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}

// WithLogger sets the logger the client binds its connection name to
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRecorder sets the lifecycle metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(o *Options) {
		o.Recorder = recorder
	}
}

// WithReadyTimeout overrides DefaultReadyTimeout
func WithReadyTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadyTimeout = d
	}
}

// NewOptions applies opts over the zero Options
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	return o
}

// ClientFactory builds a Client for one topology
type ClientFactory func(cfg Config, name string, opts Options) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Topology]ClientFactory)
)

// RegisterTopology registers the client factory for a topology
func RegisterTopology(topology Topology, factory ClientFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[topology] = factory
}

// NewClient validates cfg and builds the client registered for cfg.Topology.
// No network activity happens here; call WaitUntilConnected to connect.
// An empty name is replaced by a generated kvconn-<uuid> identity.
func NewClient(cfg Config, name string, opts ...Option) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	factory, exists := factories[cfg.Topology]
	factoriesMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s topology not registered", ErrConfiguration, cfg.Topology)
	}

	if name == "" {
		name = "kvconn-" + uuid.NewString()
	}

	return factory(cfg, name, NewOptions(opts...))
}
