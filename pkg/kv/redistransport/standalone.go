package redistransport

import (
	"crypto/tls"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// NewStandalone builds a transport for a single node. It does not connect.
// A non-empty keyPrefix namespaces every key argument.
func NewStandalone(cfg kv.Config, name, keyPrefix string, opts ...Option) *Transport {
	options := &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		ClientName:   name,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if cfg.DB != nil {
		options.DB = *cfg.DB
	}
	if cfg.TLS {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.Host,
		}
	}

	client := redis.NewClient(options)
	t := newTransport(client, DefaultStandaloneRetry(), opts)

	client.AddHook(observer{t: t})
	if keyPrefix != "" {
		client.AddHook(keyPrefixer{prefix: keyPrefix})
	}
	return t
}

// Client returns the typed standalone client
func (t *Transport) Client() *redis.Client {
	client, _ := t.client.(*redis.Client)
	return client
}
