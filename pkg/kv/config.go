package kv

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Topology is the deployment shape of the Redis endpoint
type Topology string

const (
	// TopologyStandalone is a single host:port endpoint
	TopologyStandalone Topology = "STANDALONE"
	// TopologyCluster is a set of host:port cluster seed endpoints
	TopologyCluster Topology = "CLUSTER"
)

// String returns the topology name
func (t Topology) String() string {
	return string(t)
}

// redactedPassword replaces passwords in String and JSON output.
const redactedPassword = "[REDACTED]"

// Config is the client configuration record. Only the fields of the selected
// topology may be set; Validate enforces that before any transport is built.
type Config struct {
	// Topology selects the client variant
	Topology Topology `json:"topology" mapstructure:"topology"`

	// Host and Port address a standalone node
	Host string `json:"host,omitempty" mapstructure:"host"`
	Port int    `json:"port,omitempty" mapstructure:"port"`

	// Password authenticates against standalone nodes and every cluster node
	Password string `json:"-" mapstructure:"password"`

	// TLS enables TLS on every connection
	TLS bool `json:"tls" mapstructure:"tls"`

	// DB is the standalone database index. Nil selects the server default.
	DB *int `json:"db,omitempty" mapstructure:"db"`

	// URLs lists cluster seed endpoints in host:port form
	URLs []string `json:"urls,omitempty" mapstructure:"urls"`

	// ClusterOptions carries cluster tuning passed through to the cluster transport
	ClusterOptions map[string]any `json:"cluster_options,omitempty" mapstructure:"cluster_options"`
}

// Endpoint is a parsed host:port pair
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the endpoint in host:port form
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Addr returns the standalone address in host:port form
func (c Config) Addr() string {
	return Endpoint{Host: c.Host, Port: c.Port}.Addr()
}

// Validate checks that the selected topology's required fields are present and
// that no field of the other topology is set.
func (c Config) Validate() error {
	switch c.Topology {
	case TopologyStandalone:
		return c.validateStandalone()
	case TopologyCluster:
		return c.validateCluster()
	case "":
		return fmt.Errorf("%w: topology is required (supported: %s, %s)",
			ErrConfiguration, TopologyStandalone, TopologyCluster)
	default:
		return fmt.Errorf("%w: unsupported topology %q (supported: %s, %s)",
			ErrConfiguration, c.Topology, TopologyStandalone, TopologyCluster)
	}
}

func (c Config) validateStandalone() error {
	if strings.TrimSpace(c.Host) == "" || c.Port == 0 {
		return fmt.Errorf("%w: standalone redis requires host and port", ErrConfiguration)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfiguration, c.Port)
	}
	if c.DB != nil && *c.DB < 0 {
		return fmt.Errorf("%w: database index %d is negative", ErrConfiguration, *c.DB)
	}
	if len(c.URLs) > 0 || len(c.ClusterOptions) > 0 {
		return fmt.Errorf("%w: cluster urls and options are not valid for a standalone topology", ErrConfiguration)
	}
	return nil
}

func (c Config) validateCluster() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("%w: cluster redis requires at least one url", ErrConfiguration)
	}
	if _, err := ParseEndpoints(c.URLs); err != nil {
		return err
	}
	if c.DB != nil {
		return fmt.Errorf("%w: database index is not supported by a cluster topology", ErrConfiguration)
	}
	return nil
}

// ParseEndpoints parses host:port cluster endpoints
func ParseEndpoints(urls []string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(urls))
	for _, raw := range urls {
		host, portStr, err := net.SplitHostPort(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: cluster url %q: %v", ErrConfiguration, raw, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: cluster url %q has an invalid port", ErrConfiguration, raw)
		}
		if host == "" {
			return nil, fmt.Errorf("%w: cluster url %q has no host", ErrConfiguration, raw)
		}
		endpoints = append(endpoints, Endpoint{Host: host, Port: port})
	}
	return endpoints, nil
}

// configForJSON mirrors Config with the password exposed as a redacted field.
type configForJSON struct {
	Topology       Topology       `json:"topology"`
	Host           string         `json:"host,omitempty"`
	Port           int            `json:"port,omitempty"`
	Password       string         `json:"password"`
	TLS            bool           `json:"tls"`
	DB             *int           `json:"db,omitempty"`
	URLs           []string       `json:"urls,omitempty"`
	ClusterOptions map[string]any `json:"cluster_options,omitempty"`
}

// MarshalJSON implements json.Marshaler with the password redacted
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configForJSON{
		Topology:       c.Topology,
		Host:           c.Host,
		Port:           c.Port,
		Password:       c.redactedPassword(),
		TLS:            c.TLS,
		DB:             c.DB,
		URLs:           c.URLs,
		ClusterOptions: c.ClusterOptions,
	})
}

// String returns a log-safe representation with the password redacted
func (c Config) String() string {
	if c.Topology == TopologyCluster {
		return fmt.Sprintf("Redis{topology=%s, urls=%s, password=%s, tls=%t}",
			c.Topology, strings.Join(c.URLs, ","), c.redactedPassword(), c.TLS)
	}
	db := "default"
	if c.DB != nil {
		db = strconv.Itoa(*c.DB)
	}
	return fmt.Sprintf("Redis{topology=%s, host=%s, port=%d, password=%s, tls=%t, db=%s}",
		c.Topology, c.Host, c.Port, c.redactedPassword(), c.TLS, db)
}

func (c Config) redactedPassword() string {
	if c.Password == "" {
		return ""
	}
	return redactedPassword
}
