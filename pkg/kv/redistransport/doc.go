// Package redistransport implements kv.Transport on top of go-redis.
//
// A Transport tracks its own connection status, emits connect, ready, error and
// close events, and retries failed connection attempts in the background with a
// RetryStrategy. NewStandalone wraps *redis.Client; NewCluster wraps
// *redis.ClusterClient.
package redistransport
