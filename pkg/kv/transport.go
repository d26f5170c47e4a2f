package kv

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Status is the connection state reported by a transport
type Status int32

const (
	// StatusIdle means no connection attempt has been made yet
	StatusIdle Status = iota
	// StatusConnecting means a connection attempt is in flight
	StatusConnecting
	// StatusReady means the transport completed its handshake and accepts commands
	StatusReady
	// StatusReconnecting means an attempt failed and a retry is scheduled
	StatusReconnecting
	// StatusDisconnected means the last attempt failed and no retry is scheduled
	StatusDisconnected
	// StatusClosed means the transport was shut down
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusReady:
		return "ready"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind names a transport lifecycle event
type EventKind string

const (
	// EventConnect fires when a network connection to a node is established
	EventConnect EventKind = "connect"
	// EventReady fires when the transport becomes ready for commands
	EventReady EventKind = "ready"
	// EventError fires when a connection attempt fails
	EventError EventKind = "error"
	// EventClose fires once when the transport is shut down
	EventClose EventKind = "close"
)

// Event is a single lifecycle notification
type Event struct {
	Kind EventKind
	// Addr is the node address for connect events, if known
	Addr string
	// Err is set for error events
	Err error
}

// Transport is the capability set a lifecycle manager drives. Implementations
// serialize their own state transitions; callers never lock around them.
type Transport interface {
	// Connect makes one connection attempt. It is a no-op when already ready.
	// A failed attempt emits EventError and may schedule transport-internal retries.
	Connect(ctx context.Context) error

	// Reconnect forces a connection attempt regardless of the current status
	Reconnect(ctx context.Context) error

	// Status reports the live connection state
	Status() Status

	// Ping issues a liveness probe and returns the server reply
	Ping(ctx context.Context) (string, error)

	// On registers a persistent observer for the given event kind
	On(kind EventKind, fn func(Event))

	// Once returns a channel that receives the next event of any of the given kinds.
	// The cancel function releases the subscription if it never fired.
	Once(kinds ...EventKind) (<-chan Event, func())

	// Handle returns the go-redis client used for command issuance
	Handle() redis.UniversalClient

	// Close shuts the transport down. Closing twice returns ErrClosed.
	Close() error
}
