package kv

import "errors"

// ErrConfiguration is returned when construction input is invalid or incomplete.
// It is never retried.
var ErrConfiguration = errors.New("invalid configuration")

// ErrConnection is returned when the transport reports a connection-level failure
// while a standalone client is waiting for readiness
var ErrConnection = errors.New("connection failed")

// ErrTimeout is returned when the transport did not become ready within the ready timeout.
// The transport may still be connecting in the background.
var ErrTimeout = errors.New("timed out waiting for ready")

// ErrHealthcheck is returned when the liveness probe failed twice in a row
var ErrHealthcheck = errors.New("healthcheck failed")

// ErrClosed is returned by lifecycle operations after Shutdown
var ErrClosed = errors.New("client is shut down")
