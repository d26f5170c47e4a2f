package kv

import (
	"context"
	"time"
)

// Wait outcomes reported to a Recorder
const (
	OutcomeReady    = "ready"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
	OutcomeClosed   = "closed"
	OutcomeCanceled = "canceled"
	OutcomeHealthy  = "healthy"
	OutcomeFailed   = "failed"
)

// Recorder receives lifecycle measurements. internal/metrics provides the
// OpenTelemetry implementation.
type Recorder interface {
	RecordEvent(ctx context.Context, topology Topology, kind EventKind)
	RecordWait(ctx context.Context, topology Topology, outcome string, duration time.Duration)
	RecordHealthcheck(ctx context.Context, topology Topology, outcome string, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(context.Context, Topology, EventKind) {}
func (nopRecorder) RecordWait(context.Context, Topology, string, time.Duration) {}
func (nopRecorder) RecordHealthcheck(context.Context, Topology, string, int) {}
