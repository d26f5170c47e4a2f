package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultReadyTimeout bounds WaitUntilConnected
const DefaultReadyTimeout = 30 * time.Second

// pongReply is the expected liveness token
const pongReply = "PONG"

// Client is the topology-agnostic lifecycle contract shared by the standalone and
// cluster clients.
type Client interface {
	// Name returns the connection identity used for log correlation
	Name() string

	// Topology returns the deployment shape this client was built for
	Topology() Topology

	// Status reports the live transport state
	Status() Status

	// WaitUntilConnected connects if needed and blocks until the transport is ready,
	// the ready timeout elapses, or ctx is done.
	WaitUntilConnected(ctx context.Context) error

	// Healthcheck pings the store, forcing at most one reconnect before failing
	Healthcheck(ctx context.Context) error

	// Handle returns the go-redis client for direct command issuance
	Handle() redis.UniversalClient

	// Shutdown closes the transport. The client is unusable afterwards.
	Shutdown() error
}

// Policy describes how a topology waits for readiness. Standalone and cluster
// transports report failures differently, so the two policies differ on purpose.
type Policy struct {
	// SubscribeBeforeConnect subscribes to the ready event before the connect call,
	// so a ready emitted by the connect call itself is observed.
	SubscribeBeforeConnect bool

	// FailOnError ends the wait with ErrConnection on the next transport error event.
	// Without it, errors are left to the transport's own retry strategy.
	FailOnError bool
}

var (
	// StandalonePolicy races ready against error events and the timeout
	StandalonePolicy = Policy{FailOnError: true}

	// ClusterPolicy races ready against the timeout only
	ClusterPolicy = Policy{SubscribeBeforeConnect: true}
)

func (p Policy) waitKinds() []EventKind {
	if p.FailOnError {
		return []EventKind{EventReady, EventError, EventClose}
	}
	return []EventKind{EventReady, EventClose}
}

// Lifecycle drives one transport through connect, readiness, health and shutdown.
// It keeps no connection state of its own; every decision reads Transport.Status.
type Lifecycle struct {
	transport    Transport
	topology     Topology
	name         string
	policy       Policy
	readyTimeout time.Duration
	log          *zap.SugaredLogger
	recorder     Recorder
}

var _ Client = (*Lifecycle)(nil)

// NewLifecycle wraps transport and registers the connect, ready and error log observers.
// The logger in opts is bound to the connection name once, here.
func NewLifecycle(transport Transport, topology Topology, name string, policy Policy, opts Options) *Lifecycle {
	opts = opts.withDefaults()

	l := &Lifecycle{
		transport:    transport,
		topology:     topology,
		name:         name,
		policy:       policy,
		readyTimeout: opts.ReadyTimeout,
		log:          bindLogger(opts.Logger, name, topology),
		recorder:     opts.Recorder,
	}

	transport.On(EventConnect, func(ev Event) {
		l.log.Infow("redis lifecycle event", "event", string(ev.Kind), "addr", ev.Addr)
		l.recorder.RecordEvent(context.Background(), l.topology, ev.Kind)
	})
	transport.On(EventReady, func(ev Event) {
		l.log.Infow("redis lifecycle event", "event", string(ev.Kind))
		l.recorder.RecordEvent(context.Background(), l.topology, ev.Kind)
	})
	transport.On(EventError, func(ev Event) {
		l.log.Errorw("redis lifecycle event", "event", string(ev.Kind), "err", errString(ev.Err))
		l.recorder.RecordEvent(context.Background(), l.topology, ev.Kind)
	})

	return l
}

// bindLogger derives the per-connection child logger
func bindLogger(logger *zap.SugaredLogger, name string, topology Topology) *zap.SugaredLogger {
	return logger.With("connectionName", name, "topology", topology.String())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *Lifecycle) Name() string {
	return l.name
}

func (l *Lifecycle) Topology() Topology {
	return l.topology
}

func (l *Lifecycle) Status() Status {
	return l.transport.Status()
}

func (l *Lifecycle) Handle() redis.UniversalClient {
	return l.transport.Handle()
}

// WaitUntilConnected returns immediately when the transport is ready. Otherwise it
// issues a connect unless one is already in flight, then waits for the first of:
// ready, the ready timeout, ctx being done, the transport closing and, under
// StandalonePolicy, a transport error.
func (l *Lifecycle) WaitUntilConnected(ctx context.Context) error {
	start := time.Now()
	err := l.waitUntilConnected(ctx)
	l.recorder.RecordWait(ctx, l.topology, waitOutcome(err), time.Since(start))
	return err
}

func (l *Lifecycle) waitUntilConnected(ctx context.Context) error {
	switch l.transport.Status() {
	case StatusReady:
		return nil
	case StatusClosed:
		return ErrClosed
	}

	var wait <-chan Event
	cancel := func() {}
	defer func() { cancel() }()

	if l.policy.SubscribeBeforeConnect {
		wait, cancel = l.transport.Once(l.policy.waitKinds()...)
	}

	if l.transport.Status() == StatusConnecting {
		l.log.Debugw("connection attempt already in flight; waiting for ready")
	} else if err := l.transport.Connect(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return ErrClosed
		}
		l.log.Errorw("waitUntilConnected: failed on initial connection, retrying...", "err", err)
	}

	if wait == nil {
		wait, cancel = l.transport.Once(l.policy.waitKinds()...)
	}

	// ready may have fired before the subscription existed
	switch l.transport.Status() {
	case StatusReady:
		return nil
	case StatusClosed:
		return ErrClosed
	}

	timer := time.NewTimer(l.readyTimeout)
	defer timer.Stop()

	select {
	case ev := <-wait:
		switch ev.Kind {
		case EventReady:
			return nil
		case EventClose:
			return ErrClosed
		default:
			return fmt.Errorf("%w: %s waitUntilConnected: %v", ErrConnection, l.topology, ev.Err)
		}
	case <-timer.C:
		return fmt.Errorf("%w: %s waitUntilConnected: failed after %s", ErrTimeout, l.topology, l.readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeReady
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrClosed):
		return OutcomeClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

// Healthcheck pings the transport. A failed or unexpected reply triggers exactly one
// forced reconnect and a second ping; a second failure returns ErrHealthcheck.
func (l *Lifecycle) Healthcheck(ctx context.Context) error {
	if l.transport.Status() == StatusClosed {
		return ErrClosed
	}

	err := l.probe(ctx)
	if err == nil {
		l.recorder.RecordHealthcheck(ctx, l.topology, OutcomeHealthy, 1)
		return nil
	}

	l.log.Warnw("healthcheck probe failed; forcing reconnect", "err", err)
	if rerr := l.transport.Reconnect(ctx); rerr != nil {
		l.log.Warnw("healthcheck reconnect failed", "err", rerr)
	}

	if err := l.probe(ctx); err != nil {
		l.recorder.RecordHealthcheck(ctx, l.topology, OutcomeFailed, 2)
		return fmt.Errorf("%w after two attempts: %s: %v", ErrHealthcheck, l.topology, err)
	}

	l.recorder.RecordHealthcheck(ctx, l.topology, OutcomeHealthy, 2)
	return nil
}

func (l *Lifecycle) probe(ctx context.Context) error {
	reply, err := l.transport.Ping(ctx)
	if err != nil {
		return err
	}
	if reply != pongReply {
		return fmt.Errorf("unexpected ping reply %q", reply)
	}
	return nil
}

// Shutdown closes the transport. Calling it twice returns ErrClosed.
func (l *Lifecycle) Shutdown() error {
	if l.transport.Status() == StatusClosed {
		return ErrClosed
	}
	if err := l.transport.Close(); err != nil {
		return err
	}
	l.log.Infow("redis client shut down")
	return nil
}
