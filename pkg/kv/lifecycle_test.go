package kv_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/leafsii/kvconn/pkg/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordedWait struct {
	outcome  string
	duration time.Duration
}

type recordedHealthcheck struct {
	outcome  string
	attempts int
}

type fakeRecorder struct {
	mu           sync.Mutex
	events       []kv.EventKind
	waits        []recordedWait
	healthchecks []recordedHealthcheck
}

func (r *fakeRecorder) RecordEvent(_ context.Context, _ kv.Topology, kind kv.EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind)
}

func (r *fakeRecorder) RecordWait(_ context.Context, _ kv.Topology, outcome string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, recordedWait{outcome: outcome, duration: d})
}

func (r *fakeRecorder) RecordHealthcheck(_ context.Context, _ kv.Topology, outcome string, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthchecks = append(r.healthchecks, recordedHealthcheck{outcome: outcome, attempts: attempts})
}

func (r *fakeRecorder) lastWait() recordedWait {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waits[len(r.waits)-1]
}

func (r *fakeRecorder) lastHealthcheck() recordedHealthcheck {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthchecks[len(r.healthchecks)-1]
}

type lifecycleFixture struct {
	transport *kvtest.FakeTransport
	lifecycle *kv.Lifecycle
	logs      *observer.ObservedLogs
	recorder  *fakeRecorder
}

func newFixture(t *testing.T, topology kv.Topology, policy kv.Policy, readyTimeout time.Duration) *lifecycleFixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	recorder := &fakeRecorder{}
	transport := kvtest.NewFakeTransport()

	opts := kv.NewOptions(
		kv.WithLogger(zap.New(core).Sugar()),
		kv.WithRecorder(recorder),
		kv.WithReadyTimeout(readyTimeout),
	)
	lifecycle := kv.NewLifecycle(transport, topology, "test-conn", policy, opts)
	t.Cleanup(func() { _ = transport.Close() })

	return &lifecycleFixture{
		transport: transport,
		lifecycle: lifecycle,
		logs:      logs,
		recorder:  recorder,
	}
}

func standaloneFixture(t *testing.T, readyTimeout time.Duration) *lifecycleFixture {
	return newFixture(t, kv.TopologyStandalone, kv.StandalonePolicy, readyTimeout)
}

func clusterFixture(t *testing.T, readyTimeout time.Duration) *lifecycleFixture {
	return newFixture(t, kv.TopologyCluster, kv.ClusterPolicy, readyTimeout)
}

func after(d time.Duration, fn func()) {
	go func() {
		time.Sleep(d)
		fn()
	}()
}

func TestDefaultReadyTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, kv.DefaultReadyTimeout)
}

func TestLifecycle_Accessors(t *testing.T) {
	f := clusterFixture(t, time.Second)

	assert.Equal(t, "test-conn", f.lifecycle.Name())
	assert.Equal(t, kv.TopologyCluster, f.lifecycle.Topology())
	assert.Equal(t, kv.StatusIdle, f.lifecycle.Status())
	assert.Same(t, f.transport.Handle(), f.lifecycle.Handle())
}

func TestWaitUntilConnected(t *testing.T) {
	policies := []struct {
		name     string
		topology kv.Topology
		policy   kv.Policy
	}{
		{"standalone", kv.TopologyStandalone, kv.StandalonePolicy},
		{"cluster", kv.TopologyCluster, kv.ClusterPolicy},
	}

	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			t.Run("already ready returns without connecting", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)
				f.transport.SetStatus(kv.StatusReady)

				require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))
				assert.Zero(t, f.transport.ConnectCalls())
				assert.Equal(t, kv.OutcomeReady, f.recorder.lastWait().outcome)
			})

			t.Run("connects and returns on ready", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)

				require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))
				assert.EqualValues(t, 1, f.transport.ConnectCalls())
				assert.Equal(t, kv.StatusReady, f.lifecycle.Status())
			})

			t.Run("waits for a delayed ready", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)
				f.transport.SetReadyAfter(30 * time.Millisecond)

				require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))
				assert.Equal(t, kv.StatusReady, f.lifecycle.Status())
			})

			t.Run("in-flight attempt is not duplicated", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)
				f.transport.SetStatus(kv.StatusConnecting)
				after(30*time.Millisecond, f.transport.EmitReady)

				require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))
				assert.Zero(t, f.transport.ConnectCalls())
			})

			t.Run("times out", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, 50*time.Millisecond)
				f.transport.SetNeverReady()

				start := time.Now()
				err := f.lifecycle.WaitUntilConnected(context.Background())
				require.ErrorIs(t, err, kv.ErrTimeout)
				assert.Contains(t, err.Error(), p.topology.String())
				assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
				assert.Equal(t, kv.OutcomeTimeout, f.recorder.lastWait().outcome)
			})

			t.Run("honors context cancellation", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)
				f.transport.SetNeverReady()

				ctx, cancel := context.WithCancel(context.Background())
				after(20*time.Millisecond, cancel)

				err := f.lifecycle.WaitUntilConnected(ctx)
				require.ErrorIs(t, err, context.Canceled)
				assert.Equal(t, kv.OutcomeCanceled, f.recorder.lastWait().outcome)
			})

			t.Run("shutdown during wait", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)
				f.transport.SetNeverReady()
				after(20*time.Millisecond, func() { _ = f.lifecycle.Shutdown() })

				err := f.lifecycle.WaitUntilConnected(context.Background())
				require.ErrorIs(t, err, kv.ErrClosed)
				assert.Equal(t, kv.OutcomeClosed, f.recorder.lastWait().outcome)
			})

			t.Run("concurrent waiters all resolve", func(t *testing.T) {
				f := newFixture(t, p.topology, p.policy, time.Second)
				f.transport.SetReadyAfter(30 * time.Millisecond)

				const waiters = 10
				errs := make(chan error, waiters)
				var wg sync.WaitGroup
				for i := 0; i < waiters; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						errs <- f.lifecycle.WaitUntilConnected(context.Background())
					}()
				}
				wg.Wait()
				close(errs)

				for err := range errs {
					assert.NoError(t, err)
				}
			})
		})
	}
}

func TestWaitUntilConnected_Standalone(t *testing.T) {
	t.Run("error event fails the wait", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)
		f.transport.SetConnectError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"))
		after(20*time.Millisecond, func() {
			f.transport.EmitError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"))
		})

		err := f.lifecycle.WaitUntilConnected(context.Background())
		require.ErrorIs(t, err, kv.ErrConnection)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, kv.OutcomeError, f.recorder.lastWait().outcome)

		retrying := f.logs.FilterMessage("waitUntilConnected: failed on initial connection, retrying...")
		assert.Equal(t, 1, retrying.Len())
	})

	t.Run("ready after failed initial connect succeeds", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)
		f.transport.SetConnectError(errors.New("connection refused"))
		after(20*time.Millisecond, f.transport.EmitReady)

		require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))
	})

	t.Run("closed transport", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)
		require.NoError(t, f.transport.Close())

		assert.ErrorIs(t, f.lifecycle.WaitUntilConnected(context.Background()), kv.ErrClosed)
		assert.Zero(t, f.transport.ConnectCalls())
	})
}

func TestWaitUntilConnected_Cluster(t *testing.T) {
	t.Run("error events are ignored until timeout", func(t *testing.T) {
		f := clusterFixture(t, 100*time.Millisecond)
		f.transport.SetConnectError(errors.New("connection refused"))
		after(20*time.Millisecond, func() { f.transport.EmitError(errors.New("connection refused")) })
		after(40*time.Millisecond, func() { f.transport.EmitError(errors.New("connection refused")) })

		err := f.lifecycle.WaitUntilConnected(context.Background())
		require.ErrorIs(t, err, kv.ErrTimeout)
		assert.NotErrorIs(t, err, kv.ErrConnection)
		assert.Contains(t, err.Error(), "CLUSTER")
	})

	t.Run("ready after errors succeeds", func(t *testing.T) {
		f := clusterFixture(t, time.Second)
		f.transport.SetConnectError(errors.New("connection refused"))
		after(20*time.Millisecond, func() { f.transport.EmitError(errors.New("connection refused")) })
		after(40*time.Millisecond, f.transport.EmitReady)

		require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))
	})
}

func TestHealthcheck(t *testing.T) {
	t.Run("healthy on first probe", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)

		require.NoError(t, f.lifecycle.Healthcheck(context.Background()))
		assert.EqualValues(t, 1, f.transport.PingCalls())
		assert.Zero(t, f.transport.ReconnectCalls())
		assert.Equal(t, recordedHealthcheck{kv.OutcomeHealthy, 1}, f.recorder.lastHealthcheck())
	})

	t.Run("recovers after one forced reconnect", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)
		f.transport.SetPingReplies(kvtest.PingResult{Err: kvtest.ErrPingFailed}, kvtest.Pong)

		require.NoError(t, f.lifecycle.Healthcheck(context.Background()))
		assert.EqualValues(t, 2, f.transport.PingCalls())
		assert.EqualValues(t, 1, f.transport.ReconnectCalls())
		assert.Equal(t, recordedHealthcheck{kv.OutcomeHealthy, 2}, f.recorder.lastHealthcheck())
	})

	t.Run("fails after two attempts", func(t *testing.T) {
		f := clusterFixture(t, time.Second)
		f.transport.SetPingReplies(kvtest.PingResult{Err: kvtest.ErrPingFailed})

		err := f.lifecycle.Healthcheck(context.Background())
		require.ErrorIs(t, err, kv.ErrHealthcheck)
		assert.Contains(t, err.Error(), kvtest.ErrPingFailed.Error())
		assert.EqualValues(t, 2, f.transport.PingCalls())
		assert.EqualValues(t, 1, f.transport.ReconnectCalls())
		assert.Equal(t, recordedHealthcheck{kv.OutcomeFailed, 2}, f.recorder.lastHealthcheck())
	})

	t.Run("unexpected reply counts as failure", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)
		f.transport.SetPingReplies(kvtest.PingResult{Reply: "LOADING"}, kvtest.Pong)

		require.NoError(t, f.lifecycle.Healthcheck(context.Background()))
		assert.EqualValues(t, 1, f.transport.ReconnectCalls())
		assert.Equal(t, 1, f.logs.FilterMessage("healthcheck probe failed; forcing reconnect").Len())
	})

	t.Run("closed client", func(t *testing.T) {
		f := standaloneFixture(t, time.Second)
		require.NoError(t, f.lifecycle.Shutdown())

		assert.ErrorIs(t, f.lifecycle.Healthcheck(context.Background()), kv.ErrClosed)
		assert.Zero(t, f.transport.PingCalls())
	})
}

func TestShutdown(t *testing.T) {
	f := standaloneFixture(t, time.Second)
	require.NoError(t, f.lifecycle.WaitUntilConnected(context.Background()))

	require.NoError(t, f.lifecycle.Shutdown())
	assert.Equal(t, kv.StatusClosed, f.lifecycle.Status())
	assert.ErrorIs(t, f.lifecycle.Shutdown(), kv.ErrClosed)
	assert.ErrorIs(t, f.lifecycle.WaitUntilConnected(context.Background()), kv.ErrClosed)
	assert.Equal(t, 1, f.logs.FilterMessage("redis client shut down").Len())
}

func TestLifecycleLogging(t *testing.T) {
	f := standaloneFixture(t, time.Second)

	f.transport.EmitConnect("127.0.0.1:6379")
	f.transport.EmitReady()
	f.transport.EmitError(errors.New("connection reset by peer"))

	entries := f.logs.FilterMessage("redis lifecycle event").AllUntimed()
	require.Len(t, entries, 3)

	for _, entry := range entries {
		fields := entry.ContextMap()
		assert.Equal(t, "test-conn", fields["connectionName"])
		assert.Equal(t, "STANDALONE", fields["topology"])
	}

	connect := entries[0]
	assert.Equal(t, zapcore.InfoLevel, connect.Level)
	assert.Equal(t, "connect", connect.ContextMap()["event"])
	assert.Equal(t, "127.0.0.1:6379", connect.ContextMap()["addr"])

	ready := entries[1]
	assert.Equal(t, zapcore.InfoLevel, ready.Level)
	assert.Equal(t, "ready", ready.ContextMap()["event"])

	failure := entries[2]
	assert.Equal(t, zapcore.ErrorLevel, failure.Level)
	assert.Equal(t, "error", failure.ContextMap()["event"])
	assert.Equal(t, "connection reset by peer", failure.ContextMap()["err"])

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	assert.Equal(t, []kv.EventKind{kv.EventConnect, kv.EventReady, kv.EventError}, f.recorder.events)
}

func TestLifecycle_NilLoggerAndRecorder(t *testing.T) {
	transport := kvtest.NewFakeTransport()
	defer transport.Close()

	lifecycle := kv.NewLifecycle(transport, kv.TopologyStandalone, "quiet", kv.StandalonePolicy, kv.Options{})
	transport.EmitConnect("127.0.0.1:6379")

	require.NoError(t, lifecycle.WaitUntilConnected(context.Background()))
	require.NoError(t, lifecycle.Healthcheck(context.Background()))
}
