package redistransport

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// defaultAttemptTimeout bounds a background reconnect attempt
const defaultAttemptTimeout = 5 * time.Second

// Transport is a go-redis backed kv.Transport
type Transport struct {
	client  redis.UniversalClient
	emitter kv.Emitter
	status  atomic.Int32

	retry          RetryStrategy
	attemptTimeout time.Duration
	attempts       singleflight.Group
	retrying       atomic.Bool
	done           chan struct{}
}

var _ kv.Transport = (*Transport)(nil)

// Option configures a Transport
type Option func(*Transport)

// WithRetryStrategy replaces the topology's default reconnect strategy
func WithRetryStrategy(retry RetryStrategy) Option {
	return func(t *Transport) {
		t.retry = retry
	}
}

// WithAttemptTimeout bounds each background reconnect attempt
func WithAttemptTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.attemptTimeout = d
	}
}

func newTransport(client redis.UniversalClient, retry RetryStrategy, opts []Option) *Transport {
	t := &Transport{
		client:         client,
		retry:          retry,
		attemptTimeout: defaultAttemptTimeout,
		done:           make(chan struct{}),
	}
	t.status.Store(int32(kv.StatusIdle))

	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Status() kv.Status {
	return kv.Status(t.status.Load())
}

// setStatus moves to s unless the transport is closed
func (t *Transport) setStatus(s kv.Status) bool {
	for {
		cur := t.status.Load()
		if kv.Status(cur) == kv.StatusClosed {
			return false
		}
		if t.status.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}

func (t *Transport) On(kind kv.EventKind, fn func(kv.Event)) {
	t.emitter.On(kind, fn)
}

func (t *Transport) Once(kinds ...kv.EventKind) (<-chan kv.Event, func()) {
	return t.emitter.Once(kinds...)
}

func (t *Transport) Handle() redis.UniversalClient {
	return t.client
}

// Connect makes one connection attempt unless the transport is already ready.
// On failure the retry strategy keeps trying in the background.
func (t *Transport) Connect(ctx context.Context) error {
	if t.Status() == kv.StatusReady {
		return nil
	}
	return t.connect(ctx)
}

// Reconnect makes a connection attempt even when the transport reports ready
func (t *Transport) Reconnect(ctx context.Context) error {
	return t.connect(ctx)
}

func (t *Transport) connect(ctx context.Context) error {
	err := t.attempt(ctx)
	if err != nil && !errors.Is(err, kv.ErrClosed) {
		t.scheduleRetry()
	}
	return err
}

// attempt pings through the pool, which dials as needed. Concurrent attempts
// share one round trip.
func (t *Transport) attempt(ctx context.Context) error {
	_, err, _ := t.attempts.Do("connect", func() (any, error) {
		if !t.setStatus(kv.StatusConnecting) {
			return nil, kv.ErrClosed
		}

		if err := t.client.Ping(ctx).Err(); err != nil {
			if !t.setStatus(kv.StatusDisconnected) {
				return nil, kv.ErrClosed
			}
			t.emitter.Emit(kv.Event{Kind: kv.EventError, Err: err})
			return nil, err
		}

		if !t.setStatus(kv.StatusReady) {
			return nil, kv.ErrClosed
		}
		t.emitter.Emit(kv.Event{Kind: kv.EventReady})
		return nil, nil
	})
	return err
}

// markDown reports a connection loss observed on a command issued while ready
func (t *Transport) markDown(err error) {
	if !t.status.CompareAndSwap(int32(kv.StatusReady), int32(kv.StatusDisconnected)) {
		return
	}
	t.emitter.Emit(kv.Event{Kind: kv.EventError, Err: err})
	t.scheduleRetry()
}

func (t *Transport) scheduleRetry() {
	if t.retry == nil || !t.retrying.CompareAndSwap(false, true) {
		return
	}
	go t.retryLoop()
}

func (t *Transport) retryLoop() {
	defer t.retrying.Store(false)

	for n := 1; ; n++ {
		switch t.Status() {
		case kv.StatusReady, kv.StatusClosed:
			return
		}

		delay := t.retry(n)
		if delay < 0 {
			t.status.CompareAndSwap(int32(kv.StatusReconnecting), int32(kv.StatusDisconnected))
			return
		}
		t.status.CompareAndSwap(int32(kv.StatusDisconnected), int32(kv.StatusReconnecting))

		timer := time.NewTimer(delay)
		select {
		case <-t.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		if t.Status() == kv.StatusReady {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.attemptTimeout)
		err := t.attempt(ctx)
		cancel()
		if err == nil || errors.Is(err, kv.ErrClosed) {
			return
		}
	}
}

func (t *Transport) Ping(ctx context.Context) (string, error) {
	return t.client.Ping(ctx).Result()
}

// Close stops background retries, closes the go-redis client and emits close
func (t *Transport) Close() error {
	if kv.Status(t.status.Swap(int32(kv.StatusClosed))) == kv.StatusClosed {
		return kv.ErrClosed
	}
	close(t.done)

	err := t.client.Close()
	t.emitter.Emit(kv.Event{Kind: kv.EventClose})
	return err
}
