package kvtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// PingResult is one scripted reply of FakeTransport.Ping
type PingResult struct {
	Reply string
	Err   error
}

// Pong is the healthy ping reply
var Pong = PingResult{Reply: "PONG"}

// ErrPingFailed is a ready-made ping failure
var ErrPingFailed = errors.New("ping failed")

// FakeTransport is a scripted kv.Transport. By default Connect makes it ready
// synchronously and every ping replies PONG.
type FakeTransport struct {
	emitter kv.Emitter
	status  atomic.Int32
	handle  *redis.Client

	mu          sync.Mutex
	connectErr  error
	readyAfter  time.Duration
	neverReady  bool
	pingReplies []PingResult

	connectCalls   atomic.Int64
	reconnectCalls atomic.Int64
	pingCalls      atomic.Int64
}

var _ kv.Transport = (*FakeTransport)(nil)

// NewFakeTransport returns an idle fake. Its handle is a go-redis client that is
// never dialed unless a test issues commands on it.
func NewFakeTransport() *FakeTransport {
	f := &FakeTransport{
		handle: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}),
	}
	f.status.Store(int32(kv.StatusIdle))
	return f
}

// SetConnectError makes connection attempts fail with err and emit an error event
func (f *FakeTransport) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// SetReadyAfter makes successful attempts report ready after d instead of immediately
func (f *FakeTransport) SetReadyAfter(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyAfter = d
}

// SetNeverReady leaves successful attempts in the connecting state
func (f *FakeTransport) SetNeverReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neverReady = true
}

// SetPingReplies scripts ping replies in order; the last one repeats
func (f *FakeTransport) SetPingReplies(replies ...PingResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingReplies = replies
}

// SetStatus forces the reported status
func (f *FakeTransport) SetStatus(s kv.Status) {
	f.status.Store(int32(s))
}

// EmitReady marks the transport ready and emits the ready event
func (f *FakeTransport) EmitReady() {
	if !f.setStatus(kv.StatusReady) {
		return
	}
	f.emitter.Emit(kv.Event{Kind: kv.EventReady})
}

// EmitConnect emits a connect event for addr
func (f *FakeTransport) EmitConnect(addr string) {
	f.emitter.Emit(kv.Event{Kind: kv.EventConnect, Addr: addr})
}

// EmitError marks the transport disconnected and emits an error event
func (f *FakeTransport) EmitError(err error) {
	if !f.setStatus(kv.StatusDisconnected) {
		return
	}
	f.emitter.Emit(kv.Event{Kind: kv.EventError, Err: err})
}

// ConnectCalls counts Connect calls
func (f *FakeTransport) ConnectCalls() int64 {
	return f.connectCalls.Load()
}

// ReconnectCalls counts Reconnect calls
func (f *FakeTransport) ReconnectCalls() int64 {
	return f.reconnectCalls.Load()
}

// PingCalls counts Ping calls
func (f *FakeTransport) PingCalls() int64 {
	return f.pingCalls.Load()
}

func (f *FakeTransport) setStatus(s kv.Status) bool {
	for {
		cur := f.status.Load()
		if kv.Status(cur) == kv.StatusClosed {
			return false
		}
		if f.status.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}

func (f *FakeTransport) Connect(ctx context.Context) error {
	f.connectCalls.Add(1)
	switch f.Status() {
	case kv.StatusClosed:
		return kv.ErrClosed
	case kv.StatusReady:
		return nil
	}
	return f.attempt()
}

func (f *FakeTransport) Reconnect(ctx context.Context) error {
	f.reconnectCalls.Add(1)
	if f.Status() == kv.StatusClosed {
		return kv.ErrClosed
	}
	return f.attempt()
}

func (f *FakeTransport) attempt() error {
	f.mu.Lock()
	connectErr, readyAfter, neverReady := f.connectErr, f.readyAfter, f.neverReady
	f.mu.Unlock()

	if connectErr != nil {
		f.EmitError(connectErr)
		return connectErr
	}

	f.setStatus(kv.StatusConnecting)
	switch {
	case neverReady:
	case readyAfter <= 0:
		f.EmitReady()
	default:
		go func() {
			time.Sleep(readyAfter)
			f.EmitReady()
		}()
	}
	return nil
}

func (f *FakeTransport) Status() kv.Status {
	return kv.Status(f.status.Load())
}

func (f *FakeTransport) Ping(ctx context.Context) (string, error) {
	f.pingCalls.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pingReplies) == 0 {
		return Pong.Reply, nil
	}
	next := f.pingReplies[0]
	if len(f.pingReplies) > 1 {
		f.pingReplies = f.pingReplies[1:]
	}
	return next.Reply, next.Err
}

func (f *FakeTransport) On(kind kv.EventKind, fn func(kv.Event)) {
	f.emitter.On(kind, fn)
}

func (f *FakeTransport) Once(kinds ...kv.EventKind) (<-chan kv.Event, func()) {
	return f.emitter.Once(kinds...)
}

func (f *FakeTransport) Handle() redis.UniversalClient {
	return f.handle
}

func (f *FakeTransport) Close() error {
	if kv.Status(f.status.Swap(int32(kv.StatusClosed))) == kv.StatusClosed {
		return kv.ErrClosed
	}
	err := f.handle.Close()
	f.emitter.Emit(kv.Event{Kind: kv.EventClose})
	return err
}
