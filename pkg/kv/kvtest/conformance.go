// Package kvtest provides a scripted transport and conformance tests for kv.Client
// implementations
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
)

// ClientFactory creates a fresh, unconnected client against a reachable server
type ClientFactory func(t *testing.T) kv.Client

// RunLifecycleTests runs the lifecycle conformance tests against a Client implementation
func RunLifecycleTests(t *testing.T, factory ClientFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, client kv.Client)
	}{
		{"ConstructionDoesNotConnect", testConstructionDoesNotConnect},
		{"WaitUntilConnected", testWaitUntilConnected},
		{"WaitIsIdempotent", testWaitIsIdempotent},
		{"ConcurrentWaiters", testConcurrentWaiters},
		{"Healthcheck", testHealthcheck},
		{"HandleIssuesCommands", testHandleIssuesCommands},
		{"ShutdownIsFinal", testShutdownIsFinal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := factory(t)
			defer client.Shutdown()
			tt.test(t, client)
		})
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testConstructionDoesNotConnect(t *testing.T, client kv.Client) {
	if client.Handle() == nil {
		t.Fatal("Expected a non-nil handle before connecting")
	}
	if status := client.Status(); status != kv.StatusIdle {
		t.Fatalf("Expected idle status after construction, got %s", status)
	}
}

func testWaitUntilConnected(t *testing.T, client kv.Client) {
	if err := client.WaitUntilConnected(testContext(t)); err != nil {
		t.Fatalf("WaitUntilConnected failed: %v", err)
	}
	if status := client.Status(); status != kv.StatusReady {
		t.Fatalf("Expected ready status, got %s", status)
	}
}

func testWaitIsIdempotent(t *testing.T, client kv.Client) {
	ctx := testContext(t)
	for i := 0; i < 3; i++ {
		if err := client.WaitUntilConnected(ctx); err != nil {
			t.Fatalf("WaitUntilConnected call %d failed: %v", i+1, err)
		}
	}
}

func testConcurrentWaiters(t *testing.T, client kv.Client) {
	ctx := testContext(t)

	const waiters = 8
	errs := make(chan error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.WaitUntilConnected(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Concurrent WaitUntilConnected failed: %v", err)
		}
	}
}

func testHealthcheck(t *testing.T, client kv.Client) {
	ctx := testContext(t)
	if err := client.WaitUntilConnected(ctx); err != nil {
		t.Fatalf("WaitUntilConnected failed: %v", err)
	}
	if err := client.Healthcheck(ctx); err != nil {
		t.Fatalf("Healthcheck failed: %v", err)
	}
}

func testHandleIssuesCommands(t *testing.T, client kv.Client) {
	ctx := testContext(t)
	if err := client.WaitUntilConnected(ctx); err != nil {
		t.Fatalf("WaitUntilConnected failed: %v", err)
	}

	rdb := client.Handle()
	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("test:conformance:%d", i)
		if err := rdb.Set(ctx, key, fmt.Sprintf("value%d", i), 0).Err(); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	got, err := rdb.Get(ctx, "test:conformance:3").Result()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "value3" {
		t.Fatalf("Expected value3, got %q", got)
	}
}

func testShutdownIsFinal(t *testing.T, client kv.Client) {
	ctx := testContext(t)
	if err := client.WaitUntilConnected(ctx); err != nil {
		t.Fatalf("WaitUntilConnected failed: %v", err)
	}

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if status := client.Status(); status != kv.StatusClosed {
		t.Fatalf("Expected closed status, got %s", status)
	}
	if err := client.WaitUntilConnected(ctx); !errors.Is(err, kv.ErrClosed) {
		t.Fatalf("Expected ErrClosed from WaitUntilConnected, got %v", err)
	}
	if err := client.Healthcheck(ctx); !errors.Is(err, kv.ErrClosed) {
		t.Fatalf("Expected ErrClosed from Healthcheck, got %v", err)
	}
	if err := client.Shutdown(); !errors.Is(err, kv.ErrClosed) {
		t.Fatalf("Expected ErrClosed from second Shutdown, got %v", err)
	}
	if err := client.Handle().Ping(ctx).Err(); err == nil {
		t.Fatal("Expected commands to fail after shutdown")
	}
}
