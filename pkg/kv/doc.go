// Package kv provides a lifecycle-managed Redis client facade over two deployment
// topologies: a single standalone node and a multi-node cluster.
//
// Both topologies expose the same Client contract, so callers stop caring about the
// topology once the client is constructed:
//
//	cfg := kv.Config{
//		Topology: kv.TopologyStandalone,
//		Host:     "127.0.0.1",
//		Port:     6379,
//	}
//	client, err := kv.NewClient(cfg, "orders-cache", kv.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Shutdown()
//
//	ctx := context.Background()
//	if err := client.WaitUntilConnected(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Healthcheck(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	err = client.Handle().Set(ctx, "key", "value", 0).Err()
//
// Topology implementations live in the standalone and cluster subpackages and register
// themselves with RegisterTopology; import them for side effects when only the factory
// is used:
//
//	import (
//		_ "github.com/leafsii/kvconn/pkg/kv/cluster"
//		_ "github.com/leafsii/kvconn/pkg/kv/standalone"
//	)
//
// Construction never touches the network. WaitUntilConnected drives the connection and
// is bounded by DefaultReadyTimeout; Healthcheck pings with at most one forced reconnect.
// Commands are issued directly on the go-redis handle returned by Handle.
package kv
