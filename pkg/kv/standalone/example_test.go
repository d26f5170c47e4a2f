package standalone_test

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/alicebob/miniredis/v2"
	"github.com/leafsii/kvconn/pkg/kv"

	// Import the topology to register it
	_ "github.com/leafsii/kvconn/pkg/kv/standalone"
)

func ExampleNew() {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()

	port, _ := strconv.Atoi(mr.Port())
	cfg := kv.Config{
		Topology: kv.TopologyStandalone,
		Host:     mr.Host(),
		Port:     port,
	}

	client, err := kv.NewClient(cfg, "example")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Shutdown()

	ctx := context.Background()
	if err := client.WaitUntilConnected(ctx); err != nil {
		log.Fatal(err)
	}

	rdb := client.Handle()
	if err := rdb.Set(ctx, "user:123", "john", 0).Err(); err != nil {
		log.Fatal(err)
	}

	value, err := rdb.Get(ctx, "user:123").Result()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(value)
	// Output: john
}
