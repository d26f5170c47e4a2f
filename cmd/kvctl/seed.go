package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write testN=valueN keys, run a healthcheck and shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.client.WaitUntilConnected(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			// keys may hash to different cluster slots, so no pipeline here
			rdb := a.client.Handle()
			for i := 1; i <= count; i++ {
				key, value := fmt.Sprintf("test%d", i), fmt.Sprintf("value%d", i)
				if err := rdb.Set(ctx, key, value, 0).Err(); err != nil {
					return fmt.Errorf("set %s: %w", key, err)
				}
			}
			a.logger.Infow("Seeded keys", "count", count)

			if err := a.client.Healthcheck(ctx); err != nil {
				return fmt.Errorf("healthcheck: %w", err)
			}

			last := fmt.Sprintf("test%d", count)
			got, err := rdb.Get(ctx, last).Result()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%s missing after seeding", last)
			} else if err != nil {
				return fmt.Errorf("get %s: %w", last, err)
			}

			if err := a.client.Shutdown(); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}

			cmd.Printf("seeded %d keys (%s=%s)\n", count, last, got)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 50, "number of keys to write")
	return cmd
}
