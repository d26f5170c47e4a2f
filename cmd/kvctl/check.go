package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect, run a healthcheck and shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.client.WaitUntilConnected(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if err := a.client.Healthcheck(ctx); err != nil {
				return fmt.Errorf("healthcheck: %w", err)
			}
			if err := a.client.Shutdown(); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}

			cmd.Printf("%s %s: ok\n", a.client.Topology(), a.client.Name())
			return nil
		},
	}
}
