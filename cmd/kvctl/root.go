package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kvctl",
		Short: "Connect to, probe and seed a Redis deployment",
		Long: `kvctl (v` + version + `)

Builds a lifecycle-managed Redis client from KVC_* environment variables
(or a .env file) and runs one operation against it. Both standalone and
cluster deployments are supported through KVC_REDIS_TYPE.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("env", "dev", "environment: dev or prod")
	root.PersistentFlags().String("http-addr", ":8080", "listen address for the probe server")

	root.AddCommand(
		newCheckCmd(),
		newSeedCmd(),
		newServeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of kvctl",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Printf("kvctl v%s\n", version)
			},
		},
	)
	return root
}
