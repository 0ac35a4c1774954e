package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Running it without a subcommand
// starts the HTTP server.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	cmd := &cobra.Command{
		Use:          "credauth",
		Short:        "Credential authentication service",
		Long:         `credauth registers users, checks their passwords and issues access and refresh tokens.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	return cmd
}
