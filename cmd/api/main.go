package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "pin-issuer",
		Short:        "email one-time PIN token issuer",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.RunE = serveCmd.RunE

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "delete expired entries once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context())
		},
	}

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "print a new Ed25519 signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, keygenCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("pin-issuer: %v", err)
	}
}
