package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fitness-api",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fitness-api version %s\n", version)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Consume the email queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}

	indexesCmd = &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexes(cmd.Context())
		},
	}

	rootCmd = &cobra.Command{
		Use:          "fitness-api",
		Short:        "Fitness API server",
		Long:         `Fitness API serves accounts, exercises, workouts and groups, and delivers signup mail from a Redis queue.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory holding config.yaml")
	rootCmd.AddCommand(serveCmd, workerCmd, indexesCmd, versionCmd)
}

// @title Fitness API
// @version 1.0
// @description Accounts, exercises, workouts and groups with per-plan quotas.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
