// @title PeerLink API
// @version 1.0
// @description Share files by short code: upload, fetch a time-limited download link, manage your uploads.
// @host localhost:8080
// @BasePath /
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:   "peerlink",
		Short: "PeerLink - share files by short code",
		Long: `PeerLink stores uploaded files in an S3-compatible bucket and hands out
short share codes. Anyone holding a code can fetch a download link valid
for 10 minutes.

Configuration is read from the environment, or from the file named by
ENV_FILE (default .env).

  peerlink serve     # run the HTTP API (default)
  peerlink migrate   # create or update the database schema`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
