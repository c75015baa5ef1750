// Command chronostore is a standalone harness around the chronostore
// library: it ingests JSON row fixtures into a Store, answers latest-at
// and range queries against it, reports cache/store statistics, and
// can serve a Prometheus metrics endpoint over HTTP while holding a
// store open.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rerun-io/rerun-sub038/internal/logging"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "chronostore",
		Short: "Ingest, query and serve a chronostore instance",
	}
	rootCmd.PersistentFlags().String("config", "chronostore.json", "path to the config file")
	rootCmd.PersistentFlags().String("format", "table", "output format: table or json")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(
		newIngestCmd(logger),
		newQueryCmd(logger),
		newStatsCmd(logger),
		newServeCmd(logger),
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
