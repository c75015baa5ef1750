package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newStatsCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			format, _ := cmd.Flags().GetString("format")

			ctx := context.Background()
			cfg, _, err := loadConfig(ctx, configPath, logger)
			if err != nil {
				return err
			}
			res, err := openResources(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer res.close(logger)

			stats := res.cache.Stats()
			entities := res.store.Entities()

			p := newPrinter(outputFormat(format))
			if p.format == "json" {
				return p.json(map[string]any{
					"store_id":   res.storeID,
					"generation": res.store.Generation(),
					"entities":   len(entities),
					"cache":      stats,
				})
			}
			p.kv([][2]string{
				{"store id", res.storeID},
				{"generation", fmt.Sprint(res.store.Generation())},
				{"entities", fmt.Sprint(len(entities))},
				{"cache keys", fmt.Sprint(stats.Keys)},
				{"cache hits", fmt.Sprint(stats.Hits)},
				{"cache misses", fmt.Sprint(stats.Misses)},
				{"cache sweeps", fmt.Sprint(stats.Sweeps)},
			})
			return nil
		},
	}
}
