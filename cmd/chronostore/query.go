package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

func newQueryCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the configured store",
	}
	cmd.AddCommand(newLatestAtCmd(logger), newRangeCmd(logger))
	return cmd
}

func newLatestAtCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest-at <entity> <component>",
		Short: "Query the latest value of a component at a point in time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tlName, _ := cmd.Flags().GetString("timeline")
			at, _ := cmd.Flags().GetInt64("at")
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

			tl, err := resolveTimeline(tlName, cfg.Timelines)
			if err != nil {
				return err
			}
			entity := entitypath.New(args[0])
			d := parseDescriptor(args[1])

			result, found, err := res.cache.LatestAt(ctx, tl, timeline.TimeInt(at), entity, d)
			if err != nil {
				return fmt.Errorf("latest-at: %w", err)
			}

			p := newPrinter(outputFormat(format))
			if !found {
				return p.json(map[string]any{"found": false})
			}
			return p.json(map[string]any{
				"found":  true,
				"row_id": result.Index.RowID.String(),
				"value":  result.Cell,
			})
		},
	}
	cmd.Flags().String("timeline", "frame", "timeline to query on")
	cmd.Flags().Int64("at", 0, "time value to query at")
	return cmd
}

func newRangeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range <entity> <component>",
		Short: "Query every value of a component within a time range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tlName, _ := cmd.Flags().GetString("timeline")
			minStr, _ := cmd.Flags().GetString("min")
			maxStr, _ := cmd.Flags().GetString("max")
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

			tl, err := resolveTimeline(tlName, cfg.Timelines)
			if err != nil {
				return err
			}
			r, err := parseRange(minStr, maxStr)
			if err != nil {
				return err
			}
			entity := entitypath.New(args[0])
			d := parseDescriptor(args[1])

			cells, err := res.cache.Range(ctx, tl, r, entity, d)
			if err != nil {
				return fmt.Errorf("range: %w", err)
			}

			rows := make([][]string, 0, len(cells))
			for _, c := range cells {
				rows = append(rows, []string{tl.Format(c.Index.Time), fmt.Sprintf("%v", c.Cell)})
			}

			p := newPrinter(outputFormat(format))
			if p.format == "json" {
				return p.json(cells)
			}
			p.table([]string{"index", "value"}, rows)
			return nil
		},
	}
	cmd.Flags().String("timeline", "frame", "timeline to query on")
	cmd.Flags().String("min", "", "range minimum (empty means unbounded)")
	cmd.Flags().String("max", "", "range maximum (empty means unbounded)")
	return cmd
}

func parseRange(minStr, maxStr string) (timeline.TimeRange, error) {
	if minStr == "" && maxStr == "" {
		return timeline.Everything(), nil
	}
	min := int64(timeline.Min)
	max := int64(timeline.Max)
	var err error
	if minStr != "" {
		min, err = strconv.ParseInt(minStr, 10, 64)
		if err != nil {
			return timeline.TimeRange{}, fmt.Errorf("parse min: %w", err)
		}
	}
	if maxStr != "" {
		max, err = strconv.ParseInt(maxStr, 10, 64)
		if err != nil {
			return timeline.TimeRange{}, fmt.Errorf("parse max: %w", err)
		}
	}
	if min > max {
		return timeline.TimeRange{}, fmt.Errorf("min %d is greater than max %d", min, max)
	}
	return timeline.NewRange(timeline.TimeInt(min), timeline.TimeInt(max)), nil
}
