package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rerun-io/rerun-sub038/internal/chunk"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/config"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// fixture is the JSON shape an `ingest` file is read as: one entity's
// worth of rows, each stamped on zero or more timelines and carrying
// zero or more component cells.
type fixture struct {
	Entity string       `json:"entity"`
	Rows   []fixtureRow `json:"rows"`
}

type fixtureRow struct {
	Stamps map[string]int64           `json:"stamps"`
	Cells  map[string]json.RawMessage `json:"cells"`
}

func newIngestCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <fixture.json>",
		Short: "Ingest a JSON row fixture into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
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

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read fixture: %w", err)
			}
			var fx fixture
			if err := json.Unmarshal(data, &fx); err != nil {
				return fmt.Errorf("parse fixture: %w", err)
			}

			c, err := buildChunk(fx, cfg.Timelines)
			if err != nil {
				return fmt.Errorf("build chunk: %w", err)
			}

			ev := res.store.InsertChunk(c)
			logger.Info("ingested chunk",
				"entity", fx.Entity, "rows", c.NumRows(), "chunk_id", c.ID().String(), "event_id", ev.EventID)

			format, _ := cmd.Flags().GetString("format")
			p := newPrinter(outputFormat(format))
			return p.json(map[string]any{
				"entity":   fx.Entity,
				"chunk_id": c.ID().String(),
				"rows":     c.NumRows(),
			})
		},
	}
	return cmd
}

// buildChunk converts a fixture into a chunk.Chunk, resolving each
// row's timeline names against the configured timeline types and each
// cell key against chronostore's "archetype:field#name" descriptor
// syntax.
func buildChunk(fx fixture, timelines []config.TimelineConfig) (*chunk.Chunk, error) {
	entity := entitypath.New(fx.Entity)
	rows := make([]chunk.Row, 0, len(fx.Rows))

	for _, fr := range fx.Rows {
		row := chunk.Row{
			RowID:  newRowID(),
			Stamps: make(map[timeline.Timeline]timeline.TimeInt, len(fr.Stamps)),
			Cells:  make(map[component.Descriptor]any, len(fr.Cells)),
		}
		for name, v := range fr.Stamps {
			tl, err := resolveTimeline(name, timelines)
			if err != nil {
				return nil, err
			}
			row.Stamps[tl] = timeline.TimeInt(v)
		}
		for key, raw := range fr.Cells {
			var cell any
			if err := json.Unmarshal(raw, &cell); err != nil {
				return nil, fmt.Errorf("cell %q: %w", key, err)
			}
			row.Cells[parseDescriptor(key)] = cell
		}
		rows = append(rows, row)
	}

	return chunk.NewFromRows(entity, rows)
}

func resolveTimeline(name string, decls []config.TimelineConfig) (timeline.Timeline, error) {
	for _, d := range decls {
		if d.Name == name {
			switch d.Type {
			case "sequence":
				return timeline.New(name, timeline.Sequence), nil
			case "time":
				return timeline.New(name, timeline.Time), nil
			default:
				return timeline.Timeline{}, fmt.Errorf("timeline %q: unknown type %q", name, d.Type)
			}
		}
	}
	return timeline.Timeline{}, fmt.Errorf("timeline %q is not declared in the config", name)
}

// parseDescriptor reads chronostore's "archetype:field#name" component
// key syntax, falling back to a bare descriptor when no archetype
// prefix is present.
func parseDescriptor(key string) component.Descriptor {
	hash := strings.IndexByte(key, '#')
	if hash < 0 {
		return component.Bare(component.Name(key))
	}
	head, name := key[:hash], key[hash+1:]
	if colon := strings.IndexByte(head, ':'); colon >= 0 {
		return component.NewDescriptor(head[:colon], head[colon+1:], component.Name(name))
	}
	return component.NewDescriptor(head, "", component.Name(name))
}

var rowIDGen = rowid.NewGenerator(time.Now)

func newRowID() rowid.RowID {
	return rowIDGen.Next()
}
