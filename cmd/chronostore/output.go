package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// printer handles table or JSON output, adapted from gastrolog's CLI
// printer for chronostore's own row shapes.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string) *printer {
	return &printer{format: format, w: os.Stdout}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for i, h := range header {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, col)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	tw.Flush()
}

func outputFormat(format string) string {
	if format == "" {
		return "table"
	}
	return format
}
