package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"obit-feed-enricher/internal/models"
)

func renderSummary(w io.Writer, s models.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Entries", "Enriched", "Skipped", "Unprocessed", "Output"})
	t.AppendRow(table.Row{s.Total, s.Enriched, s.Skipped, s.Unprocessed, s.Destination})
	t.Render()

	switch {
	case s.Halted:
		fmt.Fprintf(w, "Stopped at entry %d: the site answered with an \"are you human\" challenge. Entries from %d on were left unchanged.\n",
			s.HaltedAt, s.HaltedAt)
	case s.Interrupted:
		fmt.Fprintf(w, "Interrupted; %d entries were left unchanged.\n", s.Unprocessed)
	default:
		fmt.Fprintln(w, "Done.")
	}
}
