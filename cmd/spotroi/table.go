package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"spotroi/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

type summaryLine struct {
	label string
	value int
}

// printSummary writes the end-of-run counters as a two-column table.
func printSummary(out io.Writer, title string, lines []summaryLine, stats pipeline.Stats) {
	rows := make([][]string, 0, len(lines)+1)
	for _, l := range lines {
		rows = append(rows, []string{l.label, strconv.Itoa(l.value)})
	}
	rows = append(rows, []string{"Bytes written", humanize.Bytes(uint64(stats.BytesWritten))})

	fmt.Fprintln(out, title)
	fmt.Fprintln(out, renderTable([]string{"Item", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
