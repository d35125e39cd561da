// Package report renders mask analysis results as CSV and console tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"spotroi/internal/core"
)

// DefaultFileName is the CSV written next to the analysed files.
const DefaultFileName = "ROI_Analysis_Results.csv"

// Columns are the CSV headers in output order.
var Columns = []string{
	"Filename",
	"Cell_Count",
	"Ch1_Spots",
	"Ch2_Spots_Total",
	"Ch2_Inside",
	"Ch2_Deep_Inside",
	"Ch2_Outside",
	"Group",
	"Ch1_per_Cell",
	"Ch2_Total_per_Cell",
	"Ch2_Inside_per_Cell",
	"Ch2_Deep_Inside_per_Cell",
}

func record(r core.AnalysisRow) []string {
	return []string{
		r.Filename,
		strconv.Itoa(r.CellCount),
		strconv.Itoa(r.Ch1Spots),
		strconv.Itoa(r.Ch2Total),
		strconv.Itoa(r.Ch2Inside),
		strconv.Itoa(r.Ch2DeepInside),
		strconv.Itoa(r.Ch2Outside),
		r.Group,
		formatRatio(r.Ch1PerCell()),
		formatRatio(r.Ch2TotalPerCell()),
		formatRatio(r.Ch2InsidePerCell()),
		formatRatio(r.Ch2DeepInsidePerCell()),
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes a header line and one line per row. Fields holding
// commas or quotes are quoted per RFC 4180.
func WriteCSV(w io.Writer, rows []core.AnalysisRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Filename, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// SaveCSV writes the report to path through a temporary file so a failed
// write leaves any previous report intact.
func SaveCSV(path string, rows []core.AnalysisRow) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, rows); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Summary renders the per-file counts as a console table.
func Summary(rows []core.AnalysisRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Group", "Cells", "Ch1", "Ch2", "Inside", "Deep", "Outside"})
	for _, r := range rows {
		tw.AppendRow(table.Row{
			r.Filename, r.Group, r.CellCount, r.Ch1Spots,
			r.Ch2Total, r.Ch2Inside, r.Ch2DeepInside, r.Ch2Outside,
		})
	}
	configs := make([]table.ColumnConfig, 0, 6)
	for i := 3; i <= 8; i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
