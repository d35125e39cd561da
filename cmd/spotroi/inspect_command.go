package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"spotroi/internal/pipeline"
	"spotroi/internal/roi"
)

const inspectLimit = 5

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Show the records of the first ROI archive in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := expandDir(args[0])
			if err != nil {
				return err
			}

			file, set, err := pipeline.InspectFirst(roi.Store{}, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d ROI record(s)\n", file.Name, len(set))

			rows := make([][]string, 0, inspectLimit)
			for i := 0; i < len(set) && i < inspectLimit; i++ {
				r := set[i]
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					set.DisplayName(i),
					r.Type.String(),
					strconv.Itoa(len(r.Points)),
					r.Bounds.String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Name", "Type", "Points", "Bounds"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			if len(set) > inspectLimit {
				fmt.Fprintf(out, "... and %d more\n", len(set)-inspectLimit)
			}
			return nil
		},
	}
}
