package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spotroi/internal/pipeline"
	"spotroi/internal/report"
	"spotroi/internal/roi"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var erosion, deepErosion int

	cmd := &cobra.Command{
		Use:   "analyze <dir>",
		Short: "Count spots inside and outside the cells of each mask",
		Long: "For every *_cells_mask.tif or *_cell_mask.tif in <dir> with matching\n" +
			"<id>_C1_ROIs.zip and <id>_C2_ROIs.zip archives, count cells and spots and\n" +
			"write a CSV report.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("erosion") {
				cfg.Analyze.Erosion = erosion
			}
			if cmd.Flags().Changed("deep-erosion") {
				cfg.Analyze.DeepErosion = deepErosion
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			inputDir, err := expandDir(args[0])
			if err != nil {
				return err
			}
			outputDir := inputDir
			if outputFlag != "" {
				if outputDir, err = expandDir(outputFlag); err != nil {
					return err
				}
			}

			logger, log, err := ctx.startRun("analyze", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			analyzer := &pipeline.Analyzer{
				Ops:         ctx.newOps(log),
				Store:       roi.Store{},
				Erosion:     cfg.Analyze.Erosion,
				DeepErosion: cfg.Analyze.DeepErosion,
				Groups:      cfg.Analyze.Groups,
				ReportName:  cfg.Analyze.ReportName,
				Log:         log,
			}
			rows, stats, err := analyzer.Run(cmd.Context(), inputDir, outputDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) > 0 {
				fmt.Fprintln(out, report.Summary(rows))
			}
			printSummary(out, "Mask analysis", []summaryLine{
				{"Masks found", stats.Total},
				{"Masks analysed", stats.Processed},
				{"Masks without archives", stats.Skipped},
				{"Failures", stats.Failed},
			}, stats)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory for the CSV report (default: <dir>)")
	cmd.Flags().IntVar(&erosion, "erosion", 0, "Standard mask erosion in pixels (default from config)")
	cmd.Flags().IntVar(&deepErosion, "deep-erosion", 0, "Deep mask erosion in pixels (default from config)")
	return cmd
}
