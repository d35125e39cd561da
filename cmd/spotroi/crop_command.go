package main

import (
	"github.com/spf13/cobra"

	"spotroi/internal/pipeline"
	"spotroi/internal/roi"
)

func newCropCommand(ctx *commandContext) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "crop <input-dir> <output-dir>",
		Short: "Crop every ROI of every archive out of its matching image",
		Long: "Pair every .zip ROI archive in <input-dir> with a TIFF of the same base\n" +
			"name and save each ROI as <archive>_<roi>.tif in <output-dir>. Unnamed ROIs\n" +
			"are saved as ROI_<n>.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy := cfg.MatchPolicy()
			if cmd.Flags().Changed("match") {
				if policy, err = pipeline.ParseMatchPolicy(match); err != nil {
					return err
				}
			}

			inputDir, err := expandDir(args[0])
			if err != nil {
				return err
			}
			outputDir, err := expandDir(args[1])
			if err != nil {
				return err
			}

			logger, log, err := ctx.startRun("crop", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			cropper := &pipeline.Cropper{
				Ops:   ctx.newOps(log),
				Store: roi.Store{},
				Match: policy,
				Log:   log,
			}
			stats, err := cropper.Run(cmd.Context(), inputDir, outputDir)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), "ROI crop", []summaryLine{
				{"Archives found", stats.Total},
				{"Pairs processed", stats.Processed},
				{"Crops written", stats.Written},
				{"Unmatched archives", stats.Skipped},
				{"Failures", stats.Failed},
			}, stats)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "Archive/image pairing: exact-first or prefix (default from config)")
	return cmd
}
