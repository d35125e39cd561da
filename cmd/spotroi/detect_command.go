package main

import (
	"github.com/spf13/cobra"

	"spotroi/internal/pipeline"
	"spotroi/internal/roi"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var radius, sigma, prominence float64
	var channels []int

	cmd := &cobra.Command{
		Use:   "detect <input-dir> <output-dir>",
		Short: "Detect spots in every TIFF and save one ROI archive per channel",
		Long: "Detect spots in every TIFF of <input-dir>. Each channel is background\n" +
			"subtracted, blurred and searched for maxima; channels with spots are saved\n" +
			"as <name>_C<k>_ROIs.zip in <output-dir>.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			params := cfg.Parameters()
			flags := cmd.Flags()
			if flags.Changed("radius") {
				params.BackgroundRadius = radius
			}
			if flags.Changed("sigma") {
				params.BlurSigma = sigma
			}
			if flags.Changed("prominence") {
				params.Prominence = prominence
			}
			indices := cfg.Detect.Channels
			if flags.Changed("channels") {
				indices = channels
			}

			inputDir, err := expandDir(args[0])
			if err != nil {
				return err
			}
			outputDir, err := expandDir(args[1])
			if err != nil {
				return err
			}

			logger, log, err := ctx.startRun("detect", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			detector := &pipeline.Detector{
				Ops:      ctx.newOps(log),
				Store:    roi.Store{},
				Params:   params,
				Channels: indices,
				Log:      log,
			}
			stats, err := detector.Run(cmd.Context(), inputDir, outputDir)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), "Spot detection", []summaryLine{
				{"Images found", stats.Total},
				{"Images processed", stats.Processed},
				{"Archives written", stats.Written},
				{"Channels without spots", stats.Empty},
				{"Failures", stats.Failed},
			}, stats)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().Float64Var(&radius, "radius", 0, "Rolling ball radius for background subtraction (default from config)")
	cmd.Flags().Float64Var(&sigma, "sigma", 0, "Gaussian blur sigma (default from config)")
	cmd.Flags().Float64Var(&prominence, "prominence", 0, "Peak prominence (default from config)")
	cmd.Flags().IntSliceVar(&channels, "channels", nil, "1-based channel indices to process (default from config)")
	return cmd
}
