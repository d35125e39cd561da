package config

import (
	"spotroi/internal/core"
	"spotroi/internal/pipeline"
	"spotroi/internal/report"
)

const (
	defaultConfigPath = "~/.config/spotroi/config.toml"
	projectConfigName = "spotroi.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Detect: Detect{
			BackgroundRadius: core.DefaultBackgroundRadius,
			BlurSigma:        core.DefaultBlurSigma,
			Prominence:       core.DefaultProminence,
			Channels:         append([]int(nil), pipeline.DefaultChannels...),
		},
		Crop: Crop{
			Match: string(pipeline.DefaultMatchPolicy),
		},
		Analyze: Analyze{
			Erosion:     pipeline.DefaultErosion,
			DeepErosion: pipeline.DefaultDeepErosion,
			ReportName:  report.DefaultFileName,
			Groups:      defaultGroups(),
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaultGroups renames the stock sample groups. A [analyze.groups] table
// in the config file replaces it.
func defaultGroups() map[string]string {
	return map[string]string{
		"Saline_Gastro": "HSA-Saline",
		"DI_Gastro":     "HSA_CLAAAV",
	}
}
