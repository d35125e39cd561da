package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"

	"spotroi/internal/config"
	"spotroi/internal/core"
	"spotroi/internal/pipeline"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	require.False(t, exists)
	require.NotEmpty(t, resolved)

	require.Equal(t, core.DefaultParameters(), cfg.Parameters())
	require.Equal(t, []int{1, 2}, cfg.Detect.Channels)
	require.Equal(t, pipeline.MatchExactFirst, cfg.MatchPolicy())
	require.Equal(t, 4, cfg.Analyze.Erosion)
	require.Equal(t, 20, cfg.Analyze.DeepErosion)
	require.Equal(t, "ROI_Analysis_Results.csv", cfg.Analyze.ReportName)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, map[string]string{
		"Saline_Gastro": "HSA-Saline",
		"DI_Gastro":     "HSA_CLAAAV",
	}, cfg.Analyze.Groups)
}

func TestLoadExplicitFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[detect]
background_radius = 25
prominence = 10
channels = [2, 1, 2]

[crop]
match = " PREFIX "

[analyze.groups]
A_B = "renamed"

[logging]
level = "DEBUG"
format = "json"
file = "~/logs/spotroi.log"
`), 0o644))

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, path, resolved)

	require.Equal(t, 25.0, cfg.Detect.BackgroundRadius)
	require.Equal(t, 1.0, cfg.Detect.BlurSigma, "unset keys keep their default")
	require.Equal(t, 10.0, cfg.Detect.Prominence)
	require.Equal(t, []int{1, 2}, cfg.Detect.Channels)
	require.Equal(t, pipeline.MatchPrefix, cfg.MatchPolicy())
	require.Equal(t, map[string]string{"A_B": "renamed"}, cfg.Analyze.Groups)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, filepath.Join(home, "logs", "spotroi.log"), cfg.Logging.File)
}

func TestLoadProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spotroi.toml"), []byte("[detect]\nblur_sigma = 0\n"), 0o644))

	cfg, _, exists, err := config.Load("")
	require.NoError(t, err)
	require.True(t, exists)
	require.Zero(t, cfg.Detect.BlurSigma)
}

func TestFileWithoutGroupsKeepsDefaultGroups(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analyze]\nerosion = 0\n"), 0o644))

	cfg, _, _, err := config.Load(path)
	require.NoError(t, err)
	require.Zero(t, cfg.Analyze.Erosion)
	require.Equal(t, "HSA-Saline", cfg.Analyze.Groups["Saline_Gastro"])
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"radius":     "[detect]\nbackground_radius = 0\n",
		"sigma":      "[detect]\nblur_sigma = -1\n",
		"sigma cap":  "[detect]\nblur_sigma = 60\n",
		"prominence": "[detect]\nprominence = -5\n",
		"channel":    "[detect]\nchannels = [0]\n",
		"match":      "[crop]\nmatch = \"fuzzy\"\n",
		"erosion":    "[analyze]\nerosion = -1\n",
		"report":     "[analyze]\nreport_name = \"../out.csv\"\n",
		"level":      "[logging]\nlevel = \"loud\"\n",
		"format":     "[logging]\nformat = \"xml\"\n",
		"unknown":    "[detect]\nradius = 3\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, _, _, err := config.Load(path)
			require.Error(t, err)
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	cfg, _, exists, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "HSA-Saline", cfg.Analyze.Groups["Saline_Gastro"])
	require.Equal(t, config.Default().Detect, cfg.Detect)
}

func TestEncodeRoundTrips(t *testing.T) {
	cfg := config.Default()
	out, err := cfg.Encode()
	require.NoError(t, err)

	var decoded config.Config
	require.NoError(t, toml.Unmarshal([]byte(out), &decoded))
	require.Equal(t, cfg.Detect, decoded.Detect)
	require.Equal(t, cfg.Crop, decoded.Crop)
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
