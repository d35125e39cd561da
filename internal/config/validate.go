package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"spotroi/internal/pipeline"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetect(); err != nil {
		return err
	}
	if _, err := pipeline.ParseMatchPolicy(c.Crop.Match); err != nil {
		return fmt.Errorf("crop.match: %w", err)
	}
	if err := c.validateAnalyze(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDetect() error {
	if err := c.Parameters().Validate(); err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	for _, ch := range c.Detect.Channels {
		if ch < 1 {
			return fmt.Errorf("detect.channels: channel %d is not a 1-based index", ch)
		}
	}
	return nil
}

func (c *Config) validateAnalyze() error {
	if c.Analyze.Erosion < 0 {
		return errors.New("analyze.erosion must not be negative")
	}
	if c.Analyze.DeepErosion < 0 {
		return errors.New("analyze.deep_erosion must not be negative")
	}
	if filepath.Base(c.Analyze.ReportName) != c.Analyze.ReportName {
		return fmt.Errorf("analyze.report_name %q must be a file name, not a path", c.Analyze.ReportName)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
