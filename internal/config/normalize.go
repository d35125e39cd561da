package config

import (
	"fmt"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeDetect()
	c.Crop.Match = strings.ToLower(strings.TrimSpace(c.Crop.Match))
	if c.Crop.Match == "" {
		c.Crop.Match = Default().Crop.Match
	}
	c.normalizeAnalyze()
	return c.normalizeLogging()
}

func (c *Config) normalizeDetect() {
	if len(c.Detect.Channels) == 0 {
		c.Detect.Channels = Default().Detect.Channels
		return
	}
	seen := make(map[int]bool, len(c.Detect.Channels))
	channels := c.Detect.Channels[:0]
	for _, ch := range c.Detect.Channels {
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}
	sort.Ints(channels)
	c.Detect.Channels = channels
}

func (c *Config) normalizeAnalyze() {
	c.Analyze.ReportName = strings.TrimSpace(c.Analyze.ReportName)
	if c.Analyze.ReportName == "" {
		c.Analyze.ReportName = Default().Analyze.ReportName
	}
	if c.Analyze.Groups == nil {
		c.Analyze.Groups = defaultGroups()
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
