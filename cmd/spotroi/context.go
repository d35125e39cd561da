package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"spotroi/internal/config"
	"spotroi/internal/core"
	"spotroi/internal/imaging"
	"spotroi/internal/logging"
)

type commandContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// newOps builds the image backend; tests replace it.
	newOps func(logrus.FieldLogger) core.Ops
}

func newCommandContext(configFlag *string, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		debugFlag:  debugFlag,
		newOps: func(log logrus.FieldLogger) core.Ops {
			return imaging.NewOpenCV(log)
		},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// startRun opens the logger for one command run. Every entry carries the
// command name and a fresh run id.
func (c *commandContext) startRun(command string, stderr io.Writer) (*logging.Logger, *logrus.Entry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Debug:  c.debugFlag != nil && *c.debugFlag,
		Output: stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	entry := logger.WithFields(logrus.Fields{
		"command": command,
		"run_id":  uuid.NewString(),
	})
	return logger, entry, nil
}

func expandDir(arg string) (string, error) {
	dir, err := config.ExpandPath(strings.TrimSpace(arg))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", arg, err)
	}
	if dir == "" {
		return "", fmt.Errorf("directory argument is empty")
	}
	return dir, nil
}
