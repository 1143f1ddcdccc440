package main

import (
	"log/slog"
	"strings"
	"sync"

	"sentra/internal/config"
	"sentra/internal/logging"
	"sentra/internal/screening"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// newScreener builds and initializes a screening service for one-shot
// CLI commands. The daemon builds its own through the same path.
func (c *commandContext) newScreener(cfg *config.Config, logger *slog.Logger) (*screening.Service, error) {
	svc := screening.New(screening.Options{
		SpamDir:      cfg.Paths.SpamDir,
		SnapshotPath: cfg.SnapshotPath(),
		Tolerance:    cfg.Matching.Tolerance,
		Logger:       logger,
	})
	if _, err := svc.Initialize(); err != nil {
		return nil, err
	}
	return svc, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
