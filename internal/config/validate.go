package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateDiscord(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.Tolerance < 0 || c.Matching.Tolerance > 64 {
		return fmt.Errorf("matching.tolerance must be between 0 and 64, got %d", c.Matching.Tolerance)
	}
	return nil
}

func (c *Config) validateDiscord() error {
	if !c.Discord.Enabled {
		return nil
	}
	if c.Discord.CommandPrefix == "" {
		return errors.New("discord.command_prefix must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
