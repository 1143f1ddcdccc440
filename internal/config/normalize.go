package config

import "strings"

// normalize expands paths and fills empty fields with defaults so the
// rest of the application never deals with unexpanded or blank values.
func (c *Config) normalize() error {
	var err error
	if c.Paths.SpamDir, err = expandPath(orDefault(c.Paths.SpamDir, defaultSpamDir)); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(orDefault(c.Paths.DataDir, defaultDataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Discord.Token = strings.TrimSpace(c.Discord.Token)
	c.Discord.CommandPrefix = strings.TrimSpace(orDefault(c.Discord.CommandPrefix, defaultCommandPrefix))
	c.Discord.AlertMessage = strings.TrimSpace(orDefault(c.Discord.AlertMessage, defaultAlertMessage))
	if c.Discord.NoticeTTLSeconds < 0 {
		c.Discord.NoticeTTLSeconds = 0
	}
	if c.Discord.DownloadTimeout <= 0 {
		c.Discord.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Discord.MaxDownloadMiB <= 0 {
		c.Discord.MaxDownloadMiB = defaultMaxDownloadMiB
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(orDefault(c.Logging.Format, defaultLogFormat)))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(orDefault(c.Logging.Level, defaultLogLevel)))
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
