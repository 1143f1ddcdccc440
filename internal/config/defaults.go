package config

const (
	defaultSpamDir         = "~/.local/share/sentra/spam_images"
	defaultDataDir         = "~/.local/share/sentra"
	defaultLogDir          = "~/.local/share/sentra/logs"
	defaultAPIBind         = "127.0.0.1:7910"
	defaultTolerance       = 5
	defaultCommandPrefix   = "!"
	defaultAlertMessage    = "A spam image was removed."
	defaultNoticeTTL       = 6
	defaultDownloadTimeout = 20
	defaultMaxDownloadMiB  = 24
	defaultNtfyTimeout     = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SpamDir: defaultSpamDir,
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Matching: Matching{
			Tolerance: defaultTolerance,
		},
		Discord: Discord{
			Enabled:          true,
			CommandPrefix:    defaultCommandPrefix,
			AlertMessage:     defaultAlertMessage,
			NoticeTTLSeconds: defaultNoticeTTL,
			DownloadTimeout:  defaultDownloadTimeout,
			MaxDownloadMiB:   defaultMaxDownloadMiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Detections:     true,
			Registry:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
