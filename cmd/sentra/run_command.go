package main

import (
	"github.com/spf13/cobra"

	"sentra/internal/daemon"
	"sentra/internal/matchlog"
	"sentra/internal/notifications"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the moderation daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			screener, err := ctx.newScreener(cfg, logger)
			if err != nil {
				return err
			}

			history, err := matchlog.Open(cfg.MatchLogPath())
			if err != nil {
				return err
			}
			defer history.Close()

			d, err := daemon.New(cfg, screener, history, notifications.NewService(cfg), logger)
			if err != nil {
				return err
			}
			return d.Run(cmd.Context())
		},
	}
}
