package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registry and configuration status",
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

			rows := [][]string{
				{"Fingerprints", fmt.Sprintf("%d", screener.Count())},
				{"Tolerance", fmt.Sprintf("%d bits", screener.Tolerance())},
				{"Spam directory", cfg.Paths.SpamDir},
				{"Snapshot", cfg.SnapshotPath()},
				{"Detection log", cfg.MatchLogPath()},
				{"Discord enabled", yesNo(cfg.Discord.Enabled)},
				{"API bind", cfg.Paths.APIBind},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"FIELD", "VALUE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
