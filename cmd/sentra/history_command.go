package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sentra/internal/matchlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent spam detections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := matchlog.Open(cfg.MatchLogPath())
			if err != nil {
				return err
			}
			defer store.Close()

			detections, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(detections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No detections recorded.")
				return nil
			}

			rows := make([][]string, 0, len(detections))
			for _, d := range detections {
				rows = append(rows, []string{
					d.DetectedAt.Local().Format("2006-01-02 15:04:05"),
					d.EntryID,
					strconv.Itoa(d.Distance),
					d.Poster,
					d.Channel,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"DETECTED", "ID", "DIST", "POSTER", "CHANNEL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of detections to show")
	return cmd
}
