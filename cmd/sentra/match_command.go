package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"sentra/internal/matcher"
	"sentra/internal/registry"
	"sentra/internal/screening"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "match <image-file>",
		Short: "Check an image against the registered fingerprints",
		Args:  cobra.ExactArgs(1),
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

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			result, err := screener.Match(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "phash: %s\n", result.Query)
			if result.Matched {
				fmt.Fprintf(out, "%s %s (distance %d, tolerance %d)\n",
					colorize(out, ansiRed, "MATCH"), result.ID, result.Distance, screener.Tolerance())
			} else {
				fmt.Fprintf(out, "%s (tolerance %d)\n",
					colorize(out, ansiGreen, "no match"), screener.Tolerance())
			}

			if showAll {
				printDistances(cmd, screener, result)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show the distance to every registered fingerprint")
	return cmd
}

func printDistances(cmd *cobra.Command, screener *screening.Service, result screening.MatchResult) {
	distances := matcher.Distances(result.Query, registry.New(screener.List()))
	if len(distances) == 0 {
		return
	}
	rows := make([][]string, 0, len(distances))
	for _, d := range distances {
		rows = append(rows, []string{d.ID, strconv.Itoa(d.Distance)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "DISTANCE"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}
