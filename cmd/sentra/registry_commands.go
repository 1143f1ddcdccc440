package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"sentra/internal/registry"
	"sentra/internal/screening"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <image-file>",
		Short: "Register an image as spam",
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
			hint := name
			if hint == "" {
				hint = args[0]
			}

			added, err := screener.Add(data, hint)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (phash %s, %d total)\n",
				added.ID, added.Fingerprint, screener.Count())
			if added.PersistErr != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: not fully persisted: %v\n", added.PersistErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name hint used in the generated id")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Unregister a spam fingerprint",
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

			removed := screener.Remove(args[0])
			if !removed.Found {
				return fmt.Errorf("%w: %s", registry.ErrNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%d remaining)\n", args[0], screener.Count())
			if removed.PersistErr != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: not fully persisted: %v\n", removed.PersistErr)
			}
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered fingerprints in insertion order",
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

			entries := screener.List()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No fingerprints registered.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for i, entry := range entries {
				added := ""
				if !entry.AddedAt.IsZero() {
					added = entry.AddedAt.Format("2006-01-02 15:04")
				}
				name := ""
				if display := screening.DisplayName(entry.ID); display != entry.ID {
					name = display
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					entry.ID,
					entry.Fingerprint.Hex(),
					name,
					added,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "ID", "PHASH", "NAME", "ADDED"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newReloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Rescan the spam directory and rewrite the snapshot",
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

			count, err := screener.Reload()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reloaded: %d fingerprints registered\n", count)
			return nil
		},
	}
}
