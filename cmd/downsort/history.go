package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Downsort/internal/history"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		limit   int
		forRoot bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent queries",
		Long: `Show recent queries recorded in the history database.

Recording is enabled with history.enabled in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			store, err := a.openHistory()
			if err != nil {
				return err
			}

			var records []history.Record
			if forRoot {
				root, absErr := filepath.Abs(a.cfg.Scan.Root)
				if absErr != nil {
					return absErr
				}
				records, err = store.ForRoot(root, limit)
			} else {
				records, err = store.Recent(limit)
			}
			if err != nil {
				return err
			}
			return a.renderer().History(records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&forRoot, "this-dir", false, "only show queries of the scanned directory")
	return cmd
}
