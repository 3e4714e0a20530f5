package main

import (
	"github.com/spf13/cobra"

	"github.com/Ning0612/Downsort/internal/core/grouping"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [dir]",
		Aliases: []string{"ls"},
		Short:   "List every file, sorted by name",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.ListAll(cmd.Context(), a.request(args))
			if err != nil {
				return err
			}
			return a.renderer().Files(res)
		},
	}
}

func (a *app) byExtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "by-ext [dir]",
		Short: "Group files by extension",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.ListByExtension(cmd.Context(), a.request(args))
			if err != nil {
				return err
			}
			return a.renderer().Groups(res)
		},
	}
}

func (a *app) byDateCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "by-date [dir]",
		Short: "Group files by modification date",
		Long: `Group files by modification date.

  relative  Today, Yesterday, This Week, This Month, Older
  day       one group per calendar day (YYYY-MM-DD), newest first`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := a.request(args)
			req.DateMode = grouping.DateMode(mode)

			res, err := a.svc.ListByDate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.renderer().Groups(res)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "date mode: relative or day (default: grouping.date_mode)")
	return cmd
}

func (a *app) dupesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dupes [dir]",
		Aliases: []string{"duplicates"},
		Short:   "Find duplicate files",
		Long: `Find duplicate files by name pattern and by content.

Each group names an original and classifies the other members:
  exact     same bytes as the original, safe to delete
  numbered  a numbered copy ("name (1).ext") with different content
  unknown   related by name or content only; review by hand`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.FindDuplicates(cmd.Context(), a.request(args))
			if err != nil {
				return err
			}
			return a.renderer().Duplicates(res)
		},
	}
}
