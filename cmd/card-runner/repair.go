package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Restore favorite/like consistency and recount likes",
		Long: "Scans every favorite and like edge, removes edges that point at deleted users or cards, " +
			"completes one-sided edges from the card side, and recomputes like counts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.repairer.Repair(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"dangling favorites: %d\ndangling likes: %d\nfavorites added: %d\nfavorites removed: %d\nlike counts fixed: %d\n",
				report.DanglingFavorites, report.DanglingLikes, report.FavoritesAdded, report.FavoritesRemoved, report.CountsFixed)
			return nil
		},
	}
}
