package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/store"
)

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s *store.SQLiteStore) error {
				removed, err := s.ClearThresholds(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				slog.Debug("cache cleared", "db", opts.cfg.DBPath, "removed", removed)
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached threshold(s)\n", removed)
				return nil
			})
		},
	}
}
