package cli

import (
	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/stats"
)

func newThresholdCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "threshold <N> [n] [m]",
		Short: "Compute the rejection threshold for one combination",
		Long: `Compute the Peirce's criterion threshold for N observations, n suspected
outliers and m model unknowns. n and m default to 1.

Examples:
  peirce threshold 10
  peirce threshold 16 2 1 --json`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			N, n, m, err := parseThresholdArgs(args)
			if err != nil {
				return err
			}

			return withCache(opts, func(cache stats.Cache) error {
				row, err := opts.lookupRow(cmd.Context(), cache, N, n, m)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), toJSONRow(row))
				}
				return writeRowDetail(cmd.OutOrStdout(), row)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func parseThresholdArgs(args []string) (N, n, m float64, err error) {
	n, m = 1, 1

	if N, err = parseNumber("N", args[0]); err != nil {
		return
	}
	if len(args) > 1 {
		if n, err = parseNumber("n", args[1]); err != nil {
			return
		}
	}
	if len(args) > 2 {
		if m, err = parseNumber("m", args[2]); err != nil {
			return
		}
	}
	return N, n, m, nil
}
