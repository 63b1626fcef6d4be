package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/stats"
)

func newTableCmd(opts *rootOptions) *cobra.Command {
	var (
		observations []float64
		outliers     []float64
		unknowns     []float64
		format       string
	)

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print a table of thresholds",
		Long: `Print thresholds for every combination of the given axes. Combinations
with n <= 0 or n >= N are skipped. The axes default to the table section of
the config file, or to N = 3,5,10,16, n = 1,2, m = 1.

Examples:
  peirce table
  peirce table --observations 5,10,20 --outliers 1,2,3 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format, formatText, formatCSV, formatJSON); err != nil {
				return err
			}

			spec := opts.cfg.Table.Spec()
			flags := cmd.Flags()
			if flags.Changed("observations") {
				spec.Observations = observations
			}
			if flags.Changed("outliers") {
				spec.Outliers = outliers
			}
			if flags.Changed("unknowns") {
				spec.Unknowns = unknowns
			}

			for name, axis := range map[string][]float64{
				"observations": spec.Observations,
				"outliers":     spec.Outliers,
				"unknowns":     spec.Unknowns,
			} {
				if err := checkFinite(name, axis); err != nil {
					return err
				}
			}

			return withCache(opts, func(cache stats.Cache) error {
				table, err := opts.solver().BuildTable(cmd.Context(), cache, spec)
				if err != nil {
					return err
				}
				return writeTable(cmd.OutOrStdout(), format, table)
			})
		},
	}

	flags := cmd.Flags()
	flags.Float64SliceVar(&observations, "observations", nil, "observation counts N")
	flags.Float64SliceVar(&outliers, "outliers", nil, "outlier counts n")
	flags.Float64SliceVar(&unknowns, "unknowns", nil, "model unknown counts m")
	flags.StringVarP(&format, "format", "f", formatText, "output format (text, csv or json)")
	return cmd
}

func checkFinite(name string, values []float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("--%s values must be finite, got %g", name, v)
		}
	}
	return nil
}
