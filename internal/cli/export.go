package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/store"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached thresholds",
		Long: `Export every cached threshold in CSV or JSON format.

Examples:
  peirce export --format csv > thresholds.csv
  peirce export --format json > thresholds.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format, formatCSV, formatJSON); err != nil {
				return err
			}

			return withStore(opts, func(s *store.SQLiteStore) error {
				thresholds, err := s.ListThresholds(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list thresholds: %w", err)
				}

				if format == formatCSV {
					return exportCSV(cmd.OutOrStdout(), thresholds)
				}
				return exportJSON(cmd.OutOrStdout(), thresholds)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatCSV, "output format (csv or json)")
	return cmd
}

func exportCSV(w io.Writer, thresholds []*store.Threshold) error {
	cw := csv.NewWriter(w)

	// Write header
	if err := cw.Write([]string{"observations", "outliers", "unknowns", "x2", "r", "iterations", "outcome", "created_at"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, t := range thresholds {
		row := []string{
			formatFloat(t.Observations),
			formatFloat(t.Outliers),
			formatFloat(t.Unknowns),
			formatFloat(t.X2),
			formatFloat(math.Sqrt(t.X2)),
			strconv.Itoa(t.Iterations),
			t.Outcome,
			strconv.FormatInt(t.CreatedAt.Unix(), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

type jsonExport struct {
	Thresholds []jsonThreshold `json:"thresholds"`
}

type jsonThreshold struct {
	Observations float64 `json:"observations"`
	Outliers     float64 `json:"outliers"`
	Unknowns     float64 `json:"unknowns"`
	X2           float64 `json:"x2"`
	R            float64 `json:"r"`
	Iterations   int     `json:"iterations"`
	Outcome      string  `json:"outcome"`
	CreatedAt    int64   `json:"created_at"`
}

func exportJSON(w io.Writer, thresholds []*store.Threshold) error {
	export := jsonExport{
		Thresholds: make([]jsonThreshold, len(thresholds)),
	}

	for i, t := range thresholds {
		export.Thresholds[i] = jsonThreshold{
			Observations: t.Observations,
			Outliers:     t.Outliers,
			Unknowns:     t.Unknowns,
			X2:           t.X2,
			R:            math.Sqrt(t.X2),
			Iterations:   t.Iterations,
			Outcome:      t.Outcome,
			CreatedAt:    t.CreatedAt.Unix(),
		}
	}

	return writeJSON(w, export)
}
