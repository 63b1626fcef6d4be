package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/peircecrit/peirce/internal/stats"
)

const (
	formatText = "text"
	formatCSV  = "csv"
	formatJSON = "json"
)

type jsonRow struct {
	Observations    float64 `json:"observations"`
	Outliers        float64 `json:"outliers"`
	Unknowns        float64 `json:"unknowns"`
	X2              float64 `json:"x2"`
	R               float64 `json:"r"`
	TailProbability float64 `json:"tail_probability"`
	Iterations      int     `json:"iterations"`
	Outcome         string  `json:"outcome,omitempty"`
	Cached          bool    `json:"cached"`
	Error           string  `json:"error,omitempty"`
}

func toJSONRow(r stats.Row) jsonRow {
	return jsonRow{
		Observations:    r.Observations,
		Outliers:        r.Outliers,
		Unknowns:        r.Unknowns,
		X2:              r.X2,
		R:               r.R,
		TailProbability: r.TailProbability,
		Iterations:      r.Iterations,
		Outcome:         string(r.Outcome),
		Cached:          r.Cached,
		Error:           r.Error,
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeRowDetail prints a single solved row as aligned key/value lines.
func writeRowDetail(w io.Writer, r stats.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Observations (N):\t%g\n", r.Observations)
	fmt.Fprintf(tw, "Outliers (n):\t%g\n", r.Outliers)
	fmt.Fprintf(tw, "Unknowns (m):\t%g\n", r.Unknowns)
	fmt.Fprintf(tw, "Ratio R:\t%.6f\n", r.R)
	fmt.Fprintf(tw, "Deviation x2:\t%.6f\n", r.X2)
	fmt.Fprintf(tw, "Tail probability:\t%.4f%%\n", r.TailProbability*100)
	fmt.Fprintf(tw, "Iterations:\t%d\n", r.Iterations)
	fmt.Fprintf(tw, "Outcome:\t%s\n", outcomeLabel(r))
	return tw.Flush()
}

func outcomeLabel(r stats.Row) string {
	label := string(r.Outcome)
	if r.Cached {
		label += " (cached)"
	}
	return label
}

func writeTable(w io.Writer, format string, table *stats.Table) error {
	switch format {
	case formatCSV:
		return writeTableCSV(w, table)
	case formatJSON:
		rows := make([]jsonRow, len(table.Rows))
		for i, r := range table.Rows {
			rows[i] = toJSONRow(r)
		}
		return writeJSON(w, struct {
			Rows []jsonRow `json:"rows"`
		}{rows})
	default:
		return writeTableText(w, table)
	}
}

func writeTableText(w io.Writer, table *stats.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "N\tn\tm\tR\tx2\tP(>R)\tITER\tOUTCOME")
	for _, r := range table.Rows {
		if r.Error != "" {
			fmt.Fprintf(tw, "%g\t%g\t%g\t-\t-\t-\t-\t%s\n", r.Observations, r.Outliers, r.Unknowns, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%g\t%g\t%g\t%.4f\t%.4f\t%.4f\t%d\t%s\n",
			r.Observations, r.Outliers, r.Unknowns, r.R, r.X2, r.TailProbability, r.Iterations, outcomeLabel(r))
	}
	return tw.Flush()
}

func writeTableCSV(w io.Writer, table *stats.Table) error {
	cw := csv.NewWriter(w)

	header := []string{"observations", "outliers", "unknowns", "x2", "r", "tail_probability", "iterations", "outcome", "cached", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range table.Rows {
		record := []string{
			formatFloat(r.Observations),
			formatFloat(r.Outliers),
			formatFloat(r.Unknowns),
			formatFloat(r.X2),
			formatFloat(r.R),
			formatFloat(r.TailProbability),
			strconv.Itoa(r.Iterations),
			string(r.Outcome),
			strconv.FormatBool(r.Cached),
			r.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func validFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %v", format, allowed)
}
