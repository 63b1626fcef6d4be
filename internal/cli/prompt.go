package cli

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/peircecrit/peirce/internal/stats"
)

func newPromptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Compute a threshold interactively",
		Long: `Ask for N, n and m, then print the threshold the same way as the
threshold command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			N, err := askNumber("Observations (N)", "", validateObservations)
			if err != nil {
				return interrupted(err)
			}
			n, err := askNumber("Suspected outliers (n)", "1", validateOutliers(N))
			if err != nil {
				return interrupted(err)
			}
			m, err := askNumber("Model unknowns (m)", "1", validateUnknowns)
			if err != nil {
				return interrupted(err)
			}

			return withCache(opts, func(cache stats.Cache) error {
				row, err := opts.lookupRow(cmd.Context(), cache, N, n, m)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return writeRowDetail(cmd.OutOrStdout(), row)
			})
		},
	}
}

func askNumber(label, def string, validate promptui.ValidateFunc) (float64, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  def,
		Validate: validate,
	}

	result, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result, 64)
}

// interrupted turns Ctrl-C at a prompt into a clean exit.
func interrupted(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}

func parseFinite(input string) (float64, error) {
	v, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, errors.New("enter a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("enter a finite number")
	}
	return v, nil
}

func validateObservations(input string) error {
	v, err := parseFinite(input)
	if err != nil {
		return err
	}
	if v < 2 {
		return errors.New("N must be at least 2")
	}
	return nil
}

func validateOutliers(total float64) promptui.ValidateFunc {
	return func(input string) error {
		v, err := parseFinite(input)
		if err != nil {
			return err
		}
		if v <= 0 || v >= total {
			return fmt.Errorf("n must be greater than 0 and less than %g", total)
		}
		return nil
	}
}

func validateUnknowns(input string) error {
	v, err := parseFinite(input)
	if err != nil {
		return err
	}
	if v < 0 {
		return errors.New("m cannot be negative")
	}
	return nil
}
