package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show the admin table URL with access token",
		Long: `Show the admin token written by a running server, and the table URL
that uses it.

Example:
  peirce token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenFile := tokenFilePath(opts.cfg)

			data, err := os.ReadFile(tokenFile)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("no server running. Start with: peirce serve")
				}
				return fmt.Errorf("failed to read token file: %w", err)
			}

			token := strings.TrimSpace(string(data))
			if token == "" {
				return fmt.Errorf("token file is empty. Restart the server with: peirce serve")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token: %s\n", token)
			fmt.Fprintf(out, "Table: http://localhost:%d/table?token=%s\n", opts.cfg.Server.Port, token)
			return nil
		},
	}
}
