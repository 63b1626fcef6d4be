package main

import (
	"os"

	"github.com/peircecrit/peirce/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
