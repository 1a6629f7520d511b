// Command ljctl is the operator command line for the costmap jockey.
package main

import (
	"os"

	"github.com/banshee-data/lj-costmap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
