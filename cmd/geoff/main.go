// Command geoff answers natural-language questions about city data with
// PostGIS queries and map layers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/geoff/internal/cli"
)

// Version information (set by build)
var Version = "dev"

func main() {
	root := cli.NewRootCommand()
	root.Version = Version

	if err := root.ExecuteContext(context.Background()); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
