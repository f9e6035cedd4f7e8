// Command medrx is the MedRx-Intelligence entry point: the API server, the
// reminder worker, schema migrations, and one-shot extraction sit behind a
// single binary.
package main

import (
	"os"

	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/cli"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = gitCommit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
