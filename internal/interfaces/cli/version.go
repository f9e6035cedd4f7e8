package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// buildInfo is the printable result of `medrx version`.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (b buildInfo) String() string {
	return fmt.Sprintf("medrx %s (commit: %s, built: %s, %s %s)",
		b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Platform)
}

func (b buildInfo) TableHeaders() []string {
	return []string{"FIELD", "VALUE"}
}

func (b buildInfo) TableRows() [][]string {
	return [][]string{
		{"version", b.Version},
		{"commit", b.Commit},
		{"build date", b.BuildDate},
		{"go version", b.GoVersion},
		{"platform", b.Platform},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, buildInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			})
		},
	}
}
