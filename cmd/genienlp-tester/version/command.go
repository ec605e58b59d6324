// Package version implements "genienlp-tester version" command.
package version

import (
	"fmt"

	"github.com/lgtm-migrator/genienlp-tester/version"

	"github.com/spf13/cobra"
)

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "genienlp-tester version" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints out genienlp-tester version",
		Run:   versionFunc,
	}
}

func versionFunc(cmd *cobra.Command, args []string) {
	fmt.Printf(`GitCommit: %s
ReleaseVersion: %s
BuildTime: %s
`,
		version.GitCommit,
		version.ReleaseVersion,
		version.BuildTime,
	)
}
