// genienlp-tester is a set of genienlp functional test commands.
package main

import (
	"fmt"
	"os"

	"github.com/lgtm-migrator/genienlp-tester/cmd/genienlp-tester/matrix"
	"github.com/lgtm-migrator/genienlp-tester/cmd/genienlp-tester/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:        "genienlp-tester",
	Short:      "genienlp test CLI",
	SuggestFor: []string{"genietest"},
}

func init() {
	cobra.EnablePrefixMatching = true
}

func init() {
	rootCmd.AddCommand(
		matrix.NewCommand(),
		version.NewCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "genienlp-tester failed %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
