// Package matrix implements genienlp test matrix commands.
package matrix

import "github.com/spf13/cobra"

func init() {
	cobra.EnablePrefixMatching = true
}

var (
	path         string
	autoPath     bool
	enablePrompt bool
)

// NewCommand implements "genienlp-tester matrix" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:        "matrix",
		Short:      "matrix commands",
		SuggestFor: []string{"matriks"},
	}
	cmd.PersistentFlags().StringVarP(&path, "path", "p", "", "genienlp-tester matrix configuration file path")
	cmd.PersistentFlags().BoolVarP(&autoPath, "auto-path", "a", false, "'true' to auto-generate configuration file path")
	cmd.PersistentFlags().BoolVarP(&enablePrompt, "enable-prompt", "e", true, "'true' to enable prompt mode")
	cmd.AddCommand(
		newCreate(),
		newRun(),
	)
	return cmd
}
