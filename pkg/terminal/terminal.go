// Package terminal implements terminal detection utilities.
package terminal

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// IsColor returns an error if the current terminal does not support colors.
// Returns the TERM value otherwise.
func IsColor() (string, error) {
	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return "", fmt.Errorf("TERM %q does not support colors", term)
	}
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return "", fmt.Errorf("stderr is not a terminal")
	}
	return term, nil
}
