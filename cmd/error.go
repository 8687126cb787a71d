package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/ssfcore/ssf/pkg/platform/terminal"
)

// Warning prints a warning message to standard error. Control characters are
// neutralized since message may echo text that originated on the other end
// of a carrier connection.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), terminal.NeutralizeControlCharacters(message))
}

// Error prints an error message to standard error. Control characters are
// neutralized since err may wrap text that originated on the other end of a
// carrier connection.
func Error(err error) {
	fmt.Fprintln(os.Stderr, "Error:", terminal.NeutralizeControlCharacters(err.Error()))
}

// Fatal prints an error message to standard error and then terminates the
// process with an error exit code.
func Fatal(err error) {
	Error(err)
	os.Exit(1)
}
