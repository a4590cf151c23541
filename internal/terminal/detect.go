// Package terminal provides terminal detection utilities.
package terminal

import (
	"io"
	"os"

	"golang.org/x/term"
)

var isTerminalFunc = term.IsTerminal

// IsInteractive reports whether stdin and stdout are both interactive terminals.
// Confirmation prompts and the install spinner are only shown when this holds.
func IsInteractive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// IsTerminal reports whether w is a file descriptor attached to a terminal.
// Buffers and other non-file writers are never terminals.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isTerminalFunc(int(f.Fd()))
}

// ColorEnabled reports whether output written to w should be colored.
func ColorEnabled(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return IsTerminal(w)
}
