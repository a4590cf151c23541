package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

var (
	okColor   = color.New(color.FgGreen).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	failColor = color.New(color.FgRed).SprintFunc()
	hunkColor = color.New(color.FgCyan).SprintFunc()
	boldColor = color.New(color.Bold).SprintFunc()
)

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

// printCheck renders one doctor-style result line with an optional indented remedy.
func printCheck(out io.Writer, status checkStatus, name string, message string, remedy string) {
	var label string
	switch status {
	case checkOK:
		label = okColor(messages.StatusOKLabel)
	case checkWarn:
		label = warnColor(messages.StatusWarnLabel)
	default:
		label = failColor(messages.StatusFailLabel)
	}
	_, _ = fmt.Fprintf(out, messages.ResultLineFmt, label, name, message)
	if remedy != "" {
		printIndented(out, remedy)
	}
}

// printIndented renders a multi-line block under a result line.
func printIndented(out io.Writer, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			_, _ = fmt.Fprintln(out)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s%s\n", messages.DetailIndent, line)
	}
}

func printKeyValue(out io.Writer, key string, value string) {
	_, _ = fmt.Fprintf(out, messages.KeyValueFmt, key, value)
}

// printFault writes the taxonomy kind, code, cause, and remedy of err.
func printFault(out io.Writer, err *fault.Error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprintln(out, failColor(messages.ErrorHeader))
	for _, line := range err.Lines() {
		_, _ = fmt.Fprintf(out, messages.ErrorLine, line)
	}
}

// failWith reports err on out and returns the silent exit carrying code.
func failWith(out io.Writer, err error, code int) error {
	printFault(out, fault.From(err))
	return &SilentExitError{Code: code}
}
