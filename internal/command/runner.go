// Package command runs the external system queries (launchctl, brew, pgrep, lsof,
// systemextensionsctl) that the installer parses. Every invocation is bounded by
// a timeout, and a failed or timed-out command means "status unknown".
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

// DefaultTimeout bounds every system query.
const DefaultTimeout = 5 * time.Second

// Result captures a finished command invocation.
type Result struct {
	Name     string
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Err      error
}

// OK reports whether the command ran to completion with exit code zero.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0 && !r.TimedOut
}

// CommandLine returns the invocation as a single display string.
func (r Result) CommandLine() string {
	return strings.TrimSpace(r.Name + " " + strings.Join(r.Args, " "))
}

var permissionMarkers = []string{
	"operation not permitted",
	"permission denied",
	"must be run as root",
	"not privileged",
	"requires root",
}

// PermissionDenied reports whether the command failed because it lacked privileges.
func (r Result) PermissionDenied() bool {
	if r.OK() {
		return false
	}
	text := strings.ToLower(string(r.Stderr) + " " + string(r.Stdout))
	for _, marker := range permissionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Fault classifies a non-OK result. It returns nil for successful results.
func (r Result) Fault() *fault.Error {
	if r.OK() {
		return nil
	}
	line := r.CommandLine()
	switch {
	case r.TimedOut:
		return fault.New(fault.CodeCommandTimeout, messages.CommandTimedOutFmt, line)
	case r.PermissionDenied():
		return fault.New(fault.CodePrivilegeEscalation, messages.CommandPermissionDeniedFmt, line, firstLine(r.Stderr))
	case r.Err != nil && r.ExitCode < 0:
		return fault.Wrap(fault.CodeCommandFailed, r.Err, messages.CommandStartFailedFmt, line)
	default:
		return fault.New(fault.CodeCommandFailed, messages.CommandExitFmt, line, r.ExitCode, firstLine(r.Stderr))
	}
}

func firstLine(data []byte) string {
	text := strings.TrimSpace(string(data))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return text
}

// Runner abstracts command execution so parsers can be tested with canned output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) Result
}

// ExecRunner runs commands on the local host with os/exec.
type ExecRunner struct {
	// Timeout bounds each invocation; zero means DefaultTimeout.
	Timeout time.Duration
}

// Run executes name with args and never blocks past the timeout or ctx deadline.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) Result {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Result{Name: name, Args: append([]string(nil), args...)}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 100 * time.Millisecond
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	if ctx.Err() != nil {
		res.TimedOut = true
		res.ExitCode = -1
		res.Err = fmt.Errorf(messages.CommandTimedOutFmt, res.CommandLine())
		return res
	}
	if err == nil {
		return res
	}
	res.Err = err
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res
	}
	res.ExitCode = -1
	return res
}
