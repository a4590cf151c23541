// Package testutil holds shared helpers for package tests: executable shell
// stubs, a scripted command runner, and bundle fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/conn-castle/dextctl/internal/command"
)

// WriteStub writes an executable shell stub that exits successfully.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStub(t *testing.T, dir string, name string) string {
	t.Helper()
	return WriteStubWithExit(t, dir, name, 0)
}

// WriteStubWithExit writes an executable shell stub that exits with the provided code.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubWithExit(t *testing.T, dir string, name string, exitCode int) string {
	t.Helper()
	return WriteScript(t, dir, name, fmt.Sprintf("exit %d\n", exitCode))
}

// WriteStubOutput writes an executable stub that prints stdout verbatim and exits with exitCode.
func WriteStubOutput(t *testing.T, dir string, name string, stdout string, exitCode int) string {
	t.Helper()
	dataPath := filepath.Join(dir, name+".out")
	if err := os.WriteFile(dataPath, []byte(stdout), 0o644); err != nil {
		t.Fatalf("write stub output: %v", err)
	}
	return WriteScript(t, dir, name, fmt.Sprintf("cat %q\nexit %d\n", dataPath, exitCode))
}

// WriteScript writes an executable /bin/sh script with body and returns its path.
func WriteScript(t *testing.T, dir string, name string, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := []byte("#!/bin/sh\n" + body)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir stub dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

// FakeRunner is a scripted command.Runner keyed by the full command line.
// Unscripted commands fail as if the binary were missing.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string][]command.Result
	handlers  map[string]func(args []string) command.Result
	calls     []string
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: map[string][]command.Result{},
		handlers:  map[string]func(args []string) command.Result{},
	}
}

// Set scripts stdout and exit code for an exact command line such as "launchctl list".
// Repeated calls for the same line queue responses; the last one repeats.
func (f *FakeRunner) Set(line string, stdout string, exitCode int) *FakeRunner {
	return f.SetResult(line, command.Result{Stdout: []byte(stdout), ExitCode: exitCode})
}

// SetResult scripts a full result for an exact command line.
func (f *FakeRunner) SetResult(line string, res command.Result) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res.ExitCode != 0 && res.Err == nil {
		res.Err = fmt.Errorf("exit status %d", res.ExitCode)
	}
	f.responses[line] = append(f.responses[line], res)
	return f
}

// Handle routes every invocation of name to fn, after exact-line scripts are consulted.
func (f *FakeRunner) Handle(name string, fn func(args []string) command.Result) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
	return f
}

// Run implements command.Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) command.Result {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.mu.Lock()
	f.calls = append(f.calls, line)
	queue := f.responses[line]
	handler := f.handlers[name]
	var res command.Result
	scripted := false
	if len(queue) > 0 {
		res = queue[0]
		if len(queue) > 1 {
			f.responses[line] = queue[1:]
		}
		scripted = true
	}
	f.mu.Unlock()

	if !scripted && handler != nil {
		res = handler(args)
		scripted = true
	}
	if !scripted {
		res = command.Result{ExitCode: -1, Err: fmt.Errorf("exec: %q: executable file not found in $PATH", name)}
	}
	if ctx.Err() != nil {
		res = command.Result{ExitCode: -1, TimedOut: true, Err: ctx.Err()}
	}
	res.Name = name
	res.Args = append([]string(nil), args...)
	return res
}

// Calls returns every command line run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times line was run.
func (f *FakeRunner) CallCount(line string) int {
	count := 0
	for _, call := range f.Calls() {
		if call == line {
			count++
		}
	}
	return count
}
