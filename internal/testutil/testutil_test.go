package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestWriteStubCreatesExecutableThatSucceeds(t *testing.T) {
	dir := t.TempDir()
	stubPath := WriteStub(t, dir, "ok-stub")

	info, err := os.Stat(stubPath)
	if err != nil {
		t.Fatalf("stat stub: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %#o", info.Mode().Perm())
	}

	cmd := exec.Command(stubPath)
	if err := cmd.Run(); err != nil {
		t.Fatalf("expected success exit, got %v", err)
	}
}

func TestWriteStubWithExitCreatesExecutableWithRequestedExitCode(t *testing.T) {
	dir := t.TempDir()
	stubPath := WriteStubWithExit(t, dir, "exit-stub", 7)

	err := exec.Command(stubPath).Run()
	if err == nil {
		t.Fatal("expected non-zero exit status")
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T", err)
	}
	if exitErr.ExitCode() != 7 {
		t.Fatalf("expected exit code 7, got %d", exitErr.ExitCode())
	}
}

func TestWriteStubOutputPrintsVerbatim(t *testing.T) {
	dir := t.TempDir()
	stubPath := WriteStubOutput(t, dir, "list-stub", "PID\tStatus\tLabel\n-\t0\tcom.example\n", 0)

	out, err := exec.Command(stubPath).Output()
	if err != nil {
		t.Fatalf("run stub: %v", err)
	}
	if string(out) != "PID\tStatus\tLabel\n-\t0\tcom.example\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestFakeRunnerQueuesAndRepeatsLastResponse(t *testing.T) {
	runner := NewFakeRunner().
		Set("launchctl list", "first", 0).
		Set("launchctl list", "second", 3)

	ctx := context.Background()
	if got := string(runner.Run(ctx, "launchctl", "list").Stdout); got != "first" {
		t.Fatalf("expected first response, got %q", got)
	}
	second := runner.Run(ctx, "launchctl", "list")
	if string(second.Stdout) != "second" || second.ExitCode != 3 || second.Err == nil {
		t.Fatalf("unexpected second response %+v", second)
	}
	third := runner.Run(ctx, "launchctl", "list")
	if string(third.Stdout) != "second" {
		t.Fatalf("expected last response to repeat, got %q", third.Stdout)
	}
	if runner.CallCount("launchctl list") != 3 {
		t.Fatalf("expected 3 calls, got %v", runner.Calls())
	}
}

func TestFakeRunnerUnscriptedCommandFails(t *testing.T) {
	res := NewFakeRunner().Run(context.Background(), "pgrep", "-x", "softusbd")
	if res.OK() {
		t.Fatal("expected unscripted command to fail")
	}
	if res.Name != "pgrep" || len(res.Args) != 2 {
		t.Fatalf("expected name and args recorded, got %+v", res)
	}
}

func TestWriteBundleLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "SoftUSB.app")
	WriteBundle(t, root, BundleFixture{Identifier: "com.example.ext", Version: "1.0.0", Build: "1", DaemonLabel: "com.example.daemon"})

	for _, rel := range []string{
		"Contents/Info.plist",
		"Contents/MacOS/SoftUSB",
		"Contents/Library/LaunchDaemons/com.example.daemon.plist",
	} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
	}
	if len(SnapshotTree(t, root)) != 3 {
		t.Fatalf("expected 3 files in snapshot")
	}
}
