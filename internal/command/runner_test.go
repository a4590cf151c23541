package command_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/dextctl/internal/command"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/testutil"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteStubOutput(t, dir, "query", "hello\n", 0)

	res := command.ExecRunner{}.Run(context.Background(), path)
	require.True(t, res.OK(), "result: %+v", res)
	assert.Equal(t, "hello\n", string(res.Stdout))
	assert.Nil(t, res.Fault())
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteScript(t, dir, "fails", "echo 'no such service' >&2\nexit 113\n")

	res := command.ExecRunner{}.Run(context.Background(), path, "arg")
	assert.False(t, res.OK())
	assert.Equal(t, 113, res.ExitCode)
	fe := res.Fault()
	require.NotNil(t, fe)
	assert.Equal(t, fault.CodeCommandFailed, fe.Code)
	assert.Contains(t, fe.Message, "no such service")
}

func TestExecRunnerTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteScript(t, dir, "hangs", "exec sleep 5\n")

	start := time.Now()
	res := command.ExecRunner{Timeout: 100 * time.Millisecond}.Run(context.Background(), path)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.True(t, res.TimedOut)
	assert.False(t, res.OK())
	assert.Equal(t, fault.CodeCommandTimeout, res.Fault().Code)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res := command.ExecRunner{}.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.False(t, res.OK())
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, fault.CodeCommandFailed, res.Fault().Code)
}

func TestPermissionDenied(t *testing.T) {
	res := command.Result{Name: "launchctl", Args: []string{"bootstrap"}, ExitCode: 1, Stderr: []byte("Bootstrap failed: 1: Operation not permitted\n")}
	assert.True(t, res.PermissionDenied())
	assert.Equal(t, fault.CodePrivilegeEscalation, res.Fault().Code)

	ok := command.Result{Stdout: []byte("permission denied")}
	assert.False(t, ok.PermissionDenied())
}
