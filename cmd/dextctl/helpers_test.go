package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/dextctl/internal/activation"
	"github.com/conn-castle/dextctl/internal/activation/activationtest"
	"github.com/conn-castle/dextctl/internal/command"
	"github.com/conn-castle/dextctl/internal/config"
	"github.com/conn-castle/dextctl/internal/service"
	"github.com/conn-castle/dextctl/internal/testutil"
)

const (
	testIdentifier = "com.example.softusb"
	testLabel      = "homebrew.mxcl.softusb"
	launchdHeader  = "PID\tStatus\tLabel\n"
	launchdWithJob = launchdHeader + "321\t0\t" + testLabel + "\n"
	brewStarted    = "Name    Status  User File\nsoftusb started root /Library/LaunchDaemons/homebrew.mxcl.softusb.plist\n"
	registryEmpty  = "0 extension(s)\n"
	registryActive = "1 extension(s)\n" +
		"--- com.apple.system_extension.driver_extension\n" +
		"enabled\tactive\tteamID\tbundleID (version)\tname\t[state]\n" +
		"*\t*\tABCDE12345\tcom.example.softusb.driver (1.2.0/12)\tSoftUSBDriver\t[activated enabled]\n"
)

const configTemplate = `
[extension]
bundle_name = "SoftUSB.app"

[search]
project_dir = %q
build_dirs = ["build/Release"]
package_prefixes = [%q]
receipt_name = "INSTALL_RECEIPT.json"

[service]
label = %q
daemon_name = "softusbd"
plist_path = %q
domain = "system"
supervisor_formula = "softusb"

[timeouts]
activation = "2s"
command = "1s"
verify = "1s"

[state]
dir = %q

[log]
level = "off"
`

type noKillSystem struct {
	service.RealSystem
}

func (noKillSystem) Kill(int, syscall.Signal) error { return nil }

// cliEnv is a package-managed installation of 1.2.0 plus a simulated launchd.
type cliEnv struct {
	t          *testing.T
	root       string
	prefix     string
	plistPath  string
	configPath string
	runner     *testutil.FakeRunner
	registrar  *activationtest.Registrar

	mu     sync.Mutex
	loaded bool
	pids   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	env := &cliEnv{
		t:          t,
		root:       root,
		prefix:     filepath.Join(root, "Cellar", "softusb"),
		plistPath:  filepath.Join(root, "LaunchDaemons", testLabel+".plist"),
		configPath: filepath.Join(root, "config.toml"),
		runner:     testutil.NewFakeRunner(),
		registrar:  activationtest.New(),
		pids:       "321\n",
	}
	installRoot := filepath.Join(env.prefix, "1.2.0")
	testutil.WriteBundle(t, filepath.Join(installRoot, "SoftUSB.app"), testutil.BundleFixture{
		Identifier:  testIdentifier,
		Version:     "1.2.0",
		Build:       "12",
		DaemonLabel: testLabel,
	})
	testutil.WriteReceipt(t, installRoot, "INSTALL_RECEIPT.json", map[string]any{
		"install_version":      "1.2.0",
		"install_prefix":       env.prefix,
		"installed_at":         1760000000,
		"installed_on_request": true,
	})
	content := fmt.Sprintf(configTemplate, root, env.prefix, testLabel, env.plistPath, filepath.Join(root, "state"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))

	env.runner.
		Set("brew services list", brewStarted, 0).
		Handle("launchctl", env.launchctl).
		Handle("pgrep", env.pgrep)

	stub(t, &newRunner, func(time.Duration) command.Runner { return env.runner })
	stub(t, &newRegistrar, func(*config.Config, logrus.FieldLogger) activation.Registrar { return env.registrar })
	stub(t, &newServiceSystem, func() service.System { return noKillSystem{} })
	stub(t, &isInteractive, func() bool { return false })
	return env
}

func stub[T any](t *testing.T, target *T, value T) {
	t.Helper()
	original := *target
	*target = value
	t.Cleanup(func() { *target = original })
}

func (e *cliEnv) launchctl(args []string) command.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch args[0] {
	case "list":
		if e.loaded {
			return command.Result{Stdout: []byte(launchdWithJob)}
		}
		return command.Result{Stdout: []byte(launchdHeader)}
	case "bootstrap":
		e.loaded = true
		return command.Result{}
	case "bootout":
		e.loaded = false
		return command.Result{}
	}
	return command.Result{ExitCode: 1, Err: errors.New("unexpected launchctl call")}
}

// pgrep exits 1 with no output when nothing matches.
func (e *cliEnv) pgrep([]string) command.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pids == "" {
		return command.Result{ExitCode: 1, Err: errors.New("exit status 1")}
	}
	return command.Result{Stdout: []byte(e.pids)}
}

func (e *cliEnv) setPIDs(pids string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pids = pids
}

func (e *cliEnv) setLoaded(loaded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = loaded
}

// installPlist simulates an installed and loaded daemon.
func (e *cliEnv) installPlist() {
	e.t.Helper()
	require.NoError(e.t, os.MkdirAll(filepath.Dir(e.plistPath), 0o755))
	require.NoError(e.t, os.WriteFile(e.plistPath, []byte(testutil.DaemonPlist(testLabel)), 0o644))
	e.setLoaded(true)
}

// run executes dextctl with the env's config and returns combined output and the exit code.
func (e *cliEnv) run(args ...string) (string, int, error) {
	e.t.Helper()
	var out bytes.Buffer
	argv := append([]string{"dextctl", "--config", e.configPath}, args...)
	err := execute(argv, &out, &out)
	code := 0
	var silent *SilentExitError
	switch {
	case errors.As(err, &silent):
		code = silent.Code
		err = nil
	case err != nil:
		code = exitFailure
	}
	return out.String(), code, err
}
