package orchestrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/conn-castle/dextctl/internal/activation"
	"github.com/conn-castle/dextctl/internal/activation/activationtest"
	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/command"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/service"
	"github.com/conn-castle/dextctl/internal/testutil"
	"github.com/conn-castle/dextctl/internal/verify"
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
	registryInactive = "1 extension(s)\n" +
		"--- com.apple.system_extension.driver_extension\n" +
		"enabled\tactive\tteamID\tbundleID (version)\tname\t[state]\n" +
		"*\t\tABCDE12345\tcom.example.softusb.driver (1.2.0/12)\tSoftUSBDriver\t[activated waiting for user]\n"
)

type noKillSystem struct {
	service.RealSystem
}

func (noKillSystem) Kill(int, syscall.Signal) error { return nil }

type harness struct {
	t          *testing.T
	prefix     string
	bundlePath string
	plistPath  string
	stateDir   string
	runner     *testutil.FakeRunner
	registrar  *activationtest.Registrar
	timeout    time.Duration

	mu    sync.Mutex
	notes []string

	// Simulated launchd: loaded reports the job in `launchctl list`; bootstrapExits scripts
	// successive bootstrap exit codes and bootstrapLoads decides whether success loads the job.
	loaded         bool
	bootstrapLoads bool
	bootstrapExits []int
	daemonPIDs     string
	// supervisorList answers `brew services list`.
	supervisorList command.Result
}

// newHarness lays out a package-managed installation of version 1.2.0.
func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		t:         t,
		prefix:    filepath.Join(root, "Cellar", "softusb"),
		plistPath: filepath.Join(root, "LaunchDaemons", testLabel+".plist"),
		stateDir:  filepath.Join(root, "state"),
		runner:    testutil.NewFakeRunner(),
		registrar: activationtest.New(),
		timeout:   2 * time.Second,
	}
	installRoot := filepath.Join(h.prefix, "1.2.0")
	h.bundlePath = testutil.WriteBundle(t, filepath.Join(installRoot, "SoftUSB.app"), testutil.BundleFixture{
		Identifier:  testIdentifier,
		Version:     "1.2.0",
		Build:       "12",
		DaemonLabel: testLabel,
	})
	testutil.WriteReceipt(t, installRoot, "INSTALL_RECEIPT.json", map[string]any{
		"install_version":      "1.2.0",
		"install_prefix":       h.prefix,
		"installed_at":         1760000000,
		"installed_on_request": true,
	})
	h.bootstrapLoads = true
	h.daemonPIDs = "321\n"
	h.supervisorList = command.Result{Stdout: []byte(brewStarted)}
	h.runner.
		Handle("brew", func(args []string) command.Result {
			h.mu.Lock()
			defer h.mu.Unlock()
			if len(args) == 2 && args[0] == "services" && args[1] == "list" {
				return h.supervisorList
			}
			return command.Result{ExitCode: 1, Err: errors.New("unexpected brew call")}
		}).
		Handle("launchctl", h.launchctl).
		Handle("pgrep", func([]string) command.Result {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.daemonPIDs == "" {
				return command.Result{ExitCode: 1, Err: errors.New("exit status 1")}
			}
			return command.Result{Stdout: []byte(h.daemonPIDs)}
		})
	return h
}

func (h *harness) launchctl(args []string) command.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch args[0] {
	case "list":
		if h.loaded {
			return command.Result{Stdout: []byte(launchdWithJob)}
		}
		return command.Result{Stdout: []byte(launchdHeader)}
	case "bootstrap":
		exit := 0
		if len(h.bootstrapExits) > 0 {
			exit = h.bootstrapExits[0]
			h.bootstrapExits = h.bootstrapExits[1:]
		}
		if exit != 0 {
			return command.Result{ExitCode: exit, Stderr: []byte("Bootstrap failed: 5: Input/output error"), Err: errors.New("exit status 5")}
		}
		h.loaded = h.bootstrapLoads
		return command.Result{}
	case "bootout":
		h.loaded = false
		return command.Result{}
	}
	return command.Result{ExitCode: 1, Err: errors.New("unexpected launchctl call")}
}

// installPlist simulates a daemon that is already installed and loaded.
func (h *harness) installPlist() {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(filepath.Dir(h.plistPath), 0o755))
	require.NoError(h.t, os.WriteFile(h.plistPath, []byte(testutil.DaemonPlist(testLabel)), 0o644))
	h.loaded = true
}

func (h *harness) orchestrator() *Orchestrator {
	svc := service.NewCoordinator(service.Options{
		Label:             testLabel,
		DaemonName:        "softusbd",
		PlistPath:         h.plistPath,
		Domain:            "system",
		SupervisorFormula: "softusb",
		Runner:            h.runner,
		System:            noKillSystem{},
	})
	return New(Dependencies{
		Locator: bundle.NewLocator(bundle.Options{
			PackagePrefixes: []string{h.prefix},
			BundleName:      "SoftUSB.app",
			ReceiptName:     "INSTALL_RECEIPT.json",
		}),
		Activator: activation.NewCoordinator(h.registrar),
		Service:   svc,
		Verifier:  verify.NewVerifier(verify.Options{Runner: h.runner, Reconciler: svc, Timeout: time.Second}),
	}, Options{
		ActivationTimeout: h.timeout,
		StateDir:          h.stateDir,
		Observer: func(phase Phase, note string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notes = append(h.notes, string(phase)+": "+note)
		},
	})
}

func errorCodes(res Result) []fault.Code {
	var codes []fault.Code
	for _, err := range res.Errors {
		codes = append(codes, err.Code)
	}
	return codes
}

func TestRun_FreshProductionInstall(t *testing.T) {
	h := newHarness(t)
	h.runner.
		Set("systemextensionsctl list", registryEmpty, 0).
		Set("systemextensionsctl list", registryActive, 0)
	h.registrar.Script(
		activation.Event{Type: activation.EventNeedsApproval},
		activation.Event{Type: activation.EventFinished},
	)
	before := testutil.SnapshotTree(t, h.bundlePath)

	res := h.orchestrator().Run(context.Background())

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, PhaseDone, res.Phase)
	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.Indeterminate)
	assert.False(t, res.ActivationSkipped)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.RollbackActions)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, bundle.EnvironmentPackageManaged, res.Descriptor.Environment.Kind)
	require.NotNil(t, res.Descriptor.Provenance)
	require.NotNil(t, res.Activation)
	assert.Equal(t, activation.StateApproved, res.Activation.State)
	require.NotNil(t, res.Verification)
	assert.Equal(t, verify.OverallFullyFunctional, res.Verification.Overall)
	require.NotNil(t, res.Service)
	assert.True(t, res.Service.IndependentlyManaged)

	require.Len(t, h.registrar.Requests(), 1)
	assert.Equal(t, 1, h.runner.CallCount("launchctl bootstrap system "+h.plistPath))
	installed, err := os.ReadFile(h.plistPath)
	require.NoError(t, err)
	assert.Equal(t, testutil.DaemonPlist(testLabel), string(installed))
	assert.Equal(t, before, testutil.SnapshotTree(t, h.bundlePath))
	assert.Contains(t, h.notes, "activating: extension approved")
}

func TestRun_IdempotentWhenAlreadyFunctional(t *testing.T) {
	h := newHarness(t)
	h.installPlist()
	h.runner.Set("systemextensionsctl list", registryActive, 0)
	o := h.orchestrator()

	first := o.Run(context.Background())
	second := o.Run(context.Background())

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	assert.Equal(t, first.Success, second.Success)
	assert.True(t, first.ActivationSkipped)
	assert.True(t, second.ActivationSkipped)
	assert.Nil(t, second.Activation)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Empty(t, h.registrar.Requests())
	assert.Zero(t, h.runner.CallCount("launchctl bootstrap system "+h.plistPath))
}

func TestRun_ActiveVersionIsNotResubmittedWhenServiceUnknown(t *testing.T) {
	h := newHarness(t)
	h.installPlist()
	h.runner.
		Set("systemextensionsctl list", registryActive, 0)
	h.supervisorList = command.Result{ExitCode: -1, TimedOut: true, Err: errors.New("timed out")}
	o := h.orchestrator()

	first := o.Run(context.Background())
	second := o.Run(context.Background())

	for _, res := range []Result{first, second} {
		assert.True(t, res.ActivationSkipped)
		assert.Nil(t, res.Activation)
		assert.False(t, res.Success)
		assert.True(t, res.Indeterminate)
		assert.Equal(t, StateIndeterminate, res.State)
		assert.Equal(t, PhaseReconciling, res.Phase)
		assert.Empty(t, res.RollbackActions)
		assert.Equal(t, []fault.Code{fault.CodeUnknown}, errorCodes(res))
		require.NotNil(t, res.Service)
		assert.Equal(t, []string{"brew services list"}, res.Service.Unknown)
	}
	assert.Empty(t, h.registrar.Requests())
	_, err := os.Stat(h.plistPath)
	assert.NoError(t, err)
}

func TestRun_ActiveVersionSkippedDespiteDuplicates(t *testing.T) {
	h := newHarness(t)
	h.installPlist()
	h.runner.Set("systemextensionsctl list", registryActive+
		"*\t*\tABCDE12345\tcom.example.softusb.driver (1.1.0/11)\tSoftUSBDriver\t[activated enabled]\n", 0)

	res := h.orchestrator().Run(context.Background())

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.True(t, res.ActivationSkipped)
	assert.Empty(t, h.registrar.Requests())
	require.NotNil(t, res.Verification)
	assert.Equal(t, verify.OverallPartiallyFunctional, res.Verification.Overall)
	assert.NotEmpty(t, res.Warnings)
}

func TestRun_OlderActiveVersionIsResubmitted(t *testing.T) {
	h := newHarness(t)
	h.installPlist()
	older := "1 extension(s)\n" +
		"*\t*\tABCDE12345\tcom.example.softusb.driver (1.1.0/11)\tSoftUSBDriver\t[activated enabled]\n"
	h.runner.
		Set("systemextensionsctl list", older, 0).
		Set("systemextensionsctl list", registryActive, 0)
	h.registrar.Script(
		activation.Event{Type: activation.EventReplace, Existing: "1.1.0", Replacement: "1.2.0"},
		activation.Event{Type: activation.EventFinished},
	)

	res := h.orchestrator().Run(context.Background())
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.False(t, res.ActivationSkipped)
	assert.Len(t, h.registrar.Requests(), 1)
	assert.Equal(t, "1.1.0", res.Activation.ReplacedVersion)
}

func TestRun_ReconcileFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.bootstrapLoads = false
	h.bootstrapExits = []int{0, 5}
	h.daemonPIDs = ""
	h.runner.Set("systemextensionsctl list", registryEmpty, 0)
	h.registrar.Script(activation.Event{Type: activation.EventFinished})
	before := testutil.SnapshotTree(t, h.bundlePath)

	res := h.orchestrator().Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, PhaseReconciling, res.Phase)
	require.NotEmpty(t, res.RollbackActions)
	assert.Equal(t, []string{
		"boot out " + testLabel + " from system",
		"remove installed daemon plist " + h.plistPath,
	}, res.RollbackActions)
	assert.Contains(t, errorCodes(res), fault.CodeRegistrationMismatch)

	_, err := os.Stat(h.plistPath)
	assert.True(t, os.IsNotExist(err), "installed plist should be removed")
	assert.Equal(t, 1, h.runner.CallCount("launchctl bootout system/"+testLabel))
	assert.Equal(t, before, testutil.SnapshotTree(t, h.bundlePath))
	require.Len(t, res.Resolved, 1)
	assert.False(t, res.Resolved[0].Resolved)
}

func TestRun_ResolvedSupervisorIsRolledBackWhenConflictsRemain(t *testing.T) {
	h := newHarness(t)
	h.installPlist()
	h.daemonPIDs = "321\n456\n"
	h.supervisorList = command.Result{Stdout: []byte("Name    Status  User File\nsoftusb none\n")}
	h.runner.
		Set("systemextensionsctl list", registryActive, 0).
		Set("brew services start softusb", "", 0).
		Set("brew services stop softusb", "", 0).
		Set("lsof -nP -a -p 456 -i -U -F tn", "p456\nf7\ntIPv4\nn127.0.0.1:7000->127.0.0.1:51000\n", 0)

	res := h.orchestrator().Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, PhaseReconciling, res.Phase)
	assert.Contains(t, errorCodes(res), fault.CodeOrphanedProcess)
	assert.Equal(t, []string{"stop softusb with the supervisor"}, res.RollbackActions)
	assert.Equal(t, 1, h.runner.CallCount("brew services start softusb"))
	assert.Equal(t, 1, h.runner.CallCount("brew services stop softusb"))

	var resolved []bool
	for _, rc := range res.Resolved {
		resolved = append(resolved, rc.Resolved)
	}
	assert.ElementsMatch(t, []bool{true, false}, resolved)
}

func TestRun_ActivationTimeout(t *testing.T) {
	h := newHarness(t)
	h.timeout = 50 * time.Millisecond
	h.runner.Set("systemextensionsctl list", registryEmpty, 0)

	start := time.Now()
	res := h.orchestrator().Run(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, PhaseActivating, res.Phase)
	assert.Equal(t, []fault.Code{fault.CodeInstallationTimeout}, errorCodes(res))
	assert.Equal(t, "activation did not complete within 50ms", res.Errors[0].Message)
	require.Len(t, h.registrar.Cancels(), 1)
	require.NotNil(t, res.Activation)
	assert.Equal(t, activation.StateFailed, res.Activation.State)
	assert.Equal(t, fault.CodeCanceled, res.Activation.ErrorCode)
	assert.Empty(t, res.RollbackActions)
}

func TestRun_DuplicateIdentifier(t *testing.T) {
	h := newHarness(t)
	h.runner.Set("systemextensionsctl list", registryEmpty, 0)
	h.registrar.Script(activation.Event{Type: activation.EventFailed, Code: 6, Message: "duplicate"})

	res := h.orchestrator().Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, PhaseActivating, res.Phase)
	assert.Empty(t, res.RollbackActions)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fault.CodeDuplicateIdentifier, res.Errors[0].Code)
	assert.Equal(t, fault.KindConflict, res.Errors[0].Kind)
	assert.NotEmpty(t, res.Errors[0].Remediation)
}

func TestRun_RequiresUserAction(t *testing.T) {
	h := newHarness(t)
	h.runner.Set("systemextensionsctl list", registryEmpty, 0)
	h.registrar.Script(activation.Event{Type: activation.EventFailed, Code: 13})

	res := h.orchestrator().Run(context.Background())

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fault.CodeUnauthorized, res.Errors[0].Code)
	assert.Equal(t, fault.KindAuthorization, res.Errors[0].Kind)
	assert.Equal(t, activation.StateRequiresUserAction, res.Activation.State)
}

func TestRun_BundleMissingListsSearchedPaths(t *testing.T) {
	root := t.TempDir()
	o := New(Dependencies{
		Locator: bundle.NewLocator(bundle.Options{
			ProjectDir:      root,
			BuildDirs:       []string{"build/Release"},
			PackagePrefixes: []string{filepath.Join(root, "Cellar")},
			BundleName:      "SoftUSB.app",
			ReceiptName:     "INSTALL_RECEIPT.json",
		}),
	}, Options{})

	res := o.Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, PhaseLocating, res.Phase)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fault.CodeBundleMissing, res.Errors[0].Code)
	assert.Equal(t, fault.KindDiscovery, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Message, filepath.Join(root, "build/Release"))
	assert.Contains(t, res.Errors[0].Message, filepath.Join(root, "Cellar"))
	assert.Len(t, res.Descriptor.Searched, 2)
}

func TestRun_IndeterminateVerificationKeepsChanges(t *testing.T) {
	h := newHarness(t)
	h.runner.
		Set("systemextensionsctl list", registryEmpty, 0).
		Set("systemextensionsctl list", "", 1)
	h.registrar.Script(activation.Event{Type: activation.EventFinished})

	res := h.orchestrator().Run(context.Background())

	assert.False(t, res.Success)
	assert.True(t, res.Indeterminate)
	assert.Equal(t, StateIndeterminate, res.State)
	assert.Equal(t, PhaseVerifying, res.Phase)
	assert.Empty(t, res.RollbackActions)
	_, err := os.Stat(h.plistPath)
	assert.NoError(t, err)
}

func TestRun_NonFunctionalVerificationRollsBack(t *testing.T) {
	h := newHarness(t)
	h.runner.
		Set("systemextensionsctl list", registryEmpty, 0).
		Set("systemextensionsctl list", registryInactive, 0)
	h.registrar.Script(activation.Event{Type: activation.EventFinished, RebootRequired: true})

	res := h.orchestrator().Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, PhaseVerifying, res.Phase)
	assert.Len(t, res.RollbackActions, 2)
	assert.Contains(t, errorCodes(res), fault.CodeNonFunctional)
	assert.Contains(t, h.notes, "activating: extension approved; reboot required to finish")
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	t.Run("same process", func(t *testing.T) {
		h := newHarness(t)
		lock, err := acquireRunLock("", testIdentifier)
		require.NoError(t, err)
		defer func() { _ = lock.release() }()

		res := h.orchestrator().Run(context.Background())
		assert.False(t, res.Success)
		assert.Equal(t, []fault.Code{fault.CodeRunInProgress}, errorCodes(res))
		assert.Empty(t, h.registrar.Requests())
	})

	t.Run("other process", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, os.MkdirAll(h.stateDir, 0o755))
		file, err := os.OpenFile(filepath.Join(h.stateDir, testIdentifier+".lock"), os.O_CREATE|os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		require.NoError(t, unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB))

		res := h.orchestrator().Run(context.Background())
		assert.False(t, res.Success)
		assert.Equal(t, []fault.Code{fault.CodeRunInProgress}, errorCodes(res))
	})

	t.Run("lock is released after a run", func(t *testing.T) {
		h := newHarness(t)
		h.installPlist()
		h.runner.Set("systemextensionsctl list", registryActive, 0)
		res := h.orchestrator().Run(context.Background())
		require.True(t, res.Success)

		lock, err := acquireRunLock(h.stateDir, testIdentifier)
		require.NoError(t, err)
		require.NoError(t, lock.release())
	})
}

func TestAcquireRunLock_FlockError(t *testing.T) {
	orig := flockFn
	flockFn = func(int, int) error { return unix.EBADF }
	t.Cleanup(func() { flockFn = orig })

	_, err := acquireRunLock(t.TempDir(), testIdentifier)
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.CodeFilesystem))

	flockFn = orig
	lock, err := acquireRunLock(t.TempDir(), testIdentifier)
	require.NoError(t, err)
	require.NoError(t, lock.release())
}
