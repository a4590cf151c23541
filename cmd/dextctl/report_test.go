package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/orchestrate"
)

func disableColor(t *testing.T) {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = original })
}

func TestPrintCheckRendersRemedyIndented(t *testing.T) {
	disableColor(t)
	var out bytes.Buffer

	printCheck(&out, checkWarn, "entry-enabled", "extension is disabled", "enable it\n\nthen rerun")

	assert.Equal(t, "[WARN] entry-enabled        extension is disabled\n"+
		"       enable it\n\n"+
		"       then rerun\n", out.String())
}

func TestFailWithPrintsFaultLines(t *testing.T) {
	disableColor(t)
	var out bytes.Buffer

	err := failWith(&out, fault.New(fault.CodeCommandTimeout, "launchctl list timed out"), exitFailure)

	assert.Equal(t, &SilentExitError{Code: exitFailure}, err)
	assert.Contains(t, out.String(), "Error:\n  kind: infrastructure\n  code: command-timeout\n")
	assert.Contains(t, out.String(), "  cause: launchctl list timed out\n")
}

func TestPrintInstallResultRollback(t *testing.T) {
	disableColor(t)
	var out bytes.Buffer
	res := orchestrate.Result{
		RunID:           "run-1",
		Phase:           orchestrate.PhaseReconciling,
		State:           orchestrate.StateFailed,
		RollbackActions: []string{"boot out homebrew.mxcl.softusb from system"},
		Errors:          []*fault.Error{fault.New(fault.CodeRegistrationMismatch, "job not loaded")},
	}

	err := printInstallResult(&out, res)

	assert.Equal(t, &SilentExitError{Code: exitFailure}, err)
	assert.Contains(t, out.String(), "Run run-1\n")
	assert.Contains(t, out.String(), "Installation failed during reconciling.\n")
	assert.Contains(t, out.String(), "  rolled back: boot out homebrew.mxcl.softusb from system\n")
	assert.Contains(t, out.String(), "code: registration-mismatch")
}

func TestPrintInstallResultIndeterminate(t *testing.T) {
	disableColor(t)
	var out bytes.Buffer
	res := orchestrate.Result{
		RunID:         "run-2",
		Phase:         orchestrate.PhaseVerifying,
		State:         orchestrate.StateIndeterminate,
		Indeterminate: true,
	}

	err := printInstallResult(&out, res)

	assert.Equal(t, &SilentExitError{Code: exitIndeterminate}, err)
	assert.Contains(t, out.String(), "indeterminate after verifying")
}
