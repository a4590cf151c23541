// Package service reconciles the companion daemon's registration with launchd and the
// Homebrew services supervisor, and resolves the conflicts it finds.
package service

import (
	"context"
	"fmt"

	"github.com/conn-castle/dextctl/internal/fault"
)

// IssueKind classifies a service registration conflict.
type IssueKind string

const (
	IssueRegistrationMismatch   IssueKind = "registration-mismatch"
	IssueSupervisorDisconnected IssueKind = "supervisor-disconnected"
	IssueOrphanedProcess        IssueKind = "orphaned-process"
	IssuePrivilegeEscalation    IssueKind = "privilege-escalation-failure"
)

var issueCodes = map[IssueKind]fault.Code{
	IssueRegistrationMismatch:   fault.CodeRegistrationMismatch,
	IssueSupervisorDisconnected: fault.CodeSupervisorDisconnected,
	IssueOrphanedProcess:        fault.CodeOrphanedProcess,
	IssuePrivilegeEscalation:    fault.CodePrivilegeEscalation,
}

// Issue is one detected conflict. PID is set for orphaned processes; Query names the
// failing query for privilege failures.
type Issue struct {
	Kind    IssueKind
	PID     int
	Query   string
	Message string
}

// Fault converts the issue into a typed error carrying the default remediation.
func (i Issue) Fault() *fault.Error {
	return fault.New(issueCodes[i.Kind], "%s", i.Message)
}

// Status is the cross-checked view of the daemon's registration.
type Status struct {
	// SupervisorRegistered is true when the supervisor lists the formula with a status other than none.
	SupervisorRegistered bool
	// SupervisorState is the raw supervisor status column, empty when unknown or absent.
	SupervisorState string
	// IndependentlyManaged is true when launchd has a job for the label.
	IndependentlyManaged bool
	ProcessRunning       bool
	PID                  *int
	Issues               []Issue
	// Unknown names the queries whose result could not be determined.
	Unknown []string
}

// Healthy reports a status with no issues and no unknown queries.
func (s Status) Healthy() bool {
	return len(s.Issues) == 0 && len(s.Unknown) == 0
}

// ResolvedConflict records what ResolveConflicts did about one issue.
type ResolvedConflict struct {
	Issue    Issue
	Resolved bool
	Action   string
	Err      *fault.Error
	// Rollback undoes the registration change made for the issue; nil when none was made.
	Rollback *RollbackAction
}

// RollbackAction undoes one registration side effect.
type RollbackAction struct {
	Description string
	Undo        func(ctx context.Context) error
}

// DiffPreview is a unified diff between the installed daemon plist and the bundle's copy.
type DiffPreview struct {
	InstalledPath string
	BundledPath   string
	Changed       bool
	UnifiedDiff   string
	Truncated     bool
}

func intPtr(v int) *int {
	return &v
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}
