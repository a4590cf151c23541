// Package fault defines the error taxonomy shared by every installation stage.
//
// Registrar codes, command failures, and discovery problems are mapped into a
// fault.Error at the boundary where they are observed, so downstream logic only
// switches on Kind and Code.
package fault

import (
	"errors"
	"fmt"

	"github.com/conn-castle/dextctl/internal/messages"
)

// Kind is the coarse taxonomy bucket of a failure.
type Kind string

// Failure kinds.
const (
	KindDiscovery      Kind = "discovery"
	KindAuthorization  Kind = "authorization"
	KindPolicy         Kind = "policy"
	KindConflict       Kind = "conflict"
	KindInfrastructure Kind = "infrastructure"
)

// Code identifies a specific failure within a Kind.
type Code string

// Discovery codes.
const (
	CodeBundleMissing        Code = "bundle-missing"
	CodeManifestMalformed    Code = "manifest-malformed"
	CodeProvenanceUnreadable Code = "provenance-unreadable"
	CodeInvalidBundle        Code = "invalid-bundle"
)

// Authorization codes.
const (
	CodeUnauthorized    Code = "unauthorized"
	CodePendingApproval Code = "pending-approval"
	CodeDenied          Code = "denied"
)

// Policy codes.
const (
	CodeForbiddenByPolicy     Code = "forbidden-by-policy"
	CodeInvalidSignature      Code = "invalid-signature"
	CodeMissingEntitlement    Code = "missing-entitlement"
	CodeDeveloperModeRequired Code = "developer-mode-required"
	CodeValidationFailed      Code = "validation-failed"
)

// Conflict codes.
const (
	CodeDuplicateIdentifier    Code = "duplicate-identifier"
	CodeOrphanedProcess        Code = "orphaned-process"
	CodeRegistrationMismatch   Code = "registration-mismatch"
	CodeSupervisorDisconnected Code = "supervisor-disconnected"
	CodePrivilegeEscalation    Code = "privilege-escalation-failure"
	CodeAlreadyInProgress      Code = "already-in-progress"
	CodeRunInProgress          Code = "run-in-progress"
	CodeSuperseded             Code = "superseded"
	CodeCanceled               Code = "canceled"
	CodeNonFunctional          Code = "non-functional"
)

// Infrastructure codes.
const (
	CodeCommandTimeout      Code = "command-timeout"
	CodeCommandFailed       Code = "command-failed"
	CodeFilesystem          Code = "filesystem"
	CodeInstallationTimeout Code = "installation-timeout"
	CodeUnknown             Code = "unknown"
)

type codeInfo struct {
	kind   Kind
	remedy string
}

var codes = map[Code]codeInfo{
	CodeBundleMissing:          {KindDiscovery, messages.RemedyBundleMissing},
	CodeManifestMalformed:      {KindDiscovery, messages.RemedyManifestMalformed},
	CodeProvenanceUnreadable:   {KindDiscovery, messages.RemedyProvenanceUnreadable},
	CodeInvalidBundle:          {KindDiscovery, messages.RemedyInvalidBundle},
	CodeUnauthorized:           {KindAuthorization, messages.RemedyUnauthorized},
	CodePendingApproval:        {KindAuthorization, messages.RemedyPendingApproval},
	CodeDenied:                 {KindAuthorization, messages.RemedyDenied},
	CodeForbiddenByPolicy:      {KindPolicy, messages.RemedyForbiddenByPolicy},
	CodeInvalidSignature:       {KindPolicy, messages.RemedyInvalidSignature},
	CodeMissingEntitlement:     {KindPolicy, messages.RemedyMissingEntitlement},
	CodeDeveloperModeRequired:  {KindPolicy, messages.RemedyDeveloperModeRequired},
	CodeValidationFailed:       {KindPolicy, messages.RemedyValidationFailed},
	CodeDuplicateIdentifier:    {KindConflict, messages.RemedyDuplicateIdentifier},
	CodeOrphanedProcess:        {KindConflict, messages.RemedyOrphanedProcess},
	CodeRegistrationMismatch:   {KindConflict, messages.RemedyRegistrationMismatch},
	CodeSupervisorDisconnected: {KindConflict, messages.RemedySupervisorDisconnected},
	CodePrivilegeEscalation:    {KindConflict, messages.RemedyPrivilegeEscalation},
	CodeAlreadyInProgress:      {KindConflict, messages.RemedyAlreadyInProgress},
	CodeRunInProgress:          {KindConflict, messages.RemedyRunInProgress},
	CodeSuperseded:             {KindConflict, messages.RemedySuperseded},
	CodeCanceled:               {KindConflict, messages.RemedyCanceled},
	CodeNonFunctional:          {KindConflict, messages.RemedyNonFunctional},
	CodeCommandTimeout:         {KindInfrastructure, messages.RemedyCommandTimeout},
	CodeCommandFailed:          {KindInfrastructure, messages.RemedyCommandFailed},
	CodeFilesystem:             {KindInfrastructure, messages.RemedyFilesystem},
	CodeInstallationTimeout:    {KindInfrastructure, messages.RemedyInstallationTimeout},
	CodeUnknown:                {KindInfrastructure, messages.RemedyUnknown},
}

// KindOf returns the taxonomy kind for code. Unregistered codes are infrastructure failures.
func KindOf(code Code) Kind {
	if info, ok := codes[code]; ok {
		return info.kind
	}
	return KindInfrastructure
}

// RemediationFor returns the default remediation text for code; it is never empty.
func RemediationFor(code Code) string {
	if info, ok := codes[code]; ok && info.remedy != "" {
		return info.remedy
	}
	return messages.FaultDefaultRemedy
}

// Error is a classified failure with a human-readable cause and at least one remediation step.
type Error struct {
	Kind        Kind
	Code        Code
	Message     string
	Remediation string
	Err         error
}

// New returns an Error for code with the default remediation.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Kind:        KindOf(code),
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Remediation: RemediationFor(code),
	}
}

// Wrap returns an Error for code that wraps err.
func Wrap(code Code, err error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Err = err
	return e
}

// WithRemediation replaces the remediation text when remedy is non-empty.
func (e *Error) WithRemediation(remedy string) *Error {
	if remedy != "" {
		e.Remediation = remedy
	}
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(messages.FaultErrorCauseFmt, e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf(messages.FaultErrorFmt, e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Code so errors.Is works against sentinel-style values.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	fe, ok := As(err)
	return ok && fe.Code == code
}

// From classifies an arbitrary error, keeping an existing *Error unchanged.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if fe, ok := As(err); ok {
		return fe
	}
	return Wrap(CodeUnknown, err, "unexpected failure")
}

// Lines renders the error as report lines: kind, code, cause, and fix.
func (e *Error) Lines() []string {
	cause := e.Message
	if e.Err != nil {
		cause = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return []string{
		fmt.Sprintf(messages.FaultReportKindFmt, e.Kind),
		fmt.Sprintf(messages.FaultReportCodeFmt, e.Code),
		fmt.Sprintf(messages.FaultReportCauseFmt, cause),
		fmt.Sprintf(messages.FaultReportRemedyFmt, e.Remediation),
	}
}
