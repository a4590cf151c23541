// Package verify checks the live system-extension registry and daemon registration and rates
// the installation.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/command"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/service"
)

// DefaultTimeout is the hard budget for one Verify call.
const DefaultTimeout = time.Second

// Overall rates an installation.
type Overall string

const (
	OverallFullyFunctional     Overall = "fully-functional"
	OverallPartiallyFunctional Overall = "partially-functional"
	OverallNonFunctional       Overall = "non-functional"
	OverallIndeterminate       Overall = "indeterminate"
)

// Severity decides whether a failed check makes the installation non-functional.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Check is one entry of the verification battery.
type Check struct {
	ID       string
	Passed   bool
	Message  string
	Severity Severity
}

// Issue is a failed check with the fix to apply.
type Issue struct {
	CheckID     string
	Kind        fault.Code
	Message     string
	Remediation string
}

// newIssue builds an Issue, falling back to the code's default remediation.
func newIssue(checkID string, kind fault.Code, message string, remediation string) Issue {
	if strings.TrimSpace(remediation) == "" {
		remediation = fault.RemediationFor(kind)
	}
	return Issue{CheckID: checkID, Kind: kind, Message: message, Remediation: remediation}
}

// Fault converts the issue into a typed error.
func (i Issue) Fault() *fault.Error {
	return fault.New(i.Kind, "%s", i.Message).WithRemediation(i.Remediation)
}

// Outcome is the verification report.
type Outcome struct {
	Overall Overall
	// Limitations lists failed non-critical checks (partially functional).
	Limitations []string
	// Reason explains a non-functional rating.
	Reason string
	// DiagnosticFailure explains an indeterminate rating.
	DiagnosticFailure string
	Checks            []Check
	Issues            []Issue
	// Entries are the registry rows for the verified identifier.
	Entries []RegistryEntry
}

// Functional reports a fully or partially functional installation.
func (o Outcome) Functional() bool {
	return o.Overall == OverallFullyFunctional || o.Overall == OverallPartiallyFunctional
}

// ActiveEntry returns the live, enabled, active registry entry, if any.
func (o Outcome) ActiveEntry() (RegistryEntry, bool) {
	for _, e := range o.Entries {
		if e.Live() && e.Enabled && e.Active {
			return e, true
		}
	}
	return RegistryEntry{}, false
}

// Reconciler reports the daemon's registration status.
type Reconciler interface {
	Reconcile(ctx context.Context) service.Status
}

// Options configures a Verifier.
type Options struct {
	Runner     command.Runner
	Reconciler Reconciler
	// Timeout is the total budget; zero means DefaultTimeout.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// Verifier runs the verification battery.
type Verifier struct {
	opts   Options
	logger logrus.FieldLogger
}

// NewVerifier returns a Verifier. A nil Runner runs commands on the host.
func NewVerifier(opts Options) *Verifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Runner == nil {
		opts.Runner = command.ExecRunner{Timeout: opts.Timeout}
	}
	return &Verifier{opts: opts, logger: logging.Component(opts.Logger, logging.ComponentVerifier)}
}

// Verify checks identifier against the live registry within the verifier's time budget.
func (v *Verifier) Verify(ctx context.Context, identifier string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	res := v.opts.Runner.Run(ctx, "systemextensionsctl", "list")
	if f := res.Fault(); f != nil {
		return v.indeterminate(f.Code, fmt.Sprintf(messages.VerifyRegistryQueryFailedFmt, f.Message))
	}
	all, err := parseRegistry(string(res.Stdout))
	if err != nil {
		return v.indeterminate(fault.CodeCommandFailed, err.Error())
	}

	var out Outcome
	for _, e := range all {
		if e.Matches(identifier) {
			out.Entries = append(out.Entries, e)
		}
	}
	v.runChecks(ctx, identifier, &out)
	v.rate(&out)

	v.logger.WithFields(logrus.Fields{
		"identifier": identifier,
		"overall":    out.Overall,
		"entries":    len(out.Entries),
		"issues":     len(out.Issues),
	}).Info("installation verified")
	return out
}

func (v *Verifier) indeterminate(code fault.Code, detail string) Outcome {
	v.logger.WithField("detail", detail).Warn("verification indeterminate")
	return Outcome{
		Overall:           OverallIndeterminate,
		DiagnosticFailure: detail,
		Checks: []Check{{
			ID:       messages.VerifyCheckRegistryQuery,
			Message:  detail,
			Severity: SeverityCritical,
		}},
		Issues: []Issue{newIssue(messages.VerifyCheckRegistryQuery, code, detail, messages.VerifyRemedyIndeterminate)},
	}
}

func (v *Verifier) runChecks(ctx context.Context, identifier string, out *Outcome) {
	var live []RegistryEntry
	for _, e := range out.Entries {
		if e.Live() {
			live = append(live, e)
		}
	}
	target, found := pickTarget(live)

	add := func(id string, sev Severity, passed bool, msg string, issue *Issue) {
		out.Checks = append(out.Checks, Check{ID: id, Passed: passed, Message: msg, Severity: sev})
		if !passed && issue != nil {
			out.Issues = append(out.Issues, *issue)
		}
	}

	if !found {
		msg := fmt.Sprintf(messages.VerifyRegistryEntryMissingFmt, identifier)
		issue := newIssue(messages.VerifyCheckRegistryEntry, fault.CodeNonFunctional, msg, messages.VerifyRemedyRegistryMissing)
		add(messages.VerifyCheckRegistryEntry, SeverityCritical, false, msg, &issue)
		add(messages.VerifyCheckEntryEnabled, SeverityWarning, false, messages.VerifyEntryNotFound, nil)
		add(messages.VerifyCheckEntryActive, SeverityCritical, false, messages.VerifyEntryNotFound, nil)
	} else {
		add(messages.VerifyCheckRegistryEntry, SeverityCritical, true,
			fmt.Sprintf(messages.VerifyRegistryEntryFoundFmt, target.BundleID, target.Version, target.State), nil)

		if target.Enabled {
			add(messages.VerifyCheckEntryEnabled, SeverityWarning, true, fmt.Sprintf(messages.VerifyEntryEnabledFmt, target.BundleID), nil)
		} else {
			msg := fmt.Sprintf(messages.VerifyEntryDisabledFmt, target.BundleID)
			issue := newIssue(messages.VerifyCheckEntryEnabled, fault.CodePendingApproval, msg, messages.VerifyRemedyDisabled)
			add(messages.VerifyCheckEntryEnabled, SeverityWarning, false, msg, &issue)
		}

		if target.Active {
			add(messages.VerifyCheckEntryActive, SeverityCritical, true, fmt.Sprintf(messages.VerifyEntryActiveFmt, target.BundleID), nil)
		} else {
			msg := fmt.Sprintf(messages.VerifyEntryInactiveFmt, target.BundleID, target.State)
			issue := newIssue(messages.VerifyCheckEntryActive, fault.CodeNonFunctional, msg, messages.VerifyRemedyInactive)
			add(messages.VerifyCheckEntryActive, SeverityCritical, false, msg, &issue)
		}
	}

	// Sibling extensions of one host app share the prefix but are not duplicates.
	var same []RegistryEntry
	for _, e := range live {
		if e.BundleID == target.BundleID {
			same = append(same, e)
		}
	}
	if len(same) <= 1 {
		add(messages.VerifyCheckNoDuplicates, SeverityWarning, true, fmt.Sprintf(messages.VerifyNoDuplicatesFmt, identifier), nil)
	} else {
		versions := make([]string, 0, len(same))
		for _, e := range same {
			versions = append(versions, e.BundleID+" "+e.Version)
		}
		msg := fmt.Sprintf(messages.VerifyDuplicatesFmt, len(same), target.BundleID, strings.Join(versions, ", "))
		issue := newIssue(messages.VerifyCheckNoDuplicates, fault.CodeDuplicateIdentifier, msg, messages.VerifyRemedyDuplicates)
		add(messages.VerifyCheckNoDuplicates, SeverityWarning, false, msg, &issue)
	}

	v.checkService(ctx, out)
}

// pickTarget prefers an active entry, then an enabled one, then the first.
func pickTarget(live []RegistryEntry) (RegistryEntry, bool) {
	if len(live) == 0 {
		return RegistryEntry{}, false
	}
	for _, e := range live {
		if e.Active {
			return e, true
		}
	}
	for _, e := range live {
		if e.Enabled {
			return e, true
		}
	}
	return live[0], true
}

func (v *Verifier) checkService(ctx context.Context, out *Outcome) {
	check := Check{ID: messages.VerifyCheckServiceReconcile, Severity: SeverityWarning}
	if v.opts.Reconciler == nil {
		check.Passed = true
		check.Message = messages.VerifyServiceNotChecked
		out.Checks = append(out.Checks, check)
		return
	}
	status := v.opts.Reconciler.Reconcile(ctx)
	switch {
	case status.Healthy():
		check.Passed = true
		check.Message = messages.VerifyServiceHealthy
	case len(status.Issues) > 0:
		check.Message = fmt.Sprintf(messages.VerifyServiceIssuesFmt, len(status.Issues))
		for _, si := range status.Issues {
			f := si.Fault()
			out.Issues = append(out.Issues, newIssue(check.ID, f.Code, si.Message, f.Remediation))
		}
	default:
		check.Message = fmt.Sprintf(messages.VerifyServiceUnknownFmt, strings.Join(status.Unknown, ", "))
		out.Issues = append(out.Issues, newIssue(check.ID, fault.CodeCommandFailed, check.Message, messages.VerifyRemedyServiceUnknown))
	}
	out.Checks = append(out.Checks, check)
}

// rate derives Overall from the battery.
func (v *Verifier) rate(out *Outcome) {
	for _, c := range out.Checks {
		if !c.Passed && c.Severity == SeverityCritical {
			out.Overall = OverallNonFunctional
			out.Reason = c.Message
			return
		}
	}
	for _, c := range out.Checks {
		if !c.Passed {
			out.Limitations = append(out.Limitations, c.Message)
		}
	}
	if len(out.Limitations) > 0 {
		out.Overall = OverallPartiallyFunctional
		return
	}
	out.Overall = OverallFullyFunctional
}
