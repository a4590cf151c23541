// Package orchestrate drives a full installation run: locate the bundle, activate the
// extension, reconcile the daemon registration, verify, and roll back on failure.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/activation"
	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/service"
	"github.com/conn-castle/dextctl/internal/verify"
)

// DefaultActivationTimeout bounds the wait for registrar approval.
const DefaultActivationTimeout = 5 * time.Minute

// Locator finds the bundle.
type Locator interface {
	Locate() bundle.Descriptor
}

// Activator submits the extension to the registrar.
type Activator interface {
	Submit(ctx context.Context, desc bundle.Descriptor) (*activation.Submission, error)
	Cancel(sub *activation.Submission) error
}

// ServiceManager reconciles the companion daemon.
type ServiceManager interface {
	EnsureRegistration(ctx context.Context, desc bundle.Descriptor) ([]service.RollbackAction, error)
	Reconcile(ctx context.Context) service.Status
	ResolveConflicts(ctx context.Context, status service.Status) []service.ResolvedConflict
}

// Verifier rates the live installation.
type Verifier interface {
	Verify(ctx context.Context, identifier string) verify.Outcome
}

// Dependencies are the stage implementations.
type Dependencies struct {
	Locator   Locator
	Activator Activator
	Service   ServiceManager
	Verifier  Verifier
}

// Observer receives progress notes as the run moves through phases.
type Observer func(phase Phase, note string)

// Options configures an Orchestrator.
type Options struct {
	// ActivationTimeout bounds the approval wait; zero means DefaultActivationTimeout.
	ActivationTimeout time.Duration
	// StateDir holds the advisory run lock files. Empty disables the cross-process lock.
	StateDir string
	Observer Observer
	Logger   logrus.FieldLogger
	NewRunID func() string
	Now      func() time.Time
}

// Orchestrator runs installations.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	logger logrus.FieldLogger
}

// New returns an Orchestrator.
func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.ActivationTimeout <= 0 {
		opts.ActivationTimeout = DefaultActivationTimeout
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logging.Component(opts.Logger, logging.ComponentOrchestrator),
	}
}

// run holds the mutable state of one Run call.
type run struct {
	o         *Orchestrator
	result    Result
	rollbacks []service.RollbackAction
	log       logrus.FieldLogger
}

// Run performs one installation. It never panics on stage failures; every failure is
// recorded in the returned Result.
func (o *Orchestrator) Run(ctx context.Context) Result {
	start := o.opts.Now()
	r := &run{o: o, result: Result{RunID: o.opts.NewRunID(), Phase: PhaseIdle}}
	r.log = o.logger.WithField("run", r.result.RunID)
	r.execute(ctx)
	r.result.Elapsed = o.opts.Now().Sub(start)
	r.log.WithFields(logrus.Fields{
		"phase":   r.result.Phase,
		"state":   r.result.State,
		"success": r.result.Success,
		"elapsed": r.result.Elapsed,
	}).Info("installation run finished")
	return r.result
}

func (r *run) enter(phase Phase, note string) {
	r.result.Phase = phase
	r.log.WithField("phase", phase).Debug(note)
	r.observe(note)
}

func (r *run) observe(note string) {
	if r.o.opts.Observer != nil && note != "" {
		r.o.opts.Observer(r.result.Phase, note)
	}
}

func (r *run) execute(ctx context.Context) {
	r.enter(PhaseLocating, "")
	desc := r.o.deps.Locator.Locate()
	r.result.Descriptor = desc
	if !desc.Found {
		r.fail(fault.New(fault.CodeBundleMissing, messages.OrchestrateBundleNotFoundFmt, len(desc.Searched), describeSearched(desc.Searched)))
		return
	}
	r.result.Warnings = append(r.result.Warnings, desc.Issues...)
	r.observe(fmt.Sprintf(messages.OrchestrateObserveLocatedFmt, desc.Identifier, desc.Version, desc.Environment))

	lock, err := acquireRunLock(r.o.opts.StateDir, desc.Identifier)
	if err != nil {
		r.fail(fault.From(err))
		return
	}
	defer func() {
		if err := lock.release(); err != nil {
			r.log.WithError(err).Warn("release run lock")
		}
	}()

	r.enter(PhaseActivating, "")
	if !r.activate(ctx, desc) {
		return
	}

	r.enter(PhaseReconciling, "")
	if !r.reconcile(ctx, desc) {
		return
	}

	r.enter(PhaseVerifying, "")
	if !r.verify(ctx, desc) {
		return
	}

	r.result.Phase = PhaseDone
	r.result.State = StateDone
	r.result.Success = true
}

// activate skips submission when the registry already has this version active, whatever
// the rest of the installation looks like.
func (r *run) activate(ctx context.Context, desc bundle.Descriptor) bool {
	pre := r.o.deps.Verifier.Verify(ctx, desc.Identifier)
	if entry, ok := pre.ActiveEntry(); ok && (desc.Version == "" || entry.Version == desc.Version) {
		r.result.ActivationSkipped = true
		r.observe(messages.OrchestrateObserveSkipActivation)
		return true
	}

	sub, err := r.o.deps.Activator.Submit(ctx, desc)
	if err != nil {
		r.fail(fault.From(err))
		return false
	}
	r.observe(fmt.Sprintf(messages.OrchestrateObserveSubmittedFmt, sub.ID))

	waitCtx, cancel := context.WithTimeout(ctx, r.o.opts.ActivationTimeout)
	defer cancel()

	settled, err := sub.WaitSettled(waitCtx)
	if err == nil && settled.State == activation.StatePendingApproval {
		r.observe(fmt.Sprintf(messages.OrchestrateObserveAwaitingApprovalFmt, settled.Instructions))
	}
	outcome, err := sub.Wait(waitCtx)
	if err != nil {
		if cancelErr := r.o.deps.Activator.Cancel(sub); cancelErr != nil {
			r.log.WithError(cancelErr).Warn("cancel activation")
		}
		outcome = sub.Outcome()
		r.result.Activation = &outcome
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			r.fail(fault.Wrap(fault.CodeInstallationTimeout, err, messages.OrchestrateActivationTimeoutFmt, r.o.opts.ActivationTimeout))
		} else {
			r.fail(fault.Wrap(fault.CodeCanceled, err, messages.OrchestrateActivationAbortedFmt, err))
		}
		return false
	}
	r.result.Activation = &outcome
	if outcome.State != activation.StateApproved {
		r.fail(outcome.Fault())
		return false
	}
	if outcome.RebootRequired {
		r.observe(messages.OrchestrateObserveRebootRequired)
	} else {
		r.observe(messages.OrchestrateObserveApproved)
	}
	return true
}

func (r *run) reconcile(ctx context.Context, desc bundle.Descriptor) bool {
	actions, err := r.o.deps.Service.EnsureRegistration(ctx, desc)
	r.rollbacks = append(r.rollbacks, actions...)
	if err != nil {
		r.failWithRollback(ctx, fault.From(err))
		return false
	}

	status := r.o.deps.Service.Reconcile(ctx)
	if len(status.Issues) > 0 {
		r.result.Resolved = r.o.deps.Service.ResolveConflicts(ctx, status)
		for _, rc := range r.result.Resolved {
			if rc.Rollback != nil {
				r.rollbacks = append(r.rollbacks, *rc.Rollback)
			}
			if rc.Resolved {
				r.observe(fmt.Sprintf(messages.OrchestrateObserveResolvedFmt, rc.Action))
			}
		}
		status = r.o.deps.Service.Reconcile(ctx)
	}
	r.result.Service = &status
	if status.Healthy() {
		return true
	}
	if len(status.Issues) == 0 {
		// Some queries could not be answered; nothing is reverted and the caller may rerun.
		r.result.State = StateIndeterminate
		r.result.Indeterminate = true
		r.result.Errors = append(r.result.Errors, fault.New(fault.CodeUnknown, messages.OrchestrateServiceUnknownFmt, strings.Join(status.Unknown, ", ")).
			WithRemediation(messages.OrchestrateRemedyServiceUnknown))
		return false
	}

	for _, issue := range status.Issues {
		r.result.Errors = append(r.result.Errors, issue.Fault())
	}
	r.failWithRollback(ctx, fault.New(status.Issues[0].Fault().Code, messages.OrchestrateReconcileIssuesFmt, len(status.Issues)))
	return false
}

func (r *run) verify(ctx context.Context, desc bundle.Descriptor) bool {
	outcome := r.o.deps.Verifier.Verify(ctx, desc.Identifier)
	r.result.Verification = &outcome
	r.observe(fmt.Sprintf(messages.OrchestrateObserveVerifiedFmt, outcome.Overall))

	switch outcome.Overall {
	case verify.OverallFullyFunctional:
		return true
	case verify.OverallPartiallyFunctional:
		r.result.Warnings = append(r.result.Warnings, outcome.Limitations...)
		return true
	case verify.OverallIndeterminate:
		// The true state is unknown, so nothing is reverted and the caller may rerun.
		r.result.State = StateIndeterminate
		r.result.Indeterminate = true
		for _, issue := range outcome.Issues {
			r.result.Errors = append(r.result.Errors, issue.Fault())
		}
		r.result.Errors = append(r.result.Errors, fault.New(fault.CodeUnknown, messages.OrchestrateIndeterminateFmt, outcome.DiagnosticFailure).
			WithRemediation(messages.VerifyRemedyIndeterminate))
		return false
	default:
		for _, issue := range outcome.Issues {
			r.result.Errors = append(r.result.Errors, issue.Fault())
		}
		r.failWithRollback(ctx, fault.New(fault.CodeNonFunctional, messages.OrchestrateNonFunctionalFmt, outcome.Reason))
		return false
	}
}

func (r *run) fail(err *fault.Error) {
	if err != nil {
		r.result.Errors = append(r.result.Errors, err)
		r.log.WithFields(logrus.Fields{"code": err.Code, "kind": err.Kind}).Warn(err.Message)
	}
	r.result.State = StateFailed
	r.result.Success = false
}

// failWithRollback records err and undoes registered side effects, newest first.
func (r *run) failWithRollback(ctx context.Context, err *fault.Error) {
	r.fail(err)
	for i := len(r.rollbacks) - 1; i >= 0; i-- {
		action := r.rollbacks[i]
		r.observe(fmt.Sprintf(messages.OrchestrateObserveRollbackFmt, action.Description))
		r.result.RollbackActions = append(r.result.RollbackActions, action.Description)
		if undoErr := action.Undo(ctx); undoErr != nil {
			code := fault.CodeFilesystem
			if inner, ok := fault.As(undoErr); ok {
				code = inner.Code
			}
			r.result.Errors = append(r.result.Errors, fault.Wrap(code, undoErr, messages.OrchestrateRollbackFailedFmt, action.Description))
		}
	}
	r.rollbacks = nil
}

func describeSearched(attempts []bundle.SearchAttempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		reason := a.Reason
		if len(a.Candidates) > 0 {
			reason += " (" + strings.Join(a.Candidates, "; ") + ")"
		}
		parts = append(parts, fmt.Sprintf(messages.OrchestrateSearchedFmt, a.Root, a.Environment, reason))
	}
	return strings.Join(parts, "; ")
}
