// Package activation submits the driver extension to the system-extension registrar and tracks
// the asynchronous approval workflow.
package activation

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/messages"
)

// Coordinator serializes registrar submissions per bundle identifier.
type Coordinator struct {
	registrar Registrar
	logger    logrus.FieldLogger
	newToken  func() string

	mu     sync.Mutex
	latest map[string]*Submission
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithTokenGenerator overrides request token generation.
func WithTokenGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		c.newToken = fn
	}
}

// NewCoordinator returns a Coordinator driving registrar.
func NewCoordinator(registrar Registrar, opts ...Option) *Coordinator {
	c := &Coordinator{
		registrar: registrar,
		newToken:  uuid.NewString,
		latest:    make(map[string]*Submission),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(c.logger, logging.ComponentActivation)
	return c
}

// Submit requests activation of the extension in desc. The returned error is non-nil only when
// the request was refused before reaching the registrar; registrar failures surface through the
// submission's outcome.
func (c *Coordinator) Submit(ctx context.Context, desc bundle.Descriptor) (*Submission, error) {
	return c.submit(ctx, desc, RequestActivate)
}

// Deactivate requests removal of the extension in desc.
func (c *Coordinator) Deactivate(ctx context.Context, desc bundle.Descriptor) (*Submission, error) {
	return c.submit(ctx, desc, RequestDeactivate)
}

// Latest returns the most recent submission for identifier, or nil.
func (c *Coordinator) Latest(identifier string) *Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest[identifier]
}

func (c *Coordinator) submit(ctx context.Context, desc bundle.Descriptor, kind RequestKind) (*Submission, error) {
	if desc.Identifier == "" {
		return nil, fault.New(fault.CodeInvalidBundle, messages.ActivationEmptyIdentifier)
	}

	c.mu.Lock()
	if prev := c.latest[desc.Identifier]; prev != nil {
		if !prev.terminal() {
			c.mu.Unlock()
			return nil, fault.New(fault.CodeAlreadyInProgress, messages.ActivationAlreadyInProgressFmt, prev.Kind, desc.Identifier, prev.ID)
		}
		prev.markSuperseded()
	}
	sub := newSubmission(c.newToken(), desc.Identifier, kind)
	sub.advance(StateSubmitting, nil)
	c.latest[desc.Identifier] = sub
	c.mu.Unlock()

	log := c.logger.WithFields(logrus.Fields{
		"identifier": desc.Identifier,
		"request":    sub.ID,
		"kind":       kind,
	})
	log.Info("submitting registrar request")

	events, err := c.registrar.Submit(ctx, Request{
		Token:      sub.ID,
		Kind:       kind,
		Identifier: desc.Identifier,
		BundlePath: desc.Path,
		Executable: desc.Executable,
	})
	if err != nil {
		ferr := fault.Wrap(fault.CodeUnknown, err, messages.ActivationSubmitFailedFmt, kind, desc.Identifier)
		sub.advance(StateFailed, func(o *Outcome) {
			o.ErrorCode = ferr.Code
			o.ErrorKind = ferr.Kind
			o.Detail = ferr.Error()
		})
		log.WithError(err).Warn("registrar submit failed")
		return sub, nil
	}

	go c.pump(sub, desc.Version, events, log)
	return sub, nil
}

// pump applies registrar events to sub until the channel closes.
func (c *Coordinator) pump(sub *Submission, version string, events <-chan Event, log logrus.FieldLogger) {
	for ev := range events {
		switch ev.Type {
		case EventNeedsApproval:
			if sub.advance(StatePendingApproval, func(o *Outcome) {
				o.Instructions = messages.ActivationApproveInstructions
			}) {
				log.Info("registrar awaiting user approval")
			}
		case EventFinished:
			if sub.advance(StateApproved, func(o *Outcome) {
				o.RebootRequired = ev.RebootRequired
				o.Instructions = ""
			}) {
				log.WithField("reboot_required", ev.RebootRequired).Info("registrar request finished")
			}
		case EventFailed:
			m := mapRegistrarCode(ev.Code)
			if sub.advance(m.state, func(o *Outcome) {
				o.ErrorCode = m.code
				o.ErrorKind = fault.KindOf(m.code)
				o.Detail = fmt.Sprintf(messages.ActivationRegistrarCodeFmt, ev.Code, ev.Message)
				o.Instructions = m.instructions
			}) {
				log.WithFields(logrus.Fields{"code": ev.Code, "mapped": m.code}).Warn("registrar request failed")
			}
		case EventReplace:
			c.answerReplace(sub, version, ev, log)
		default:
			log.WithField("event", ev.Type).Debug("ignoring unknown registrar event")
		}
	}
	if sub.advance(StateFailed, func(o *Outcome) {
		o.ErrorCode = fault.CodeUnknown
		o.ErrorKind = fault.KindOf(fault.CodeUnknown)
		o.Detail = messages.ActivationStreamClosed
	}) {
		log.Warn(messages.ActivationStreamClosed)
	}
}

// answerReplace always replaces the installed extension and warns on a downgrade.
func (c *Coordinator) answerReplace(sub *Submission, version string, ev Event, log logrus.FieldLogger) {
	replacement := ev.Replacement
	if replacement == "" {
		replacement = version
	}
	if isDowngrade(ev.Existing, replacement) {
		log.Warnf(messages.ActivationDowngradeFmt, ev.Existing, replacement)
	} else {
		log.Infof(messages.ActivationReplaceFmt, ev.Existing, replacement)
	}
	sub.mu.Lock()
	sub.outcome.ReplacedVersion = ev.Existing
	sub.mu.Unlock()
	if ev.Reply == nil {
		return
	}
	select {
	case ev.Reply <- ReplaceActionReplace:
	default:
		log.Warn(messages.ActivationReplyDropped)
	}
}

func isDowngrade(existing, replacement string) bool {
	from, err := semver.NewVersion(existing)
	if err != nil {
		return false
	}
	to, err := semver.NewVersion(replacement)
	if err != nil {
		return false
	}
	return to.LessThan(from)
}

// Cancel cancels sub's registrar request. It is a no-op once the outcome is terminal.
func (c *Coordinator) Cancel(sub *Submission) error {
	if sub == nil || sub.terminal() {
		return nil
	}
	if !sub.advance(StateFailed, func(o *Outcome) {
		o.ErrorCode = fault.CodeCanceled
		o.ErrorKind = fault.KindOf(fault.CodeCanceled)
		o.Detail = fmt.Sprintf(messages.ActivationCanceledFmt, sub.Kind, sub.Identifier)
	}) {
		return nil
	}
	c.logger.WithField("request", sub.ID).Info("canceling registrar request")
	if cancelErr := c.registrar.Cancel(sub.ID); cancelErr != nil {
		return fmt.Errorf(messages.ActivationCancelFailedFmt, sub.ID, cancelErr)
	}
	return nil
}
