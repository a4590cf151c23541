package activation

import (
	"github.com/conn-castle/dextctl/internal/fault"
)

// State is the lifecycle position of an activation submission.
type State string

const (
	StateNotSubmitted       State = "not-submitted"
	StateSubmitting         State = "submitting"
	StatePendingApproval    State = "pending-approval"
	StateApproved           State = "approved"
	StateRequiresUserAction State = "requires-user-action"
	StateFailed             State = "failed"
)

func (s State) rank() int {
	switch s {
	case StateNotSubmitted:
		return 0
	case StateSubmitting:
		return 1
	case StatePendingApproval:
		return 2
	default:
		return 3
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s.rank() == 3
}

// Outcome is a point-in-time view of a submission.
type Outcome struct {
	State        State
	RequestToken string
	ExtensionID  string
	// Instructions tell the user what to do when State is requires-user-action or pending-approval.
	Instructions string
	ErrorCode    fault.Code
	ErrorKind    fault.Kind
	Detail       string
	// RebootRequired is set when the registrar deferred completion until the next restart.
	RebootRequired bool
	// ReplacedVersion is the version of the extension the registrar replaced, if any.
	ReplacedVersion string
}

// Fault returns the outcome's failure as a typed error, or nil when the outcome is not a failure.
func (o Outcome) Fault() *fault.Error {
	if o.State != StateFailed && o.State != StateRequiresUserAction {
		return nil
	}
	err := fault.New(o.ErrorCode, "%s", o.Detail)
	if o.Instructions != "" {
		err = err.WithRemediation(o.Instructions)
	}
	return err
}

// canTransition enforces rank monotonicity. Failed is reachable from every non-terminal state and
// pending-approval may repeat.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	if to == StatePendingApproval && from == StatePendingApproval {
		return true
	}
	return to.rank() > from.rank()
}
