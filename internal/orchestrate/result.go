package orchestrate

import (
	"time"

	"github.com/conn-castle/dextctl/internal/activation"
	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/service"
	"github.com/conn-castle/dextctl/internal/verify"
)

// Phase is the furthest stage a run reached.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLocating    Phase = "locating"
	PhaseActivating  Phase = "activating"
	PhaseReconciling Phase = "reconciling"
	PhaseVerifying   Phase = "verifying"
	PhaseDone        Phase = "done"
)

// State is how a run ended.
type State string

const (
	StateDone          State = "done"
	StateFailed        State = "failed"
	StateIndeterminate State = "indeterminate"
)

// Result reports one run. It is never modified after Run returns.
type Result struct {
	RunID         string
	Phase         Phase
	State         State
	Success       bool
	Indeterminate bool
	// Errors are in the order they were encountered.
	Errors []*fault.Error
	// Warnings are limitations of a partially functional installation.
	Warnings []string
	// RollbackActions lists, in execution order, the rollback steps that were run.
	RollbackActions   []string
	Elapsed           time.Duration
	ActivationSkipped bool

	Descriptor   bundle.Descriptor
	Activation   *activation.Outcome
	Service      *service.Status
	Resolved     []service.ResolvedConflict
	Verification *verify.Outcome
}

// Err returns the first recorded error, or nil.
func (r Result) Err() *fault.Error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}
