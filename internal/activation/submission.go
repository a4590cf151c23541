package activation

import (
	"context"
	"sync"
)

// Submission tracks one registrar request. Its outcome is written only by the event pump.
type Submission struct {
	ID         string
	Identifier string
	Kind       RequestKind

	mu          sync.Mutex
	outcome     Outcome
	transitions []State
	superseded  bool
	settled     chan struct{}
	done        chan struct{}
}

func newSubmission(id string, identifier string, kind RequestKind) *Submission {
	return &Submission{
		ID:          id,
		Identifier:  identifier,
		Kind:        kind,
		outcome:     Outcome{State: StateNotSubmitted, RequestToken: id, ExtensionID: identifier},
		transitions: []State{StateNotSubmitted},
		settled:     make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Outcome returns the current outcome.
func (s *Submission) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Transitions returns the states entered so far, in order.
func (s *Submission) Transitions() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Superseded reports whether a newer submission for the same identifier has started.
func (s *Submission) Superseded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.superseded
}

// Done is closed once the outcome is terminal.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the outcome is terminal or ctx ends. On ctx expiry the current
// non-terminal outcome is returned with ctx's error.
func (s *Submission) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-ctx.Done():
		return s.Outcome(), ctx.Err()
	}
}

// WaitSettled blocks until the submission is pending approval or terminal.
func (s *Submission) WaitSettled(ctx context.Context) (Outcome, error) {
	select {
	case <-s.settled:
		return s.Outcome(), nil
	case <-ctx.Done():
		return s.Outcome(), ctx.Err()
	}
}

func (s *Submission) terminal() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// advance applies update to the outcome when the transition is allowed.
func (s *Submission) advance(next State, update func(*Outcome)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.outcome.State
	if !canTransition(prev, next) {
		return false
	}
	s.outcome.State = next
	if update != nil {
		update(&s.outcome)
	}
	if prev != next {
		s.transitions = append(s.transitions, next)
	}
	if next == StatePendingApproval || next.Terminal() {
		closeOnce(s.settled)
	}
	if next.Terminal() {
		close(s.done)
	}
	return true
}

func (s *Submission) markSuperseded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.superseded = true
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
