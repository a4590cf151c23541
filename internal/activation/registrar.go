package activation

import (
	"context"
)

// RequestKind selects what the registrar is asked to do.
type RequestKind string

const (
	RequestActivate   RequestKind = "activate"
	RequestDeactivate RequestKind = "deactivate"
)

// Request is handed to the registrar for one submission.
type Request struct {
	Token      string
	Kind       RequestKind
	Identifier string
	BundlePath string
	Executable string
}

// EventType names a registrar callback.
type EventType string

const (
	EventNeedsApproval EventType = "needs_user_approval"
	EventFinished      EventType = "finished"
	EventFailed        EventType = "failed"
	EventReplace       EventType = "replace"
)

// ReplaceAction answers a replace event.
type ReplaceAction string

const (
	ReplaceActionReplace ReplaceAction = "replace"
	ReplaceActionCancel  ReplaceAction = "cancel"
)

// Event is one registrar callback.
type Event struct {
	Type EventType
	// RebootRequired accompanies finished when completion is deferred until restart.
	RebootRequired bool
	// Code and Message accompany failed.
	Code    int
	Message string
	// Existing and Replacement are the versions involved in a replace event.
	Existing    string
	Replacement string
	// Reply receives exactly one answer for a replace event. Registrars must buffer it.
	Reply chan<- ReplaceAction
}

// Registrar submits requests to the OS system-extension registrar and streams its callbacks.
// The returned channel is closed once the request has concluded.
type Registrar interface {
	Submit(ctx context.Context, req Request) (<-chan Event, error)
	Cancel(token string) error
}
