// Package activationtest provides a scripted activation.Registrar for tests.
package activationtest

import (
	"context"
	"sync"

	"github.com/conn-castle/dextctl/internal/activation"
)

// Registrar records requests and either replays a fixed script or lets the test emit events.
type Registrar struct {
	mu       sync.Mutex
	script   []activation.Event
	scripted bool
	keepOpen bool
	err      error
	requests []activation.Request
	cancels  []string
	streams  map[string]chan activation.Event
	onSubmit func(activation.Request)
}

// New returns a Registrar whose streams stay open until Emit/Close/Cancel.
func New() *Registrar {
	return &Registrar{streams: map[string]chan activation.Event{}}
}

// Script makes every Submit replay events and then close the stream.
func (r *Registrar) Script(events ...activation.Event) *Registrar {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = events
	r.scripted = true
	return r
}

// ScriptOpen is Script without closing the stream; it stays open until Close or Cancel.
func (r *Registrar) ScriptOpen(events ...activation.Event) *Registrar {
	r.Script(events...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepOpen = true
	return r
}

// FailSubmit makes Submit return err.
func (r *Registrar) FailSubmit(err error) *Registrar {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// OnSubmit registers a hook called before the stream is returned.
func (r *Registrar) OnSubmit(fn func(activation.Request)) *Registrar {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSubmit = fn
	return r
}

// Submit implements activation.Registrar.
func (r *Registrar) Submit(_ context.Context, req activation.Request) (<-chan activation.Event, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	hook, err := r.onSubmit, r.err
	script, scripted, keepOpen := r.script, r.scripted, r.keepOpen
	r.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	if scripted {
		ch := make(chan activation.Event, len(script))
		for _, ev := range script {
			if ev.Type == activation.EventReplace && ev.Reply == nil {
				ev.Reply = make(chan activation.ReplaceAction, 1)
			}
			ch <- ev
		}
		if keepOpen {
			r.mu.Lock()
			r.streams[req.Token] = ch
			r.mu.Unlock()
			return ch, nil
		}
		close(ch)
		return ch, nil
	}
	ch := make(chan activation.Event)
	r.mu.Lock()
	r.streams[req.Token] = ch
	r.mu.Unlock()
	return ch, nil
}

// Cancel implements activation.Registrar and closes the open stream for token.
func (r *Registrar) Cancel(token string) error {
	r.mu.Lock()
	r.cancels = append(r.cancels, token)
	r.mu.Unlock()
	r.Close(token)
	return nil
}

// Emit delivers ev on the open stream for token. It blocks until the coordinator receives it.
func (r *Registrar) Emit(token string, ev activation.Event) {
	r.mu.Lock()
	ch := r.streams[token]
	r.mu.Unlock()
	if ch != nil {
		ch <- ev
	}
}

// Close ends the open stream for token.
func (r *Registrar) Close(token string) {
	r.mu.Lock()
	ch := r.streams[token]
	delete(r.streams, token)
	r.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Requests returns every submitted request in order.
func (r *Registrar) Requests() []activation.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activation.Request(nil), r.requests...)
}

// Cancels returns every canceled token in order.
func (r *Registrar) Cancels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cancels...)
}
