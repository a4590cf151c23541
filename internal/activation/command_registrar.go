package activation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/messages"
)

// helperExitCode is reported when the helper exits without emitting a terminal event.
const helperExitCode = -1

// wireEvent is one JSON line emitted by the activation helper.
type wireEvent struct {
	Event          string `json:"event"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	RebootRequired bool   `json:"reboot_required"`
	Existing       string `json:"existing_version"`
	Replacement    string `json:"replacement_version"`
}

type wireReply struct {
	Action ReplaceAction `json:"action"`
}

// CommandRegistrar drives the host app's activation helper, which wraps OSSystemExtensionRequest
// and reports delegate callbacks as JSON lines on stdout.
type CommandRegistrar struct {
	ActivationArgs   []string
	DeactivationArgs []string
	Logger           logrus.FieldLogger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewCommandRegistrar returns a registrar invoking the bundle executable with the given arguments.
func NewCommandRegistrar(activationArgs, deactivationArgs []string, logger logrus.FieldLogger) *CommandRegistrar {
	return &CommandRegistrar{
		ActivationArgs:   activationArgs,
		DeactivationArgs: deactivationArgs,
		Logger:           logging.Component(logger, logging.ComponentActivation),
		running:          make(map[string]context.CancelFunc),
	}
}

// Submit starts the helper and streams its events until it exits.
func (r *CommandRegistrar) Submit(ctx context.Context, req Request) (<-chan Event, error) {
	args := r.ActivationArgs
	if req.Kind == RequestDeactivate {
		args = r.DeactivationArgs
	}
	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, req.Executable, args...)
	cmd.WaitDelay = 100 * time.Millisecond
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf(messages.ActivationHelperPipeFmt, err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf(messages.ActivationHelperPipeFmt, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf(messages.ActivationHelperStartFmt, req.Executable, err)
	}

	r.mu.Lock()
	if r.running == nil {
		r.running = make(map[string]context.CancelFunc)
	}
	r.running[req.Token] = cancel
	r.mu.Unlock()

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() {
			r.mu.Lock()
			delete(r.running, req.Token)
			r.mu.Unlock()
			cancel()
		}()
		terminal := r.stream(procCtx, stdout, stdin, events)
		_ = stdin.Close()
		waitErr := cmd.Wait()
		if terminal || procCtx.Err() != nil {
			return
		}
		detail := strings.TrimSpace(stderr.String())
		if waitErr != nil {
			detail = strings.TrimSpace(fmt.Sprintf(messages.ActivationHelperExitFmt, waitErr) + " " + detail)
		}
		if detail == "" {
			return
		}
		select {
		case events <- Event{Type: EventFailed, Code: helperExitCode, Message: detail}:
		case <-procCtx.Done():
		}
	}()
	return events, nil
}

// stream forwards helper events and reports whether a terminal event was seen.
func (r *CommandRegistrar) stream(ctx context.Context, stdout io.Reader, stdin io.Writer, events chan<- Event) bool {
	terminal := false
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var we wireEvent
		if err := json.Unmarshal([]byte(line), &we); err != nil {
			r.logger().WithField("line", line).Debug(messages.ActivationHelperBadLine)
			continue
		}
		ev := Event{
			Type:           EventType(we.Event),
			RebootRequired: we.RebootRequired,
			Code:           we.Code,
			Message:        we.Message,
			Existing:       we.Existing,
			Replacement:    we.Replacement,
		}
		var reply chan ReplaceAction
		if ev.Type == EventReplace {
			reply = make(chan ReplaceAction, 1)
			ev.Reply = reply
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return terminal
		}
		if ev.Type == EventFinished || ev.Type == EventFailed {
			terminal = true
		}
		if reply != nil {
			select {
			case action := <-reply:
				if err := json.NewEncoder(stdin).Encode(wireReply{Action: action}); err != nil {
					r.logger().Warnf(messages.ActivationHelperReplyFmt, err)
				}
			case <-ctx.Done():
				return terminal
			}
		}
	}
	return terminal
}

// Cancel stops the helper running for token. Unknown tokens are ignored.
func (r *CommandRegistrar) Cancel(token string) error {
	r.mu.Lock()
	cancel, ok := r.running[token]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (r *CommandRegistrar) logger() logrus.FieldLogger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}
