package orchestrate

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

var flockFn = unix.Flock

var (
	heldMu sync.Mutex
	held   = map[string]struct{}{}
)

// runLock excludes concurrent runs for one bundle identifier, inside this process and across
// processes sharing the state directory.
type runLock struct {
	key  string
	file *os.File
}

// acquireRunLock takes the lock without waiting. An empty stateDir skips the file lock.
func acquireRunLock(stateDir string, identifier string) (*runLock, error) {
	heldMu.Lock()
	if _, busy := held[identifier]; busy {
		heldMu.Unlock()
		return nil, fault.New(fault.CodeRunInProgress, messages.OrchestrateRunInProgressFmt, identifier)
	}
	held[identifier] = struct{}{}
	heldMu.Unlock()

	lock := &runLock{key: identifier}
	if stateDir == "" {
		return lock, nil
	}
	path := filepath.Join(stateDir, identifier+".lock")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		lock.forget()
		return nil, fault.Wrap(fault.CodeFilesystem, err, messages.OrchestrateOpenLockFmt, path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		lock.forget()
		return nil, fault.Wrap(fault.CodeFilesystem, err, messages.OrchestrateOpenLockFmt, path)
	}
	if err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		lock.forget()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, fault.New(fault.CodeRunInProgress, messages.OrchestrateRunInProgressFmt, identifier)
		}
		return nil, fault.Wrap(fault.CodeFilesystem, err, messages.OrchestrateLockFmt, path)
	}
	lock.file = file
	return lock, nil
}

// release unlocks and closes the lock file. The file itself is left in place.
func (l *runLock) release() error {
	if l == nil {
		return nil
	}
	defer l.forget()
	if l.file == nil {
		return nil
	}
	if err := flockFn(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func (l *runLock) forget() {
	heldMu.Lock()
	delete(held, l.key)
	heldMu.Unlock()
}
