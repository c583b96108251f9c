// Package pump bridges bytes between a shell PTY and a UI front end. State
// is the single-lock handoff protocol between the two; Pump is the
// background worker that services it.
package pump

import (
	"sync"

	"github.com/fbshell-dev/fbshell/internal/errors"
)

// Default buffer capacities, overridable through configuration.
const (
	DefaultOutputCapacity  = 4096
	DefaultCommandCapacity = 1024
)

// State is the shared session state between the UI and the I/O pump: a
// single-slot, non-blocking mailbox in each direction plus the interrupt
// request flag, all guarded by one mutex.
//
// Output direction: the pump fills the output buffer and sets the
// update-pending flag; the UI consumes the buffer and clears the flag.
// Command direction: the UI fills the command buffer and sets the ready
// flag; the pump transmits the buffer and clears the flag.
type State struct {
	mu sync.Mutex

	out           []byte
	outLen        int
	updatePending bool

	cmd       []byte
	cmdLen    int
	cmdCursor int
	cmdReady  bool

	interrupt bool

	// Snapshot of the most recently transmitted command, used to
	// recognize and suppress the shell's echo of that command.
	echo    []byte
	echoLen int
}

// NewState creates session state with the given buffer capacities.
// Non-positive capacities fall back to the defaults.
func NewState(outputCapacity, commandCapacity int) *State {
	if outputCapacity <= 0 {
		outputCapacity = DefaultOutputCapacity
	}
	if commandCapacity <= 0 {
		commandCapacity = DefaultCommandCapacity
	}

	return &State{
		out:  make([]byte, outputCapacity),
		cmd:  make([]byte, commandCapacity),
		echo: make([]byte, commandCapacity),
	}
}

// SubmitCommand places a command into the mailbox for the pump to transmit.
// Commands of length capacity-1 or less are accepted; longer ones are
// rejected, never truncated. If a previous command has not been transmitted
// yet the new one overwrites it (last write wins); callers wanting ordering
// of rapid submissions must wait for the slot to drain.
func (s *State) SubmitCommand(command []byte) error {
	if len(command) >= len(s.cmd) {
		return errors.CommandTooLong(len(s.cmd))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(s.cmd, command)
	s.cmdLen = n
	s.cmdCursor = n
	s.cmdReady = true

	return nil
}

// RequestInterrupt asks the pump to cancel the foreground job. The pump
// services the request at the start of its next cycle, before any read or
// write.
func (s *State) RequestInterrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interrupt = true
}

// HasPendingUpdate reports whether new output is waiting for the UI.
func (s *State) HasPendingUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updatePending
}

// LatestOutput returns a copy of the current output buffer contents without
// consuming the pending update.
func (s *State) LatestOutput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.out[:s.outLen]...)
}

// ConsumeOutput returns a copy of the current output buffer contents and
// clears the update-pending flag, letting the pump read again.
func (s *State) ConsumeOutput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]byte(nil), s.out[:s.outLen]...)
	s.updatePending = false

	return out
}
