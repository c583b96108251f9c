//go:build unix

// Package term assembles the console controller, the PTY shell, and the I/O
// pump into one caller-owned terminal session. The UI front end talks only
// to a Session; all cross-component wiring lives here.
package term

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fbshell-dev/fbshell/internal/console"
	"github.com/fbshell-dev/fbshell/internal/errors"
	"github.com/fbshell-dev/fbshell/internal/pump"
	"github.com/fbshell-dev/fbshell/internal/shell"
)

// consoleController is the slice of console.Device a session needs.
type consoleController interface {
	Acquire() error
	Release()
}

// shellProcess is the slice of shell.Session a session needs.
type shellProcess interface {
	Start() error
	PTY() *os.File
	Interrupt()
	Close()
}

// Options configures a Session. Zero values fall back to the defaults used
// by the underlying packages.
type Options struct {
	// DevicePath is the virtual console device, default /dev/tty0.
	DevicePath string

	// CellWidth and CellHeight are the glyph cell size in pixels used to
	// derive terminal geometry, defaults 8 and 16.
	CellWidth  int
	CellHeight int

	OutputCapacity  int
	CommandCapacity int
	PollInterval    time.Duration

	// ShellPath overrides $SHELL; Term overrides the exported TERM value.
	ShellPath string
	Term      string

	ShutdownDeadline time.Duration

	Logger *slog.Logger
}

const (
	defaultCellWidth  = 8
	defaultCellHeight = 16
)

// Session is a single terminal-takeover session: one console acquisition,
// one shell, one pump. The caller owns the Session and serializes Acquire
// and Release; exactly one Session should be active at a time, enforced by
// ownership rather than global state.
type Session struct {
	log  *slog.Logger
	opts Options

	console consoleController
	shell   shellProcess
	state   *pump.State

	cancel   context.CancelFunc
	pumpDone chan struct{}
	active   bool

	// Injectable for testing with fakes.
	newShell func(shell.Geometry) shellProcess
}

// NewSession creates an inactive session. Nothing is touched until Acquire.
func NewSession(opts Options) *Session {
	if opts.CellWidth <= 0 {
		opts.CellWidth = defaultCellWidth
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = defaultCellHeight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		log:     opts.Logger,
		opts:    opts,
		console: console.New(opts.DevicePath, opts.Logger),
	}

	s.newShell = func(geo shell.Geometry) shellProcess {
		return shell.New(shell.Options{
			Path:             opts.ShellPath,
			Term:             opts.Term,
			Geometry:         geo,
			ShutdownDeadline: opts.ShutdownDeadline,
			Logger:           opts.Logger,
		})
	}

	return s
}

// Acquire seizes the console, starts the shell in a PTY sized to the given
// pixel surface, and launches the background pump. On any failure the steps
// already taken are undone, so a failed Acquire leaves the console as it
// was found.
func (s *Session) Acquire(pixelWidth, pixelHeight int) error {
	if s.active {
		return errors.ConsoleBusy()
	}

	if err := s.console.Acquire(); err != nil {
		return err
	}

	geo := shell.GeometryFromPixels(pixelWidth, pixelHeight, s.opts.CellWidth, s.opts.CellHeight)

	sh := s.newShell(geo)
	if err := sh.Start(); err != nil {
		s.console.Release()
		return err
	}

	state := pump.NewState(s.opts.OutputCapacity, s.opts.CommandCapacity)
	ptmx := sh.PTY()

	worker := pump.New(state, ptmx, int(ptmx.Fd()), sh.Interrupt, pump.Config{
		PollInterval: s.opts.PollInterval,
		Logger:       s.log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	s.shell = sh
	s.state = state
	s.cancel = cancel
	s.pumpDone = done
	s.active = true

	s.log.Info("terminal session started",
		"cols", geo.Cols,
		"rows", geo.Rows,
		"device", s.opts.DevicePath)

	return nil
}

// Release tears the session down: stops the pump, shuts the shell down, and
// restores the console modes. Idempotent and safe before any Acquire; this
// must run on every shutdown path or the physical console is left unusable.
func (s *Session) Release() {
	if !s.active {
		s.log.Debug("release on an inactive session")
		return
	}

	s.cancel()
	s.shell.Close()

	select {
	case <-s.pumpDone:
	case <-time.After(time.Second):
		s.log.Warn("pump did not stop in time")
	}

	s.console.Release()

	s.shell = nil
	s.state = nil
	s.cancel = nil
	s.pumpDone = nil
	s.active = false

	s.log.Info("terminal session released")
}

// Active reports whether the session currently holds the console.
func (s *Session) Active() bool {
	return s.active
}

// SubmitCommand queues a command for the shell. An unconsumed previous
// command is overwritten. Fails when no session is active or the command
// exceeds the mailbox capacity.
func (s *Session) SubmitCommand(command []byte) error {
	if !s.active {
		return errors.New(errors.ExitGeneral, "no active terminal session")
	}

	return s.state.SubmitCommand(command)
}

// HasPendingUpdate reports whether new shell output is waiting.
func (s *Session) HasPendingUpdate() bool {
	return s.active && s.state.HasPendingUpdate()
}

// LatestOutput returns the current output buffer contents without
// consuming the pending update.
func (s *Session) LatestOutput() []byte {
	if !s.active {
		return nil
	}

	return s.state.LatestOutput()
}

// ConsumeOutput returns the current output buffer contents and clears the
// update-pending flag.
func (s *Session) ConsumeOutput() []byte {
	if !s.active {
		return nil
	}

	return s.state.ConsumeOutput()
}

// RequestInterrupt asks the pump to cancel the foreground job on its next
// cycle.
func (s *Session) RequestInterrupt() {
	if !s.active {
		return
	}

	s.state.RequestInterrupt()
}
