//go:build unix

// Package shell runs the user's login shell inside a pseudoterminal sized to
// a display surface and delivers interrupt and shutdown signals to it.
package shell

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	clierrors "github.com/fbshell-dev/fbshell/internal/errors"
)

const (
	defaultTerm             = "xterm"
	defaultShell            = "/bin/sh"
	defaultShutdownDeadline = 3 * time.Second
)

// Options configures a shell session.
type Options struct {
	// Path is the shell binary. Empty means $SHELL, falling back to /bin/sh.
	Path string

	// Term is the TERM value exported to the shell. Empty means "xterm".
	Term string

	// Geometry is the initial PTY window size.
	Geometry Geometry

	// ShutdownDeadline bounds the SIGTERM grace period during Close.
	ShutdownDeadline time.Duration

	Logger *slog.Logger
}

// Session owns a PTY master descriptor and the forked shell process behind
// it. A Session is created once per console acquisition and never reused
// after the shell exits.
type Session struct {
	log *slog.Logger

	opts Options

	ptmx *os.File
	cmd  *exec.Cmd
	pgid int

	// Injectable for testing without forking a real shell.
	startWithSize  func(*exec.Cmd, *pty.Winsize) (*os.File, error)
	foregroundPgid func(fd int) (int, error)
	kill           func(pid int, sig syscall.Signal) error
}

// New creates a Session with the given options. The shell is not started
// until Start is called.
func New(opts Options) *Session {
	if opts.Term == "" {
		opts.Term = defaultTerm
	}
	if opts.ShutdownDeadline <= 0 {
		opts.ShutdownDeadline = defaultShutdownDeadline
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Session{
		log:           opts.Logger,
		opts:          opts,
		startWithSize: pty.StartWithSize,
		foregroundPgid: func(fd int) (int, error) {
			return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
		},
		kill: syscall.Kill,
	}
}

// Start forks the shell attached to a newly allocated PTY with the session
// geometry. The shell runs in interactive login mode with TERM set.
func (s *Session) Start() error {
	path := s.opts.Path
	if path == "" {
		path = os.Getenv("SHELL")
	}
	if path == "" {
		path = defaultShell
	}

	cmd := exec.Command(path, "-l", "-i")
	cmd.Env = append(os.Environ(), "TERM="+s.opts.Term)

	s.log.Debug("starting shell session",
		"shell", path,
		"cols", s.opts.Geometry.Cols,
		"rows", s.opts.Geometry.Rows)

	ptmx, err := s.startWithSize(cmd, &pty.Winsize{
		Rows: s.opts.Geometry.Rows,
		Cols: s.opts.Geometry.Cols,
	})
	if err != nil {
		return clierrors.ShellSpawnFailed(err)
	}

	s.ptmx = ptmx
	s.cmd = cmd
	s.pgid = 0

	if cmd.Process != nil && cmd.Process.Pid > 0 {
		if pgid, pgErr := syscall.Getpgid(cmd.Process.Pid); pgErr == nil {
			s.pgid = pgid
		}
	}

	return nil
}

// PTY returns the master side of the session's pseudoterminal, or nil
// before Start.
func (s *Session) PTY() *os.File {
	return s.ptmx
}

// Pid returns the shell's process id, or 0 before Start.
func (s *Session) Pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}

	return s.cmd.Process.Pid
}

// Interrupt delivers SIGINT to the PTY's foreground process group, then to
// the shell itself. Signaling the group cancels the running command and its
// descendants in one step; the follow-up to the shell matches a user-issued
// cancel even when no job is in the foreground.
func (s *Session) Interrupt() {
	if s.ptmx == nil {
		return
	}

	fg, err := s.foregroundPgid(int(s.ptmx.Fd()))
	if err != nil || fg <= 0 {
		s.log.Warn("could not resolve foreground process group", "error", err)
	} else if killErr := s.kill(-fg, syscall.SIGINT); killErr != nil && !errors.Is(killErr, syscall.ESRCH) {
		s.log.Warn("interrupt delivery to foreground group failed", "pgid", fg, "error", killErr)
	}

	if pid := s.Pid(); pid > 0 && fg != s.pgid {
		if killErr := s.kill(pid, syscall.SIGINT); killErr != nil && !errors.Is(killErr, syscall.ESRCH) {
			s.log.Warn("interrupt delivery to shell failed", "pid", pid, "error", killErr)
		}
	}
}

// Close shuts the session down: it closes the PTY master, asks the shell's
// process group to terminate, and escalates to SIGKILL after the shutdown
// deadline. Safe to call on a session that never started.
func (s *Session) Close() {
	ptmx := s.ptmx
	cmd := s.cmd
	pgid := s.pgid
	s.ptmx = nil
	s.cmd = nil
	s.pgid = 0

	if ptmx != nil {
		_ = ptmx.Close()
	}

	if cmd == nil || cmd.Process == nil {
		return
	}

	s.log.Debug("stopping shell session", "pid", cmd.Process.Pid)

	waitCh := make(chan error, 1)

	go func() {
		waitCh <- cmd.Wait()
	}()

	s.signalGroup(cmd.Process.Pid, pgid, syscall.SIGTERM)

	select {
	case <-waitCh:
		return
	case <-time.After(s.opts.ShutdownDeadline):
		s.signalGroup(cmd.Process.Pid, pgid, syscall.SIGKILL)

		select {
		case <-waitCh:
		case <-time.After(s.opts.ShutdownDeadline):
			s.log.Warn("shell did not exit after SIGKILL", "pid", cmd.Process.Pid)
		}
	}
}

func (s *Session) signalGroup(pid, pgid int, sig syscall.Signal) {
	if pgid > 0 {
		if err := s.kill(-pgid, sig); err == nil || errors.Is(err, syscall.ESRCH) {
			return
		}
	}

	if pid <= 0 {
		return
	}

	_ = s.kill(pid, sig)
}
