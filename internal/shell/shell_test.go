//go:build unix

package shell

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/creack/pty"
)

type sentSignal struct {
	pid int
	sig syscall.Signal
}

func TestStartUsesLoginShellWithGeometry(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")

	s := New(Options{
		Geometry: Geometry{Cols: 100, Rows: 30},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var gotCmd *exec.Cmd
	var gotSize *pty.Winsize

	s.startWithSize = func(cmd *exec.Cmd, ws *pty.Winsize) (*os.File, error) {
		gotCmd = cmd
		gotSize = ws

		r, _, err := os.Pipe()
		if err != nil {
			t.Fatalf("os.Pipe() error = %v", err)
		}

		return r, nil
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Close()

	if gotCmd.Path != "/bin/zsh" {
		t.Fatalf("shell path = %q, want /bin/zsh", gotCmd.Path)
	}

	wantArgs := []string{"/bin/zsh", "-l", "-i"}
	if len(gotCmd.Args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", gotCmd.Args, wantArgs)
	}
	for i, a := range wantArgs {
		if gotCmd.Args[i] != a {
			t.Fatalf("args[%d] = %q, want %q", i, gotCmd.Args[i], a)
		}
	}

	foundTerm := false
	for _, e := range gotCmd.Env {
		if e == "TERM=xterm" {
			foundTerm = true
		}
	}
	if !foundTerm {
		t.Fatal("child environment missing TERM=xterm")
	}

	if gotSize.Cols != 100 || gotSize.Rows != 30 {
		t.Fatalf("winsize = %dx%d, want 100x30", gotSize.Cols, gotSize.Rows)
	}
}

func TestStartFallsBackToSh(t *testing.T) {
	t.Setenv("SHELL", "")

	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	var gotPath string

	s.startWithSize = func(cmd *exec.Cmd, _ *pty.Winsize) (*os.File, error) {
		gotPath = cmd.Path

		return nil, errors.New("stop here")
	}

	if err := s.Start(); err == nil {
		t.Fatal("Start() should propagate the spawn error")
	}

	if gotPath != "/bin/sh" {
		t.Fatalf("shell path = %q, want /bin/sh fallback", gotPath)
	}
}

func TestInterruptSignalsForegroundGroupThenShell(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	s.ptmx = r
	s.cmd = &exec.Cmd{Process: &os.Process{Pid: 1234}}
	s.pgid = 1234

	var sent []sentSignal

	s.foregroundPgid = func(int) (int, error) { return 4321, nil }
	s.kill = func(pid int, sig syscall.Signal) error {
		sent = append(sent, sentSignal{pid, sig})

		return nil
	}

	s.Interrupt()

	want := []sentSignal{
		{-4321, syscall.SIGINT},
		{1234, syscall.SIGINT},
	}
	if len(sent) != len(want) {
		t.Fatalf("signals = %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("signals[%d] = %v, want %v", i, sent[i], want[i])
		}
	}
}

func TestInterruptSkipsShellWhenItIsForeground(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	s.ptmx = r
	s.cmd = &exec.Cmd{Process: &os.Process{Pid: 1234}}
	s.pgid = 1234

	var sent []sentSignal

	s.foregroundPgid = func(int) (int, error) { return 1234, nil }
	s.kill = func(pid int, sig syscall.Signal) error {
		sent = append(sent, sentSignal{pid, sig})

		return nil
	}

	s.Interrupt()

	if len(sent) != 1 || sent[0].pid != -1234 {
		t.Fatalf("signals = %v, want a single group signal to -1234", sent)
	}
}

func TestInterruptFallsBackToShellOnLookupFailure(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	s.ptmx = r
	s.cmd = &exec.Cmd{Process: &os.Process{Pid: 1234}}
	s.pgid = 1234

	var sent []sentSignal

	s.foregroundPgid = func(int) (int, error) { return 0, errors.New("not a tty") }
	s.kill = func(pid int, sig syscall.Signal) error {
		sent = append(sent, sentSignal{pid, sig})

		return nil
	}

	s.Interrupt()

	if len(sent) != 1 || sent[0].pid != 1234 || sent[0].sig != syscall.SIGINT {
		t.Fatalf("signals = %v, want SIGINT to the shell pid only", sent)
	}
}

func TestInterruptBeforeStartIsNoop(t *testing.T) {
	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	s.kill = func(int, syscall.Signal) error {
		t.Fatal("no signal should be sent before Start")

		return nil
	}

	s.Interrupt()
}

func TestCloseBeforeStartIsNoop(t *testing.T) {
	s := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	s.Close()
	s.Close()
}
