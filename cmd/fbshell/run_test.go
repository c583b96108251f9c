//go:build unix

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	clierrors "github.com/fbshell-dev/fbshell/internal/errors"
	"github.com/fbshell-dev/fbshell/internal/output"
)

// fakeSession records calls from the run loop and serves canned output.
type fakeSession struct {
	mu sync.Mutex

	acquireErr    error
	width, height int
	acquired      bool
	released      int

	commands [][]byte
	pending  []byte

	interrupts int
}

func (f *fakeSession) Acquire(w, h int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.acquireErr != nil {
		return f.acquireErr
	}

	f.width, f.height = w, h
	f.acquired = true

	return nil
}

func (f *fakeSession) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.released++
}

func (f *fakeSession) SubmitCommand(cmd []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, append([]byte(nil), cmd...))

	return nil
}

func (f *fakeSession) HasPendingUpdate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.pending) > 0
}

func (f *fakeSession) ConsumeOutput() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.pending
	f.pending = nil

	return out
}

func (f *fakeSession) RequestInterrupt() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.interrupts++
}

func (f *fakeSession) setPending(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = b
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSessionSubmitsInputAndReleases(t *testing.T) {
	sess := &fakeSession{}

	var buf bytes.Buffer
	w := output.NewWriter(&buf, &buf, &output.Terminal{NoColor: true})

	input := strings.NewReader("echo hi\nls -la\n")

	err := runSession(context.Background(), w, discardLogger(), sess, 800, 480, input)
	if err != nil {
		t.Fatalf("runSession() error = %v", err)
	}

	if sess.width != 800 || sess.height != 480 {
		t.Errorf("acquired with %dx%d, want 800x480", sess.width, sess.height)
	}

	if len(sess.commands) != 2 || string(sess.commands[0]) != "echo hi" || string(sess.commands[1]) != "ls -la" {
		t.Errorf("commands = %q, want the two input lines", sess.commands)
	}

	if sess.released != 1 {
		t.Errorf("released = %d, want exactly 1", sess.released)
	}
}

func TestRunSessionAcquireFailureSkipsRelease(t *testing.T) {
	sess := &fakeSession{acquireErr: clierrors.DeviceUnavailable("/dev/tty0", errors.New("denied"))}

	var buf bytes.Buffer
	w := output.NewWriter(&buf, &buf, &output.Terminal{NoColor: true})

	err := runSession(context.Background(), w, discardLogger(), sess, 800, 480, strings.NewReader(""))
	if err == nil {
		t.Fatal("runSession() should propagate the acquire failure")
	}

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitConsole {
		t.Fatalf("error = %v, want console CLIError", err)
	}

	if sess.released != 0 {
		t.Errorf("released = %d, want 0 when acquire never succeeded", sess.released)
	}
}

func TestRunSessionRendersSanitizedOutput(t *testing.T) {
	sess := &fakeSession{}
	sess.setPending([]byte("\x1b[32mhi\x1b[0m\r\n\x07"))

	var buf bytes.Buffer
	w := output.NewWriter(&buf, &buf, &output.Terminal{NoColor: true})

	// Keep the loop alive past one UI tick, then end via input EOF.
	input := newSlowReader("true\n", 3*uiUpdateInterval)

	if err := runSession(context.Background(), w, discardLogger(), sess, 800, 480, input); err != nil {
		t.Fatalf("runSession() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "hi\r\n") {
		t.Errorf("output = %q, want the stripped text", got)
	}
	if strings.ContainsAny(got, "\x1b\x07") {
		t.Errorf("output = %q, escapes and control bytes should be removed", got)
	}
}

func TestReadLinesStopsOnDone(t *testing.T) {
	done := make(chan struct{})

	// Nobody receives the line, so the sender blocks until done closes.
	lines := readLines(strings.NewReader("pending command\n"), done)

	time.Sleep(10 * time.Millisecond)
	close(done)

	deadline := time.After(time.Second)

	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
			// The in-flight line can still win the race; the channel must
			// close right after it.
		case <-deadline:
			t.Fatal("line reader did not stop after done closed")
		}
	}
}

func TestReadLinesClosesOnEOF(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	lines := readLines(strings.NewReader("one\ntwo\n"), done)

	if got := <-lines; got != "one" {
		t.Fatalf("first line = %q, want %q", got, "one")
	}
	if got := <-lines; got != "two" {
		t.Fatalf("second line = %q, want %q", got, "two")
	}
	if _, ok := <-lines; ok {
		t.Fatal("channel should close after input EOF")
	}
}

// slowReader delays its single payload so the run loop ticks first.
type slowReader struct {
	payload string
	delay   time.Duration
	started time.Time
	done    bool
}

func newSlowReader(payload string, delay time.Duration) *slowReader {
	return &slowReader{payload: payload, delay: delay, started: time.Now()}
}

func (r *slowReader) Read(p []byte) (int, error) {
	if remaining := r.delay - time.Since(r.started); remaining > 0 {
		time.Sleep(remaining)
	}

	if r.done {
		return 0, io.EOF
	}
	r.done = true

	return copy(p, r.payload), nil
}
