//go:build unix

package pump

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fbshell-dev/fbshell/internal/ansi"
)

// DefaultPollInterval bounds one poll-and-service cycle.
const DefaultPollInterval = 10 * time.Millisecond

var carriageReturn = []byte{'\r'}

// Config tunes a Pump.
type Config struct {
	// PollInterval bounds the readiness wait of one cycle. Non-positive
	// means DefaultPollInterval.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Pump is the single background worker bridging the PTY and the shared
// session state. It reads shell output into the output buffer, transmits
// queued commands, reconciles the shell's echo of transmitted commands,
// and delivers interrupt requests.
type Pump struct {
	log   *slog.Logger
	state *State

	pty io.ReadWriter
	fd  int

	pollInterval time.Duration
	interrupt    func()

	// Injectable for testing without a PTY descriptor.
	poll  func(fds []unix.PollFd, timeout int) (int, error)
	sleep func(time.Duration)
}

// New creates a Pump over the PTY master. fd is the master's descriptor for
// readiness polling; interrupt cancels the foreground job when the UI
// requests it.
func New(state *State, pty io.ReadWriter, fd int, interrupt func(), cfg Config) *Pump {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if interrupt == nil {
		interrupt = func() {}
	}

	return &Pump{
		log:          cfg.Logger,
		state:        state,
		pty:          pty,
		fd:           fd,
		pollInterval: cfg.PollInterval,
		interrupt:    interrupt,
		poll:         unix.Poll,
		sleep:        time.Sleep,
	}
}

// Run drives cycles until the context is canceled or the shell side of the
// PTY closes. It owns all reads and writes on the PTY for the session's
// lifetime.
func (p *Pump) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !p.cycle() {
			return
		}
	}
}

// cycle runs one poll-and-service iteration and reports whether the pump
// should keep running.
//
// The readiness interests are computed from what the cycle could actually
// act on: reading is pointless while the previous update is unconsumed, and
// writing is pointless without a ready command. With no interests and no
// interrupt pending the cycle just sleeps one interval. The lock is never
// held across the poll, so the UI's wait is bounded by the service phase,
// not by the poll timeout.
func (p *Pump) cycle() bool {
	s := p.state

	s.mu.Lock()
	interrupt := s.interrupt
	canRead := !s.updatePending
	canWrite := s.cmdReady
	s.mu.Unlock()

	var events int16
	if canRead {
		events |= unix.POLLIN
	}
	if canWrite {
		events |= unix.POLLOUT
	}

	if !interrupt && events == 0 {
		p.sleep(p.pollInterval)
		return true
	}

	var revents int16

	if !interrupt {
		fds := []unix.PollFd{{Fd: int32(p.fd), Events: events}}

		n, err := p.poll(fds, int(p.pollInterval.Milliseconds()))
		if err != nil && !errors.Is(err, unix.EINTR) {
			p.log.Warn("pty poll failed", "error", err)
			p.sleep(p.pollInterval)

			return true
		}

		if n > 0 {
			revents = fds[0].Revents
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// One action per cycle, interrupt always first.
	switch {
	case s.interrupt:
		p.interrupt()
		s.interrupt = false
	case revents&(unix.POLLIN|unix.POLLHUP) != 0 && !s.updatePending:
		return p.readOutput()
	case revents&unix.POLLOUT != 0 && s.cmdReady:
		p.writeCommand()
	case revents&(unix.POLLERR|unix.POLLNVAL) != 0:
		p.log.Info("pty descriptor no longer usable")
		return false
	}

	return true
}

// readOutput reads one chunk of shell output into the output buffer and
// reconciles it against the most recently transmitted command. Called with
// the state lock held. Returns false when the shell side has closed.
func (p *Pump) readOutput() bool {
	s := p.state

	n, err := p.pty.Read(s.out[:len(s.out)-1])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, unix.EIO) || errors.Is(err, unix.EBADF) {
			p.log.Info("shell output stream closed", "error", err)
			return false
		}

		p.log.Warn("pty read failed", "error", err)
		s.echoLen = 0

		return true
	}

	if n > 0 {
		p.reconcile(n)
	}

	s.echoLen = 0

	return true
}

// reconcile decides what the UI sees from a freshly read chunk. Terminal
// line discipline echoes transmitted input back; without suppression every
// command would render twice. When the stripped output starts with the
// last transmitted command, that prefix is the echo: only the remainder
// surfaces, and a remainder that is nothing but line endings surfaces not
// at all. Output that does not start with the command is unsolicited and
// passes through raw. The match is a best-effort string comparison, not
// terminal-protocol echo suppression.
func (p *Pump) reconcile(n int) {
	s := p.state

	if s.echoLen == 0 {
		s.outLen = n
		s.updatePending = true

		return
	}

	echoed := string(s.echo[:s.echoLen])
	stripped := ansi.Strip(string(s.out[:n]))

	if !strings.HasPrefix(stripped, echoed) {
		s.outLen = n
		s.updatePending = true

		return
	}

	remainder := stripped[len(echoed):]
	if strings.TrimRight(remainder, "\r\n") == "" {
		s.outLen = 0
		return
	}

	s.outLen = copy(s.out, remainder)
	s.updatePending = true
}

// writeCommand transmits the queued command followed by a carriage return
// so the shell's line discipline executes it, then snapshots the command
// for echo reconciliation and clears the mailbox. Called with the state
// lock held. A failed write leaves the mailbox intact for the next cycle.
func (p *Pump) writeCommand() {
	s := p.state

	if _, err := p.pty.Write(s.cmd[:s.cmdLen]); err != nil {
		p.log.Warn("pty write failed", "error", err)
		return
	}

	if _, err := p.pty.Write(carriageReturn); err != nil {
		p.log.Warn("pty write failed", "error", err)
	}

	s.echoLen = copy(s.echo, s.cmd[:s.cmdLen])

	clear(s.cmd[:s.cmdLen])
	s.cmdLen = 0
	s.cmdCursor = 0
	s.cmdReady = false
}
