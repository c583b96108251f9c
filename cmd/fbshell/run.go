//go:build unix

package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fbshell-dev/fbshell/internal/ansi"
	"github.com/fbshell-dev/fbshell/internal/config"
	clierrors "github.com/fbshell-dev/fbshell/internal/errors"
	"github.com/fbshell-dev/fbshell/internal/observability"
	"github.com/fbshell-dev/fbshell/internal/output"
	"github.com/fbshell-dev/fbshell/internal/term"
)

const (
	// uiUpdateInterval is the cadence at which pending shell output is
	// drained to the front end.
	uiUpdateInterval = 50 * time.Millisecond

	// doubleInterruptWindow is how quickly a second Ctrl-C must follow the
	// first to end the session instead of interrupting the foreground job.
	doubleInterruptWindow = 2 * time.Second
)

// terminalSession is the slice of term.Session the run loop needs.
type terminalSession interface {
	Acquire(pixelWidth, pixelHeight int) error
	Release()
	SubmitCommand(command []byte) error
	HasPendingUpdate() bool
	ConsumeOutput() []byte
	RequestInterrupt()
}

func newRunCmd() *cobra.Command {
	var (
		width  int
		height int
		device string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Take over the console and run a shell session",
		Long: `Acquire the virtual console, start your login shell in a pseudoterminal
sized to the display surface, and bridge it to this terminal: lines typed
here are submitted as commands, shell output is rendered as it arrives.

The console modes are restored when the session ends, including on SIGINT
and SIGTERM. Press Ctrl-C once to interrupt the foreground job, twice in
quick succession to end the session.`,
		Example: `  fbshell run
  fbshell run --width 1280 --height 720
  fbshell run --device /dev/tty2`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context())
			cfg := config.Load()

			devicePath := device
			if devicePath == "" {
				devicePath = cfg.Device()
			}

			sess := term.NewSession(term.Options{
				DevicePath:      devicePath,
				CellWidth:       cfg.GlyphWidth(),
				CellHeight:      cfg.GlyphHeight(),
				OutputCapacity:  cfg.OutputBuffer(),
				CommandCapacity: cfg.CommandBuffer(),
				PollInterval:    time.Duration(cfg.PollIntervalMS()) * time.Millisecond,
				ShellPath:       cfg.ShellPath(),
				Term:            cfg.Term(),
				Logger:          logger,
			})

			return runSession(cmd.Context(), out, logger, sess, width, height, os.Stdin)
		},
	}

	cmd.Flags().IntVar(&width, "width", 800, "Display surface width in pixels")
	cmd.Flags().IntVar(&height, "height", 480, "Display surface height in pixels")
	cmd.Flags().StringVar(&device, "device", "", "Console device path (default from config)")

	return cmd
}

// readLines scans input line by line until EOF or until done closes. The
// done channel keeps the scanner goroutine from blocking forever on a line
// nobody will receive when the session ends first.
func readLines(input io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	return lines
}

// runSession drives one terminal session end to end. The deferred Release
// is the safety contract: every exit path below restores the console.
func runSession(ctx context.Context, out *output.Writer, logger *slog.Logger, sess terminalSession, width, height int, input io.Reader) error {
	tracer := observability.Tracer("fbshell")

	ctx, span := tracer.Start(ctx, "session.run")
	defer span.End()

	sp := out.Spinner("Acquiring console")
	sp.Start()

	if err := sess.Acquire(width, height); err != nil {
		sp.StopWithFailure("Console acquisition failed")
		return err
	}

	sp.StopWithSuccess("Console acquired")
	defer sess.Release()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	readerDone := make(chan struct{})
	defer close(readerDone)

	lines := readLines(input, readerDone)

	ticker := time.NewTicker(uiUpdateInterval)
	defer ticker.Stop()

	var lastInterrupt time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case sig := <-sigCh:
			if sig == syscall.SIGTERM {
				logger.Info("session ending on SIGTERM")
				return nil
			}

			if time.Since(lastInterrupt) < doubleInterruptWindow {
				logger.Info("session ending on repeated interrupt")
				return nil
			}

			lastInterrupt = time.Now()
			sess.RequestInterrupt()

		case line, ok := <-lines:
			if !ok {
				logger.Info("session ending on input EOF")
				return nil
			}

			if err := sess.SubmitCommand([]byte(line)); err != nil {
				var cliErr *clierrors.CLIError
				if clierrors.As(err, &cliErr) && cliErr.Code == clierrors.ExitUsage {
					out.Warning("%s", cliErr.Message)
					continue
				}

				return err
			}

		case <-ticker.C:
			if !sess.HasPendingUpdate() {
				continue
			}

			text := ansi.Sanitize(ansi.Strip(string(sess.ConsumeOutput())))
			out.Print("%s", text)
		}
	}
}
