// Package errors provides structured CLI error types for fbshell.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes for CLI errors.
const (
	ExitSuccess = 0  // Successful execution
	ExitGeneral = 1  // General error
	ExitConsole = 2  // Console device or mode negotiation error
	ExitSpawn   = 3  // Shell spawn failure
	ExitConfig  = 4  // Configuration error
	ExitUsage   = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// DeviceUnavailable returns an error for a console device that cannot be opened.
func DeviceUnavailable(path string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Could not open console device %s", path),
		Hint:    "Run as root or on a machine with a virtual console, or pass --device",
		Cause:   cause,
		Code:    ExitConsole,
	}
}

// ModeNegotiationFailed returns an error for a failed console mode switch.
func ModeNegotiationFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Could not switch console modes",
		Hint:    "The console was left in its original state; check kernel VT support",
		Cause:   cause,
		Code:    ExitConsole,
	}
}

// ConsoleBusy returns an error when a session is already active.
func ConsoleBusy() *CLIError {
	return &CLIError{
		Message: "A terminal session is already active",
		Hint:    "Release the current session before starting another",
		Code:    ExitConsole,
	}
}

// ShellSpawnFailed returns an error when the login shell cannot be started.
func ShellSpawnFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Could not start the login shell",
		Hint:    "Check that $SHELL points to an installed shell",
		Cause:   cause,
		Code:    ExitSpawn,
	}
}

// CommandTooLong returns an error for a command exceeding the mailbox capacity.
func CommandTooLong(limit int) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Command exceeds the %d byte limit", limit),
		Hint:    "Split the command or raise pump.command_buffer in the config",
		Code:    ExitUsage,
	}
}

// ConfigInvalid returns an error for configuration problems.
func ConfigInvalid(detail string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid configuration: %s", detail),
		Hint:    "Check ~/.config/fbshell/config.yaml and FBSHELL_* environment variables",
		Cause:   cause,
		Code:    ExitConfig,
	}
}
