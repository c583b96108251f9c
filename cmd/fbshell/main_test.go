package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	clierrors "github.com/fbshell-dev/fbshell/internal/errors"
	"github.com/fbshell-dev/fbshell/internal/output"
)

func newTestWriter() (*output.Writer, *bytes.Buffer, *bytes.Buffer) {
	var outBuf, errBuf bytes.Buffer

	w := output.NewWriter(&outBuf, &errBuf, &output.Terminal{IsTTY: false, NoColor: true})

	return w, &outBuf, &errBuf
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantHint bool
	}{
		{
			name:     "cli error carries its code",
			err:      clierrors.DeviceUnavailable("/dev/tty0", errors.New("denied")),
			wantCode: clierrors.ExitConsole,
			wantHint: true,
		},
		{
			name:     "unknown command maps to usage",
			err:      errors.New(`unknown command "frobnicate" for "fbshell"`),
			wantCode: clierrors.ExitUsage,
		},
		{
			name:     "unknown flag maps to usage",
			err:      errors.New("unknown flag: --frob"),
			wantCode: clierrors.ExitUsage,
		},
		{
			name:     "plain error maps to general",
			err:      errors.New("something broke"),
			wantCode: clierrors.ExitGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, outBuf, errBuf := newTestWriter()

			code := handleError(w, tt.err)
			if code != tt.wantCode {
				t.Errorf("handleError() = %d, want %d", code, tt.wantCode)
			}

			if errBuf.Len() == 0 {
				t.Error("handleError() should write the failure to stderr")
			}

			if tt.wantHint && outBuf.Len() == 0 {
				t.Error("handleError() should print the hint")
			}
		})
	}
}

func TestPickFlagOrEnv(t *testing.T) {
	t.Setenv("FBSHELL_TEST_PICK", "from-env")

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins", "from-flag", "FBSHELL_TEST_PICK", "from-flag"},
		{"env when flag empty", "", "FBSHELL_TEST_PICK", "from-env"},
		{"fallback when both empty", "  ", "FBSHELL_TEST_UNSET", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickFlagOrEnv(tt.flag, tt.env, "fallback"); got != tt.want {
				t.Errorf("pickFlagOrEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPickBoolFlagOrEnv(t *testing.T) {
	t.Setenv("FBSHELL_TEST_BOOL", "true")

	if !pickBoolFlagOrEnv(false, "FBSHELL_TEST_BOOL") {
		t.Error("env true should enable")
	}
	if !pickBoolFlagOrEnv(true, "FBSHELL_TEST_UNSET") {
		t.Error("flag true should enable")
	}
	if pickBoolFlagOrEnv(false, "FBSHELL_TEST_UNSET") {
		t.Error("unset env should not enable")
	}
}

func TestVersionCommandOutput(t *testing.T) {
	w, outBuf, _ := newTestWriter()

	cmd := newVersionCmd()
	cmd.SetContext(w.WithContext(context.Background()))

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("version RunE error = %v", err)
	}

	if !bytes.Contains(outBuf.Bytes(), []byte("fbshell")) {
		t.Errorf("version output = %q, want the binary name", outBuf.String())
	}
}
