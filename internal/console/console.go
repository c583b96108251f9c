// Package console controls a Linux virtual console's keyboard and display
// modes. Acquiring a Device switches the console to raw keyboard capture and
// graphics mode so a caller can own the framebuffer; releasing it restores
// the modes saved at acquisition.
package console

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/fbshell-dev/fbshell/internal/errors"
)

// DefaultPath is the canonical virtual console device.
const DefaultPath = "/dev/tty0"

// Device owns one open console descriptor together with the keyboard and
// display modes that were active when it was acquired. At most one Device
// should be acquired at a time; callers serialize Acquire/Release.
type Device struct {
	path string
	log  *slog.Logger

	fd       int
	acquired bool

	savedKeyboard int
	savedDisplay  int

	// Injectable for testing without a real console device.
	openDevice func(path string) (int, error)
	closeFD    func(fd int) error
	ioctlGet   func(fd int, req uint) (int, error)
	ioctlSet   func(fd int, req uint, value int) error
}

// New creates a Device for the console at path. It does not touch the
// device until Acquire is called.
func New(path string, logger *slog.Logger) *Device {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Device{
		path: path,
		log:  logger,
		fd:   -1,
		openDevice: func(p string) (int, error) {
			return unix.Open(p, unix.O_RDWR|unix.O_NOCTTY, 0)
		},
		closeFD:  unix.Close,
		ioctlGet: unix.IoctlGetInt,
		ioctlSet: unix.IoctlSetInt,
	}
}

// Acquire opens the console device, saves the current keyboard and display
// modes, and switches the console to raw keyboard capture (K_OFF) plus
// graphics display mode (KD_GRAPHICS). The four mode operations run in a
// fixed order that some hardware depends on: read keyboard mode, set
// keyboard mode, read display mode, set display mode.
//
// Mode reads are best-effort; a failed read logs a warning and falls back
// to the conventional default so Release still has something to restore.
// A failed mode set aborts acquisition and rolls back any mode change that
// already took effect, leaving the console as it was found.
func (d *Device) Acquire() error {
	if d.acquired {
		return errors.ConsoleBusy()
	}

	fd, err := d.openDevice(d.path)
	if err != nil {
		return errors.DeviceUnavailable(d.path, err)
	}

	d.fd = fd

	d.savedKeyboard = K_UNICODE
	if mode, err := d.ioctlGet(fd, KDGKBMODE); err != nil {
		d.log.Warn("could not read keyboard mode, assuming unicode", "device", d.path, "error", err)
	} else {
		d.savedKeyboard = mode
	}

	if err := d.ioctlSet(fd, KDSKBMODE, K_OFF); err != nil {
		d.log.Warn("could not disable keyboard translation", "device", d.path, "error", err)
		d.closeQuietly()

		return errors.ModeNegotiationFailed(err)
	}

	d.savedDisplay = KD_TEXT
	if mode, err := d.ioctlGet(fd, KDGETMODE); err != nil {
		d.log.Warn("could not read display mode, assuming text", "device", d.path, "error", err)
	} else {
		d.savedDisplay = mode
	}

	if err := d.ioctlSet(fd, KDSETMODE, KD_GRAPHICS); err != nil {
		d.log.Warn("could not switch display to graphics mode", "device", d.path, "error", err)

		// The keyboard is already off; put it back before reporting failure.
		if rbErr := d.ioctlSet(fd, KDSKBMODE, d.savedKeyboard); rbErr != nil {
			d.log.Warn("keyboard mode rollback failed", "device", d.path, "error", rbErr)
		}
		d.closeQuietly()

		return errors.ModeNegotiationFailed(err)
	}

	d.acquired = true
	d.log.Debug("console acquired",
		"device", d.path,
		"saved_keyboard_mode", d.savedKeyboard,
		"saved_display_mode", d.savedDisplay)

	return nil
}

// Release restores the display mode and then the keyboard mode to the
// values saved by Acquire, attempting both even if one fails, and closes
// the descriptor. It is idempotent and safe to call on a Device that was
// never acquired. Restore failures are logged, never escalated: leaving
// the console close to its original state beats strict error propagation.
func (d *Device) Release() {
	if !d.acquired {
		d.log.Warn("console release without an active acquisition", "device", d.path)
		return
	}

	if err := d.ioctlSet(d.fd, KDSETMODE, d.savedDisplay); err != nil {
		d.log.Warn("could not restore display mode", "device", d.path, "error", err)
	}

	if err := d.ioctlSet(d.fd, KDSKBMODE, d.savedKeyboard); err != nil {
		d.log.Warn("could not restore keyboard mode", "device", d.path, "error", err)
	}

	d.closeQuietly()
	d.acquired = false
	d.log.Debug("console released", "device", d.path)
}

// Acquired reports whether the device currently holds the console.
func (d *Device) Acquired() bool {
	return d.acquired
}

func (d *Device) closeQuietly() {
	if d.fd < 0 {
		return
	}

	if err := d.closeFD(d.fd); err != nil {
		d.log.Warn("could not close console device", "device", d.path, "error", err)
	}

	d.fd = -1
}
