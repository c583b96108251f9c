package console

// <linux/kd.h>
//
// x/sys/unix does not export the console keyboard/display ioctls, so the
// requests and mode values are transcribed here.

const (
	KDGETMODE = 0x4B3B // get current display mode
	KDSETMODE = 0x4B3A // set display mode
	KDGKBMODE = 0x4B44 // get current keyboard mode
	KDSKBMODE = 0x4B45 // set keyboard mode

	KD_TEXT     = 0x00
	KD_GRAPHICS = 0x01

	K_RAW     = 0x00
	K_UNICODE = 0x03
	K_OFF     = 0x04
)
