package evdev

// Event types, codes and properties from the kernel's input-event-codes.h,
// limited to what a Switch controller and its virtual counterparts emit.

const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03
	EV_MSC = 0x04
	EV_LED = 0x11
	EV_FF  = 0x15

	// EV_UINPUT carries uinput control requests (FF upload/erase) on the
	// uinput fd itself.
	EV_UINPUT = 0x0101

	EV_MAX = 0x1f
)

const (
	SYN_REPORT  = 0
	SYN_DROPPED = 3
)

const (
	BTN_MOUSE = 0x110
	BTN_LEFT  = 0x110
	BTN_RIGHT = 0x111

	BTN_SOUTH  = 0x130
	BTN_EAST   = 0x131
	BTN_C      = 0x132
	BTN_NORTH  = 0x133
	BTN_WEST   = 0x134
	BTN_Z      = 0x135
	BTN_TL     = 0x136
	BTN_TR     = 0x137
	BTN_TL2    = 0x138
	BTN_TR2    = 0x139
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
	BTN_MODE   = 0x13c
	BTN_THUMBL = 0x13d
	BTN_THUMBR = 0x13e

	BTN_DPAD_UP    = 0x220
	BTN_DPAD_DOWN  = 0x221
	BTN_DPAD_LEFT  = 0x222
	BTN_DPAD_RIGHT = 0x223

	KEY_MAX = 0x2ff
	KEY_CNT = KEY_MAX + 1
)

const (
	REL_X   = 0x00
	REL_Y   = 0x01
	REL_MAX = 0x0f
)

const (
	ABS_X     = 0x00
	ABS_Y     = 0x01
	ABS_Z     = 0x02
	ABS_RX    = 0x03
	ABS_RY    = 0x04
	ABS_RZ    = 0x05
	ABS_HAT0X = 0x10
	ABS_HAT0Y = 0x11
	ABS_MAX   = 0x3f
)

const (
	LED_MAX = 0x0f
)

const (
	FF_RUMBLE   = 0x50
	FF_PERIODIC = 0x51

	FF_SQUARE   = 0x58
	FF_TRIANGLE = 0x59
	FF_SINE     = 0x5a

	// Codes at FF_GAIN and above address the device, not an uploaded
	// effect; they are never subject to effect-id translation.
	FF_GAIN       = 0x60
	FF_AUTOCENTER = 0x61

	FF_MAX = 0x7f
)

const (
	INPUT_PROP_POINTER       = 0x00
	INPUT_PROP_ACCELEROMETER = 0x06
	INPUT_PROP_MAX           = 0x1f
)

const (
	BUS_USB = 0x03
)
