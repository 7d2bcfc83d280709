package input

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_MSC = 0x04

	SYN_REPORT = 0x00

	// The PowerMate reports its single button as BTN_0 and the knob as REL_DIAL.
	BTN_0    = 0x100
	REL_DIAL = 0x07

	// MSC_PULSELED carries the LED brightness when written back to the device.
	MSC_PULSELED = 0x01
)

// evValueRelease is the EV_KEY value of a released button.
const evValueRelease = 0
