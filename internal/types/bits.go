package types

const (
	Bit0 = 1 << iota // 0b0000_0001
	Bit1             // 0b0000_0010
	Bit2             // 0b0000_0100
	Bit3             // 0b0000_1000
	Bit4             // 0b0001_0000
	Bit5             // 0b0010_0000
	Bit6             // 0b0100_0000
	Bit7             // 0b1000_0000
)

// ButtonMask is the host-facing joypad state, one bit per
// button with 1 meaning pressed.
type ButtonMask = uint8

const (
	ButtonA ButtonMask = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonRight
	ButtonLeft
	ButtonUp
	ButtonDown
)

// Interrupt flags as laid out in IF and IE, highest priority first.
const (
	VBlankINT = Bit0
	LCDINT    = Bit1
	TimerINT  = Bit2
	SerialINT = Bit3
	JoypadINT = Bit4
)
