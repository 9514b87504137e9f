package types

import "strings"

type Model int // The Model used in emulation.

const (
	Unset  Model = iota // Unset - chosen from the cartridge header at load time
	DMGABC              // DMGABC - Standard Game Boy
	CGBABC              // CGBABC - Standard Game Boy Colour
)

var ModelNames = map[Model]string{
	Unset:  "auto",
	DMGABC: "DMG",
	CGBABC: "CGB",
}

// StringToModel converts a string to a Model, returning Unset for
// anything it does not recognise.
func StringToModel(s string) Model {
	for m, n := range ModelNames {
		if strings.EqualFold(n, s) {
			return m
		}
	}

	return Unset
}

func (m Model) String() string {
	return ModelNames[m]
}

// ModelRegisters holds the CPU registers left behind by each boot ROM,
// in the order A, F, B, C, D, E, H, L.
var ModelRegisters = map[Model][8]uint8{
	DMGABC: {0x01, 0xB0, 0x00, 0x13, 0x00, 0xD8, 0x01, 0x4D},
	CGBABC: {0x11, 0x80, 0x00, 0x00, 0xFF, 0x56, 0x00, 0x0D},
}

// ModelDivider is the value of the system divider when the boot ROM
// hands control to the cartridge.
var ModelDivider = map[Model]uint16{
	DMGABC: 0xABCC,
	CGBABC: 0x2675,
}

// CommonIO lists the post-boot values of the I/O registers that
// are shared between models.
var CommonIO = map[HardwareAddress]uint8{
	P1:   0xCF,
	SB:   0x00,
	SC:   0x7E,
	TIMA: 0x00,
	TMA:  0x00,
	TAC:  0xF8,
	IF:   0xE1,
	NR10: 0x80,
	NR11: 0xBF,
	NR12: 0xF3,
	NR14: 0xBF,
	NR21: 0x3F,
	NR24: 0xBF,
	NR30: 0x7F,
	NR31: 0xFF,
	NR32: 0x9F,
	NR34: 0xBF,
	NR41: 0xFF,
	NR44: 0xBF,
	NR50: 0x77,
	NR51: 0xF3,
	NR52: 0xF1,
	LCDC: 0x91,
	SCY:  0x00,
	SCX:  0x00,
	LYC:  0x00,
	BGP:  0xFC,
	OBP0: 0xFF,
	OBP1: 0xFF,
	WY:   0x00,
	WX:   0x00,
	IE:   0x00,
}
