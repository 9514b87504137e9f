// Package romtest builds small synthetic cartridge images for tests.
package romtest

import "github.com/thelolagemann/gbcore/internal/cartridge"

// Logo is the bitmap the boot ROM compares against $0104-$0133.
var Logo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83,
	0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB, 0xBB, 0x67, 0x63,
	0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// ProgramStart is where Build places Options.Program. The entry point
// at 0x0100 jumps here.
const ProgramStart = 0x0150

// Options describes the image to build.
type Options struct {
	Title       string
	Type        cartridge.Type
	ROMSizeCode uint8 // 32 KiB << code
	RAMSizeCode uint8
	CGBFlag     uint8 // raw $0143 value, e.g. 0x80
	Version     uint8

	// Program is copied to ProgramStart. An empty program is an
	// infinite loop.
	Program []byte

	// MarkBanks writes the bank number into the first two bytes of
	// every switchable bank, so tests can see which bank is mapped.
	MarkBanks bool
}

// Build returns a ROM image with valid header and global checksums.
func Build(o Options) []byte {
	rom := make([]byte, (32*1024)<<o.ROMSizeCode)

	// entry point: NOP; JP ProgramStart
	copy(rom[0x0100:], []byte{0x00, 0xC3, byte(ProgramStart & 0xFF), byte(ProgramStart >> 8)})
	copy(rom[0x0104:], Logo[:])
	copy(rom[0x0134:0x0144], o.Title)
	if o.CGBFlag != 0 {
		rom[0x0143] = o.CGBFlag
	}
	rom[0x0147] = byte(o.Type)
	rom[0x0148] = o.ROMSizeCode
	rom[0x0149] = o.RAMSizeCode
	rom[0x014A] = 0x01
	rom[0x014B] = 0x33
	copy(rom[0x0144:], "01")
	rom[0x014C] = o.Version

	program := o.Program
	if len(program) == 0 {
		program = []byte{0x18, 0xFE} // JR -2
	}
	copy(rom[ProgramStart:], program)

	if o.MarkBanks {
		for bank := 1; bank < len(rom)/0x4000; bank++ {
			rom[bank*0x4000] = byte(bank)
			rom[bank*0x4000+1] = byte(bank >> 8)
		}
	}

	Checksum(rom)
	return rom
}

// Checksum rewrites the header and global checksums of rom in place.
func Checksum(rom []byte) {
	var h uint8
	for _, b := range rom[0x0134:0x014D] {
		h = h - b - 1
	}
	rom[0x014D] = h

	g := cartridge.GlobalChecksum(rom)
	rom[0x014E] = byte(g >> 8)
	rom[0x014F] = byte(g)
}
