package ppu

import "github.com/thelolagemann/gbcore/internal/types"

// Palette maps the four shades of the monochrome display to RGB.
type Palette [4][3]uint8

// DefaultPalette renders colour index 0 as white through to 3 as black.
var DefaultPalette = Palette{
	{0xFF, 0xFF, 0xFF},
	{0xC0, 0xC0, 0xC0},
	{0x60, 0x60, 0x60},
	{0x00, 0x00, 0x00},
}

// GreenPalette imitates the original DMG screen.
var GreenPalette = Palette{
	{0x9B, 0xBC, 0x0F},
	{0x8B, 0xAC, 0x0F},
	{0x30, 0x62, 0x30},
	{0x0F, 0x38, 0x0F},
}

// Palettes lists the named monochrome palettes.
var Palettes = map[string]Palette{
	"grey":  DefaultPalette,
	"green": GreenPalette,
}

// shade maps colour index through a DMG palette register.
func (p *PPU) shade(register uint8, index uint8) [3]uint8 {
	return p.palette[register>>(index*2)&0x3]
}

// cgbColour reads colour index of palette from CGB palette RAM, where
// each colour is stored as little endian RGB555.
func cgbColour(ram []byte, palette, index uint8) [3]uint8 {
	offset := int(palette)*8 + int(index)*2
	rgb := uint16(ram[offset]) | uint16(ram[offset+1])<<8
	return [3]uint8{
		expand5(uint8(rgb) & 0x1F),
		expand5(uint8(rgb>>5) & 0x1F),
		expand5(uint8(rgb>>10) & 0x1F),
	}
}

// expand5 scales a 5-bit channel to 8 bits.
func expand5(c uint8) uint8 {
	return c<<3 | c>>2
}

// paletteRegisters implements the BCPS/BCPD or OCPS/OCPD pair.
type paletteRegisters struct {
	ram   []byte // 64 bytes
	index uint8  // bit 7 enables auto increment
}

func (r *paletteRegisters) setIndex(v byte) byte {
	r.index = v & 0xBF
	return v | 0x40
}

func (r *paletteRegisters) read() byte {
	return r.ram[r.index&0x3F]
}

func (r *paletteRegisters) write(v byte) byte {
	r.ram[r.index&0x3F] = v
	if r.index&types.Bit7 != 0 {
		r.index = types.Bit7 | (r.index+1)&0x3F
	}
	return v
}

func (p *PPU) setupPalettes() {
	p.bgPalette.ram = p.paletteRAM[:0x40]
	p.objPalette.ram = p.paletteRAM[0x40:]

	p.b.ReserveAddress(types.BCPS, p.bgPalette.setIndex)
	p.b.ReserveReader(types.BCPS, func() byte { return p.bgPalette.index | 0x40 })
	p.b.ReserveAddress(types.BCPD, p.bgPalette.write)
	p.b.ReserveReader(types.BCPD, p.bgPalette.read)

	p.b.ReserveAddress(types.OCPS, p.objPalette.setIndex)
	p.b.ReserveReader(types.OCPS, func() byte { return p.objPalette.index | 0x40 })
	p.b.ReserveAddress(types.OCPD, p.objPalette.write)
	p.b.ReserveReader(types.OCPD, p.objPalette.read)

	p.b.ReserveAddress(types.OPRI, func(v byte) byte { return v | 0xFE })
	p.b.Set(types.OPRI, 0xFE)

	// the boot ROM leaves every colour white
	for i := range p.paletteRAM {
		p.paletteRAM[i] = 0xFF
		if i&1 == 1 {
			p.paletteRAM[i] = 0x7F
		}
	}
}
