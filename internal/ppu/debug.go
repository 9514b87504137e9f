package ppu

import (
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/types"
)

// drawTile renders the 8x8 tile at offset of bank into buf, an RGB
// image width pixels wide, with its top left corner at (x, y).
func (p *PPU) drawTile(buf []byte, width, x, y int, bank []byte, offset int, colour func(uint8) [3]uint8) {
	for row := 0; row < 8; row++ {
		low, high := bank[offset+row*2], bank[offset+row*2+1]
		for col := 0; col < 8; col++ {
			setPixel(buf, (y+row)*width+x+col, colour(colourIndex(low, high, col)))
		}
	}
}

// DrawBackgroundMap renders the full 256x256 background map selected
// by LCDC into its arena view and returns it.
func (p *PPU) DrawBackgroundMap() []byte {
	lcdc := p.b.Get(types.LCDC)
	vram0, vram1 := p.b.VRAM(0), p.b.VRAM(1)
	bgp := p.b.Get(types.BGP)

	mapBase := 0x1800
	if lcdc&types.Bit3 != 0 {
		mapBase = 0x1C00
	}
	for ty := 0; ty < 32; ty++ {
		for tx := 0; tx < 32; tx++ {
			mapIndex := mapBase + ty*32 + tx
			var attr uint8
			if p.cgb {
				attr = vram1[mapIndex]
			}
			bank := vram0
			if attr&types.Bit3 != 0 {
				bank = vram1
			}
			offset := tileAddress(lcdc, vram0[mapIndex])
			p.drawTile(p.bgDebug, 256, tx*8, ty*8, bank, offset, func(i uint8) [3]uint8 {
				if p.cgb {
					return cgbColour(p.bgPalette.ram, attr&0x7, i)
				}
				return p.shade(bgp, i)
			})
		}
	}
	return p.bgDebug
}

// DrawTileData renders the 384 tiles of each VRAM bank, bank 0 on the
// left half and bank 1 on the right, using the identity palette.
func (p *PPU) DrawTileData() []byte {
	const perRow = 16
	for bank := 0; bank < 2; bank++ {
		vram := p.b.VRAM(uint8(bank))
		for tile := 0; tile < 384; tile++ {
			x := bank*perRow*8 + tile%perRow*8
			y := tile / perRow * 8
			p.drawTile(p.tileDebug, memory.TileDataWidth, x, y, vram, tile*16, func(i uint8) [3]uint8 {
				return p.palette[i]
			})
		}
	}
	return p.tileDebug
}

// DrawOAMTiles renders each of the 40 objects as an 8x16 cell, 8 per
// row, with the palette it selects.
func (p *PPU) DrawOAMTiles() []byte {
	oam := p.b.OAM()
	lcdc := p.b.Get(types.LCDC)
	obp0, obp1 := p.b.Get(types.OBP0), p.b.Get(types.OBP1)

	clear(p.oamDebug)
	for i := 0; i < 40; i++ {
		tile, attr := oam[i*4+2], oam[i*4+3]
		bank := p.b.VRAM(0)
		if p.cgb && attr&types.Bit3 != 0 {
			bank = p.b.VRAM(1)
		}
		colour := func(index uint8) [3]uint8 {
			switch {
			case p.cgb:
				return cgbColour(p.objPalette.ram, attr&0x7, index)
			case attr&types.Bit4 != 0:
				return p.shade(obp1, index)
			}
			return p.shade(obp0, index)
		}

		x, y := i%8*8, i/8*16
		if lcdc&types.Bit2 != 0 {
			tile &= 0xFE
			p.drawTile(p.oamDebug, memory.OAMTilesWidth, x, y, bank, int(tile)*16, colour)
			p.drawTile(p.oamDebug, memory.OAMTilesWidth, x, y+8, bank, int(tile+1)*16, colour)
		} else {
			p.drawTile(p.oamDebug, memory.OAMTilesWidth, x, y, bank, int(tile)*16, colour)
		}
	}
	return p.oamDebug
}
