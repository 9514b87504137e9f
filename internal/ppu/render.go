package ppu

import (
	"sort"

	"github.com/thelolagemann/gbcore/internal/types"
)

// maxSpritesPerLine is the number of sprites OAM search selects per line.
const maxSpritesPerLine = 10

// sprite is an OAM entry selected for the current line.
type sprite struct {
	y, x  int
	tile  uint8
	attr  uint8
	index int
}

// colourIndex extracts the 2-bit colour of pixel x (0 = leftmost) from
// the two bit planes of a tile row.
func colourIndex(low, high uint8, x int) uint8 {
	shift := 7 - x
	return (high>>shift&1)<<1 | low>>shift&1
}

// tileAddress returns the VRAM offset of a background or window tile,
// using the addressing mode selected by LCDC bit 4.
func tileAddress(lcdc, tile uint8) int {
	if lcdc&types.Bit4 != 0 {
		return int(tile) * 16
	}
	return 0x1000 + int(int8(tile))*16
}

func setPixel(buf []byte, i int, c [3]uint8) {
	buf[i*3] = c[0]
	buf[i*3+1] = c[1]
	buf[i*3+2] = c[2]
}

// renderLine composites line LY: the background pass writes every
// pixel and priority byte of the line, then the sprite pass resolves
// sprites against those priority bytes.
func (p *PPU) renderLine() {
	ly := int(p.ly)
	lcdc := p.b.Get(types.LCDC)
	line := p.frame[ly*ScreenWidth*3 : (ly+1)*ScreenWidth*3]
	priority := p.priority[ly*ScreenWidth : (ly+1)*ScreenWidth]

	p.renderBackground(lcdc, ly, line, priority)
	if lcdc&types.Bit1 != 0 {
		p.renderSprites(lcdc, ly, line, priority)
	}
}

// renderBackground draws the background and window layers of a line.
func (p *PPU) renderBackground(lcdc uint8, ly int, line, priority []byte) {
	if !p.cgb && lcdc&types.Bit0 == 0 {
		// monochrome: background and window are blank
		for x := 0; x < ScreenWidth; x++ {
			setPixel(line, x, p.palette[0])
			priority[x] = 0
		}
		return
	}

	vram0, vram1 := p.b.VRAM(0), p.b.VRAM(1)
	scy, scx := int(p.b.Get(types.SCY)), int(p.b.Get(types.SCX))
	wy, wx := int(p.b.Get(types.WY)), int(p.b.Get(types.WX))
	bgp := p.b.Get(types.BGP)

	windowVisible := lcdc&types.Bit5 != 0 && ly >= wy && wx <= 166
	usedWindow := false

	for x := 0; x < ScreenWidth; x++ {
		var mapBase, px, py int
		if windowVisible && x+7 >= wx {
			mapBase = 0x1800
			if lcdc&types.Bit6 != 0 {
				mapBase = 0x1C00
			}
			px, py = x+7-wx, int(p.windowLine)
			usedWindow = true
		} else {
			mapBase = 0x1800
			if lcdc&types.Bit3 != 0 {
				mapBase = 0x1C00
			}
			px, py = (x+scx)&0xFF, (ly+scy)&0xFF
		}

		mapIndex := mapBase + py/8*32 + px/8
		tile := vram0[mapIndex]
		var attr uint8
		if p.cgb {
			attr = vram1[mapIndex]
		}

		tileY, tileX := py%8, px%8
		if attr&types.Bit6 != 0 {
			tileY = 7 - tileY
		}
		if attr&types.Bit5 != 0 {
			tileX = 7 - tileX
		}
		bank := vram0
		if attr&types.Bit3 != 0 {
			bank = vram1
		}
		addr := tileAddress(lcdc, tile) + tileY*2
		index := colourIndex(bank[addr], bank[addr+1], tileX)

		if p.cgb {
			setPixel(line, x, cgbColour(p.bgPalette.ram, attr&0x7, index))
		} else {
			setPixel(line, x, p.shade(bgp, index))
		}
		priority[x] = index | attr&types.Bit7>>5
	}

	if usedWindow {
		p.windowLine++
	}
}

// spritesByX reports whether overlapping sprites are ordered by X
// before OAM index.
func (p *PPU) spritesByX() bool {
	switch p.spritePriority {
	case SpritePriorityOAM:
		return false
	case SpritePriorityX:
		return true
	}
	return !p.cgb || p.b.Get(types.OPRI)&types.Bit0 != 0
}

// selectSprites performs OAM search for line ly, returning the
// sprites to draw in priority order, highest first.
func (p *PPU) selectSprites(ly, height int, dst []sprite) []sprite {
	oam := p.b.OAM()
	for i := 0; i < 40 && len(dst) < maxSpritesPerLine; i++ {
		y := int(oam[i*4]) - 16
		if ly < y || ly >= y+height {
			continue
		}
		dst = append(dst, sprite{
			y:     y,
			x:     int(oam[i*4+1]) - 8,
			tile:  oam[i*4+2],
			attr:  oam[i*4+3],
			index: i,
		})
	}

	if p.spritesByX() {
		sort.SliceStable(dst, func(i, j int) bool { return dst[i].x < dst[j].x })
	}
	return dst
}

// renderSprites draws the sprites of a line over the background. The
// first opaque sprite in priority order claims a pixel, even if the
// background then hides it.
func (p *PPU) renderSprites(lcdc uint8, ly int, line, priority []byte) {
	height := 8
	if lcdc&types.Bit2 != 0 {
		height = 16
	}

	var buf [maxSpritesPerLine]sprite
	sprites := p.selectSprites(ly, height, buf[:0])

	vram0, vram1 := p.b.VRAM(0), p.b.VRAM(1)
	obp0, obp1 := p.b.Get(types.OBP0), p.b.Get(types.OBP1)
	masterPriority := !p.cgb || lcdc&types.Bit0 != 0

	var claimed [ScreenWidth]bool
	for _, s := range sprites {
		row := ly - s.y
		if s.attr&types.Bit6 != 0 {
			row = height - 1 - row
		}
		tile := s.tile
		if height == 16 {
			tile &= 0xFE
		}
		bank := vram0
		if p.cgb && s.attr&types.Bit3 != 0 {
			bank = vram1
		}
		addr := int(tile)*16 + row*2
		low, high := bank[addr], bank[addr+1]

		for px := 0; px < 8; px++ {
			x := s.x + px
			if x < 0 || x >= ScreenWidth || claimed[x] {
				continue
			}
			bit := px
			if s.attr&types.Bit5 != 0 {
				bit = 7 - px
			}
			index := colourIndex(low, high, bit)
			if index == 0 {
				continue
			}
			claimed[x] = true

			if masterPriority {
				bg := priority[x]
				if bg&types.Bit2 != 0 || s.attr&types.Bit7 != 0 && bg&0x3 != 0 {
					continue
				}
			}

			switch {
			case p.cgb:
				setPixel(line, x, cgbColour(p.objPalette.ram, s.attr&0x7, index))
			case s.attr&types.Bit4 != 0:
				setPixel(line, x, p.shade(obp1, index))
			default:
				setPixel(line, x, p.shade(obp0, index))
			}
		}
	}
}
