// Package ppu implements the scanline compositor of the Game Boy: the
// LCD mode state machine, the background, window and sprite layers,
// and the per-pixel priority map that resolves them.
package ppu

import (
	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	// ScreenWidth is the width of the screen in pixels.
	ScreenWidth = memory.ScreenWidth
	// ScreenHeight is the height of the screen in pixels.
	ScreenHeight = memory.ScreenHeight

	// Per-line dot budget.
	oamSearchDots = 80
	transferDots  = 172
	hblankDots    = 204
	LineDots      = oamSearchDots + transferDots + hblankDots

	// FrameDots is the length of a frame: 144 visible and 10 v-blank lines.
	FrameDots = LineDots * 154
)

// LCD modes, as reported in the low bits of STAT.
const (
	ModeHBlank uint8 = iota
	ModeVBlank
	ModeOAM
	ModeVRAM
)

// SpritePriority selects which of two overlapping sprites is drawn on top.
type SpritePriority uint8

const (
	// SpritePriorityAuto follows the hardware: lowest X then lowest OAM
	// index in monochrome mode, OAM index in colour mode unless OPRI
	// requests coordinate priority.
	SpritePriorityAuto SpritePriority = iota
	// SpritePriorityOAM always draws the lowest OAM index on top.
	SpritePriorityOAM
	// SpritePriorityX always draws the lowest X on top, then OAM index.
	SpritePriorityX
)

var spritePriorityNames = [...]string{"auto", "oam", "x"}

func (s SpritePriority) String() string {
	if int(s) < len(spritePriorityNames) {
		return spritePriorityNames[s]
	}
	return "unknown"
}

// ParseSpritePriority converts a name produced by String back.
func ParseSpritePriority(name string) (SpritePriority, bool) {
	for i, n := range spritePriorityNames {
		if n == name {
			return SpritePriority(i), true
		}
	}
	return SpritePriorityAuto, false
}

// PPU implements the Game Boy's (P)ixel (P)rocessing (U)nit.
//
// Each visible line runs OAM search, pixel transfer and h-blank as
// scheduler events; the whole line is composited when pixel transfer
// ends.
//
// References:
//   - [Pan Docs](https://gbdev.io/pandocs/Graphics.html)
type PPU struct {
	enabled    bool
	mode       uint8
	ly         uint8
	windowLine uint8 // internal window line counter
	statLine   bool  // combined STAT interrupt line
	frameDone  bool

	cgb            bool
	spritePriority SpritePriority
	palette        Palette

	frame      []byte // RGB output
	priority   []byte // priority byte per pixel
	paletteRAM []byte // CGB BG (0x00-0x3F) and OBJ (0x40-0x7F) palettes

	bgDebug   []byte
	tileDebug []byte
	oamDebug  []byte

	bgPalette  paletteRegisters
	objPalette paletteRegisters

	b   *io.Bus
	s   *scheduler.Scheduler
	log log.Logger
}

// Opt configures a PPU.
type Opt func(p *PPU)

// WithSpritePriority sets the tie-break for overlapping sprites.
func WithSpritePriority(priority SpritePriority) Opt {
	return func(p *PPU) {
		p.spritePriority = priority
	}
}

// WithPalette sets the monochrome palette.
func WithPalette(palette Palette) Opt {
	return func(p *PPU) {
		p.palette = palette
	}
}

// New creates a PPU drawing into the arena, and reserves its registers
// on the bus.
func New(a *memory.Arena, b *io.Bus, s *scheduler.Scheduler, l log.Logger, opts ...Opt) *PPU {
	p := &PPU{
		palette:    DefaultPalette,
		frame:      a.Frame(),
		priority:   a.PriorityMap(),
		paletteRAM: a.Palette(),
		bgDebug:    a.BackgroundMap(),
		tileDebug:  a.TileData(),
		oamDebug:   a.OAMTiles(),
		b:          b,
		s:          s,
		log:        l,
	}
	for _, opt := range opts {
		opt(p)
	}

	s.RegisterEvent(scheduler.PPUEndOAMSearch, p.endOAMSearch)
	s.RegisterEvent(scheduler.PPUEndTransfer, p.endTransfer)
	s.RegisterEvent(scheduler.PPUEndHBlank, p.endHBlank)
	s.RegisterEvent(scheduler.PPUVBlankLine, p.endVBlankLine)
	s.RegisterEvent(scheduler.PPUDisabledFrame, p.disabledFrame)

	p.setupRegisters()
	return p
}

// Setup selects monochrome or colour rendering.
func (p *PPU) Setup(cgb bool) {
	p.cgb = cgb
	if cgb {
		p.setupPalettes()
	}
}

func (p *PPU) setupRegisters() {
	b := p.b
	b.ReserveAddress(types.LCDC, func(v byte) byte {
		switch {
		case p.enabled && v&types.Bit7 == 0:
			p.disable()
		case !p.enabled && v&types.Bit7 != 0:
			p.enable()
		}
		return v
	})
	b.ReserveAddress(types.STAT, func(v byte) byte {
		b.Set(types.STAT, v&0x78)
		p.updateSTAT()
		return b.Get(types.STAT)
	})
	b.ReserveReader(types.STAT, func() byte {
		return types.Bit7 | b.Get(types.STAT)&0x7F
	})
	b.ReserveAddress(types.LY, func(byte) byte { return p.ly })
	b.ReserveAddress(types.LYC, func(v byte) byte {
		b.Set(types.LYC, v)
		p.updateSTAT()
		return v
	})
	for _, addr := range []uint16{types.SCY, types.SCX, types.BGP, types.OBP0, types.OBP1, types.WY, types.WX} {
		b.ReserveAddress(addr, func(v byte) byte { return v })
	}
}

// enable turns the LCD on. Line 0 starts immediately.
func (p *PPU) enable() {
	p.enabled = true
	p.s.DescheduleEvent(scheduler.PPUDisabledFrame)
	p.ly = 0
	p.startLine()
}

// disable turns the LCD off. LY reads 0, STAT reports h-blank and the
// screen shows colour 0 until it is enabled again.
func (p *PPU) disable() {
	p.enabled = false
	for _, e := range []scheduler.EventType{scheduler.PPUEndOAMSearch, scheduler.PPUEndTransfer, scheduler.PPUEndHBlank, scheduler.PPUVBlankLine} {
		p.s.DescheduleEvent(e)
	}
	p.ly = 0
	p.b.Set(types.LY, 0)
	p.setMode(ModeHBlank)
	p.s.ScheduleEvent(scheduler.PPUDisabledFrame, FrameDots)
}

// disabledFrame completes a frame while the LCD is off.
func (p *PPU) disabledFrame() {
	p.fillBlank()
	p.frameDone = true
	p.s.ScheduleEvent(scheduler.PPUDisabledFrame, FrameDots)
}

// fillBlank fills the frame with colour 0.
func (p *PPU) fillBlank() {
	white := p.palette[0]
	if p.cgb {
		white = [3]uint8{0xFF, 0xFF, 0xFF}
	}
	for i := 0; i < len(p.frame); i += 3 {
		copy(p.frame[i:i+3], white[:])
	}
}

// startLine enters OAM search for the current visible line.
func (p *PPU) startLine() {
	if p.ly == 0 {
		// every priority byte of the frame is rewritten before it is read
		clear(p.priority)
		p.windowLine = 0
	}
	p.b.Set(types.LY, p.ly)
	p.setMode(ModeOAM)
	p.s.ScheduleEvent(scheduler.PPUEndOAMSearch, oamSearchDots)
}

func (p *PPU) endOAMSearch() {
	p.setMode(ModeVRAM)
	p.s.ScheduleEvent(scheduler.PPUEndTransfer, transferDots)
}

func (p *PPU) endTransfer() {
	p.renderLine()
	p.setMode(ModeHBlank)
	p.b.HBlankDMA()
	p.s.ScheduleEvent(scheduler.PPUEndHBlank, hblankDots)
}

func (p *PPU) endHBlank() {
	p.ly++
	if p.ly < ScreenHeight {
		p.startLine()
		return
	}

	p.b.Set(types.LY, p.ly)
	p.setMode(ModeVBlank)
	p.b.RaiseInterrupt(types.VBlankINT)
	p.frameDone = true
	p.s.ScheduleEvent(scheduler.PPUVBlankLine, LineDots)
}

func (p *PPU) endVBlankLine() {
	p.ly++
	if p.ly == 154 {
		p.ly = 0
		p.startLine()
		return
	}
	p.b.Set(types.LY, p.ly)
	p.updateSTAT()
	p.s.ScheduleEvent(scheduler.PPUVBlankLine, LineDots)
}

func (p *PPU) setMode(mode uint8) {
	p.mode = mode
	p.updateSTAT()
}

// updateSTAT refreshes the mode and coincidence bits of STAT and
// requests the LCD interrupt on a rising edge of the STAT line.
func (p *PPU) updateSTAT() {
	stat := p.b.Get(types.STAT)&0x78 | p.mode
	coincidence := p.ly == p.b.Get(types.LYC)
	if coincidence {
		stat |= types.Bit2
	}
	p.b.Set(types.STAT, stat)

	line := p.enabled && (coincidence && stat&types.Bit6 != 0 ||
		p.mode == ModeHBlank && stat&types.Bit3 != 0 ||
		p.mode == ModeVBlank && stat&types.Bit4 != 0 ||
		p.mode == ModeOAM && stat&types.Bit5 != 0)
	if line && !p.statLine {
		p.b.RaiseInterrupt(types.LCDINT)
	}
	p.statLine = line
}

// FrameDone reports whether a frame has been completed since the last
// call to ClearFrameDone.
func (p *PPU) FrameDone() bool {
	return p.frameDone
}

// ClearFrameDone acknowledges a completed frame.
func (p *PPU) ClearFrameDone() {
	p.frameDone = false
}

// Mode returns the current LCD mode.
func (p *PPU) Mode() uint8 {
	return p.mode
}

// LY returns the line being drawn.
func (p *PPU) LY() uint8 {
	return p.ly
}

// Enabled reports whether the LCD is on.
func (p *PPU) Enabled() bool {
	return p.enabled
}

var _ types.Stater = (*PPU)(nil)

func (p *PPU) Load(s *types.State) {
	p.enabled = s.ReadBool()
	p.mode = s.Read8()
	p.ly = s.Read8()
	p.windowLine = s.Read8()
	p.statLine = s.ReadBool()
	p.frameDone = s.ReadBool()
	p.bgPalette.index = s.Read8()
	p.objPalette.index = s.Read8()
}

func (p *PPU) Save(s *types.State) {
	s.WriteBool(p.enabled)
	s.Write8(p.mode)
	s.Write8(p.ly)
	s.Write8(p.windowLine)
	s.WriteBool(p.statLine)
	s.WriteBool(p.frameDone)
	s.Write8(p.bgPalette.index)
	s.Write8(p.objPalette.index)
}
