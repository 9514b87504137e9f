package gameboy

import (
	"image"

	"github.com/thelolagemann/gbcore/internal/cpu"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/ppu"
)

// Frame returns the RGB output of the last completed frame, 3 bytes
// per pixel. The slice aliases the arena; it must not be modified or
// read while RunFrame is in progress.
func (g *GameBoy) Frame() []byte {
	return g.arena.Frame()
}

// FrameImage copies the last completed frame into an opaque image.
func (g *GameBoy) FrameImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight))
	frame := g.arena.Frame()
	for i, j := 0, 0; i < len(frame); i, j = i+3, j+4 {
		img.Pix[j] = frame[i]
		img.Pix[j+1] = frame[i+1]
		img.Pix[j+2] = frame[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// FrameCount returns the number of frames completed by RunFrame.
func (g *GameBoy) FrameCount() uint64 {
	return g.frames
}

// Layout returns the memory-constants table of the arena.
func (g *GameBoy) Layout() []memory.Region {
	return memory.Regions()
}

// Memory returns the whole arena for inspection. It must be treated
// as read-only; writes go through WriteAddress.
func (g *GameBoy) Memory() []byte {
	return g.arena.Bytes()
}

// ReadAddress reads addr as the CPU would.
func (g *GameBoy) ReadAddress(addr uint16) uint8 {
	if g.b == nil {
		return 0xFF
	}
	return g.b.Read(addr)
}

// WriteAddress writes addr as the CPU would, side effects included.
func (g *GameBoy) WriteAddress(addr uint16, value uint8) {
	if g.b != nil {
		g.b.Write(addr, value)
	}
}

// Registers returns a snapshot of the CPU registers.
func (g *GameBoy) Registers() cpu.Registers {
	if g.cpu == nil {
		return cpu.Registers{}
	}
	return g.cpu.Registers()
}

// OpcodeAt returns the opcode byte at pc, and the byte following it
// when it is the CB prefix.
func (g *GameBoy) OpcodeAt(pc uint16) (opcode uint8, cb uint8, prefixed bool) {
	opcode = g.ReadAddress(pc)
	if opcode == 0xCB {
		return opcode, g.ReadAddress(pc + 1), true
	}
	return opcode, 0, false
}

// DrawBackgroundMap renders the active 256x256 background map.
func (g *GameBoy) DrawBackgroundMap() []byte {
	if g.ppu == nil {
		return g.arena.BackgroundMap()
	}
	return g.ppu.DrawBackgroundMap()
}

// DrawTileData renders every tile of both VRAM banks.
func (g *GameBoy) DrawTileData() []byte {
	if g.ppu == nil {
		return g.arena.TileData()
	}
	return g.ppu.DrawTileData()
}

// DrawOAMTiles renders the 40 sprites.
func (g *GameBoy) DrawOAMTiles() []byte {
	if g.ppu == nil {
		return g.arena.OAMTiles()
	}
	return g.ppu.DrawOAMTiles()
}

// AudioSamples drains buffered stereo samples into dst, see
// apu.APU.AudioSamples.
func (g *GameBoy) AudioSamples(dst []byte) int {
	if g.apu == nil {
		return 0
	}
	return g.apu.AudioSamples(dst)
}

// AudioSampleCount returns the number of buffered stereo samples.
func (g *GameBoy) AudioSampleCount() int {
	if g.apu == nil {
		return 0
	}
	return g.apu.AudioSampleCount()
}

func (g *GameBoy) ClearAudioBuffer() {
	if g.apu != nil {
		g.apu.ClearAudioBuffer()
	}
}

// SampleRate returns the audio sample rate.
func (g *GameBoy) SampleRate() int {
	if g.apu == nil {
		return g.sampleRate
	}
	return g.apu.SampleRate()
}
