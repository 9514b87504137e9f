package gameboy

import (
	goio "io"

	"github.com/thelolagemann/gbcore/internal/cpu"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// Opt is a function that modifies a GameBoy
// instance.
type Opt func(gb *GameBoy)

func WithLogger(log log.Logger) Opt {
	return func(gb *GameBoy) {
		gb.log = log
	}
}

// WithModel forces the emulated model. types.Unset picks it from the
// cartridge header.
func WithModel(m types.Model) Opt {
	return func(gb *GameBoy) {
		gb.model = m
	}
}

func WithHaltBug(policy cpu.HaltBugPolicy) Opt {
	return func(gb *GameBoy) {
		gb.haltBug = policy
	}
}

func WithSpritePriority(priority ppu.SpritePriority) Opt {
	return func(gb *GameBoy) {
		gb.spritePriority = priority
	}
}

// WithPalette sets the colours of the four monochrome shades.
func WithPalette(palette ppu.Palette) Opt {
	return func(gb *GameBoy) {
		gb.palette = palette
	}
}

// WithSerialOutput forwards every byte sent over the link port to w.
func WithSerialOutput(w goio.Writer) Opt {
	return func(gb *GameBoy) {
		gb.serial = w
	}
}

func WithSampleRate(rate int) Opt {
	return func(gb *GameBoy) {
		gb.sampleRate = rate
	}
}
