// Package gameboy provides an emulation of a Nintendo Game Boy.
//
// A GameBoy owns one arena and every hardware component built over
// it. Hosts drive it synchronously through Step and RunFrame; calls
// into one instance must never overlap.
package gameboy

import (
	goio "io"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/internal/apu"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/cpu"
	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	// ClockSpeed is the clock speed of the Game Boy.
	ClockSpeed = io.CyclesPerSecond
	// CyclesPerFrame is the number of clock cycles per frame.
	CyclesPerFrame = ppu.FrameDots

	// watchdogCycles bounds RunFrame. A frame completes at least once
	// every CyclesPerFrame whether or not the LCD is on.
	watchdogCycles = 4 * CyclesPerFrame
)

var (
	// ErrNoCartridge is returned by operations that need a loaded ROM.
	ErrNoCartridge = errors.New("gameboy: no cartridge loaded")
	// ErrInvalidROM is returned for images too short to hold a header.
	ErrInvalidROM = errors.New("gameboy: invalid rom")
	// ErrWatchdog is reported when a frame fails to complete within
	// the cycle budget.
	ErrWatchdog = errors.New("gameboy: frame did not complete")
)

// Status is the result of Step and RunFrame. Positive values mean
// emulation can continue.
type Status int

const (
	StatusCrashed Status = -1
	StatusOK      Status = 1
)

func (s Status) String() string {
	if s > 0 {
		return "ok"
	}
	return "crashed"
}

// Diagnostics describes the machine at the point it stopped.
type Diagnostics struct {
	// PC is the address of the faulting opcode once crashed, otherwise
	// the next instruction.
	PC     uint16
	Opcode uint8
	Err    error
	Cycle  uint64
}

// GameBoy represents a Game Boy. It contains all the components of the Game Boy.
// It is the main entry point for the emulator.
type GameBoy struct {
	arena *memory.Arena
	s     *scheduler.Scheduler
	b     *io.Bus
	cpu   *cpu.CPU
	ppu   *ppu.PPU
	apu   *apu.APU

	header *cartridge.Header
	model  types.Model // as configured, Unset follows the header
	active types.Model

	haltBug        cpu.HaltBugPolicy
	spritePriority ppu.SpritePriority
	palette        ppu.Palette
	sampleRate     int
	serial         goio.Writer

	frames uint64
	err    error // fault raised by the engine itself

	log log.Logger
}

// New creates an engine with no cartridge inserted.
func New(opts ...Opt) *GameBoy {
	g := &GameBoy{
		arena:      memory.NewArena(),
		palette:    ppu.DefaultPalette,
		sampleRate: apu.DefaultSampleRate,
		log:        log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadROM inserts a cartridge and powers the machine on, in the state
// the boot ROM leaves it.
func (g *GameBoy) LoadROM(rom []byte) error {
	if len(rom) < cartridge.HeaderEnd {
		return errors.Wrap(ErrInvalidROM, "image shorter than the cartridge header")
	}
	h, err := cartridge.NewHeader(rom[cartridge.HeaderStart:])
	if err != nil {
		return errors.Wrap(err, "decode header")
	}

	if _, err := io.CheckCartridge(h, len(rom)); err != nil {
		return errors.Wrap(err, "load cartridge")
	}

	model := g.model
	if model == types.Unset {
		model = types.DMGABC
		if h.IsCGBCartridge() {
			model = types.CGBABC
		}
	}

	g.arena.Reset()
	s := scheduler.NewScheduler()
	b := io.NewBus(g.arena, s, g.log)
	video := ppu.New(g.arena, b, s, g.log, ppu.WithSpritePriority(g.spritePriority), ppu.WithPalette(g.palette))
	sound := apu.New(g.arena, b, s, g.log, apu.WithSampleRate(g.sampleRate))
	b.Setup(model)
	video.Setup(model == types.CGBABC)
	if _, err := b.LoadCartridge(h, rom); err != nil {
		// the arena is gone, so is the previous cartridge
		g.s, g.b, g.ppu, g.apu, g.cpu, g.header = nil, nil, nil, nil, nil, nil
		return errors.Wrap(err, "load cartridge")
	}
	b.ApplyBootValues()
	if g.serial != nil {
		b.SetSerialOutput(g.serial)
	}

	processor := cpu.NewCPU(b, g.haltBug)
	processor.Boot(model)

	g.s, g.b, g.ppu, g.apu, g.cpu = s, b, video, sound, processor
	g.header, g.active = h, model
	g.frames, g.err = 0, nil

	if !h.ChecksumValid() {
		g.log.Warnf("gameboy: header checksum mismatch, got %02X want %02X", h.HeaderChecksum, h.ComputeHeaderChecksum())
	}
	if global := cartridge.GlobalChecksum(rom); global != h.GlobalChecksum {
		g.log.Warnf("gameboy: global checksum mismatch, got %04X want %04X", h.GlobalChecksum, global)
	}
	g.log.Infof("gameboy: loaded %q (%s, rom %d KiB, ram %d KiB) as %s",
		h.Title, h.CartridgeType, h.ROMSize()/1024, h.RAMSize()/1024, model)
	return nil
}

// Step executes one instruction, or one interrupt dispatch, and runs
// every piece of hardware work that falls due meanwhile.
func (g *GameBoy) Step() Status {
	if g.cpu == nil || g.err != nil || g.cpu.Crashed() {
		return StatusCrashed
	}

	cycles := g.cpu.Step()
	if g.cpu.Crashed() {
		g.log.Errorf("gameboy: crashed at %04X executing %02X", g.cpu.OpcodePC, g.cpu.Opcode)
		return StatusCrashed
	}

	g.b.TickTimer(cycles)
	// the PPU and APU keep their pace in double speed mode
	if g.b.DoubleSpeed() {
		cycles /= 2
	}
	g.s.Tick(uint64(cycles))
	return StatusOK
}

// RunFrame steps until the PPU completes a frame.
func (g *GameBoy) RunFrame() Status {
	if g.cpu == nil {
		return StatusCrashed
	}

	g.ppu.ClearFrameDone()
	start := g.s.Cycle()
	for !g.ppu.FrameDone() {
		if status := g.Step(); status != StatusOK {
			return status
		}
		if g.s.Cycle()-start > watchdogCycles {
			g.err = errors.Wrapf(ErrWatchdog, "no frame after %d cycles", g.s.Cycle()-start)
			g.log.Errorf("gameboy: %v", g.err)
			return StatusCrashed
		}
	}
	g.frames++
	return StatusOK
}

// RunUntil steps until PC reaches pc, the CPU crashes, or maxSteps
// instructions have run. It reports whether the breakpoint was hit.
func (g *GameBoy) RunUntil(pc uint16, maxSteps int) (Status, bool) {
	if g.cpu == nil {
		return StatusCrashed, false
	}
	for i := 0; i < maxSteps; i++ {
		if g.cpu.PC == pc {
			return StatusOK, true
		}
		if status := g.Step(); status != StatusOK {
			return status, false
		}
	}
	return StatusOK, g.cpu.PC == pc
}

// Diagnostics returns the state the host should report after a crash.
func (g *GameBoy) Diagnostics() Diagnostics {
	if g.cpu == nil {
		return Diagnostics{Err: ErrNoCartridge}
	}

	d := Diagnostics{PC: g.cpu.PC, Opcode: g.cpu.Opcode, Err: g.err, Cycle: g.s.Cycle()}
	if g.cpu.Err != nil {
		d.PC = g.cpu.Err.PC
		d.Err = g.cpu.Err
	}
	return d
}

// Model returns the model being emulated.
func (g *GameBoy) Model() types.Model {
	return g.active
}

// SetInputState replaces the state of every button, 1 meaning pressed.
func (g *GameBoy) SetInputState(mask types.ButtonMask) {
	if g.b != nil {
		g.b.SetInputState(mask)
	}
}
