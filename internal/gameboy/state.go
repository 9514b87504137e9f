package gameboy

import (
	"bytes"

	"github.com/cespare/xxhash"
	"github.com/go-faster/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/types"
)

var (
	// ErrMalformedState is returned by RestoreState for blobs that are
	// truncated, corrupt or of an unknown shape.
	ErrMalformedState = errors.New("gameboy: malformed save state")
	// ErrCartridgeMismatch is returned by RestoreState for blobs
	// captured with another cartridge.
	ErrCartridgeMismatch = errors.New("gameboy: save state belongs to another cartridge")
	// ErrBatterySize is returned when a battery image does not match
	// the cartridge RAM size.
	ErrBatterySize = errors.New("gameboy: battery image size mismatch")
)

const (
	stateMagic   = "GBCS"
	stateVersion = 2
	checksumSize = 8
)

// section ids, in the order they appear in a blob
const (
	sectionInternal uint8 = iota
	sectionMemory
	sectionVRAM
	sectionWRAM
	sectionPalette
	sectionCartridgeRAM
	sectionFrame

	sectionCount
)

// sections returns the arena views captured in a save state. The frame
// is included so that a capture taken mid-frame keeps the lines
// already drawn.
func (g *GameBoy) sections() [sectionCount][]byte {
	return [sectionCount][]byte{
		sectionInternal:     g.arena.InternalState(),
		sectionMemory:       g.arena.Memory()[0x8000:],
		sectionVRAM:         g.arena.VideoRAMBank(),
		sectionWRAM:         g.arena.WorkRAM(),
		sectionPalette:      g.arena.Palette(),
		sectionCartridgeRAM: g.b.Cartridge.RAM(),
		sectionFrame:        g.arena.Frame(),
	}
}

func (g *GameBoy) saveInternal(s *types.State) {
	g.cpu.Save(s)
	g.ppu.Save(s)
	g.apu.Save(s)
	g.b.Save(s)
	g.s.Save(s)
	s.Write64(g.frames)
}

func (g *GameBoy) loadInternal(s *types.State) {
	g.cpu.Load(s)
	g.ppu.Load(s)
	g.apu.Load(s)
	g.b.Load(s)
	g.s.Load(s)
	g.frames = s.Read64()
}

// writeInternalState serializes the component registers into the
// arena's internal state block, prefixed with their length.
func (g *GameBoy) writeInternalState() error {
	s := types.NewState()
	g.saveInternal(s)

	block := g.arena.InternalState()
	if s.Len()+4 > len(block) {
		return errors.Errorf("gameboy: internal state is %d bytes, block holds %d", s.Len(), len(block)-4)
	}
	clear(block)
	prefix := types.NewState()
	prefix.Write32(uint32(s.Len()))
	copy(block, prefix.Bytes())
	copy(block[4:], s.Bytes())
	return nil
}

// CaptureState snapshots the machine into a self-describing blob. It
// must be called between steps, which the synchronous API guarantees.
func (g *GameBoy) CaptureState() ([]byte, error) {
	if g.cpu == nil {
		return nil, ErrNoCartridge
	}
	if err := g.writeInternalState(); err != nil {
		return nil, err
	}

	key := g.header.Key()
	s := types.NewState()
	s.WriteData([]byte(stateMagic))
	s.Write8(stateVersion)
	s.Write8(uint8(g.active))
	s.Write64(key.Hash())
	s.Write8(sectionCount)
	for id, data := range g.sections() {
		s.Write8(uint8(id))
		s.Write32(uint32(len(data)))
		s.WriteData(data)
	}
	s.Write64(xxhash.Sum64(s.Bytes()))

	g.log.Debugf("gameboy: captured %d byte state at cycle %d", s.Len(), g.s.Cycle())
	return s.Bytes(), nil
}

// RestoreState replaces the machine state with a blob produced by
// CaptureState. The blob is validated completely before anything is
// applied, so a rejected blob leaves the machine untouched.
func (g *GameBoy) RestoreState(blob []byte) error {
	if g.cpu == nil {
		return ErrNoCartridge
	}
	payload, err := g.validateState(blob)
	if err != nil {
		return err
	}

	// keep the current state to fall back on if the registers fail to decode
	previous, err := g.CaptureState()
	if err != nil {
		return err
	}
	if err := g.applyState(payload); err != nil {
		sections, rollback := g.validateState(previous)
		if rollback == nil {
			rollback = g.applyState(sections)
		}
		return multierror.Append(err, rollback)
	}

	g.err = nil
	g.log.Debugf("gameboy: restored state at cycle %d", g.s.Cycle())
	return nil
}

// validateState checks the framing, checksum and identity of blob and
// returns its sections.
func (g *GameBoy) validateState(blob []byte) ([sectionCount][]byte, error) {
	var sections [sectionCount][]byte
	if len(blob) < len(stateMagic)+checksumSize {
		return sections, errors.Wrap(ErrMalformedState, "too short")
	}
	body := blob[:len(blob)-checksumSize]
	tail := types.StateFromBytes(blob[len(body):])
	if xxhash.Sum64(body) != tail.Read64() {
		return sections, errors.Wrap(ErrMalformedState, "checksum mismatch")
	}

	s := types.StateFromBytes(body)
	magic := make([]byte, len(stateMagic))
	s.ReadData(magic)
	if !bytes.Equal(magic, []byte(stateMagic)) {
		return sections, errors.Wrap(ErrMalformedState, "bad magic")
	}
	if v := s.Read8(); v != stateVersion {
		return sections, errors.Wrapf(ErrMalformedState, "version %d", v)
	}
	if m := types.Model(s.Read8()); m != g.active {
		return sections, errors.Wrapf(ErrMalformedState, "captured as %s, running as %s", m, g.active)
	}
	if hash, want := s.Read64(), g.header.Key().Hash(); hash != want {
		return sections, errors.Wrapf(ErrCartridgeMismatch, "key %016x, loaded %016x", hash, want)
	}
	if n := s.Read8(); n != sectionCount {
		return sections, errors.Wrapf(ErrMalformedState, "%d sections", n)
	}

	expected := g.sections()
	for id := range sections {
		if got := s.Read8(); got != uint8(id) {
			return sections, errors.Wrapf(ErrMalformedState, "section %d out of order", got)
		}
		length := int(s.Read32())
		if s.Err() != nil || length != len(expected[id]) {
			return sections, errors.Wrapf(ErrMalformedState, "section %d is %d bytes, want %d", id, length, len(expected[id]))
		}
		if length > s.Remaining() {
			return sections, errors.Wrapf(ErrMalformedState, "section %d truncated", id)
		}
		offset := len(body) - s.Remaining()
		sections[id] = body[offset : offset+length]
		s.Skip(length)
	}
	if s.Err() != nil || s.Remaining() != 0 {
		return sections, errors.Wrap(ErrMalformedState, "trailing data")
	}

	internal := types.StateFromBytes(sections[sectionInternal])
	if n := int(internal.Read32()); n > len(sections[sectionInternal])-4 {
		return sections, errors.Wrapf(ErrMalformedState, "internal state length %d", n)
	}
	return sections, nil
}

// applyState copies validated sections into the arena, reloads the
// component registers and rebuilds every bank window from them.
func (g *GameBoy) applyState(sections [sectionCount][]byte) error {
	for id, dst := range g.sections() {
		copy(dst, sections[id])
	}

	block := g.arena.InternalState()
	n := types.StateFromBytes(block).Read32()
	s := types.StateFromBytes(block[4 : 4+n])
	g.loadInternal(s)
	if err := s.Err(); err != nil {
		return errors.Wrap(ErrMalformedState, err.Error())
	}

	g.b.Remap()
	return nil
}

// HasBattery reports whether the cartridge keeps its RAM powered.
func (g *GameBoy) HasBattery() bool {
	return g.header != nil && g.header.CartridgeType.HasBattery() && len(g.b.Cartridge.RAM()) > 0
}

// BatteryRAM returns a copy of the battery backed cartridge RAM, or
// nil when the cartridge has none.
func (g *GameBoy) BatteryRAM() []byte {
	if !g.HasBattery() {
		return nil
	}
	return bytes.Clone(g.b.Cartridge.RAM())
}

// LoadBatteryRAM restores a battery image saved by BatteryRAM.
func (g *GameBoy) LoadBatteryRAM(data []byte) error {
	if g.header == nil {
		return ErrNoCartridge
	}
	ram := g.b.Cartridge.RAM()
	if len(data) != len(ram) {
		return errors.Wrapf(ErrBatterySize, "got %d bytes, want %d", len(data), len(ram))
	}
	copy(ram, data)
	g.b.Remap()
	return nil
}

// ParseHeader returns the raw header bytes [0x104, 0x150) of ROM bank 0.
func (g *GameBoy) ParseHeader() ([]byte, error) {
	if g.header == nil {
		return nil, ErrNoCartridge
	}
	return bytes.Clone(g.arena.CartridgeROM()[cartridge.HeaderStart:cartridge.HeaderEnd]), nil
}

// Header returns the decoded cartridge header.
func (g *GameBoy) Header() (*cartridge.Header, error) {
	if g.header == nil {
		return nil, ErrNoCartridge
	}
	return g.header, nil
}

// Key returns the identity persisted data is stored under.
func (g *GameBoy) Key() (cartridge.Key, error) {
	if g.header == nil {
		return cartridge.Key{}, ErrNoCartridge
	}
	return g.header.Key(), nil
}
