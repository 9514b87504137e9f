// Package io provides the memory map of the Game Boy: the CPU visible
// address space, cartridge banking and the side effects of the
// memory-mapped hardware registers.
package io

import (
	"fmt"
	"sort"

	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// WriteHandler handles a write to a hardware register. It returns
// the value that is stored, and later read back, at the address.
type WriteHandler func(byte) byte

// ReadHandler computes the value of a hardware register on read.
type ReadHandler func() byte

// Bus is the memory map of the Game Boy. The address space image
// lives in the arena; ROM and RAM bank windows are copied into it
// whenever a bank is selected.
type Bus struct {
	data    []byte // 64 KiB address space image
	vram1   []byte // CGB VRAM bank 1
	wram    []byte // WRAM banks 0-7
	cartROM []byte // cartridge ROM staging area
	cartRAM []byte // external cartridge RAM

	writeHandlers [0x100]WriteHandler
	readHandlers  [0x100]ReadHandler
	reserved      [0x100]bool

	Cartridge *Cartridge
	timer     timer
	joypad    joypad
	serial    serial
	hdma      hdma

	isGBC       bool
	vramBank    uint8
	wramBank    uint8
	key1        uint8
	doubleSpeed bool

	s   *scheduler.Scheduler
	log log.Logger
}

// NewBus creates a memory map over the arena. The cartridge is
// attached later with LoadCartridge.
func NewBus(a *memory.Arena, s *scheduler.Scheduler, l log.Logger) *Bus {
	b := &Bus{
		data:     a.Memory(),
		vram1:    a.VideoRAMBank(),
		wram:     a.WorkRAM(),
		cartROM:  a.CartridgeROM(),
		cartRAM:  a.CartridgeRAM(),
		wramBank: 1,
		s:        s,
		log:      l,
	}
	b.timer.b = b
	b.joypad.b = b
	b.serial.b = b
	b.hdma.b = b
	return b
}

// Setup reserves the registers owned by the bus itself.
func (b *Bus) Setup(model types.Model) {
	b.isGBC = model == types.CGBABC

	b.ReserveAddress(types.IF, func(v byte) byte { return v | 0xE0 })
	b.ReserveAddress(types.IE, func(v byte) byte { return v })
	b.ReserveAddress(types.DMA, func(v byte) byte {
		b.oamDMA(uint16(v) << 8)
		return v
	})
	b.timer.setup(types.ModelDivider[model])
	b.joypad.setup()
	b.serial.setup()

	if b.isGBC {
		b.ReserveAddress(types.VBK, func(v byte) byte {
			b.vramBank = v & types.Bit0
			return v | 0xFE
		})
		b.ReserveAddress(types.SVBK, func(v byte) byte {
			b.selectWRAMBank(v & 0x07)
			return v | 0xF8
		})
		b.ReserveAddress(types.KEY1, func(v byte) byte {
			return b.key1&types.Bit7 | v&types.Bit0 | 0x7E
		})
		b.hdma.setup()
		b.Set(types.VBK, 0xFE)
		b.Set(types.SVBK, 0xF9)
		b.Set(types.KEY1, 0x7E)
	}
}

// ApplyBootValues writes the post-boot value of every reserved
// register, in address order, through the regular write path.
func (b *Bus) ApplyBootValues() {
	addrs := make([]uint16, 0, len(types.CommonIO))
	for addr := range types.CommonIO {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, addr := range addrs {
		if b.reserved[addr&0xFF] {
			b.Write(addr, types.CommonIO[addr])
		}
	}
}

// ReserveAddress registers the handler invoked when the CPU writes to
// the hardware register at addr. Reads return the stored value unless
// a ReadHandler is also reserved.
func (b *Bus) ReserveAddress(addr uint16, handler WriteHandler) {
	if addr < 0xFF00 {
		panic(fmt.Sprintf("io: %04X is not a hardware register", addr))
	}
	if b.writeHandlers[addr&0xFF] != nil {
		panic(fmt.Sprintf("io: address %04X has already been reserved", addr))
	}
	b.writeHandlers[addr&0xFF] = handler
	b.reserved[addr&0xFF] = true
}

// ReserveReader registers a handler computing the value read from addr.
func (b *Bus) ReserveReader(addr uint16, handler ReadHandler) {
	b.readHandlers[addr&0xFF] = handler
	b.reserved[addr&0xFF] = true
}

// Get returns the raw byte stored at addr in the address space image,
// bypassing every handler.
func (b *Bus) Get(addr uint16) byte {
	return b.data[addr]
}

// Set stores value at addr, bypassing every handler.
func (b *Bus) Set(addr uint16, value byte) {
	b.data[addr] = value
}

// SetBit sets the bit at the specified memory address.
func (b *Bus) SetBit(addr uint16, bit byte) {
	b.data[addr] |= bit
}

// ClearBit clears the bit at the specified memory address.
func (b *Bus) ClearBit(addr uint16, bit byte) {
	b.data[addr] &^= bit
}

// TestBit tests the bit at the specified memory address.
func (b *Bus) TestBit(addr uint16, bit byte) bool {
	return b.data[addr]&bit != 0
}

// CopyTo copies src into the address space image between start and end.
func (b *Bus) CopyTo(start, end uint16, src []byte) {
	copy(b.data[start:end], src)
}

// VRAM returns the raw contents of the given VRAM bank.
func (b *Bus) VRAM(bank uint8) []byte {
	if bank == 1 {
		return b.vram1
	}
	return b.data[0x8000:0xA000]
}

// OAM returns the raw object attribute memory.
func (b *Bus) OAM() []byte {
	return b.data[0xFE00:0xFEA0]
}

// IsGBC reports whether the bus runs with CGB features enabled.
func (b *Bus) IsGBC() bool {
	return b.isGBC
}

// Read returns the byte visible to the CPU at addr. Unmapped and
// disabled areas read as 0xFF.
func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.data[addr]
	case addr < 0xA000:
		if b.vramBank == 1 {
			return b.vram1[addr-0x8000]
		}
		return b.data[addr]
	case addr < 0xC000:
		if b.Cartridge == nil {
			return 0xFF
		}
		return b.Cartridge.ReadRAM(addr)
	case addr < 0xE000:
		return b.data[addr]
	case addr < 0xFE00:
		return b.data[addr-0x2000]
	case addr < 0xFEA0:
		return b.data[addr]
	case addr < 0xFF00:
		return 0xFF
	case addr < 0xFF80 || addr == types.IE:
		if h := b.readHandlers[addr&0xFF]; h != nil {
			return h()
		}
		if b.reserved[addr&0xFF] {
			return b.data[addr]
		}
		return 0xFF
	default:
		return b.data[addr]
	}
}

// Write stores value at addr, triggering the side effects of banking
// and hardware registers. Writes to unmapped addresses are ignored.
func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		if b.Cartridge != nil {
			b.Cartridge.Write(addr, value)
		}
	case addr < 0xA000:
		if b.vramBank == 1 {
			b.vram1[addr-0x8000] = value
		} else {
			b.data[addr] = value
		}
	case addr < 0xC000:
		if b.Cartridge != nil {
			b.Cartridge.WriteRAM(addr, value)
		}
	case addr < 0xD000:
		b.data[addr] = value
		b.wram[addr-0xC000] = value
	case addr < 0xE000:
		b.data[addr] = value
		b.wram[uint16(b.wramBank)*0x1000+addr-0xD000] = value
	case addr < 0xFE00:
		b.Write(addr-0x2000, value)
	case addr < 0xFEA0:
		b.data[addr] = value
	case addr < 0xFF00:
		// unusable
	case addr < 0xFF80 || addr == types.IE:
		if h := b.writeHandlers[addr&0xFF]; h != nil {
			b.data[addr] = h(value)
		}
	default:
		b.data[addr] = value
	}
}

// selectWRAMBank maps a switchable WRAM bank into 0xD000.
func (b *Bus) selectWRAMBank(bank uint8) {
	if bank == 0 {
		bank = 1
	}
	b.wramBank = bank
	b.CopyTo(0xD000, 0xE000, b.wram[int(bank)*0x1000:])
}

// SpeedSwitch performs an armed CGB speed switch, returning true if
// one took place.
func (b *Bus) SpeedSwitch() bool {
	if !b.isGBC || b.data[types.KEY1]&types.Bit0 == 0 {
		return false
	}
	b.doubleSpeed = !b.doubleSpeed
	b.key1 = 0
	if b.doubleSpeed {
		b.key1 = types.Bit7
	}
	b.data[types.KEY1] = b.key1 | 0x7E
	b.log.Debugf("io: switched to double speed=%t", b.doubleSpeed)
	return true
}

// DoubleSpeed reports whether the CPU runs at twice the normal clock.
func (b *Bus) DoubleSpeed() bool {
	return b.doubleSpeed
}

// Remap rebuilds every bank window from the bank registers. It is used
// after the arena has been overwritten, e.g. by a save state.
func (b *Bus) Remap() {
	b.selectWRAMBank(b.wramBank)
	if b.Cartridge != nil {
		b.Cartridge.remap(true)
	}
}

var _ types.Stater = (*Bus)(nil)

func (b *Bus) Load(s *types.State) {
	b.vramBank = s.Read8() & types.Bit0
	b.wramBank = s.Read8() & 0x07
	b.key1 = s.Read8()
	b.doubleSpeed = s.ReadBool()
	b.timer.Load(s)
	b.joypad.Load(s)
	b.hdma.Load(s)
	if b.Cartridge != nil {
		b.Cartridge.Load(s)
	}
}

func (b *Bus) Save(s *types.State) {
	s.Write8(b.vramBank)
	s.Write8(b.wramBank)
	s.Write8(b.key1)
	s.WriteBool(b.doubleSpeed)
	b.timer.Save(s)
	b.joypad.Save(s)
	b.hdma.Save(s)
	if b.Cartridge != nil {
		b.Cartridge.Save(s)
	}
}
