package io

import (
	"bytes"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/types"
)

var (
	// ErrROMTooLarge is returned when a ROM does not fit the staging area.
	ErrROMTooLarge = errors.New("io: rom too large")
	// ErrUnsupportedCartridge is returned for banking hardware that
	// is not emulated.
	ErrUnsupportedCartridge = errors.New("io: unsupported cartridge type")
)

// CyclesPerSecond is the rate of the master clock.
const CyclesPerSecond = 4194304

// Cartridge is the banking controller of the inserted cartridge. The
// ROM and RAM banks live in the arena; the selected banks are copied
// into their windows of the address space image whenever the
// selection changes.
type Cartridge struct {
	Header *cartridge.Header

	rom []byte
	ram []byte

	controller cartridge.Controller
	romBanks   int
	ramBanks   int

	RumbleCallback func(bool)

	ramEnabled bool
	rtcEnabled bool

	// bank registers, as last written by the game
	bank1     uint8
	bank2     uint8
	mode      bool
	romBank   uint16
	ramBank   uint8
	bankShift uint8
	multiCart bool

	rtc rtc

	// offsets currently copied into the address space image
	lowOffset  int
	highOffset int
	ramOffset  int

	b *Bus
}

// LoadCartridge stages rom into the arena and attaches its banking
// controller to the bus.
func (b *Bus) LoadCartridge(h *cartridge.Header, rom []byte) (*Cartridge, error) {
	size, err := CheckCartridge(h, len(rom))
	if err != nil {
		return nil, err
	}
	controller := h.CartridgeType.Controller()

	clear(b.cartROM)
	copy(b.cartROM, rom)
	ramSize := h.RAMSize()
	clear(b.cartRAM)

	c := &Cartridge{
		Header:     h,
		rom:        b.cartROM[:size],
		ram:        b.cartRAM[:ramSize],
		controller: controller,
		romBanks:   size / 0x4000,
		ramBanks:   (ramSize + 0x1FFF) / 0x2000,
		bank1:      1,
		romBank:    1,
		bankShift:  5,
		lowOffset:  -1,
		highOffset: -1,
		ramOffset:  -1,
		b:          b,
	}
	if controller == cartridge.ControllerMBC1 {
		c.detectMultiCart()
	}
	if controller == cartridge.ControllerNone {
		// plain ROM+RAM carts have no enable register
		c.ramEnabled = true
	}

	b.Cartridge = c
	c.remap(true)
	b.log.Debugf("io: loaded %s, %d rom banks, %d ram banks", h, c.romBanks, c.ramBanks)
	return c, nil
}

// CheckCartridge reports whether a ROM of romLen bytes described by h
// can be inserted, and returns the size of its banked ROM: the header
// size, or romLen rounded up to a power of two when that is larger or
// the header size code is unknown.
func CheckCartridge(h *cartridge.Header, romLen int) (int, error) {
	if h.CartridgeType.Controller() == cartridge.ControllerUnsupported {
		return 0, errors.Wrap(ErrUnsupportedCartridge, h.CartridgeType.String())
	}

	size := max(h.ROMSize(), 0x8000)
	for size < romLen {
		size <<= 1
	}
	if size > memory.CartridgeROMSize {
		return 0, errors.Wrap(ErrROMTooLarge, fmt.Sprintf("%d bytes", romLen))
	}
	return size, nil
}

// detectMultiCart looks for MBC1M collections: 1 MiB ROMs that carry
// a boot logo at the start of more than one 256 KiB game.
func (c *Cartridge) detectMultiCart() {
	if len(c.rom) != 1024*1024 {
		return
	}
	logo := c.rom[0x0104:0x0134]
	logos := 0
	for game := 0; game < 4; game++ {
		offset := game * 0x40000
		if bytes.Equal(logo, c.rom[offset+0x0104:offset+0x0134]) {
			logos++
		}
	}
	if logos > 1 {
		c.multiCart = true
		c.bankShift = 4
	}
}

// RAM returns the external RAM of the cartridge.
func (c *Cartridge) RAM() []byte {
	return c.ram
}

// ROMBank returns the bank currently visible at 0x4000-0x7FFF.
func (c *Cartridge) ROMBank() int {
	return c.highOffset / 0x4000
}

// RAMBank returns the bank currently visible at 0xA000-0xBFFF.
func (c *Cartridge) RAMBank() int {
	return c.ramOffset / 0x2000
}

// banks derives the physical ROM and RAM banks selected by the bank
// registers. Every selection is reduced modulo the available banks.
func (c *Cartridge) banks() (low, high, ram int) {
	switch c.controller {
	case cartridge.ControllerMBC1:
		high = int(c.bank2)<<c.bankShift | int(c.bank1)
		if c.mode {
			low = int(c.bank2) << c.bankShift
			ram = int(c.bank2)
		}
	case cartridge.ControllerMBC3:
		high = int(c.romBank)
		if c.ramBank < 0x08 {
			ram = int(c.ramBank)
		}
	case cartridge.ControllerMBC2, cartridge.ControllerMBC5:
		high = int(c.romBank)
		ram = int(c.ramBank)
	default:
		high = 1
	}

	low %= c.romBanks
	high %= c.romBanks
	if c.ramBanks > 0 {
		ram %= c.ramBanks
	} else {
		ram = 0
	}
	return
}

// remap copies the selected banks into the address space image. Only
// windows whose bank changed are copied, unless force is set.
func (c *Cartridge) remap(force bool) {
	low, high, ram := c.banks()

	if offset := low * 0x4000; force || offset != c.lowOffset {
		c.lowOffset = offset
		c.b.CopyTo(0x0000, 0x4000, c.rom[offset:])
	}
	if offset := high * 0x4000; force || offset != c.highOffset {
		c.highOffset = offset
		c.b.CopyTo(0x4000, 0x8000, c.rom[offset:])
	}
	if offset := ram * 0x2000; force || offset != c.ramOffset {
		c.ramOffset = offset
		c.copyRAMWindow()
	}
}

// copyRAMWindow fills 0xA000-0xBFFF from the selected RAM bank.
// RAM smaller than the window repeats through it.
func (c *Cartridge) copyRAMWindow() {
	window := c.b.data[0xA000:0xC000]
	if len(c.ram) == 0 {
		for i := range window {
			window[i] = 0xFF
		}
		return
	}
	bank := c.ram[c.ramOffset : c.ramOffset+c.ramWindow()]
	for i := 0; i < len(window); i += len(bank) {
		copy(window[i:], bank)
	}
	if c.controller == cartridge.ControllerMBC2 {
		for i := range window {
			window[i] |= 0xF0
		}
	}
}

// ReadRAM reads from the external RAM window. Disabled or absent RAM
// reads as 0xFF.
func (c *Cartridge) ReadRAM(addr uint16) byte {
	if c.rtcMapped() {
		if !c.rtcEnabled {
			return 0xFF
		}
		return c.rtc.read(c.ramBank)
	}
	if !c.ramEnabled || len(c.ram) == 0 {
		return 0xFF
	}
	return c.b.data[addr]
}

// WriteRAM writes through the external RAM window into the selected
// bank. Writes to disabled or absent RAM are ignored.
func (c *Cartridge) WriteRAM(addr uint16, value byte) {
	if c.rtcMapped() {
		if c.rtcEnabled {
			c.rtc.advance(c.b.s.Cycle())
			c.rtc.write(c.ramBank, value)
		}
		return
	}
	if !c.ramEnabled || len(c.ram) == 0 {
		return
	}
	if c.controller == cartridge.ControllerMBC2 {
		value |= 0xF0
	}

	stride := c.ramWindow()
	offset := int(addr-0xA000) % stride
	c.ram[c.ramOffset+offset] = value

	// keep every mirror of a small RAM in sync
	for mirror := offset; mirror < 0x2000; mirror += stride {
		c.b.data[0xA000+mirror] = value
	}
}

// ramWindow returns the number of distinct bytes in the RAM window.
func (c *Cartridge) ramWindow() int {
	return min(len(c.ram)-c.ramOffset, 0x2000)
}

// rtcMapped reports whether an RTC register is selected into the RAM
// window. Without a clock the window then reads 0xFF.
func (c *Cartridge) rtcMapped() bool {
	return c.controller == cartridge.ControllerMBC3 && c.ramBank >= 0x08
}

// Write handles a write to ROM space, which the controller decodes as
// a bank register write.
func (c *Cartridge) Write(addr uint16, value byte) {
	switch c.controller {
	case cartridge.ControllerMBC1:
		c.writeMBC1(addr, value)
	case cartridge.ControllerMBC2:
		c.writeMBC2(addr, value)
	case cartridge.ControllerMBC3:
		c.writeMBC3(addr, value)
	case cartridge.ControllerMBC5:
		c.writeMBC5(addr, value)
	default:
		return
	}
	c.remap(false)
}

func (c *Cartridge) writeMBC1(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		value &= 0x1F
		if value == 0 {
			value = 1
		}
		if c.multiCart {
			value &= 0x0F
		}
		c.bank1 = value
	case addr < 0x6000:
		c.bank2 = value & 0x03
	default:
		c.mode = value&types.Bit0 != 0
	}
}

func (c *Cartridge) writeMBC2(addr uint16, value byte) {
	if addr >= 0x4000 {
		return
	}
	// address bit 8 selects between the RAM enable and ROM bank registers
	if addr&0x0100 == 0 {
		c.ramEnabled = value&0x0F == 0x0A
		return
	}
	value &= 0x0F
	if value == 0 {
		value = 1
	}
	c.romBank = uint16(value)
}

func (c *Cartridge) writeMBC3(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		enabled := value&0x0F == 0x0A
		c.ramEnabled = enabled
		c.rtcEnabled = enabled && c.Header.CartridgeType.HasRTC()
	case addr < 0x4000:
		value &= 0x7F
		if value == 0 {
			value = 1
		}
		c.romBank = uint16(value)
	case addr < 0x6000:
		if value <= 0x03 || (value >= 0x08 && value <= 0x0C) {
			c.ramBank = value
		}
	default:
		if c.rtc.latchValue == 0 && value == 1 {
			c.rtc.advance(c.b.s.Cycle())
			c.rtc.latch()
		}
		c.rtc.latchValue = value
	}
}

func (c *Cartridge) writeMBC5(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = value&0x0F == 0x0A
	case addr < 0x3000:
		c.romBank = c.romBank&0x100 | uint16(value)
	case addr < 0x4000:
		c.romBank = c.romBank&0xFF | uint16(value&types.Bit0)<<8
	case addr < 0x6000:
		if c.Header.CartridgeType.HasRumble() {
			if c.RumbleCallback != nil {
				c.RumbleCallback(value&types.Bit3 != 0)
			}
			value &= 0x07
		}
		c.ramBank = value & 0x0F
	}
}

var _ types.Stater = (*Cartridge)(nil)

func (c *Cartridge) Load(s *types.State) {
	c.ramEnabled = s.ReadBool()
	c.rtcEnabled = s.ReadBool()
	c.bank1 = s.Read8()
	c.bank2 = s.Read8()
	c.mode = s.ReadBool()
	c.romBank = s.Read16()
	c.ramBank = s.Read8()
	c.rtc.Load(s)
}

func (c *Cartridge) Save(s *types.State) {
	s.WriteBool(c.ramEnabled)
	s.WriteBool(c.rtcEnabled)
	s.Write8(c.bank1)
	s.Write8(c.bank2)
	s.WriteBool(c.mode)
	s.Write16(c.romBank)
	s.Write8(c.ramBank)
	c.rtc.Save(s)
}
