package io

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/romtest"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

func newTestBus(t *testing.T, model types.Model, o romtest.Options) *Bus {
	t.Helper()

	b := NewBus(memory.NewArena(), scheduler.NewScheduler(), log.NewNullLogger())
	b.Setup(model)
	b.ApplyBootValues()

	rom := romtest.Build(o)
	h, err := cartridge.NewHeader(rom[cartridge.HeaderStart:])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.LoadCartridge(h, rom); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBus_UnmappedReads(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})

	tests := []struct {
		name string
		addr uint16
	}{
		{"no cartridge ram", 0xA000},
		{"unusable", 0xFEA0},
		{"unusable end", 0xFEFF},
		{"unreserved io", 0xFF03},
		{"cgb register on dmg", types.SVBK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.Write(tt.addr, 0x12)
			if got := b.Read(tt.addr); got != 0xFF {
				t.Errorf("Read(%04X) = %02X, want FF", tt.addr, got)
			}
		})
	}
}

func TestBus_Echo(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})

	b.Write(0xC123, 0x42)
	if got := b.Read(0xE123); got != 0x42 {
		t.Errorf("echo read = %02X, want 42", got)
	}
	b.Write(0xE200, 0x99)
	if got := b.Read(0xC200); got != 0x99 {
		t.Errorf("echo write = %02X, want 99", got)
	}
}

func TestBus_ROMIsReadOnly(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})

	before := b.Read(0x0150)
	b.Write(0x0150, ^before)
	if got := b.Read(0x0150); got != before {
		t.Errorf("rom byte changed to %02X", got)
	}
}

func TestBus_OAMDMA(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})

	for i := uint16(0); i < 0xA0; i++ {
		b.Write(0xC000+i, uint8(i)^0x5A)
	}
	b.Write(types.DMA, 0xC0)

	for i := uint16(0); i < 0xA0; i++ {
		if got, want := b.Read(0xFE00+i), uint8(i)^0x5A; got != want {
			t.Fatalf("OAM[%d] = %02X, want %02X", i, got, want)
		}
	}
}

func TestBus_WRAMBanks(t *testing.T) {
	b := newTestBus(t, types.CGBABC, romtest.Options{CGBFlag: 0x80})

	for bank := uint8(1); bank < 8; bank++ {
		b.Write(types.SVBK, bank)
		b.Write(0xD000, bank*0x11)
	}
	for bank := uint8(1); bank < 8; bank++ {
		b.Write(types.SVBK, bank)
		if got := b.Read(0xD000); got != bank*0x11 {
			t.Errorf("bank %d = %02X, want %02X", bank, got, bank*0x11)
		}
	}

	// bank 0 selects bank 1
	b.Write(types.SVBK, 0)
	if got := b.Read(0xD000); got != 0x11 {
		t.Errorf("bank 0 = %02X, want 11", got)
	}
}

func TestBus_VRAMBanks(t *testing.T) {
	b := newTestBus(t, types.CGBABC, romtest.Options{CGBFlag: 0x80})

	b.Write(0x8000, 0xAA)
	b.Write(types.VBK, 1)
	b.Write(0x8000, 0xBB)

	if got := b.Read(0x8000); got != 0xBB {
		t.Errorf("bank 1 = %02X, want BB", got)
	}
	b.Write(types.VBK, 0)
	if got := b.Read(0x8000); got != 0xAA {
		t.Errorf("bank 0 = %02X, want AA", got)
	}
	if b.VRAM(1)[0] != 0xBB {
		t.Errorf("VRAM(1) not updated")
	}
}

func TestBus_Interrupts(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})

	b.Write(types.IF, 0)
	b.Write(types.IE, types.TimerINT|types.JoypadINT)
	b.RaiseInterrupt(types.JoypadINT)
	b.RaiseInterrupt(types.TimerINT)
	b.RaiseInterrupt(types.VBlankINT) // requested, not enabled

	if got := b.Pending(); got != types.TimerINT|types.JoypadINT {
		t.Fatalf("Pending() = %02X", got)
	}
	if got := b.IRQVector(); got != 0x50 {
		t.Errorf("first vector = %04X, want 0050", got)
	}
	if got := b.IRQVector(); got != 0x60 {
		t.Errorf("second vector = %04X, want 0060", got)
	}
	if got := b.IRQVector(); got != 0 {
		t.Errorf("third vector = %04X, want 0", got)
	}
	if got := b.Read(types.IF); got != 0xE0|types.VBlankINT {
		t.Errorf("IF = %02X", got)
	}
}

func TestBus_Joypad(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})
	b.Write(types.IF, 0)

	b.SetInputState(types.ButtonA | types.ButtonUp)
	if b.Requested()&types.JoypadINT == 0 {
		t.Error("new press did not request the joypad interrupt")
	}

	b.Write(types.P1, 0x20) // directions
	if got := b.Read(types.P1); got != 0xEB {
		t.Errorf("directions = %02X, want EB", got)
	}
	b.Write(types.P1, 0x10) // actions
	if got := b.Read(types.P1); got != 0xDE {
		t.Errorf("actions = %02X, want DE", got)
	}

	b.Write(types.IF, 0)
	b.SetInputState(types.ButtonA) // release only
	if b.Requested()&types.JoypadINT != 0 {
		t.Error("release requested the joypad interrupt")
	}
}

func TestBus_Timer(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})
	b.Write(types.IF, 0)

	b.Write(types.DIV, 0)
	b.Write(types.TAC, 0x05) // 16 cycles per increment
	b.TickTimer(160)
	if got := b.Read(types.TIMA); got != 10 {
		t.Fatalf("TIMA = %d, want 10", got)
	}

	b.Write(types.TMA, 0x42)
	b.Write(types.TIMA, 0xFF)
	b.TickTimer(16)
	if got := b.Read(types.TIMA); got != 0 {
		t.Errorf("TIMA during reload delay = %02X, want 00", got)
	}
	b.TickTimer(4)
	if got := b.Read(types.TIMA); got != 0x42 {
		t.Errorf("TIMA after reload = %02X, want 42", got)
	}
	if b.Requested()&types.TimerINT == 0 {
		t.Error("overflow did not request the timer interrupt")
	}
}

func TestBus_SerialOutput(t *testing.T) {
	b := newTestBus(t, types.DMGABC, romtest.Options{})
	var out []byte
	b.SetSerialOutput(writerFunc(func(p []byte) (int, error) {
		out = append(out, p...)
		return len(p), nil
	}))

	for _, c := range []byte("ok") {
		b.Write(types.SB, c)
		b.Write(types.SC, 0x81)
	}

	if diff := cmp.Diff("ok", string(out)); diff != "" {
		t.Errorf("serial output mismatch (-want +got):\n%s", diff)
	}
	if got := b.Read(types.SB); got != 0xFF {
		t.Errorf("SB = %02X, want FF", got)
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestBus_SaveLoad(t *testing.T) {
	o := romtest.Options{Type: cartridge.MBC5RAMBATT, ROMSizeCode: 3, RAMSizeCode: 3, MarkBanks: true}
	b := newTestBus(t, types.DMGABC, o)
	b.Write(0x0000, 0x0A)
	b.Write(0x2000, 0x09)
	b.Write(0x4000, 0x02)
	b.Write(0xA010, 0x77)
	b.Write(types.DIV, 0)
	b.TickTimer(1000)

	s := types.NewState()
	b.Save(s)

	restored := newTestBus(t, types.DMGABC, o)
	copy(restored.cartRAM, b.cartRAM)
	restored.Load(types.StateFromBytes(s.Bytes()))
	restored.Remap()

	if got := restored.Read(0x4000); got != 9 {
		t.Errorf("restored rom bank = %d, want 9", got)
	}
	if got := restored.Read(0xA010); got != 0x77 {
		t.Errorf("restored ram = %02X, want 77", got)
	}
	if restored.Divider() != b.Divider() {
		t.Errorf("divider = %04X, want %04X", restored.Divider(), b.Divider())
	}
}
