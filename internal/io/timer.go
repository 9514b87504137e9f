package io

import "github.com/thelolagemann/gbcore/internal/types"

// timer implements DIV, TIMA, TMA and TAC. TIMA is clocked by the
// falling edge of a divider bit selected by TAC, so writing DIV or
// TAC can itself increment TIMA.
type timer struct {
	b *Bus

	divider     uint16
	lastSignal  bool
	overflowing bool // TIMA overflowed during the last M-cycle, reload pending
	reloading   bool // TIMA was reloaded this M-cycle, writes to it are ignored
}

var timerBits = [4]uint16{1 << 9, 1 << 3, 1 << 5, 1 << 7}

func (t *timer) setup(divider uint16) {
	t.divider = divider
	t.b.data[types.DIV] = uint8(divider >> 8)

	t.b.ReserveAddress(types.DIV, func(byte) byte {
		t.ResetDivider()
		return 0
	})
	t.b.ReserveAddress(types.TIMA, func(v byte) byte {
		if t.reloading {
			return t.b.data[types.TIMA]
		}
		t.overflowing = false
		return v
	})
	t.b.ReserveAddress(types.TMA, func(v byte) byte {
		if t.reloading {
			t.b.data[types.TIMA] = v
		}
		return v
	})
	t.b.ReserveAddress(types.TAC, func(v byte) byte {
		t.b.data[types.TAC] = v | 0xF8
		t.edge()
		return v | 0xF8
	})
}

// ResetDivider clears the system divider, as a write to DIV or
// executing STOP does.
func (t *timer) ResetDivider() {
	t.divider = 0
	t.b.data[types.DIV] = 0
	t.edge()
}

// signal returns the timer input: the selected divider bit, gated by
// the enable bit of TAC.
func (t *timer) signal() bool {
	tac := t.b.data[types.TAC]
	return tac&types.Bit2 != 0 && t.divider&timerBits[tac&3] != 0
}

// edge increments TIMA on a falling edge of the timer input.
func (t *timer) edge() {
	signal := t.signal()
	if t.lastSignal && !signal {
		t.b.data[types.TIMA]++
		if t.b.data[types.TIMA] == 0 {
			t.overflowing = true
		}
	}
	t.lastSignal = signal
}

// step advances the timer by one M-cycle.
func (t *timer) step() {
	t.reloading = false
	if t.overflowing {
		// TIMA reads 0 for one M-cycle before the reload
		t.b.data[types.TIMA] = t.b.data[types.TMA]
		t.b.RaiseInterrupt(types.TimerINT)
		t.overflowing = false
		t.reloading = true
	}

	t.divider += 4
	t.b.data[types.DIV] = uint8(t.divider >> 8)
	t.edge()
}

// TickTimer advances the timer by the given number of CPU cycles.
func (b *Bus) TickTimer(cycles int) {
	for ; cycles > 0; cycles -= 4 {
		b.timer.step()
	}
}

// ResetDivider clears the system divider.
func (b *Bus) ResetDivider() {
	b.timer.ResetDivider()
}

// Divider returns the full 16-bit system divider.
func (b *Bus) Divider() uint16 {
	return b.timer.divider
}

func (t *timer) Load(s *types.State) {
	t.divider = s.Read16()
	t.lastSignal = s.ReadBool()
	t.overflowing = s.ReadBool()
	t.reloading = s.ReadBool()
}

func (t *timer) Save(s *types.State) {
	s.Write16(t.divider)
	s.WriteBool(t.lastSignal)
	s.WriteBool(t.overflowing)
	s.WriteBool(t.reloading)
}
