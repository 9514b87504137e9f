package io

import "github.com/thelolagemann/gbcore/internal/types"

// joypad holds the host supplied button state and exposes it
// through P1.
type joypad struct {
	b       *Bus
	pressed types.ButtonMask
}

func (j *joypad) setup() {
	j.b.ReserveAddress(types.P1, func(v byte) byte {
		return j.value(v)
	})
}

// value returns P1 for the given select bits. Bits read 0 for
// pressed buttons in a selected group.
func (j *joypad) value(sel byte) byte {
	sel &= types.Bit4 | types.Bit5
	low := byte(0x0F)
	if sel&types.Bit4 == 0 {
		low &^= j.pressed >> 4
	}
	if sel&types.Bit5 == 0 {
		low &^= j.pressed & 0x0F
	}
	return 0xC0 | sel | low
}

// SetInputState replaces the state of every button at once. Any
// newly pressed button requests the joypad interrupt.
func (b *Bus) SetInputState(mask types.ButtonMask) {
	newlyPressed := mask &^ b.joypad.pressed
	b.joypad.pressed = mask
	b.data[types.P1] = b.joypad.value(b.data[types.P1])

	if newlyPressed != 0 {
		b.RaiseInterrupt(types.JoypadINT)
	}
}

// InputState returns the current button mask.
func (b *Bus) InputState() types.ButtonMask {
	return b.joypad.pressed
}

func (j *joypad) Load(s *types.State) {
	j.pressed = s.Read8()
}

func (j *joypad) Save(s *types.State) {
	s.Write8(j.pressed)
}
