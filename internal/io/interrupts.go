package io

import "github.com/thelolagemann/gbcore/internal/types"

// RaiseInterrupt requests the given interrupt by setting its flag in IF.
func (b *Bus) RaiseInterrupt(interrupt byte) {
	b.data[types.IF] |= interrupt
}

// Pending returns the interrupts that are both requested and enabled.
func (b *Bus) Pending() uint8 {
	return b.data[types.IE] & b.data[types.IF] & 0x1F
}

// Requested returns the raw interrupt requests, regardless of IE.
func (b *Bus) Requested() uint8 {
	return b.data[types.IF] & 0x1F
}

// IRQVector returns the vector of the highest priority pending
// interrupt, and clears its request. Interrupts are serviced in
// the order VBlank, LCD, Timer, Serial, Joypad. A zero vector
// means nothing was pending by the time it was dispatched.
func (b *Bus) IRQVector() uint16 {
	pending := b.Pending()
	for i := uint8(0); i < 5; i++ {
		flag := uint8(1 << i)
		if pending&flag != 0 {
			b.data[types.IF] &^= flag
			return uint16(0x0040 + i*8)
		}
	}

	return 0
}
