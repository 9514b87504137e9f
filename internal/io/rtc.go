package io

import "github.com/thelolagemann/gbcore/internal/types"

// rtc is the MBC3 real time clock. It counts emulated time, so a
// restored save state resumes with the clock it was saved with.
type rtc struct {
	s, m, h, dl, dh uint8
	latched         [5]uint8
	latchValue      uint8
	lastUpdate      uint64
}

// halted reports whether bit 6 of DH stopped the clock.
func (r *rtc) halted() bool {
	return r.dh&types.Bit6 != 0
}

// advance moves the clock forward to the master clock cycle now.
func (r *rtc) advance(now uint64) {
	if now < r.lastUpdate || r.halted() {
		r.lastUpdate = now
		return
	}
	elapsed := (now - r.lastUpdate) / CyclesPerSecond
	if elapsed == 0 {
		return
	}
	r.lastUpdate += elapsed * CyclesPerSecond

	seconds := uint64(r.s) + elapsed
	minutes := uint64(r.m) + seconds/60
	hours := uint64(r.h) + minutes/60
	days := uint64(r.dl) | uint64(r.dh&types.Bit0)<<8 + hours/24
	if days >= 512 {
		days %= 512
		r.dh |= types.Bit7 // day counter carry
	}

	r.s = uint8(seconds % 60)
	r.m = uint8(minutes % 60)
	r.h = uint8(hours % 24)
	r.dl = uint8(days)
	r.dh = r.dh&^types.Bit0 | uint8(days>>8)
}

// latch copies the live registers into the ones visible to the CPU.
func (r *rtc) latch() {
	r.latched = [5]uint8{r.s, r.m, r.h, r.dl, r.dh}
}

func (r *rtc) read(register uint8) byte {
	if register < 0x08 || register > 0x0C {
		return 0xFF
	}
	return r.latched[register-0x08]
}

func (r *rtc) write(register uint8, value byte) {
	switch register {
	case 0x08:
		r.s = value & 0x3F
	case 0x09:
		r.m = value & 0x3F
	case 0x0A:
		r.h = value & 0x1F
	case 0x0B:
		r.dl = value
	case 0x0C:
		r.dh = value & 0xC1
	}
}

func (r *rtc) Load(s *types.State) {
	r.s = s.Read8()
	r.m = s.Read8()
	r.h = s.Read8()
	r.dl = s.Read8()
	r.dh = s.Read8()
	s.ReadData(r.latched[:])
	r.latchValue = s.Read8()
	r.lastUpdate = s.Read64()
}

func (r *rtc) Save(s *types.State) {
	s.Write8(r.s)
	s.Write8(r.m)
	s.Write8(r.h)
	s.Write8(r.dl)
	s.Write8(r.dh)
	s.WriteData(r.latched[:])
	s.Write8(r.latchValue)
	s.Write64(r.lastUpdate)
}
