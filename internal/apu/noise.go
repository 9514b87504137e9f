package apu

import "github.com/thelolagemann/gbcore/internal/types"

var noiseDivisors = [8]uint32{8, 16, 32, 48, 64, 80, 96, 112}

// noise outputs the low bit of a linear feedback shift register.
type noise struct {
	channel
	envelope

	lfsr uint16

	// NR43
	clockShift  uint8
	widthMode   bool
	divisorCode uint8
}

func (n *noise) setup(a *APU) {
	b := a.b
	b.ReserveAddress(types.NR41, func(v byte) byte {
		if a.enabled || !b.IsGBC() {
			n.lengthCounter = 64 - uint16(v&0x3F)
		}
		return 0xFF
	})
	b.ReserveAddress(types.NR42, a.whenEnabled(types.NR42, func(v byte) byte {
		n.dacEnabled = n.setNRx2(v, n.enabled)
		if !n.dacEnabled {
			n.enabled = false
		}
		return v
	}))
	b.ReserveAddress(types.NR43, a.whenEnabled(types.NR43, func(v byte) byte {
		a.catchup()
		n.clockShift = v >> 4
		n.widthMode = v&types.Bit3 != 0
		n.divisorCode = v & 0x7
		return v
	}))
	b.ReserveAddress(types.NR44, a.whenEnabled(types.NR44, func(v byte) byte {
		a.catchup()
		if n.writeNRx4(a, v&0xC0, 64) {
			n.envelope.trigger()
			n.lfsr = 0x7FFF
			n.frequencyTimer = n.period()
		}
		return v&types.Bit6 | 0xBF
	}))
}

func (n *noise) period() uint32 {
	return noiseDivisors[n.divisorCode] << n.clockShift
}

func (n *noise) advance(cycles uint32) {
	steps := advanceTimer(&n.frequencyTimer, cycles, n.period())
	for i := uint32(0); i < steps; i++ {
		bit := (n.lfsr ^ n.lfsr>>1) & 1
		n.lfsr = n.lfsr>>1 | bit<<14
		if n.widthMode {
			n.lfsr = n.lfsr&^(1<<6) | bit<<6
		}
	}
}

func (n *noise) output() uint8 {
	if !n.enabled {
		return 0
	}
	return uint8(^n.lfsr&1) * n.currentVolume
}

func (n *noise) load(s *types.State) {
	n.channel.load(s)
	n.envelope.load(s)
	n.lfsr = s.Read16()
	n.clockShift = s.Read8()
	n.widthMode = s.ReadBool()
	n.divisorCode = s.Read8()
}

func (n *noise) save(s *types.State) {
	n.channel.save(s)
	n.envelope.save(s)
	s.Write16(n.lfsr)
	s.Write8(n.clockShift)
	s.WriteBool(n.widthMode)
	s.Write8(n.divisorCode)
}
