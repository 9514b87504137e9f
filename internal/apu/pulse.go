package apu

import "github.com/thelolagemann/gbcore/internal/types"

var dutyTable = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}

// pulse is a square wave channel. Channel 1 additionally has a
// frequency sweep unit.
type pulse struct {
	channel
	envelope

	// NRx1
	duty         uint8
	dutyPosition uint8

	// NR10
	hasSweep          bool
	sweepPeriod       uint8
	negate            bool
	shift             uint8
	sweepTimer        uint8
	frequencyShadow   uint16
	sweepEnabled      bool
	negateHasHappened bool
}

func (p *pulse) setup(a *APU, nr0, nr1, nr2, nr3, nr4 uint16) {
	b := a.b
	if p.hasSweep {
		b.ReserveAddress(nr0, a.whenEnabled(nr0, func(v byte) byte {
			p.sweepPeriod = v >> 4 & 0x7
			p.negate = v&types.Bit3 != 0
			p.shift = v & 0x7
			// leaving negate mode after a negated calculation disables the channel
			if !p.negate && p.negateHasHappened {
				p.enabled = false
			}
			return v | 0x80
		}))
	}
	b.ReserveAddress(nr1, func(v byte) byte {
		if !a.enabled {
			// length stays writable while powered off on monochrome models
			if !b.IsGBC() {
				p.lengthCounter = 64 - uint16(v&0x3F)
			}
			return b.Get(nr1)
		}
		p.duty = v >> 6
		p.lengthCounter = 64 - uint16(v&0x3F)
		return p.duty<<6 | 0x3F
	})
	b.ReserveAddress(nr2, a.whenEnabled(nr2, func(v byte) byte {
		p.dacEnabled = p.setNRx2(v, p.enabled)
		if !p.dacEnabled {
			p.enabled = false
		}
		return v
	}))
	b.ReserveAddress(nr3, a.whenEnabled(nr3, func(v byte) byte {
		a.catchup()
		p.setFrequencyLow(v)
		return 0xFF
	}))
	b.ReserveAddress(nr4, a.whenEnabled(nr4, func(v byte) byte {
		a.catchup()
		if p.writeNRx4(a, v, 64) {
			p.envelope.trigger()
			p.frequencyTimer = p.period()
			if p.hasSweep {
				p.triggerSweep()
			}
		}
		return v&types.Bit6 | 0xBF
	}))
}

func (p *pulse) period() uint32 {
	return uint32(2048-p.frequency) * 4
}

func (p *pulse) advance(cycles uint32) {
	steps := advanceTimer(&p.frequencyTimer, cycles, p.period())
	p.dutyPosition = uint8((uint32(p.dutyPosition) + steps) & 7)
}

// output returns the current 4-bit DAC input.
func (p *pulse) output() uint8 {
	if !p.enabled {
		return 0
	}
	return dutyTable[p.duty][p.dutyPosition] * p.currentVolume
}

func (p *pulse) triggerSweep() {
	p.frequencyShadow = p.frequency
	p.sweepTimer = p.sweepPeriod
	if p.sweepTimer == 0 {
		p.sweepTimer = 8
	}
	p.sweepEnabled = p.sweepPeriod > 0 || p.shift > 0
	p.negateHasHappened = false
	if p.shift > 0 {
		p.frequencyCalculation()
	}
}

func (p *pulse) sweepClock() {
	if p.sweepTimer > 0 {
		p.sweepTimer--
	}
	if p.sweepTimer != 0 {
		return
	}
	p.sweepTimer = p.sweepPeriod
	if p.sweepTimer == 0 {
		p.sweepTimer = 8
	}
	if p.sweepEnabled && p.sweepPeriod > 0 {
		calculated := p.frequencyCalculation()
		if calculated <= 0x07FF && p.shift > 0 {
			p.frequencyShadow = calculated
			p.frequency = calculated
			p.frequencyCalculation()
		}
	}
}

// frequencyCalculation computes the next sweep frequency, disabling the
// channel when it overflows 11 bits.
func (p *pulse) frequencyCalculation() uint16 {
	delta := p.frequencyShadow >> p.shift
	calculated := p.frequencyShadow + delta
	if p.negate {
		calculated = p.frequencyShadow - delta
		p.negateHasHappened = true
	}
	if calculated > 0x07FF {
		p.enabled = false
	}
	return calculated
}

func (p *pulse) load(s *types.State) {
	p.channel.load(s)
	p.envelope.load(s)
	p.duty = s.Read8()
	p.dutyPosition = s.Read8()
	p.sweepPeriod = s.Read8()
	p.negate = s.ReadBool()
	p.shift = s.Read8()
	p.sweepTimer = s.Read8()
	p.frequencyShadow = s.Read16()
	p.sweepEnabled = s.ReadBool()
	p.negateHasHappened = s.ReadBool()
}

func (p *pulse) save(s *types.State) {
	p.channel.save(s)
	p.envelope.save(s)
	s.Write8(p.duty)
	s.Write8(p.dutyPosition)
	s.Write8(p.sweepPeriod)
	s.WriteBool(p.negate)
	s.Write8(p.shift)
	s.Write8(p.sweepTimer)
	s.Write16(p.frequencyShadow)
	s.WriteBool(p.sweepEnabled)
	s.WriteBool(p.negateHasHappened)
}
