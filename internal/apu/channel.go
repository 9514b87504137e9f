package apu

import (
	"github.com/thelolagemann/gbcore/internal/types"
)

// channel holds the state shared by all four sound channels.
type channel struct {
	enabled    bool
	dacEnabled bool

	// NRx1
	lengthCounter uint16

	// NRx3/NRx4
	frequency      uint16
	frequencyTimer uint32
	lengthEnabled  bool

	// status bit in NR52
	bit uint8
}

// advanceTimer runs a frequency timer of the given period for cycles,
// returning how many times it expired.
func advanceTimer(timer *uint32, cycles, period uint32) uint32 {
	if *timer == 0 || *timer > period {
		*timer = period
	}
	if cycles < *timer {
		*timer -= cycles
		return 0
	}
	cycles -= *timer
	*timer = period - cycles%period
	return 1 + cycles/period
}

func (c *channel) lengthStep() {
	if c.lengthEnabled && c.lengthCounter > 0 {
		c.lengthCounter--
		c.enabled = c.enabled && c.lengthCounter > 0
	}
}

func (c *channel) setFrequencyLow(v uint8) {
	c.frequency = c.frequency&0x700 | uint16(v)
}

// writeNRx4 handles the length enable and trigger bits shared by every
// NRx4 register, returning true when the channel was triggered.
// maxLength is 64, or 256 for the wave channel.
func (c *channel) writeNRx4(a *APU, v uint8, maxLength uint16) bool {
	c.frequency = c.frequency&0xFF | uint16(v&0x07)<<8

	// obscure length counter behaviour (see https://gbdev.gg8.se/wiki/articles/Gameboy_sound_hardware#Obscure_Behavior)
	lengthEnabled := v&types.Bit6 != 0
	if a.firstHalfOfLengthPeriod() && !c.lengthEnabled && lengthEnabled && c.lengthCounter > 0 {
		c.lengthCounter--
		c.enabled = c.enabled && c.lengthCounter > 0
	}
	c.lengthEnabled = lengthEnabled

	if v&types.Bit7 == 0 {
		return false
	}
	c.enabled = c.dacEnabled
	if c.lengthCounter == 0 {
		c.lengthCounter = maxLength
		if lengthEnabled && a.firstHalfOfLengthPeriod() {
			c.lengthCounter--
		}
	}
	return true
}

func (c *channel) load(s *types.State) {
	c.enabled = s.ReadBool()
	c.dacEnabled = s.ReadBool()
	c.lengthCounter = s.Read16()
	c.frequency = s.Read16()
	c.frequencyTimer = s.Read32()
	c.lengthEnabled = s.ReadBool()
}

func (c *channel) save(s *types.State) {
	s.WriteBool(c.enabled)
	s.WriteBool(c.dacEnabled)
	s.Write16(c.lengthCounter)
	s.Write16(c.frequency)
	s.Write32(c.frequencyTimer)
	s.WriteBool(c.lengthEnabled)
}

// envelope is the volume envelope of the pulse and noise channels.
type envelope struct {
	// NRx2
	startingVolume  uint8
	envelopeAddMode bool
	period          uint8

	volumeEnvelopeTimer      uint8
	currentVolume            uint8
	volumeEnvelopeIsUpdating bool
}

func (e *envelope) volumeStep() {
	if e.period == 0 || e.volumeEnvelopeTimer == 0 {
		return
	}
	e.volumeEnvelopeTimer--
	if e.volumeEnvelopeTimer != 0 {
		return
	}
	e.volumeEnvelopeTimer = e.period
	switch {
	case e.envelopeAddMode && e.currentVolume < 0xF:
		e.currentVolume++
	case !e.envelopeAddMode && e.currentVolume > 0:
		e.currentVolume--
	default:
		e.volumeEnvelopeIsUpdating = false
	}
}

// setNRx2 writes the envelope register, returning whether the DAC is on.
func (e *envelope) setNRx2(v uint8, enabled bool) bool {
	addMode := v&types.Bit3 != 0

	// zombie mode glitch (see https://gbdev.gg8.se/wiki/articles/Gameboy_sound_hardware#Zombie_Mode)
	if enabled {
		if e.period == 0 && e.volumeEnvelopeIsUpdating || !e.envelopeAddMode {
			e.currentVolume++
		}
		if addMode != e.envelopeAddMode {
			e.currentVolume = 0x10 - e.currentVolume
		}
		e.currentVolume &= 0x0F
	}

	e.startingVolume = v >> 4
	e.envelopeAddMode = addMode
	e.period = v & 0x7
	return v&0xF8 != 0
}

func (e *envelope) trigger() {
	e.volumeEnvelopeTimer = e.period
	e.currentVolume = e.startingVolume
	e.volumeEnvelopeIsUpdating = true
}

func (e *envelope) load(s *types.State) {
	e.startingVolume = s.Read8()
	e.envelopeAddMode = s.ReadBool()
	e.period = s.Read8()
	e.volumeEnvelopeTimer = s.Read8()
	e.currentVolume = s.Read8()
	e.volumeEnvelopeIsUpdating = s.ReadBool()
}

func (e *envelope) save(s *types.State) {
	s.Write8(e.startingVolume)
	s.WriteBool(e.envelopeAddMode)
	s.Write8(e.period)
	s.Write8(e.volumeEnvelopeTimer)
	s.Write8(e.currentVolume)
	s.WriteBool(e.volumeEnvelopeIsUpdating)
}
