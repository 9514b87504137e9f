package apu

import "github.com/thelolagemann/gbcore/internal/types"

// wave plays 32 4-bit samples from wave RAM.
type wave struct {
	channel

	position     uint8
	sampleBuffer uint8
	volumeCode   uint8

	b waveRAM
}

// waveRAM reads the wave pattern bytes.
type waveRAM interface {
	Get(addr uint16) byte
}

var volumeShift = [4]uint8{4, 0, 1, 2}

func (w *wave) setup(a *APU) {
	b := a.b
	w.b = b
	b.ReserveAddress(types.NR30, a.whenEnabled(types.NR30, func(v byte) byte {
		w.dacEnabled = v&types.Bit7 != 0
		if !w.dacEnabled {
			w.enabled = false
		}
		return v&types.Bit7 | 0x7F
	}))
	b.ReserveAddress(types.NR31, func(v byte) byte {
		if a.enabled || !b.IsGBC() {
			w.lengthCounter = 256 - uint16(v)
		}
		return 0xFF
	})
	b.ReserveAddress(types.NR32, a.whenEnabled(types.NR32, func(v byte) byte {
		w.volumeCode = v >> 5 & 0x3
		return w.volumeCode<<5 | 0x9F
	}))
	b.ReserveAddress(types.NR33, a.whenEnabled(types.NR33, func(v byte) byte {
		a.catchup()
		w.setFrequencyLow(v)
		return 0xFF
	}))
	b.ReserveAddress(types.NR34, a.whenEnabled(types.NR34, func(v byte) byte {
		a.catchup()
		if w.writeNRx4(a, v, 256) {
			w.position = 0
			// the first sample is fetched after a short delay
			w.frequencyTimer = w.period() + 6
		}
		return v&types.Bit6 | 0xBF
	}))
	for i := uint16(0); i < 16; i++ {
		b.ReserveAddress(types.WaveRAM+i, func(v byte) byte { return v })
	}
}

func (w *wave) period() uint32 {
	return uint32(2048-w.frequency) * 2
}

func (w *wave) advance(cycles uint32) {
	steps := advanceTimer(&w.frequencyTimer, cycles, w.period())
	if steps == 0 || !w.enabled {
		return
	}
	w.position = uint8((uint32(w.position) + steps) % 32)
	w.sampleBuffer = w.b.Get(types.WaveRAM + uint16(w.position/2))
}

func (w *wave) output() uint8 {
	if !w.enabled {
		return 0
	}
	sample := w.sampleBuffer >> 4
	if w.position&1 == 1 {
		sample = w.sampleBuffer & 0x0F
	}
	return sample >> volumeShift[w.volumeCode]
}

func (w *wave) load(s *types.State) {
	w.channel.load(s)
	w.position = s.Read8()
	w.sampleBuffer = s.Read8()
	w.volumeCode = s.Read8()
}

func (w *wave) save(s *types.State) {
	w.channel.save(s)
	s.Write8(w.position)
	s.Write8(w.sampleBuffer)
	s.Write8(w.volumeCode)
}
