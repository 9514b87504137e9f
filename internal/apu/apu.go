// Package apu implements the sound hardware of the Game Boy: the
// register file of its four channels and a sample generator feeding
// the audio ring buffer of the arena.
package apu

import (
	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	// DefaultSampleRate is the rate samples are produced at unless
	// configured otherwise.
	DefaultSampleRate = 44100

	frameSequencerRate   = 512
	frameSequencerPeriod = io.CyclesPerSecond / frameSequencerRate

	// silence is the unsigned 8-bit sample midpoint.
	silence = 0x80
)

// registerMasks holds the bits of NR10-NR51 that always read as 1.
var registerMasks = [...]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // unused, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // unused, NR41-NR44
	0x00, 0x00, // NR50-NR51
}

// APU represents the GameBoy's audio processing unit. It comprises 4
// channels: 2 pulse channels, a wave channel and a noise channel. Each
// channel is controlled by a set of addresses.
//
// Channels are advanced lazily: their frequency timers catch up with
// the scheduler whenever a sample is taken or a register that affects
// timing is written.
type APU struct {
	enabled bool

	frameSequencerStep uint8

	chan1 pulse
	chan2 pulse
	chan3 wave
	chan4 noise

	lastCatchup uint64

	sampleRate      uint32
	sampleRemainder uint32

	// ring of interleaved left/right samples; head is the write
	// cursor and tail the read cursor
	buffer     []byte
	head, tail uint32

	b   *io.Bus
	s   *scheduler.Scheduler
	log log.Logger
}

// Opt configures an APU.
type Opt func(a *APU)

// WithSampleRate sets the number of stereo samples produced per
// emulated second.
func WithSampleRate(rate int) Opt {
	return func(a *APU) {
		if rate > 0 {
			a.sampleRate = uint32(rate)
		}
	}
}

// New creates an APU writing samples into the arena's audio buffer, and
// reserves its registers on the bus. The APU starts powered on, as the
// boot ROM leaves it.
func New(arena *memory.Arena, b *io.Bus, s *scheduler.Scheduler, l log.Logger, opts ...Opt) *APU {
	a := &APU{
		enabled:    true,
		sampleRate: DefaultSampleRate,
		buffer:     arena.AudioBuffer(),
		b:          b,
		s:          s,
		log:        l,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.chan1.hasSweep = true
	a.chan1.bit = types.Bit0
	a.chan2.bit = types.Bit1
	a.chan3.bit = types.Bit2
	a.chan4.bit = types.Bit3
	a.chan4.lfsr = 0x7FFF

	a.chan1.setup(a, types.NR10, types.NR11, types.NR12, types.NR13, types.NR14)
	a.chan2.setup(a, 0, types.NR21, types.NR22, types.NR23, types.NR24)
	a.chan3.setup(a)
	a.chan4.setup(a)
	a.setupControl()

	s.RegisterEvent(scheduler.APUFrameSequencer, a.frameSequencer)
	s.RegisterEvent(scheduler.APUSample, a.sample)
	s.ScheduleEvent(scheduler.APUFrameSequencer, frameSequencerPeriod)
	a.scheduleSample()
	return a
}

// whenEnabled is a helper function for the various APU registers
// that can only be written to when the APU is enabled. Otherwise,
// any writes will be ignored, and reads will return the last value
// before the APU powered down.
func (a *APU) whenEnabled(addr uint16, f io.WriteHandler) io.WriteHandler {
	return func(v byte) byte {
		if a.enabled {
			return f(v)
		}
		return a.b.Get(addr)
	}
}

func (a *APU) setupControl() {
	b := a.b
	// NR50: VIN and master volume (0-7) for each side
	b.ReserveAddress(types.NR50, a.whenEnabled(types.NR50, func(v byte) byte { return v }))
	// NR51: bits 0-3 route channels to the right, 4-7 to the left
	b.ReserveAddress(types.NR51, a.whenEnabled(types.NR51, func(v byte) byte { return v }))
	b.ReserveAddress(types.NR52, func(v byte) byte {
		switch {
		case v&types.Bit7 == 0 && a.enabled:
			a.powerOff()
		case v&types.Bit7 != 0 && !a.enabled:
			a.enabled = true
			a.frameSequencerStep = 0
		}
		return v&types.Bit7 | 0x70
	})
	b.ReserveReader(types.NR52, func() byte {
		v := uint8(0x70)
		if a.enabled {
			v |= types.Bit7
		}
		for _, c := range []*channel{&a.chan1.channel, &a.chan2.channel, &a.chan3.channel, &a.chan4.channel} {
			if c.enabled {
				v |= c.bit
			}
		}
		return v
	})
}

// powerOff clears every register from NR10 to NR51. Monochrome models
// keep their length counters.
func (a *APU) powerOff() {
	a.catchup()
	a.enabled = false

	keepLength := !a.b.IsGBC()
	lengths := [4]uint16{a.chan1.lengthCounter, a.chan2.lengthCounter, a.chan3.lengthCounter, a.chan4.lengthCounter}

	a.chan1 = pulse{hasSweep: true, channel: channel{bit: types.Bit0}}
	a.chan2 = pulse{channel: channel{bit: types.Bit1}}
	a.chan3 = wave{channel: channel{bit: types.Bit2}, b: a.b}
	a.chan4 = noise{channel: channel{bit: types.Bit3}, lfsr: 0x7FFF}
	if keepLength {
		a.chan1.lengthCounter, a.chan2.lengthCounter = lengths[0], lengths[1]
		a.chan3.lengthCounter, a.chan4.lengthCounter = lengths[2], lengths[3]
	}

	for i, mask := range registerMasks {
		a.b.Set(types.NR10+uint16(i), mask)
	}
}

// firstHalfOfLengthPeriod reports whether the next frame sequencer
// step does not clock the length counters.
func (a *APU) firstHalfOfLengthPeriod() bool {
	return a.frameSequencerStep&1 == 1
}

// frameSequencer clocks the length counters at 256 Hz, the sweep unit
// at 128 Hz and the volume envelopes at 64 Hz.
func (a *APU) frameSequencer() {
	if a.enabled {
		switch a.frameSequencerStep {
		case 0, 4:
			a.lengthStep()
		case 2, 6:
			a.lengthStep()
			a.chan1.sweepClock()
		case 7:
			a.chan1.volumeStep()
			a.chan2.volumeStep()
			a.chan4.volumeStep()
		}
	}
	a.frameSequencerStep = (a.frameSequencerStep + 1) & 7
	a.s.ScheduleEvent(scheduler.APUFrameSequencer, frameSequencerPeriod)
}

func (a *APU) lengthStep() {
	a.chan1.lengthStep()
	a.chan2.lengthStep()
	a.chan3.lengthStep()
	a.chan4.lengthStep()
}

// catchup advances the channel timers to the current cycle.
func (a *APU) catchup() {
	now := a.s.Cycle()
	if now <= a.lastCatchup {
		a.lastCatchup = now
		return
	}
	cycles := uint32(now - a.lastCatchup)
	a.lastCatchup = now

	a.chan1.advance(cycles)
	a.chan2.advance(cycles)
	a.chan3.advance(cycles)
	a.chan4.advance(cycles)
}

// scheduleSample schedules the next sample. The remainder of the
// division is carried so the long-run rate is exact.
func (a *APU) scheduleSample() {
	a.sampleRemainder += io.CyclesPerSecond
	period := a.sampleRemainder / a.sampleRate
	a.sampleRemainder %= a.sampleRate
	a.s.ScheduleEvent(scheduler.APUSample, uint64(period))
}

func (a *APU) sample() {
	a.catchup()
	left, right := a.mix()
	a.push(left, right)
	a.scheduleSample()
}

// mix combines the channel outputs through NR51 routing and NR50
// master volume into unsigned 8-bit samples.
func (a *APU) mix() (left, right uint8) {
	if !a.enabled {
		return silence, silence
	}
	nr50, nr51 := a.b.Get(types.NR50), a.b.Get(types.NR51)

	outputs := [4]struct {
		dac   bool
		value uint8
	}{
		{a.chan1.dacEnabled, a.chan1.output()},
		{a.chan2.dacEnabled, a.chan2.output()},
		{a.chan3.dacEnabled, a.chan3.output()},
		{a.chan4.dacEnabled, a.chan4.output()},
	}

	var l, r int
	for i, o := range outputs {
		if !o.dac {
			continue
		}
		// each DAC maps 0-15 onto -15..15
		v := int(o.value)*2 - 15
		if nr51&(1<<i) != 0 {
			r += v
		}
		if nr51&(1<<(i+4)) != 0 {
			l += v
		}
	}
	l *= int(nr50>>4&0x7) + 1
	r *= int(nr50&0x7) + 1

	// full scale is 4 channels * 15 * volume 8
	const fullScale = 4 * 15 * 8
	return uint8(silence + l*127/fullScale), uint8(silence + r*127/fullScale)
}

// push appends a stereo sample to the ring, dropping the oldest sample
// when the ring is full.
func (a *APU) push(left, right uint8) {
	size := uint32(len(a.buffer))
	a.buffer[a.head] = left
	a.buffer[a.head+1] = right
	a.head = (a.head + 2) % size
	if a.head == a.tail {
		a.tail = (a.tail + 2) % size
	}
}

// AudioSampleCount returns the number of stereo samples waiting to be
// read.
func (a *APU) AudioSampleCount() int {
	size := uint32(len(a.buffer))
	return int((a.head + size - a.tail) % size / 2)
}

// AudioSamples drains up to len(dst)/2 stereo samples into dst as
// interleaved left/right unsigned bytes, returning the number of
// bytes written.
func (a *APU) AudioSamples(dst []byte) int {
	n := min(len(dst)/2, a.AudioSampleCount()) * 2
	size := uint32(len(a.buffer))

	first := copy(dst[:n], a.buffer[a.tail:])
	copy(dst[first:n], a.buffer)
	a.tail = (a.tail + uint32(n)) % size
	return n
}

// ClearAudioBuffer discards every buffered sample.
func (a *APU) ClearAudioBuffer() {
	a.head, a.tail = 0, 0
}

// SampleRate returns the configured sample rate.
func (a *APU) SampleRate() int {
	return int(a.sampleRate)
}

// Enabled reports whether the APU is powered on.
func (a *APU) Enabled() bool {
	return a.enabled
}

var _ types.Stater = (*APU)(nil)

func (a *APU) Load(s *types.State) {
	a.enabled = s.ReadBool()
	a.frameSequencerStep = s.Read8() & 7
	a.chan1.load(s)
	a.chan2.load(s)
	a.chan3.load(s)
	a.chan4.load(s)
	a.lastCatchup = s.Read64()
	a.sampleRemainder = s.Read32() % a.sampleRate

	size := uint32(len(a.buffer))
	a.head = s.Read32() % size &^ 1
	a.tail = s.Read32() % size &^ 1
}

func (a *APU) Save(s *types.State) {
	s.WriteBool(a.enabled)
	s.Write8(a.frameSequencerStep)
	a.chan1.save(s)
	a.chan2.save(s)
	a.chan3.save(s)
	a.chan4.save(s)
	s.Write64(a.lastCatchup)
	s.Write32(a.sampleRemainder)
	s.Write32(a.head)
	s.Write32(a.tail)
}
