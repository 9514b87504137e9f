package apu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/memory"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

func newTestAPU(t *testing.T, model types.Model, opts ...Opt) (*APU, *io.Bus, *scheduler.Scheduler) {
	t.Helper()

	arena := memory.NewArena()
	s := scheduler.NewScheduler()
	b := io.NewBus(arena, s, log.NewNullLogger())
	a := New(arena, b, s, log.NewNullLogger(), opts...)
	b.Setup(model)
	b.ApplyBootValues()
	return a, b, s
}

func TestAPU_BootState(t *testing.T) {
	_, b, _ := newTestAPU(t, types.DMGABC)
	if got := b.Read(types.NR52); got != 0xF1 {
		t.Errorf("NR52 = %02X, want F1", got)
	}
}

func TestAPU_RegisterMasks(t *testing.T) {
	tests := []struct {
		name  string
		addr  uint16
		write uint8
		want  uint8
	}{
		{"NR10", types.NR10, 0x00, 0x80},
		{"NR11", types.NR11, 0x00, 0x3F},
		{"NR12", types.NR12, 0xA5, 0xA5},
		{"NR13", types.NR13, 0x12, 0xFF},
		{"NR14", types.NR14, 0x40, 0xFF},
		{"NR21", types.NR21, 0x80, 0xBF},
		{"NR30", types.NR30, 0x00, 0x7F},
		{"NR31", types.NR31, 0x00, 0xFF},
		{"NR32", types.NR32, 0x20, 0xBF},
		{"NR41", types.NR41, 0x3F, 0xFF},
		{"NR43", types.NR43, 0x5A, 0x5A},
		{"NR44", types.NR44, 0x00, 0xBF},
		{"NR50", types.NR50, 0x77, 0x77},
		{"unused", 0xFF15, 0x00, 0xFF},
		{"wave ram", types.WaveRAM + 3, 0x9C, 0x9C},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, b, _ := newTestAPU(t, types.DMGABC)
			b.Write(tt.addr, tt.write)
			if got := b.Read(tt.addr); got != tt.want {
				t.Errorf("read %02X, want %02X", got, tt.want)
			}
		})
	}
}

func TestAPU_PowerOff(t *testing.T) {
	a, b, _ := newTestAPU(t, types.DMGABC)

	b.Write(types.NR52, 0x00)
	if a.Enabled() {
		t.Fatal("APU still powered")
	}
	if got := b.Read(types.NR52); got != 0x70 {
		t.Errorf("NR52 = %02X, want 70", got)
	}
	if got := b.Read(types.NR50); got != 0x00 {
		t.Errorf("NR50 = %02X, want 00", got)
	}
	if got := b.Read(types.NR10); got != 0x80 {
		t.Errorf("NR10 = %02X, want 80", got)
	}

	b.Write(types.NR50, 0x77)
	if got := b.Read(types.NR50); got != 0x00 {
		t.Errorf("NR50 written while powered off: %02X", got)
	}

	b.Write(types.NR52, 0x80)
	b.Write(types.NR50, 0x77)
	if got := b.Read(types.NR50); got != 0x77 {
		t.Errorf("NR50 = %02X after power on, want 77", got)
	}
	if got := b.Read(types.NR52); got != 0xF0 {
		t.Errorf("NR52 = %02X after power on, want F0", got)
	}
}

func TestAPU_LengthCounter(t *testing.T) {
	_, b, s := newTestAPU(t, types.DMGABC)

	b.Write(types.NR22, 0xF0)
	b.Write(types.NR21, 0x3F) // one length clock left
	b.Write(types.NR24, 0xC0) // trigger with length enabled
	if b.Read(types.NR52)&types.Bit1 == 0 {
		t.Fatal("channel 2 not playing after trigger")
	}

	s.Tick(frameSequencerPeriod)
	if b.Read(types.NR52)&types.Bit1 != 0 {
		t.Error("channel 2 still playing after its length expired")
	}
}

func TestAPU_DACOff(t *testing.T) {
	_, b, _ := newTestAPU(t, types.DMGABC)

	b.Write(types.NR12, 0x00)
	if b.Read(types.NR52)&types.Bit0 != 0 {
		t.Error("channel 1 playing with its DAC off")
	}
	b.Write(types.NR14, 0x80)
	if b.Read(types.NR52)&types.Bit0 != 0 {
		t.Error("trigger enabled channel 1 with its DAC off")
	}
}

func TestAPU_Sweep(t *testing.T) {
	a, b, s := newTestAPU(t, types.DMGABC)

	// period 1, increase, shift 1: 0x500 sweeps to 0x780, whose next
	// step overflows
	b.Write(types.NR10, 0x11)
	b.Write(types.NR13, 0x00)
	b.Write(types.NR14, 0x85)
	if !a.chan1.enabled {
		t.Fatal("channel 1 not playing")
	}

	// the sweep is clocked on frame sequencer step 2
	s.Tick(3 * frameSequencerPeriod)
	if a.chan1.enabled {
		t.Errorf("channel 1 still playing at frequency %03X", a.chan1.frequency)
	}
}

func TestAPU_SampleRate(t *testing.T) {
	a, _, s := newTestAPU(t, types.DMGABC)

	s.Tick(io.CyclesPerSecond)
	if got := a.AudioSampleCount(); got != DefaultSampleRate {
		t.Fatalf("%d samples after one second, want %d", got, DefaultSampleRate)
	}

	dst := make([]byte, 1000)
	if n := a.AudioSamples(dst); n != 1000 {
		t.Errorf("drained %d bytes, want 1000", n)
	}
	if got := a.AudioSampleCount(); got != DefaultSampleRate-500 {
		t.Errorf("%d samples after draining, want %d", got, DefaultSampleRate-500)
	}

	a.ClearAudioBuffer()
	if got := a.AudioSampleCount(); got != 0 {
		t.Errorf("%d samples after clearing", got)
	}
}

func TestAPU_RingOverflow(t *testing.T) {
	a, _, s := newTestAPU(t, types.DMGABC, WithSampleRate(48000))

	s.Tick(2 * io.CyclesPerSecond)
	capacity := memory.AudioBufferSize/2 - 1
	if got := a.AudioSampleCount(); got != capacity {
		t.Fatalf("%d samples buffered, want %d", got, capacity)
	}

	dst := make([]byte, memory.AudioBufferSize)
	if n := a.AudioSamples(dst); n != capacity*2 {
		t.Errorf("drained %d bytes, want %d", n, capacity*2)
	}
	if got := a.AudioSampleCount(); got != 0 {
		t.Errorf("%d samples left", got)
	}
}

func TestAPU_Silence(t *testing.T) {
	a, b, s := newTestAPU(t, types.DMGABC)
	b.Write(types.NR52, 0x00)
	a.ClearAudioBuffer()

	s.Tick(io.CyclesPerSecond / 10)
	dst := make([]byte, a.AudioSampleCount()*2)
	a.AudioSamples(dst)
	for i, v := range dst {
		if v != silence {
			t.Fatalf("sample byte %d = %02X, want %02X", i, v, silence)
		}
	}
}

func TestAPU_SquareWave(t *testing.T) {
	a, b, s := newTestAPU(t, types.DMGABC)
	b.Write(types.NR50, 0x77)
	b.Write(types.NR51, 0x22) // channel 2 on both sides
	b.Write(types.NR21, 0x80) // 50% duty
	b.Write(types.NR22, 0xF0)
	b.Write(types.NR23, 0x00)
	b.Write(types.NR24, 0x87) // 512 Hz
	a.ClearAudioBuffer()

	s.Tick(io.CyclesPerSecond / 10)
	dst := make([]byte, a.AudioSampleCount()*2)
	a.AudioSamples(dst)

	seen := map[uint8]int{}
	for i := 0; i < len(dst); i += 2 {
		if dst[i] != dst[i+1] {
			t.Fatalf("sample %d: left %02X right %02X", i/2, dst[i], dst[i+1])
		}
		seen[dst[i]]++
	}
	high, low := uint8(silence+15*8*127/480), uint8(silence-15*8*127/480)
	if len(seen) != 2 || seen[high] == 0 || seen[low] == 0 {
		t.Errorf("sample values %v, want only %02X and %02X", seen, high, low)
	}
}

func TestAPU_SaveLoad(t *testing.T) {
	a, b, s := newTestAPU(t, types.CGBABC)
	b.Write(types.NR22, 0xF3)
	b.Write(types.NR24, 0x87)
	s.Tick(12345)

	st := types.NewState()
	a.Save(st)

	restored, _, _ := newTestAPU(t, types.CGBABC)
	restored.Load(types.StateFromBytes(st.Bytes()))

	again := types.NewState()
	restored.Save(again)
	if diff := cmp.Diff(st.Bytes(), again.Bytes()); diff != "" {
		t.Errorf("state mismatch (-saved +restored):\n%s", diff)
	}
	if restored.AudioSampleCount() != a.AudioSampleCount() {
		t.Errorf("restored %d samples, want %d", restored.AudioSampleCount(), a.AudioSampleCount())
	}
}
