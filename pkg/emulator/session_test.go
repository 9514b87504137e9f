package emulator

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/cpu"
	"github.com/thelolagemann/gbcore/internal/gameboy"
	"github.com/thelolagemann/gbcore/internal/romtest"
	"github.com/thelolagemann/gbcore/pkg/cheats"
	"github.com/thelolagemann/gbcore/pkg/storage"
)

// counter increments a byte of cartridge RAM forever.
var counter = []byte{
	0x3E, 0x0A, //       LD A,0x0A
	0xEA, 0x00, 0x00, // LD (0x0000),A  enable RAM
	0x21, 0x00, 0xA0, // LD HL,0xA000
	0x34,       //       INC (HL)
	0x18, 0xFD, //       JR -3
}

func batteryROM() []byte {
	return romtest.Build(romtest.Options{Title: "COUNTER", Type: cartridge.MBC1RAMBATT, RAMSizeCode: 2, Program: counter})
}

func newSession(t *testing.T, store storage.Store, rom []byte) *Session {
	t.Helper()
	s := NewSession(store)
	require.NoError(t, s.LoadROM(context.Background(), rom))
	return s
}

func TestSession_NoCartridge(t *testing.T) {
	ctx := context.Background()
	s := NewSession(storage.NewMemoryStore())

	assert.Equal(t, Idle, s.Status())
	_, err := s.SaveState(ctx)
	assert.ErrorIs(t, err, gameboy.ErrNoCartridge)
	assert.ErrorIs(t, s.LoadState(ctx, 0), gameboy.ErrNoCartridge)
	assert.ErrorIs(t, s.Run(ctx, 1, nil), gameboy.ErrNoCartridge)
	_, err = s.Header()
	assert.ErrorIs(t, err, gameboy.ErrNoCartridge)
	assert.NoError(t, s.Close())
}

func TestSession_States(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, storage.NewMemoryStore(), batteryROM())
	defer s.Close()

	assert.ErrorIs(t, s.LoadState(ctx, 0), storage.ErrNoState)

	var saved []byte
	require.NoError(t, s.Run(ctx, 3, nil))
	info, err := s.SaveState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Index)
	require.NoError(t, s.Run(ctx, 1, func(f Frame) error {
		saved = bytes.Clone(f.Pixels)
		assert.Equal(t, uint64(4), f.Index)
		return nil
	}))

	require.NoError(t, s.Run(ctx, 10, nil))
	require.NoError(t, s.LoadState(ctx, 0))
	require.NoError(t, s.Run(ctx, 1, func(f Frame) error {
		assert.Equal(t, saved, f.Pixels)
		assert.Equal(t, uint64(4), f.Index)
		return nil
	}))

	assert.ErrorIs(t, s.LoadState(ctx, 9), storage.ErrNoState)
}

func TestSession_Battery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	rom := batteryROM()

	s := newSession(t, store, rom)
	require.NoError(t, s.Run(ctx, 2, nil))
	s.mu.Lock()
	want := s.gb.BatteryRAM()
	s.mu.Unlock()
	require.NoError(t, s.Close())

	h, err := cartridge.NewHeader(rom[cartridge.HeaderStart:])
	require.NoError(t, err)
	ram, err := store.LoadBattery(ctx, h.Key())
	require.NoError(t, err)
	require.Len(t, ram, 0x2000)
	assert.Equal(t, want, ram)

	// a new session picks up where the battery left off
	s = newSession(t, store, rom)
	defer s.Close()
	s.mu.Lock()
	got := s.gb.BatteryRAM()
	s.mu.Unlock()
	assert.Equal(t, ram, got)
}

func TestSession_Crash(t *testing.T) {
	s := newSession(t, storage.NewMemoryStore(), romtest.Build(romtest.Options{Title: "CRASH", Program: []byte{0xED}}))
	defer s.Close()

	err := s.Run(context.Background(), 5, nil)
	var crash *CrashError
	require.ErrorAs(t, err, &crash)
	assert.Equal(t, uint16(romtest.ProgramStart), crash.PC)
	assert.Equal(t, uint8(0xED), crash.Opcode)
	assert.ErrorIs(t, err, cpu.ErrIllegalOpcode)
	assert.Equal(t, Crashed, s.Status())
}

func TestSession_Cancel(t *testing.T) {
	s := newSession(t, storage.NewMemoryStore(), romtest.Build(romtest.Options{Title: "LOOP"}))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	err := s.Run(ctx, 0, func(Frame) error {
		frames++
		if frames == 5 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, frames)
}

func TestSession_Pause(t *testing.T) {
	s := newSession(t, storage.NewMemoryStore(), romtest.Build(romtest.Options{Title: "PAUSE"}))
	defer s.Close()

	s.Pause()
	assert.Equal(t, Paused, s.Status())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), 2, nil) }()

	select {
	case err := <-done:
		t.Fatalf("Run returned while paused: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	s.Resume()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not resume")
	}
	assert.Equal(t, Running, s.Status())
}

func TestSession_Audio(t *testing.T) {
	s := newSession(t, storage.NewMemoryStore(), romtest.Build(romtest.Options{Title: "AUDIO"}))
	defer s.Close()

	total := 0
	require.NoError(t, s.Run(context.Background(), 60, func(f Frame) error {
		total += len(f.Audio)
		return nil
	}))
	// about one second of stereo samples
	assert.InDelta(t, 2*44100, total, 2*1000)
}

func TestSession_Execute(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, storage.NewMemoryStore(), romtest.Build(romtest.Options{Title: "COMMANDS"}))
	defer s.Close()

	r := s.Execute(ctx, CommandPacket{Command: CommandSaveState})
	require.NoError(t, r.Error)
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(r.Data))

	r = s.Execute(ctx, CommandPacket{Command: CommandLoadState, Data: binary.BigEndian.AppendUint32(nil, 1)})
	assert.NoError(t, r.Error)
	r = s.Execute(ctx, CommandPacket{Command: CommandLoadState, Data: binary.BigEndian.AppendUint32(nil, 2)})
	assert.ErrorIs(t, r.Error, storage.ErrNoState)

	require.NoError(t, s.Execute(ctx, CommandPacket{Command: CommandInput, Data: []byte{0x81}}).Error)
	assert.Equal(t, uint32(0x81), s.input.Load())
	assert.Error(t, s.Execute(ctx, CommandPacket{Command: CommandInput}).Error)

	s.Execute(ctx, CommandPacket{Command: CommandPause})
	assert.Equal(t, Paused, s.Status())
	s.Execute(ctx, CommandPacket{Command: CommandResume})
	assert.Equal(t, Running, s.Status())

	assert.ErrorIs(t, s.Execute(ctx, CommandPacket{Command: 200}).Error, ErrUnknownCommand)
}

func TestSession_LoadFile(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(romtest.Build(romtest.Options{Title: "ZIPPED"}))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	path := filepath.Join(t.TempDir(), "zipped.gb.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	s := NewSession(storage.NewMemoryStore())
	defer s.Close()
	require.NoError(t, s.Load(context.Background(), path))
	h, err := s.Header()
	require.NoError(t, err)
	assert.Equal(t, "ZIPPED", h.Title)

	assert.Error(t, s.Load(context.Background(), filepath.Join(t.TempDir(), "missing.gb")))
}

func TestSession_Cheats(t *testing.T) {
	genie := cheats.GameGenieCode{NewData: 0x3C, Address: romtest.ProgramStart, OldData: 0x00}
	list, err := cheats.Parse(strings.NewReader("# test\n004200C0\n" + genie.String() + "\n"))
	require.NoError(t, err)

	rom := romtest.Build(romtest.Options{Title: "CHEATS", Program: []byte{0x00, 0x18, 0xFD}})
	s := NewSession(storage.NewMemoryStore(), WithCheats(list))
	defer s.Close()
	require.NoError(t, s.LoadROM(context.Background(), rom))
	assert.Equal(t, byte(0x00), rom[romtest.ProgramStart], "caller's ROM is left alone")

	require.NoError(t, s.Run(context.Background(), 1, nil))
	s.mu.Lock()
	assert.Equal(t, uint8(0x3C), s.gb.ReadAddress(romtest.ProgramStart))
	assert.Equal(t, uint8(0x42), s.gb.ReadAddress(0xC000))
	s.mu.Unlock()

	assert.True(t, s.SetCheat("test", false))
	assert.False(t, s.SetCheat("missing", false))
}
