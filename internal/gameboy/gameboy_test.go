package gameboy

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/cpu"
	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/romtest"
	"github.com/thelolagemann/gbcore/internal/types"
	"golang.org/x/sync/errgroup"
)

// scrollProgram fills tile 0 with a striped pattern, then keeps
// incrementing SCX so every frame depends on exact timing.
var scrollProgram = []byte{
	0x21, 0x00, 0x80, // LD HL,0x8000
	0x3E, 0x55, //       LD A,0x55
	0x06, 0x10, //       LD B,16
	0x22,       //       LD (HL+),A
	0x05,       //       DEC B
	0x20, 0xFC, //       JR NZ,-4
	0x3C,       //       INC A
	0xE0, 0x43, //       LDH (SCX),A
	0x18, 0xFB, //       JR -5
}

func newTestGameBoy(t *testing.T, o romtest.Options, opts ...Opt) *GameBoy {
	t.Helper()
	g := New(opts...)
	if err := g.LoadROM(romtest.Build(o)); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	return g
}

func runFrames(t *testing.T, g *GameBoy, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if status := g.RunFrame(); status != StatusOK {
			t.Fatalf("frame %d: status %s, %+v", i, status, g.Diagnostics())
		}
	}
}

func TestGameBoy_TestROM(t *testing.T) {
	opts := romtest.Options{Title: "TESTROM", Program: scrollProgram}
	g := newTestGameBoy(t, opts)

	header, err := g.ParseHeader()
	if err != nil {
		t.Fatal(err)
	}
	title := header[0x134-cartridge.HeaderStart : 0x144-cartridge.HeaderStart]
	want := append([]byte("TESTROM"), make([]byte, 9)...)
	if diff := cmp.Diff(want, title); diff != "" {
		t.Errorf("title bytes (-want +got):\n%s", diff)
	}

	frame := g.Frame()
	for i := range frame {
		frame[i] = 0xAB
	}
	runFrames(t, g, 1)

	shades := make(map[[3]uint8]bool)
	for _, c := range ppu.DefaultPalette {
		shades[c] = true
	}
	for i := 0; i < len(frame); i += 3 {
		if c := [3]uint8{frame[i], frame[i+1], frame[i+2]}; !shades[c] {
			t.Fatalf("pixel %d = %v, not a palette colour", i/3, c)
		}
	}

	// capture and restore must not disturb the next frame
	blob, err := g.CaptureState()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.RestoreState(blob); err != nil {
		t.Fatal(err)
	}
	runFrames(t, g, 1)

	reference := newTestGameBoy(t, opts)
	runFrames(t, reference, 2)
	if !bytes.Equal(g.Frame(), reference.Frame()) {
		t.Error("frame after restore differs from uninterrupted run")
	}
	if g.FrameCount() != 2 {
		t.Errorf("FrameCount = %d, want 2", g.FrameCount())
	}
}

func TestGameBoy_StateRoundTrip(t *testing.T) {
	opts := romtest.Options{Title: "ROUNDTRIP", Program: scrollProgram}
	g := newTestGameBoy(t, opts)
	runFrames(t, g, 3)

	blob, err := g.CaptureState()
	if err != nil {
		t.Fatal(err)
	}
	runFrames(t, g, 5)
	later := bytes.Clone(g.Frame())

	if err := g.RestoreState(blob); err != nil {
		t.Fatal(err)
	}
	again, err := g.CaptureState()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob, again) {
		t.Fatal("restored state captures differently")
	}

	runFrames(t, g, 5)
	if !bytes.Equal(later, g.Frame()) {
		t.Error("replay after restore diverged")
	}
}

func TestGameBoy_RestoreMidFrameIntoFresh(t *testing.T) {
	opts := romtest.Options{Title: "MIDFRAME", Program: scrollProgram}
	g := newTestGameBoy(t, opts)
	runFrames(t, g, 2)
	for i := 0; i < 3000; i++ {
		if status := g.Step(); status != StatusOK {
			t.Fatalf("step %d: status %s", i, status)
		}
	}

	blob, err := g.CaptureState()
	if err != nil {
		t.Fatal(err)
	}
	fresh := newTestGameBoy(t, opts)
	if err := fresh.RestoreState(blob); err != nil {
		t.Fatal(err)
	}

	runFrames(t, g, 1)
	runFrames(t, fresh, 1)
	if !bytes.Equal(g.Frame(), fresh.Frame()) {
		t.Error("frame after restoring a mid-frame state differs")
	}
	if g.FrameCount() != fresh.FrameCount() {
		t.Errorf("FrameCount = %d, want %d", fresh.FrameCount(), g.FrameCount())
	}
}

func TestGameBoy_Deterministic(t *testing.T) {
	opts := romtest.Options{Title: "DETERMINISM", Program: scrollProgram}
	inputs := []types.ButtonMask{0, types.ButtonA, types.ButtonA | types.ButtonRight, 0, types.ButtonStart}

	const instances = 4
	var (
		frames [instances][]byte
		states [instances][]byte
		eg     errgroup.Group
	)
	for i := 0; i < instances; i++ {
		i := i
		eg.Go(func() error {
			g := New()
			if err := g.LoadROM(romtest.Build(opts)); err != nil {
				return err
			}
			for n := 0; n < 20; n++ {
				g.SetInputState(inputs[n%len(inputs)])
				if status := g.RunFrame(); status != StatusOK {
					return fmt.Errorf("instance %d frame %d: %s", i, n, status)
				}
			}
			state, err := g.CaptureState()
			if err != nil {
				return err
			}
			frames[i], states[i] = bytes.Clone(g.Frame()), state
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	for i := 1; i < instances; i++ {
		if !bytes.Equal(frames[0], frames[i]) {
			t.Errorf("instance %d frame differs", i)
		}
		if !bytes.Equal(states[0], states[i]) {
			t.Errorf("instance %d state differs", i)
		}
	}
}

func TestGameBoy_RestoreRejects(t *testing.T) {
	g := newTestGameBoy(t, romtest.Options{Title: "FIRST", Program: scrollProgram})
	runFrames(t, g, 1)
	blob, err := g.CaptureState()
	if err != nil {
		t.Fatal(err)
	}

	other := newTestGameBoy(t, romtest.Options{Title: "SECOND"})
	foreign, err := other.CaptureState()
	if err != nil {
		t.Fatal(err)
	}

	corrupt := bytes.Clone(blob)
	corrupt[len(corrupt)/2] ^= 0xFF

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"empty", nil, ErrMalformedState},
		{"truncated", blob[:len(blob)-100], ErrMalformedState},
		{"corrupt", corrupt, ErrMalformedState},
		{"other cartridge", foreign, ErrCartridgeMismatch},
	}

	runFrames(t, g, 2)
	before, err := g.CaptureState()
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.RestoreState(tt.blob); !errors.Is(err, tt.want) {
				t.Fatalf("RestoreState = %v, want %v", err, tt.want)
			}
			after, err := g.CaptureState()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(before, after) {
				t.Error("rejected blob modified the machine")
			}
		})
	}
}

func TestGameBoy_RestoreModelMismatch(t *testing.T) {
	opts := romtest.Options{Title: "MODELS", CGBFlag: 0x80}
	cgb := newTestGameBoy(t, opts)
	if cgb.Model() != types.CGBABC {
		t.Fatalf("Model = %s, want %s", cgb.Model(), types.CGBABC)
	}
	blob, err := cgb.CaptureState()
	if err != nil {
		t.Fatal(err)
	}

	dmg := newTestGameBoy(t, opts, WithModel(types.DMGABC))
	if err := dmg.RestoreState(blob); !errors.Is(err, ErrMalformedState) {
		t.Errorf("RestoreState = %v, want %v", err, ErrMalformedState)
	}
}

func TestGameBoy_Crash(t *testing.T) {
	g := newTestGameBoy(t, romtest.Options{Title: "CRASH", Program: []byte{0x00, 0xD3}})

	if status := g.RunFrame(); status != StatusCrashed {
		t.Fatalf("RunFrame = %s, want crashed", status)
	}
	d := g.Diagnostics()
	if d.PC != romtest.ProgramStart+1 || d.Opcode != 0xD3 {
		t.Errorf("Diagnostics = PC %04X opcode %02X, want %04X D3", d.PC, d.Opcode, romtest.ProgramStart+1)
	}
	if !errors.Is(d.Err, cpu.ErrIllegalOpcode) {
		t.Errorf("Diagnostics.Err = %v, want %v", d.Err, cpu.ErrIllegalOpcode)
	}
	if status := g.Step(); status != StatusCrashed {
		t.Errorf("Step after crash = %s", status)
	}
}

func TestGameBoy_NoCartridge(t *testing.T) {
	g := New()
	if status := g.Step(); status != StatusCrashed {
		t.Errorf("Step = %s, want crashed", status)
	}
	if status := g.RunFrame(); status != StatusCrashed {
		t.Errorf("RunFrame = %s, want crashed", status)
	}
	if _, err := g.CaptureState(); !errors.Is(err, ErrNoCartridge) {
		t.Errorf("CaptureState = %v", err)
	}
	if err := g.RestoreState([]byte("GBCS")); !errors.Is(err, ErrNoCartridge) {
		t.Errorf("RestoreState = %v", err)
	}
	if _, err := g.ParseHeader(); !errors.Is(err, ErrNoCartridge) {
		t.Errorf("ParseHeader = %v", err)
	}
	if d := g.Diagnostics(); !errors.Is(d.Err, ErrNoCartridge) {
		t.Errorf("Diagnostics.Err = %v", d.Err)
	}
	if err := g.LoadROM(make([]byte, 0x100)); !errors.Is(err, ErrInvalidROM) {
		t.Errorf("LoadROM = %v, want %v", err, ErrInvalidROM)
	}
}

func TestGameBoy_LoadROMRejected(t *testing.T) {
	g := newTestGameBoy(t, romtest.Options{Title: "GOOD", Program: scrollProgram})
	runFrames(t, g, 1)
	before := g.ReadAddress(romtest.ProgramStart)

	camera := romtest.Build(romtest.Options{Type: cartridge.POCKETCAMERA})
	if err := g.LoadROM(camera); !errors.Is(err, io.ErrUnsupportedCartridge) {
		t.Fatalf("LoadROM = %v, want %v", err, io.ErrUnsupportedCartridge)
	}
	if got := g.ReadAddress(romtest.ProgramStart); got != before {
		t.Errorf("program byte = %02X, want %02X", got, before)
	}
	if status := g.RunFrame(); status != StatusOK {
		t.Errorf("RunFrame after a rejected load = %s", status)
	}
	if h, err := g.Header(); err != nil || h.Title != "GOOD" {
		t.Errorf("Header = %v, %v", h, err)
	}
}

func TestGameBoy_UnknownROMSize(t *testing.T) {
	rom := romtest.Build(romtest.Options{Title: "LEGACY", Program: scrollProgram})
	rom[0x0148] = 0x52
	romtest.Checksum(rom)

	g := New()
	done := make(chan error, 1)
	go func() { done <- g.LoadROM(rom) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadROM did not return")
	}
	runFrames(t, g, 1)
}

func TestGameBoy_Battery(t *testing.T) {
	opts := romtest.Options{Title: "BATTERY", Type: cartridge.MBC5RAMBATT, RAMSizeCode: 2}
	g := newTestGameBoy(t, opts)
	if !g.HasBattery() {
		t.Fatal("HasBattery = false")
	}

	g.WriteAddress(0x0000, 0x0A)
	g.WriteAddress(0xA000, 0x42)
	g.WriteAddress(0xA123, 0x24)
	ram := g.BatteryRAM()
	if len(ram) != 0x2000 || ram[0] != 0x42 || ram[0x123] != 0x24 {
		t.Fatalf("BatteryRAM = %d bytes, %02X %02X", len(ram), ram[0], ram[0x123])
	}

	fresh := newTestGameBoy(t, opts)
	if err := fresh.LoadBatteryRAM(ram); err != nil {
		t.Fatal(err)
	}
	fresh.WriteAddress(0x0000, 0x0A)
	if got := fresh.ReadAddress(0xA123); got != 0x24 {
		t.Errorf("ReadAddress(A123) = %02X, want 24", got)
	}
	if err := fresh.LoadBatteryRAM(ram[:10]); !errors.Is(err, ErrBatterySize) {
		t.Errorf("LoadBatteryRAM = %v, want %v", err, ErrBatterySize)
	}

	plain := newTestGameBoy(t, romtest.Options{Title: "PLAIN"})
	if plain.HasBattery() || plain.BatteryRAM() != nil {
		t.Error("plain ROM reports a battery")
	}
}

func TestGameBoy_RunUntil(t *testing.T) {
	g := newTestGameBoy(t, romtest.Options{Title: "BREAK", Program: scrollProgram})

	status, hit := g.RunUntil(romtest.ProgramStart+11, 1000)
	if status != StatusOK || !hit {
		t.Fatalf("RunUntil = %s, %t", status, hit)
	}
	r := g.Registers()
	if r.PC != romtest.ProgramStart+11 || r.B != 0 || r.H != 0x80 || r.L != 0x10 {
		t.Errorf("registers at loop: %s", r)
	}

	if _, hit := g.RunUntil(0x4000, 50); hit {
		t.Error("unreachable breakpoint hit")
	}
}

func TestGameBoy_SerialOutput(t *testing.T) {
	var out bytes.Buffer
	program := []byte{
		0x3E, 'O', 0xE0, 0x01, 0x3E, 0x81, 0xE0, 0x02,
		0x3E, 'K', 0xE0, 0x01, 0x3E, 0x81, 0xE0, 0x02,
		0x18, 0xFE,
	}
	g := newTestGameBoy(t, romtest.Options{Title: "SERIAL", Program: program}, WithSerialOutput(&out))
	runFrames(t, g, 1)
	if out.String() != "OK" {
		t.Errorf("serial output = %q, want %q", out.String(), "OK")
	}
}

func TestGameBoy_FrameImage(t *testing.T) {
	g := newTestGameBoy(t, romtest.Options{Title: "IMAGE", Program: scrollProgram}, WithPalette(ppu.GreenPalette))
	runFrames(t, g, 2)

	img := g.FrameImage()
	frame := g.Frame()
	for y := 0; y < ppu.ScreenHeight; y += 17 {
		for x := 0; x < ppu.ScreenWidth; x += 13 {
			c := img.RGBAAt(x, y)
			i := (y*ppu.ScreenWidth + x) * 3
			if c.R != frame[i] || c.G != frame[i+1] || c.B != frame[i+2] || c.A != 0xFF {
				t.Fatalf("pixel %d,%d = %v, frame %v", x, y, c, frame[i:i+3])
			}
		}
	}
}
