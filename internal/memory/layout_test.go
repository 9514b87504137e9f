package memory

import "testing"

func TestRegions_Contiguous(t *testing.T) {
	rs := Regions()
	if rs[0].Location != 0 {
		t.Fatalf("first region starts at %#x, expected 0", rs[0].Location)
	}
	for i := 1; i < len(rs); i++ {
		if rs[i].Location != rs[i-1].End() {
			t.Errorf("%s starts at %#x, expected %#x (end of %s)", rs[i].Name, rs[i].Location, rs[i-1].End(), rs[i-1].Name)
		}
	}
	if last := rs[len(rs)-1]; last.End() != Size {
		t.Errorf("layout ends at %#x, arena size is %#x", last.End(), Size)
	}
}

func TestRegions_Stable(t *testing.T) {
	// tooling relies on these offsets, changing one is a breaking change
	tests := []struct {
		name     string
		location int
		size     int
	}{
		{"InternalState", 0x000000, 0x400},
		{"Memory", 0x000400, 0x10000},
		{"VideoRAMBank", 0x010400, 0x2000},
		{"WorkRAM", 0x012400, 0x8000},
		{"Palette", 0x01A400, 0x80},
		{"PriorityMap", 0x01A480, 0x5A00},
		{"Frame", 0x01FE80, 0x10E00},
	}
	rs := Regions()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rs[i].Name != tt.name || rs[i].Location != tt.location || rs[i].Size != tt.size {
				t.Errorf("got %s@%#x+%#x, expected %s@%#x+%#x", rs[i].Name, rs[i].Location, rs[i].Size, tt.name, tt.location, tt.size)
			}
		})
	}
}

func TestArena_ViewsAlias(t *testing.T) {
	a := NewArena()
	a.Frame()[0] = 0x42
	if a.Bytes()[FrameLocation] != 0x42 {
		t.Fatal("frame view does not alias the arena")
	}

	// views are capped so appends cannot spill into the next region
	f := a.Frame()
	if cap(f) != FrameSize {
		t.Errorf("frame view capacity %d, expected %d", cap(f), FrameSize)
	}

	a.CartridgeROM()[0] = 0x99
	a.Reset()
	if a.Bytes()[FrameLocation] != 0 {
		t.Error("reset did not clear the frame")
	}
	if a.CartridgeROM()[0] != 0x99 {
		t.Error("reset cleared the cartridge ROM")
	}
}
