// Package memory provides the arena backing a single emulator
// instance, and the fixed table describing where each region of
// the arena lives.
//
// The locations are part of the public contract of the emulator:
// debuggers and save-state tooling address the arena directly, so
// a region may only ever be appended to the end of the table.
package memory

const (
	ScreenWidth  = 160
	ScreenHeight = 144
)

const (
	// InternalStateLocation holds the serialized registers of every
	// component, written when a save state is captured.
	InternalStateLocation = 0x000000
	InternalStateSize     = 0x000400

	// MemoryLocation is the image of the 64 KiB CPU address space.
	// ROM bank windows are copied into it by the banking controller.
	MemoryLocation = InternalStateLocation + InternalStateSize
	MemorySize     = 0x010000

	// VideoRAMBankLocation is VRAM bank 1, only used in CGB mode.
	// Bank 0 lives at 0x8000 of the address space image.
	VideoRAMBankLocation = MemoryLocation + MemorySize
	VideoRAMBankSize     = 0x002000

	// WorkRAMLocation stores all 8 WRAM banks. Bank 0 and the bank
	// selected by SVBK are mirrored into the address space image.
	WorkRAMLocation = VideoRAMBankLocation + VideoRAMBankSize
	WorkRAMSize     = 0x008000

	// PaletteLocation stores the CGB background palette RAM
	// followed by the object palette RAM.
	PaletteLocation = WorkRAMLocation + WorkRAMSize
	PaletteSize     = 0x000080

	PriorityMapLocation = PaletteLocation + PaletteSize
	PriorityMapSize     = ScreenWidth * ScreenHeight

	// FrameLocation is the RGB output of the last completed frame.
	FrameLocation = PriorityMapLocation + PriorityMapSize
	FrameSize     = ScreenWidth * ScreenHeight * 3

	BackgroundMapLocation = FrameLocation + FrameSize
	BackgroundMapSize     = 256 * 256 * 3

	// TileDataLocation renders VRAM bank 0 tiles on the left half
	// and bank 1 tiles on the right half, 16 tiles per row each.
	TileDataLocation = BackgroundMapLocation + BackgroundMapSize
	TileDataWidth    = 256
	TileDataHeight   = 192
	TileDataSize     = TileDataWidth * TileDataHeight * 3

	// OAMTilesLocation renders the 40 objects as 8x16 cells, 8 per row.
	OAMTilesLocation = TileDataLocation + TileDataSize
	OAMTilesWidth    = 64
	OAMTilesHeight   = 80
	OAMTilesSize     = OAMTilesWidth * OAMTilesHeight * 3

	// AudioBufferLocation is a ring of interleaved stereo samples,
	// one unsigned byte per channel.
	AudioBufferLocation = OAMTilesLocation + OAMTilesSize
	AudioBufferSize     = 0x020000

	CartridgeRAMLocation = AudioBufferLocation + AudioBufferSize
	CartridgeRAMSize     = 0x020000

	CartridgeROMLocation = CartridgeRAMLocation + CartridgeRAMSize
	CartridgeROMSize     = 0x800000

	// Size is the total size of the arena.
	Size = CartridgeROMLocation + CartridgeROMSize
)

// Region describes one entry of the memory layout table.
type Region struct {
	Name     string
	Location int
	Size     int
}

// End returns the first offset past the region.
func (r Region) End() int {
	return r.Location + r.Size
}

var regions = []Region{
	{"InternalState", InternalStateLocation, InternalStateSize},
	{"Memory", MemoryLocation, MemorySize},
	{"VideoRAMBank", VideoRAMBankLocation, VideoRAMBankSize},
	{"WorkRAM", WorkRAMLocation, WorkRAMSize},
	{"Palette", PaletteLocation, PaletteSize},
	{"PriorityMap", PriorityMapLocation, PriorityMapSize},
	{"Frame", FrameLocation, FrameSize},
	{"BackgroundMap", BackgroundMapLocation, BackgroundMapSize},
	{"TileData", TileDataLocation, TileDataSize},
	{"OAMTiles", OAMTilesLocation, OAMTilesSize},
	{"AudioBuffer", AudioBufferLocation, AudioBufferSize},
	{"CartridgeRAM", CartridgeRAMLocation, CartridgeRAMSize},
	{"CartridgeROM", CartridgeROMLocation, CartridgeROMSize},
}

// Regions returns a copy of the layout table, ordered by location.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}
