package memory

// Arena is the single byte array owned by an emulator instance.
// Components are handed views of the regions they need; the views
// alias the arena and stay valid for its whole lifetime.
type Arena struct {
	data []byte
}

// NewArena allocates a zeroed arena.
func NewArena() *Arena {
	return &Arena{data: make([]byte, Size)}
}

func (a *Arena) view(location, size int) []byte {
	return a.data[location : location+size : location+size]
}

// Bytes returns the whole arena. Callers must treat it as read-only.
func (a *Arena) Bytes() []byte { return a.data }

func (a *Arena) InternalState() []byte { return a.view(InternalStateLocation, InternalStateSize) }
func (a *Arena) Memory() []byte        { return a.view(MemoryLocation, MemorySize) }
func (a *Arena) VideoRAMBank() []byte  { return a.view(VideoRAMBankLocation, VideoRAMBankSize) }
func (a *Arena) WorkRAM() []byte       { return a.view(WorkRAMLocation, WorkRAMSize) }
func (a *Arena) Palette() []byte       { return a.view(PaletteLocation, PaletteSize) }
func (a *Arena) PriorityMap() []byte   { return a.view(PriorityMapLocation, PriorityMapSize) }
func (a *Arena) Frame() []byte         { return a.view(FrameLocation, FrameSize) }
func (a *Arena) BackgroundMap() []byte { return a.view(BackgroundMapLocation, BackgroundMapSize) }
func (a *Arena) TileData() []byte      { return a.view(TileDataLocation, TileDataSize) }
func (a *Arena) OAMTiles() []byte      { return a.view(OAMTilesLocation, OAMTilesSize) }
func (a *Arena) AudioBuffer() []byte   { return a.view(AudioBufferLocation, AudioBufferSize) }
func (a *Arena) CartridgeRAM() []byte  { return a.view(CartridgeRAMLocation, CartridgeRAMSize) }
func (a *Arena) CartridgeROM() []byte  { return a.view(CartridgeROMLocation, CartridgeROMSize) }

// Region returns the view of an arbitrary layout entry.
func (a *Arena) Region(r Region) []byte {
	return a.view(r.Location, r.Size)
}

// Reset zeroes every region except the cartridge ROM staging area.
func (a *Arena) Reset() {
	clear(a.data[:CartridgeROMLocation])
}
