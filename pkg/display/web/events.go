package web

// Type is the first byte of every message sent to clients.
type Type = uint8

const (
	// Frame carries an RGBA frame: flags, cache index (uint16 LE) and
	// the payload, brotli compressed when FlagCompressed is set.
	Frame Type = iota
	// FrameCache repeats the frame stored at a cache index (uint16 LE).
	FrameCache
	// FrameSkip reports how many frames (uint32 LE) were identical to
	// the previous one and not sent.
	FrameSkip
	// ServerStatus carries the session status and the server flags.
	ServerStatus
	// CommandResponse answers a client command: command, ok byte and
	// either the response data or the error text.
	CommandResponse
)

// Frame flags.
const (
	FlagCompressed uint8 = 1 << iota
	// FlagCacheOnly marks frames sent to fill the cache of a client
	// that just connected; they are not displayed.
	FlagCacheOnly
)

// Messages from clients are either a single byte, the new button
// mask, or CommandPrefix followed by an emulator command and its data.
const CommandPrefix = 0xF0
