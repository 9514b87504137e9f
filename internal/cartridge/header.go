// Package cartridge decodes the cartridge header and derives the
// identity used to key persisted data.
package cartridge

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/go-faster/errors"
)

const (
	// HeaderStart is the first ROM offset of the header slice.
	HeaderStart = 0x0104
	// HeaderEnd is the ROM offset just past the header slice.
	HeaderEnd = 0x0150
	// HeaderSize is the length of the header slice.
	HeaderSize = HeaderEnd - HeaderStart
)

// ErrShortHeader is returned when fewer than HeaderSize bytes are supplied.
var ErrShortHeader = errors.New("cartridge: header too short")

// CGBFlag specifies the level of CGB support in a cartridge.
type CGBFlag uint8

const (
	CGBFlagUnset    CGBFlag = iota // No CGB support, a regular Game Boy game.
	CGBFlagEnhanced                // Supports CGB enhancements, but is backwards compatible.
	CGBFlagCGBOnly                 // Works on CGB only.
)

// Header is the decoded view of the header slice. Every field is
// sliced from the same raw bytes that make up the Key.
//
// https://gbdev.io/pandocs/The_Cartridge_Header.html
type Header struct {
	Logo                 [48]byte // $0104-$0133
	Title                string   // $0134-$0143, padding removed
	ManufacturerCode     string   // $013F-$0142
	CGBFlag                       // $0143
	NewLicenseeCode      [2]byte  // $0144-$0145
	SGBFlag              bool     // $0146
	CartridgeType        Type     // $0147
	ROMSizeCode          uint8    // $0148
	RAMSizeCode          uint8    // $0149
	DestinationCode      uint8    // $014A
	OldLicenseeCode      uint8    // $014B
	MaskROMVersionNumber uint8    // $014C
	HeaderChecksum       uint8    // $014D
	GlobalChecksum       uint16   // $014E-$014F, big endian

	raw Key
}

// at translates a ROM offset into the header slice.
func at(offset int) int {
	return offset - HeaderStart
}

// NewHeader decodes the header slice. raw must start at HeaderStart
// and be at least HeaderSize bytes long.
func NewHeader(raw []byte) (*Header, error) {
	if len(raw) < HeaderSize {
		return nil, errors.Wrap(ErrShortHeader, fmt.Sprintf("got %d bytes", len(raw)))
	}

	h := &Header{}
	copy(h.raw[:], raw)
	r := h.raw[:]

	copy(h.Logo[:], r[at(0x0104):at(0x0134)])
	switch r[at(0x0143)] {
	case 0x80:
		h.CGBFlag = CGBFlagEnhanced
	case 0xC0:
		h.CGBFlag = CGBFlagCGBOnly
	}

	// CGB cartridges reduced the title to 15 bytes to make room for the flag
	title := r[at(0x0134):at(0x0144)]
	if h.CGBFlag != CGBFlagUnset {
		title = title[:15]
	}
	h.Title = strings.TrimRight(strings.ReplaceAll(string(title), "\x00", ""), " ")

	h.ManufacturerCode = string(r[at(0x013F):at(0x0143)])
	copy(h.NewLicenseeCode[:], r[at(0x0144):at(0x0146)])
	h.SGBFlag = r[at(0x0146)] == 0x03
	h.CartridgeType = Type(r[at(0x0147)])
	h.ROMSizeCode = r[at(0x0148)]
	h.RAMSizeCode = r[at(0x0149)]
	h.DestinationCode = r[at(0x014A)]
	h.OldLicenseeCode = r[at(0x014B)]
	h.MaskROMVersionNumber = r[at(0x014C)]
	h.HeaderChecksum = r[at(0x014D)]
	h.GlobalChecksum = binary.BigEndian.Uint16(r[at(0x014E):at(0x0150)])

	return h, nil
}

// Key returns the raw header bytes.
func (h *Header) Key() Key {
	return h.raw
}

// ROMSize returns the ROM size in bytes, 32 KiB << code.
func (h *Header) ROMSize() int {
	if h.ROMSizeCode > 8 {
		return 0
	}
	return (32 * 1024) << h.ROMSizeCode
}

// RAMSize returns the external RAM size in bytes. MBC2 carts report
// their built-in 512 half-byte RAM.
func (h *Header) RAMSize() int {
	if h.CartridgeType.Controller() == ControllerMBC2 {
		return 512
	}
	switch h.RAMSizeCode {
	case 0x02:
		return 8 * 1024
	case 0x03:
		return 32 * 1024
	case 0x04:
		return 128 * 1024
	case 0x05:
		return 64 * 1024
	}
	return 0
}

// IsCGBCartridge returns true if the cartridge makes use of CGB features, optionally or not.
func (h *Header) IsCGBCartridge() bool {
	return h.CGBFlag != CGBFlagUnset
}

// SGB returns true if the cartridge supports SGB functions.
func (h *Header) SGB() bool {
	return h.SGBFlag && h.OldLicenseeCode == 0x33
}

// Licensee returns the publisher named by the licensee codes.
func (h *Header) Licensee() string {
	if h.OldLicenseeCode == 0x33 {
		return newLicenseeCodes[string(h.NewLicenseeCode[:])]
	}
	return oldLicenseeCodes[h.OldLicenseeCode]
}

// Destination returns the destination as specified in the cartridge header.
func (h *Header) Destination() string {
	switch h.DestinationCode {
	case 0:
		return "Japanese"
	case 1:
		return "Non-Japanese"
	default:
		return "Unknown"
	}
}

// ComputeHeaderChecksum calculates the checksum of $0134-$014C the
// way the boot ROM does.
func (h *Header) ComputeHeaderChecksum() uint8 {
	var sum uint8
	for _, b := range h.raw[at(0x0134):at(0x014D)] {
		sum = sum - b - 1
	}
	return sum
}

// ChecksumValid reports whether the stored header checksum matches.
func (h *Header) ChecksumValid() bool {
	return h.ComputeHeaderChecksum() == h.HeaderChecksum
}

// String implements the fmt.Stringer interface.
func (h *Header) String() string {
	return fmt.Sprintf("%s (%s) | (%dKiB|%dKiB) %s", h.Title, h.Licensee(), h.ROMSize()/1024, h.RAMSize()/1024, h.CartridgeType)
}

// GlobalChecksum sums every byte of rom except the two checksum bytes.
func GlobalChecksum(rom []byte) uint16 {
	var sum uint16
	for i, b := range rom {
		if i == 0x014E || i == 0x014F {
			continue
		}
		sum += uint16(b)
	}
	return sum
}

// Key is the raw header slice, used as the identity of a cartridge
// when persisting battery RAM and save states.
type Key [HeaderSize]byte

// Hash returns a 64-bit digest of the key.
func (k Key) Hash() uint64 {
	return xxhash.Sum64(k[:])
}

// String returns the digest as 16 hex characters, suitable for file names.
func (k Key) String() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], k.Hash())
	return hex.EncodeToString(b[:])
}
