package cheats

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

const gameGenieLength = len("ABC-DEF-GHI")

// A GameGenieCode replaces a ROM byte. Codes are written ABC-DEF-GHI:
// AB is the new data, FCDE is the address XORed with 0xF000 and GI is
// the old data XORed with 0xBA and rotated left by 2. H is a checksum
// the adapter ignores.
type GameGenieCode struct {
	NewData uint8
	Address uint16
	OldData uint8

	raw string
}

// ParseGameGenie decodes a code of the form ABC-DEF-GHI.
func ParseGameGenie(code string) (GameGenieCode, error) {
	if len(code) != gameGenieLength || code[3] != '-' || code[7] != '-' {
		return GameGenieCode{}, errors.Wrapf(ErrInvalidCode, "game genie %q", code)
	}
	digits := strings.ReplaceAll(code, "-", "")

	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return GameGenieCode{}, errors.Wrapf(ErrInvalidCode, "game genie %q", code)
	}
	// nine nibbles: A B C D E F G H I
	nibble := func(i int) uint16 { return uint16(v>>(4*(8-i))) & 0xF }

	gi := uint8(nibble(6)<<4 | nibble(8))
	return GameGenieCode{
		NewData: uint8(nibble(0)<<4 | nibble(1)),
		Address: (nibble(5)<<12 | nibble(2)<<8 | nibble(3)<<4 | nibble(4)) ^ 0xF000,
		OldData: bits.RotateLeft8(gi, -2) ^ 0xBA,
		raw:     strings.ToUpper(code),
	}, nil
}

func (c GameGenieCode) String() string {
	if c.raw != "" {
		return c.raw
	}
	addr := c.Address ^ 0xF000
	gi := bits.RotateLeft8(c.OldData^0xBA, 2)
	return fmt.Sprintf("%02X%01X-%03X-%01X0%01X",
		c.NewData, addr>>8&0xF, (addr&0xFF)<<4|addr>>12, gi>>4, gi&0xF)
}

// PatchROM applies the enabled Game Genie codes of cheats to rom. A code
// for the switchable window is applied to every bank holding the old
// data at that offset. The cartridge header is never patched. It
// returns the number of bytes changed.
func PatchROM(rom []byte, cheats []Cheat) int {
	patched := 0
	for _, cheat := range cheats {
		if !cheat.Enabled {
			continue
		}
		for _, c := range cheat.Genie {
			for _, off := range c.offsets(len(rom)) {
				if rom[off] == c.OldData {
					rom[off] = c.NewData
					patched++
				}
			}
		}
	}
	return patched
}

const (
	bankSize    = 0x4000
	headerStart = 0x0100
	headerEnd   = 0x0150
)

func (c GameGenieCode) offsets(size int) []int {
	addr := int(c.Address)
	switch {
	case addr >= 2*bankSize:
		return nil
	case addr >= headerStart && addr < headerEnd:
		return nil
	case addr < bankSize:
		if addr < size {
			return []int{addr}
		}
		return nil
	}
	var offs []int
	for off := addr; off < size; off += bankSize {
		offs = append(offs, off)
	}
	return offs
}
