package cheats

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
)

const gameSharkLength = len("ABCDGHEF")

// A GameSharkCode pokes a RAM byte every frame. Codes are written
// ABCDGHEF: AB is the RAM bank, CD the new data and EFGH the address,
// stored little endian.
type GameSharkCode struct {
	Bank    uint8
	NewData uint8
	Address uint16
}

// ParseGameShark decodes an eight digit GameShark code.
func ParseGameShark(code string) (GameSharkCode, error) {
	if len(code) != gameSharkLength {
		return GameSharkCode{}, errors.Wrapf(ErrInvalidCode, "gameshark %q", code)
	}
	v, err := strconv.ParseUint(code, 16, 32)
	if err != nil {
		return GameSharkCode{}, errors.Wrapf(ErrInvalidCode, "gameshark %q", code)
	}
	c := GameSharkCode{
		Bank:    uint8(v >> 24),
		NewData: uint8(v >> 16),
		Address: uint16(v>>8)&0xFF | uint16(v)<<8,
	}
	// cartridge RAM, work RAM or high RAM
	ram := (c.Address >= 0xA000 && c.Address < 0xE000) || (c.Address >= 0xFF80 && c.Address < 0xFFFF)
	if !ram {
		return GameSharkCode{}, errors.Wrapf(ErrInvalidCode, "gameshark %q: address %04X is not RAM", code, c.Address)
	}
	return c, nil
}

func (c GameSharkCode) String() string {
	return fmt.Sprintf("%02X%02X%02X%02X", c.Bank, c.NewData, c.Address&0xFF, c.Address>>8)
}

// Poker writes bytes as the CPU would.
type Poker interface {
	WriteAddress(addr uint16, value uint8)
}

// Apply writes the enabled GameShark codes of cheats through p and
// returns the number of writes. Codes poke whichever bank is mapped.
func Apply(p Poker, cheats []Cheat) int {
	n := 0
	for _, cheat := range cheats {
		if !cheat.Enabled {
			continue
		}
		for _, c := range cheat.Shark {
			p.WriteAddress(c.Address, c.NewData)
			n++
		}
	}
	return n
}
