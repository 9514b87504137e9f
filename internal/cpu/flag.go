package cpu

import "github.com/thelolagemann/gbcore/internal/types"

// flags of the F register.
const (
	flagZero      = types.Bit7
	flagSubtract  = types.Bit6
	flagHalfCarry = types.Bit5
	flagCarry     = types.Bit4
)

// setFlags replaces all four flags at once.
func (c *CPU) setFlags(zero, subtract, halfCarry, carry bool) {
	c.F = 0
	if zero {
		c.F |= flagZero
	}
	if subtract {
		c.F |= flagSubtract
	}
	if halfCarry {
		c.F |= flagHalfCarry
	}
	if carry {
		c.F |= flagCarry
	}
}

func (c *CPU) isFlagSet(flag uint8) bool {
	return c.F&flag != 0
}

// carry returns the carry flag as 0 or 1.
func (c *CPU) carry() uint8 {
	return c.F & flagCarry >> 4
}
