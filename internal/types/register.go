package types

// Register is one of the 8-bit CPU registers A, B, C, D, E, F, H and L.
type Register = uint8

// RegisterPair combines two Registers into the 16-bit view used by
// the AF, BC, DE and HL pairs. High is the most significant byte.
type RegisterPair struct {
	High *Register
	Low  *Register
}

// Uint16 returns the value of the RegisterPair as an uint16.
func (r *RegisterPair) Uint16() uint16 {
	return uint16(*r.High)<<8 | uint16(*r.Low)
}

// SetUint16 sets the value of the RegisterPair to the given value.
func (r *RegisterPair) SetUint16(value uint16) {
	*r.High = uint8(value >> 8)
	*r.Low = uint8(value)
}
