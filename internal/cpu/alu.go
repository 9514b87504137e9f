package cpu

// push writes value to the stack, high byte first.
func (c *CPU) push(value uint16) {
	c.SP--
	c.writeByte(c.SP, uint8(value>>8))
	c.SP--
	c.writeByte(c.SP, uint8(value))
}

// pop reads a 16-bit value from the stack.
func (c *CPU) pop() uint16 {
	low := c.readByte(c.SP)
	c.SP++
	high := c.readByte(c.SP)
	c.SP++
	return uint16(high)<<8 | uint16(low)
}

// call reads a 16-bit address and, if condition holds, pushes PC and
// jumps to it.
//
//	CALL (cc), nn
func (c *CPU) call(condition bool) {
	address := c.readOperand16()
	if condition {
		c.tick()
		c.push(c.PC)
		c.PC = address
	}
}

// addSPSigned adds the signed operand to SP and returns the result.
// The flags are computed from the unsigned addition on the low byte.
//
//	ADD SP, e
//	LD HL, SP+e
//
// Flags affected:
//
//	Z - Reset.
//	N - Reset.
//	H - Set if carry from bit 3.
//	C - Set if carry from bit 7.
func (c *CPU) addSPSigned() uint16 {
	value := c.readOperand()
	result := uint16(int32(c.SP) + int32(int8(value)))
	c.setFlags(false, false, (c.SP&0xF)+uint16(value&0xF) > 0xF, (c.SP&0xFF)+uint16(value) > 0xFF)
	return result
}

// daa adjusts A to packed BCD after an addition or subtraction.
func (c *CPU) daa() {
	carry := c.isFlagSet(flagCarry)
	if !c.isFlagSet(flagSubtract) {
		if carry || c.A > 0x99 {
			c.A += 0x60
			carry = true
		}
		if c.isFlagSet(flagHalfCarry) || c.A&0xF > 0x9 {
			c.A += 0x06
		}
	} else {
		if carry {
			c.A -= 0x60
		}
		if c.isFlagSet(flagHalfCarry) {
			c.A -= 0x06
		}
	}
	c.setFlags(c.A == 0, c.isFlagSet(flagSubtract), false, carry)
}
