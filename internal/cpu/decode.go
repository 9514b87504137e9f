package cpu

import "github.com/thelolagemann/gbcore/internal/types"

var incDecBit = [2]uint16{0x0001, 0xFFFF}
var incDecMask = [2]uint8{0x0F, 0x00}

// decode executes a single opcode. Most opcodes are decoded from their
// bit fields; the irregular ones are handled first.
//
//	00 000 000
//	^^ ^^^ ^^^
//	op dst src
func (c *CPU) decode(instr byte) {
	switch instr {
	case 0x00: // NOP
	case 0x08: // LD (a16), SP
		address := c.readOperand16()
		c.writeByte(address, uint8(c.SP))
		c.writeByte(address+1, uint8(c.SP>>8))
	case 0x10: // STOP
		c.PC++ // STOP is followed by a padding byte
		if c.b.SpeedSwitch() {
			c.b.ResetDivider()
			return
		}
		c.b.ResetDivider()
		c.mode = ModeStop
	case 0x76: // HALT
		switch {
		case c.ime || c.b.Pending() == 0:
			c.mode = ModeHalt
		case c.haltBug == HaltBugEmulate:
			c.mode = ModeHaltBug
		}
	case 0xC3: // JP a16
		c.PC = c.readOperand16()
		c.tick()
	case 0xC9: // RET
		c.PC = c.pop()
		c.tick()
	case 0xCB: // CB prefix
		c.decodeCB(c.readOperand())
	case 0xCD: // CALL a16
		c.call(true)
	case 0xD9: // RETI
		c.PC = c.pop()
		c.tick()
		c.ime = true
	case 0xE0: // LDH (a8), A
		c.writeByte(0xFF00+uint16(c.readOperand()), c.A)
	case 0xE2: // LD (C), A
		c.writeByte(0xFF00+uint16(c.C), c.A)
	case 0xE8: // ADD SP, r8
		c.SP = c.addSPSigned()
		c.tick()
		c.tick()
	case 0xE9: // JP HL
		c.PC = c.HL.Uint16()
	case 0xEA: // LD (a16), A
		c.writeByte(c.readOperand16(), c.A)
	case 0xF0: // LDH A, (a8)
		c.A = c.readByte(0xFF00 + uint16(c.readOperand()))
	case 0xF2: // LD A, (C)
		c.A = c.readByte(0xFF00 + uint16(c.C))
	case 0xF3: // DI
		c.ime = false
		c.eiDelay = 0
	case 0xF8: // LD HL, SP+r8
		c.HL.SetUint16(c.addSPSigned())
		c.tick()
	case 0xF9: // LD SP, HL
		c.SP = c.HL.Uint16()
		c.tick()
	case 0xFA: // LD A, (a16)
		c.A = c.readByte(c.readOperand16())
	case 0xFB: // EI
		if !c.ime && c.eiDelay == 0 {
			c.eiDelay = 2
		}
	case 0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD:
		c.crash()
	default:
		switch instr >> 6 {
		case 0: // 0x00 - 0x3F
			c.decodeBlock0(instr)
		case 1: // 0x40 - 0x7F
			src := c.getSourceRegister(instr)
			dst := c.registerPointers[instr>>3&0x7]
			*dst = *src
			if instr>>3&0x7 == 6 {
				c.writeByte(c.HL.Uint16(), *dst)
			}
		case 2: // 0x80 - 0xBF (ALU)
			c.decodeALU(instr, *c.getSourceRegister(instr))
		case 3: // 0xC0 - 0xFF
			c.decodeBlock3(instr)
		}
	}
}

func (c *CPU) decodeBlock0(instr byte) {
	switch instr & 0x7 {
	case 0: // JR (cc), s8
		offset := int8(c.readOperand())
		if instr == 0x18 || c.getFlagCondition(instr) {
			c.PC = uint16(int32(c.PC) + int32(offset))
			c.tick()
		}
	case 1:
		if instr>>3&1 == 1 { // ADD HL, rr
			hl, nn := c.HL.Uint16(), c.getRegisterPairValue(instr)
			sum := uint32(hl) + uint32(nn)
			c.setFlags(c.isFlagSet(flagZero), false, (hl&0xFFF)+(nn&0xFFF) > 0xFFF, sum > 0xFFFF)
			c.HL.SetUint16(uint16(sum))
			c.tick()
		} else { // LD rr, d16
			c.setRegisterPairValue(instr, c.readOperand16())
		}
	case 2:
		address := c.getIndirectAddress(instr)
		if instr>>3&1 == 1 { // LD A, (rr)
			c.A = c.readByte(address)
		} else { // LD (rr), A
			c.writeByte(address, c.A)
		}
	case 3: // INC/DEC rr
		c.setRegisterPairValue(instr, c.getRegisterPairValue(instr)+incDecBit[instr>>3&1])
		c.tick()
	case 4, 5: // INC/DEC r
		index := instr >> 3 & 0x7
		src := c.getSourceRegister(index)
		val := *src + uint8(incDecBit[instr&1])
		c.setFlags(val == 0, instr&1 == 1, *src&0xF == incDecMask[instr&1], c.isFlagSet(flagCarry))
		*src = val
		if index == 6 {
			c.writeByte(c.HL.Uint16(), val)
		}
	case 6: // LD r, d8
		index := instr >> 3 & 0x7
		value := c.readOperand()
		if index == 6 {
			c.writeByte(c.HL.Uint16(), value)
		} else {
			*c.registerPointers[index] = value
		}
	case 7:
		c.decodeAccumulator(instr)
	}
}

// decodeAccumulator handles the rotates and flag operations on A.
func (c *CPU) decodeAccumulator(instr byte) {
	switch instr >> 3 & 0x7 {
	case 0: // RLCA
		c.setFlags(false, false, false, c.A&types.Bit7 != 0)
		c.A = c.A<<1 | c.A>>7
	case 1: // RRCA
		c.setFlags(false, false, false, c.A&types.Bit0 != 0)
		c.A = c.A>>1 | c.A<<7
	case 2: // RLA
		carry := c.carry()
		c.setFlags(false, false, false, c.A&types.Bit7 != 0)
		c.A = c.A<<1 | carry
	case 3: // RRA
		carry := c.carry()
		c.setFlags(false, false, false, c.A&types.Bit0 != 0)
		c.A = c.A>>1 | carry<<7
	case 4: // DAA
		c.daa()
	case 5: // CPL
		c.A = ^c.A
		c.setFlags(c.isFlagSet(flagZero), true, true, c.isFlagSet(flagCarry))
	case 6: // SCF
		c.setFlags(c.isFlagSet(flagZero), false, false, true)
	case 7: // CCF
		c.setFlags(c.isFlagSet(flagZero), false, false, !c.isFlagSet(flagCarry))
	}
}

func (c *CPU) decodeBlock3(instr byte) {
	switch instr & 0x7 {
	case 0: // RET cc
		c.tick()
		if c.getFlagCondition(instr) {
			c.PC = c.pop()
			c.tick()
		}
	case 1: // POP rr
		c.setStackPairValue(instr, c.pop())
	case 2: // JP cc, a16
		address := c.readOperand16()
		if c.getFlagCondition(instr) {
			c.PC = address
			c.tick()
		}
	case 4: // CALL cc, a16
		c.call(c.getFlagCondition(instr))
	case 5: // PUSH rr
		c.tick()
		c.push(c.getStackPairValue(instr))
	case 6: // ALU d8
		c.decodeALU(instr, c.readOperand())
	case 7: // RST
		c.tick()
		c.push(c.PC)
		c.PC = uint16(instr & 0x38)
	default:
		// every other opcode in this block is irregular and decoded above
		c.crash()
	}
}

// decodeCB decodes a CB-prefixed instruction.
//
//	00 000 000
//	^^ ^^^ ^^^
//	op bit src
func (c *CPU) decodeCB(instr byte) {
	src := c.getSourceRegister(instr)
	val := *src

	switch instr >> 6 {
	case 0:
		var carry bool
		switch instr >> 3 & 0x7 {
		case 0: // RLC
			carry = val&types.Bit7 != 0
			val = val<<1 | val>>7
		case 1: // RRC
			carry = val&types.Bit0 != 0
			val = val>>1 | val<<7
		case 2: // RL
			carry = val&types.Bit7 != 0
			val = val<<1 | c.carry()
		case 3: // RR
			carry = val&types.Bit0 != 0
			val = val>>1 | c.carry()<<7
		case 4: // SLA
			carry = val&types.Bit7 != 0
			val <<= 1
		case 5: // SRA
			carry = val&types.Bit0 != 0
			val = val&types.Bit7 | val>>1
		case 6: // SWAP
			val = val<<4 | val>>4
		case 7: // SRL
			carry = val&types.Bit0 != 0
			val >>= 1
		}
		c.setFlags(val == 0, false, false, carry)
	case 1: // BIT
		bit := uint8(1) << (instr >> 3 & 0x7)
		c.setFlags(val&bit == 0, false, true, c.isFlagSet(flagCarry))
		return // BIT doesn't write back
	case 2: // RES
		val &^= 1 << (instr >> 3 & 0x7)
	case 3: // SET
		val |= 1 << (instr >> 3 & 0x7)
	}

	if instr&0x7 == 6 {
		c.writeByte(c.HL.Uint16(), val)
	} else {
		*src = val
	}
}

// decodeALU performs the operation selected by bits 3-5 of instr on A.
func (c *CPU) decodeALU(instr, n byte) {
	carry := uint8(0)
	if instr>>3&1 == 1 {
		carry = c.carry()
	}

	switch instr >> 3 & 0x7 {
	case 0, 1: // ADD/ADC
		sum := uint16(c.A) + uint16(n) + uint16(carry)
		c.setFlags(uint8(sum) == 0, false, c.A&0xF+n&0xF+carry > 0xF, sum > 0xFF)
		c.A = uint8(sum)
	case 2, 3: // SUB/SBC
		diff := int16(c.A) - int16(n) - int16(carry)
		half := int16(c.A&0xF) - int16(n&0xF) - int16(carry)
		c.setFlags(uint8(diff) == 0, true, half < 0, diff < 0)
		c.A = uint8(diff)
	case 4: // AND
		c.A &= n
		c.setFlags(c.A == 0, false, true, false)
	case 5: // XOR
		c.A ^= n
		c.setFlags(c.A == 0, false, false, false)
	case 6: // OR
		c.A |= n
		c.setFlags(c.A == 0, false, false, false)
	case 7: // CP
		c.setFlags(c.A == n, true, n&0xF > c.A&0xF, n > c.A)
	}
}

// getSourceRegister returns the register selected by the low 3 bits of
// reg. Index 6 reads (HL) into a scratch register first.
func (c *CPU) getSourceRegister(reg byte) *types.Register {
	reg &= 0x7
	if reg == 6 {
		c.hlValue = c.readByte(c.HL.Uint16())
	}
	return c.registerPointers[reg]
}

// getFlagCondition evaluates the NZ, Z, NC, C condition encoded in bits 3-4.
func (c *CPU) getFlagCondition(instr byte) bool {
	var f bool
	if instr>>4&1 == 0 {
		f = c.isFlagSet(flagZero)
	} else {
		f = c.isFlagSet(flagCarry)
	}
	if instr>>3&1 == 0 {
		f = !f
	}
	return f
}

// getRegisterPairValue returns BC, DE, HL or SP, as selected by bits 4-5.
func (c *CPU) getRegisterPairValue(instr byte) uint16 {
	switch instr >> 4 & 0x3 {
	case 0:
		return c.BC.Uint16()
	case 1:
		return c.DE.Uint16()
	case 2:
		return c.HL.Uint16()
	default:
		return c.SP
	}
}

func (c *CPU) setRegisterPairValue(instr byte, value uint16) {
	switch instr >> 4 & 0x3 {
	case 0:
		c.BC.SetUint16(value)
	case 1:
		c.DE.SetUint16(value)
	case 2:
		c.HL.SetUint16(value)
	default:
		c.SP = value
	}
}

// getStackPairValue is getRegisterPairValue with AF in place of SP, as
// used by PUSH and POP.
func (c *CPU) getStackPairValue(instr byte) uint16 {
	if instr>>4&0x3 == 3 {
		return c.AF.Uint16()
	}
	return c.getRegisterPairValue(instr)
}

func (c *CPU) setStackPairValue(instr byte, value uint16) {
	if instr>>4&0x3 == 3 {
		c.AF.SetUint16(value & 0xFFF0) // the low nibble of F is always 0
		return
	}
	c.setRegisterPairValue(instr, value)
}

// getIndirectAddress returns the address of LD (rr), A and LD A, (rr),
// applying the HL+ and HL- post increments.
func (c *CPU) getIndirectAddress(instr byte) uint16 {
	switch instr >> 4 & 0x3 {
	case 0:
		return c.BC.Uint16()
	case 1:
		return c.DE.Uint16()
	case 2:
		hl := c.HL.Uint16()
		c.HL.SetUint16(hl + 1)
		return hl
	default:
		hl := c.HL.Uint16()
		c.HL.SetUint16(hl - 1)
		return hl
	}
}
