// Package cpu implements the SM83 processor of the Game Boy.
package cpu

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/thelolagemann/gbcore/internal/types"
)

// ErrIllegalOpcode is wrapped by every DecodeError.
var ErrIllegalOpcode = errors.New("cpu: illegal opcode")

// DecodeError reports an opcode the processor cannot execute. PC is
// the address the opcode was fetched from.
type DecodeError struct {
	PC     uint16
	Opcode uint8
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cpu: illegal opcode %02X at %04X", e.Opcode, e.PC)
}

func (e *DecodeError) Unwrap() error { return ErrIllegalOpcode }

// Bus is the view of the memory map the CPU needs.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)

	// Pending returns the requested interrupts that are enabled in IE.
	Pending() uint8
	// Requested returns IF, regardless of IE.
	Requested() uint8
	// IRQVector acknowledges the highest priority pending interrupt
	// and returns its vector, or 0 when none is pending.
	IRQVector() uint16

	// SpeedSwitch performs an armed CGB speed switch.
	SpeedSwitch() bool
	// ResetDivider clears the timer divider.
	ResetDivider()
}

// HaltBugPolicy selects how HALT behaves when it is executed with
// IME disabled and an interrupt already pending.
type HaltBugPolicy uint8

const (
	// HaltBugEmulate fails to increment PC after HALT, so the byte
	// following it is executed twice, as the hardware does.
	HaltBugEmulate HaltBugPolicy = iota
	// HaltBugSkip continues with the next instruction normally.
	HaltBugSkip
)

func (p HaltBugPolicy) String() string {
	if p == HaltBugSkip {
		return "skip"
	}
	return "emulate"
}

type mode = uint8

const (
	// ModeNormal fetches and executes instructions.
	ModeNormal mode = iota
	// ModeHalt waits for an interrupt to be requested.
	ModeHalt
	// ModeStop waits for a button press.
	ModeStop
	// ModeHaltBug executes the next instruction without advancing PC.
	ModeHaltBug
	// ModeCrashed has hit an illegal opcode and executes nothing.
	ModeCrashed
)

// CPU represents the Gameboy CPU. It is responsible for executing instructions.
type CPU struct {
	// PC is the program counter, it points to the next instruction to be executed.
	PC uint16
	// SP is the stack pointer, it points to the top of the stack.
	SP uint16

	A, F, B, C, D, E, H, L types.Register
	BC, DE, HL, AF         *types.RegisterPair

	ime     bool
	eiDelay uint8
	mode    mode

	// registerPointers maps the 3-bit register field of an opcode to
	// a register; index 6, (HL), points at the scratch memory byte.
	registerPointers [8]*types.Register
	hlValue          types.Register

	haltBug HaltBugPolicy

	// cycles counts the clock cycles spent by the current step.
	cycles int

	// Opcode is the last opcode fetched.
	Opcode uint8
	// OpcodePC is the address Opcode was fetched from.
	OpcodePC uint16
	// Err is set once an illegal opcode has been decoded.
	Err *DecodeError

	b Bus
}

// NewCPU creates a CPU running on the bus b.
func NewCPU(b Bus, policy HaltBugPolicy) *CPU {
	c := &CPU{b: b, haltBug: policy}
	c.BC = &types.RegisterPair{High: &c.B, Low: &c.C}
	c.DE = &types.RegisterPair{High: &c.D, Low: &c.E}
	c.HL = &types.RegisterPair{High: &c.H, Low: &c.L}
	c.AF = &types.RegisterPair{High: &c.A, Low: &c.F}
	c.registerPointers = [8]*types.Register{&c.B, &c.C, &c.D, &c.E, &c.H, &c.L, &c.hlValue, &c.A}
	return c
}

// Boot sets the registers to the values left by the boot ROM of the model.
func (c *CPU) Boot(model types.Model) {
	r := types.ModelRegisters[model]
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7]
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.ime = false
	c.eiDelay = 0
	c.mode = ModeNormal
	c.Err = nil
}

// SetHaltBugPolicy changes the HALT behaviour.
func (c *CPU) SetHaltBugPolicy(p HaltBugPolicy) {
	c.haltBug = p
}

// Crashed reports whether an illegal opcode stopped the CPU.
func (c *CPU) Crashed() bool {
	return c.mode == ModeCrashed
}

// Halted reports whether the CPU is waiting in HALT or STOP.
func (c *CPU) Halted() bool {
	return c.mode == ModeHalt || c.mode == ModeStop
}

// IME reports the interrupt master enable flag.
func (c *CPU) IME() bool {
	return c.ime
}

// Step executes one instruction, dispatches one interrupt or idles
// for one M-cycle while halted. It returns the clock cycles spent.
// Once the CPU has crashed Step does nothing and returns 0.
func (c *CPU) Step() int {
	c.cycles = 0

	switch c.mode {
	case ModeCrashed:
		return 0
	case ModeStop:
		if c.b.Requested()&types.JoypadINT == 0 {
			return 4
		}
		c.mode = ModeNormal
	case ModeHalt:
		if c.b.Pending() == 0 {
			return 4
		}
		c.mode = ModeNormal
		c.tick() // wake up
	}

	if c.ime && c.b.Pending() != 0 {
		c.executeInterrupt()
		return c.cycles
	}

	c.OpcodePC = c.PC
	if c.mode == ModeHaltBug {
		c.mode = ModeNormal
		c.Opcode = c.readByte(c.PC)
	} else {
		c.Opcode = c.readOperand()
	}

	c.decode(c.Opcode)

	// EI takes effect once the following instruction has executed
	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.ime = true
		}
	}
	return c.cycles
}

// executeInterrupt pushes PC and jumps to the vector of the highest
// priority pending interrupt. If IE changes during the push, so the
// interrupt is no longer pending, execution continues at 0x0000.
func (c *CPU) executeInterrupt() {
	c.ime = false
	c.tick()
	c.tick()

	c.SP--
	c.writeByte(c.SP, uint8(c.PC>>8))
	vector := c.b.IRQVector()
	c.SP--
	c.writeByte(c.SP, uint8(c.PC))

	c.PC = vector
	c.tick()
}

// tick accounts for one M-cycle without a memory access.
func (c *CPU) tick() {
	c.cycles += 4
}

// readOperand reads the byte at PC and advances PC.
func (c *CPU) readOperand() uint8 {
	value := c.readByte(c.PC)
	c.PC++
	return value
}

func (c *CPU) readOperand16() uint16 {
	return uint16(c.readOperand()) | uint16(c.readOperand())<<8
}

func (c *CPU) readByte(addr uint16) uint8 {
	c.tick()
	return c.b.Read(addr)
}

func (c *CPU) writeByte(addr uint16, value uint8) {
	c.tick()
	c.b.Write(addr, value)
}

// crash stops the CPU at the opcode being executed.
func (c *CPU) crash() {
	c.mode = ModeCrashed
	c.PC = c.OpcodePC
	c.Err = &DecodeError{PC: c.OpcodePC, Opcode: c.Opcode}
}

// Registers is a snapshot of the register file.
type Registers struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
	IME                    bool
	Halted                 bool
}

func (r Registers) String() string {
	return fmt.Sprintf("A:%02X F:%02X B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X PC:%04X IME:%t",
		r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L, r.SP, r.PC, r.IME)
}

// Registers returns a snapshot of the register file.
func (c *CPU) Registers() Registers {
	return Registers{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.ime, Halted: c.Halted(),
	}
}

var _ types.Stater = (*CPU)(nil)

func (c *CPU) Load(s *types.State) {
	c.A = s.Read8()
	c.F = s.Read8()
	c.B = s.Read8()
	c.C = s.Read8()
	c.D = s.Read8()
	c.E = s.Read8()
	c.H = s.Read8()
	c.L = s.Read8()
	c.SP = s.Read16()
	c.PC = s.Read16()
	c.mode = s.Read8()
	c.ime = s.ReadBool()
	c.eiDelay = s.Read8()
	c.Opcode = s.Read8()
	c.OpcodePC = s.Read16()

	c.Err = nil
	if c.mode == ModeCrashed {
		c.Err = &DecodeError{PC: c.OpcodePC, Opcode: c.Opcode}
	}
}

func (c *CPU) Save(s *types.State) {
	s.Write8(c.A)
	s.Write8(c.F)
	s.Write8(c.B)
	s.Write8(c.C)
	s.Write8(c.D)
	s.Write8(c.E)
	s.Write8(c.H)
	s.Write8(c.L)
	s.Write16(c.SP)
	s.Write16(c.PC)
	s.Write8(c.mode)
	s.WriteBool(c.ime)
	s.Write8(c.eiDelay)
	s.Write8(c.Opcode)
	s.Write16(c.OpcodePC)
}
