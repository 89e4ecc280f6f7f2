package lr35902

import (
	"fmt"
)

// Flag bits of the F register.
const (
	FlagZ byte = 0x80
	FlagN byte = 0x40
	FlagH byte = 0x20
	FlagC byte = 0x10
)

// Memory models the cartridge address space: fixed ROM bank at 0x0000,
// switchable ROM bank window at 0x4000, RAM above 0x8000. Writes into the
// MBC1 bank select window switch the mapped ROM bank. The LCD status and
// scanline registers read as a permanently open vertical blank window so
// that polling loops terminate deterministically.
type Memory struct {
	ROM  []byte
	RAM  [0x8000]byte
	bank int
}

// NewMemory creates memory mapping the given cartridge image.
func NewMemory(rom []byte) *Memory {
	return &Memory{
		ROM:  rom,
		bank: 1,
	}
}

// Read reads a byte at the given address.
func (m *Memory) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) >= len(m.ROM) {
			return 0xFF
		}
		return m.ROM[addr]

	case addr < 0x8000:
		index := m.bank*0x4000 + int(addr) - 0x4000
		if index >= len(m.ROM) {
			return 0xFF
		}
		return m.ROM[index]

	case addr == AddrSTAT:
		return 0 // mode 0, VRAM accessible

	case addr == AddrLY:
		return VBlankLine

	default:
		return m.RAM[addr-0x8000]
	}
}

// Write writes a byte at the given address.
func (m *Memory) Write(addr uint16, value byte) {
	switch {
	case addr >= 0x2000 && addr < 0x4000:
		bank := int(value & 0x7F)
		if bank == 0 {
			bank = 1
		}
		m.bank = bank

	case addr < 0x8000: // ROM writes outside the bank select are ignored

	default:
		m.RAM[addr-0x8000] = value
	}
}

// CPU is a reference interpreter for the emitted instruction subset.
// It is not cycle exact, it implements the documented register and flag
// semantics that the code generator relies on.
type CPU struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16

	IME    bool
	Halted bool

	Mem *Memory
}

// New creates a CPU executing the given cartridge image, with the stack
// pointer and program counter in the boot handoff state.
func New(rom []byte) *CPU {
	return &CPU{
		SP:  StackTop,
		PC:  0x0100,
		Mem: NewMemory(rom),
	}
}

// BC returns the BC register pair.
func (c *CPU) BC() uint16 { return uint16(c.B)<<8 | uint16(c.C) }

// DE returns the DE register pair.
func (c *CPU) DE() uint16 { return uint16(c.D)<<8 | uint16(c.E) }

// HL returns the HL register pair.
func (c *CPU) HL() uint16 { return uint16(c.H)<<8 | uint16(c.L) }

// SetBC sets the BC register pair.
func (c *CPU) SetBC(value uint16) { c.B = byte(value >> 8); c.C = byte(value) }

// SetDE sets the DE register pair.
func (c *CPU) SetDE(value uint16) { c.D = byte(value >> 8); c.E = byte(value) }

// SetHL sets the HL register pair.
func (c *CPU) SetHL(value uint16) { c.H = byte(value >> 8); c.L = byte(value) }

// ReadWord reads a little endian word from memory.
func (c *CPU) ReadWord(addr uint16) uint16 {
	return uint16(c.Mem.Read(addr)) | uint16(c.Mem.Read(addr+1))<<8
}

// Run executes instructions until the CPU halts or maxSteps instructions
// were executed. It returns the number of executed instructions.
func (c *CPU) Run(maxSteps int) (int, error) {
	for step := 0; step < maxSteps; step++ {
		if c.Halted {
			return step, nil
		}
		if err := c.Step(); err != nil {
			return step, err
		}
	}
	if !c.Halted {
		return maxSteps, fmt.Errorf("execution did not halt within %d steps", maxSteps)
	}
	return maxSteps, nil
}

func (c *CPU) fetch() byte {
	value := c.Mem.Read(c.PC)
	c.PC++
	return value
}

func (c *CPU) fetchWord() uint16 {
	lo := c.fetch()
	hi := c.fetch()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) reg(index Reg) byte {
	switch index {
	case B:
		return c.B
	case C:
		return c.C
	case D:
		return c.D
	case E:
		return c.E
	case H:
		return c.H
	case L:
		return c.L
	case IndHL:
		return c.Mem.Read(c.HL())
	default:
		return c.A
	}
}

func (c *CPU) setReg(index Reg, value byte) {
	switch index {
	case B:
		c.B = value
	case C:
		c.C = value
	case D:
		c.D = value
	case E:
		c.E = value
	case H:
		c.H = value
	case L:
		c.L = value
	case IndHL:
		c.Mem.Write(c.HL(), value)
	default:
		c.A = value
	}
}

func (c *CPU) flag(flag byte) bool {
	return c.F&flag != 0
}

func (c *CPU) setFlags(z, n, h, carry bool) {
	c.F = 0
	if z {
		c.F |= FlagZ
	}
	if n {
		c.F |= FlagN
	}
	if h {
		c.F |= FlagH
	}
	if carry {
		c.F |= FlagC
	}
}

func (c *CPU) condition(cond Cond) bool {
	switch cond {
	case CondNZ:
		return !c.flag(FlagZ)
	case CondZ:
		return c.flag(FlagZ)
	case CondNC:
		return !c.flag(FlagC)
	default:
		return c.flag(FlagC)
	}
}

func (c *CPU) push(value uint16) {
	c.SP -= 2
	c.Mem.Write(c.SP, byte(value))
	c.Mem.Write(c.SP+1, byte(value>>8))
}

func (c *CPU) pop() uint16 {
	lo := c.Mem.Read(c.SP)
	hi := c.Mem.Read(c.SP + 1)
	c.SP += 2
	return uint16(hi)<<8 | uint16(lo)
}

// Step executes a single instruction.
func (c *CPU) Step() error {
	op := c.fetch()

	switch {
	case op == Halt:
		c.Halted = true
		return nil

	case op >= 0x40 && op <= 0x7F: // LD r,r'
		c.setReg(Reg(op>>3&7), c.reg(Reg(op&7)))
		return nil

	case op >= 0x80 && op <= 0xBF: // ALU A,r
		c.alu(Alu(op>>3&7), c.reg(Reg(op&7)))
		return nil

	case op&0xC7 == 0x06: // LD r,d8
		c.setReg(Reg(op>>3&7), c.fetch())
		return nil

	case op&0xC7 == 0x04: // INC r
		c.incReg(Reg(op >> 3 & 7))
		return nil

	case op&0xC7 == 0x05: // DEC r
		c.decReg(Reg(op >> 3 & 7))
		return nil

	case op&0xC7 == 0xC6: // ALU A,d8
		c.alu(Alu(op>>3&7), c.fetch())
		return nil

	case op&0xCF == 0x01: // LD rr,d16
		c.setPair(Pair(op>>4&3), c.fetchWord())
		return nil

	case op&0xCF == 0x03: // INC rr
		c.setPair(Pair(op>>4&3), c.pair(Pair(op>>4&3))+1)
		return nil

	case op&0xCF == 0x0B: // DEC rr
		c.setPair(Pair(op>>4&3), c.pair(Pair(op>>4&3))-1)
		return nil

	case op&0xCF == 0x09: // ADD HL,rr
		c.addHL(c.pair(Pair(op >> 4 & 3)))
		return nil

	case op&0xCF == 0xC5: // PUSH rr
		c.push(c.pushPair(Pair(op >> 4 & 3)))
		return nil

	case op&0xCF == 0xC1: // POP rr
		c.popPair(Pair(op>>4&3), c.pop())
		return nil

	case op&0xE7 == 0xC2: // JP cc,a16
		target := c.fetchWord()
		if c.condition(Cond(op >> 3 & 3)) {
			c.PC = target
		}
		return nil

	case op&0xE7 == 0x20: // JR cc,r8
		offset := int8(c.fetch())
		if c.condition(Cond(op >> 3 & 3)) {
			c.PC = uint16(int32(c.PC) + int32(offset))
		}
		return nil

	case op&0xE7 == 0xC4: // CALL cc,a16
		target := c.fetchWord()
		if c.condition(Cond(op >> 3 & 3)) {
			c.push(c.PC)
			c.PC = target
		}
		return nil

	case op&0xE7 == 0xC0: // RET cc
		if c.condition(Cond(op >> 3 & 3)) {
			c.PC = c.pop()
		}
		return nil

	case op&0xC7 == 0xC7: // RST
		c.push(c.PC)
		c.PC = uint16(op & 0x38)
		return nil
	}

	return c.stepMisc(op)
}

func (c *CPU) stepMisc(op byte) error {
	switch op {
	case Nop:

	case Stop:
		c.fetch()
		c.Halted = true

	case Jp:
		c.PC = c.fetchWord()

	case Jr:
		offset := int8(c.fetch())
		c.PC = uint16(int32(c.PC) + int32(offset))

	case Call:
		target := c.fetchWord()
		c.push(c.PC)
		c.PC = target

	case Ret:
		c.PC = c.pop()

	case Reti:
		c.PC = c.pop()
		c.IME = true

	case JpHL:
		c.PC = c.HL()

	case Di:
		c.IME = false

	case Ei:
		c.IME = true

	case LdBCA:
		c.Mem.Write(c.BC(), c.A)

	case LdDEA:
		c.Mem.Write(c.DE(), c.A)

	case LdABC:
		c.A = c.Mem.Read(c.BC())

	case LdADE:
		c.A = c.Mem.Read(c.DE())

	case LdHLIA:
		c.Mem.Write(c.HL(), c.A)
		c.SetHL(c.HL() + 1)

	case LdAHLI:
		c.A = c.Mem.Read(c.HL())
		c.SetHL(c.HL() + 1)

	case LdHLDA:
		c.Mem.Write(c.HL(), c.A)
		c.SetHL(c.HL() - 1)

	case LdAHLD:
		c.A = c.Mem.Read(c.HL())
		c.SetHL(c.HL() - 1)

	case LdImmA:
		c.Mem.Write(c.fetchWord(), c.A)

	case LdAImm:
		c.A = c.Mem.Read(c.fetchWord())

	case LdhImmA:
		c.Mem.Write(0xFF00+uint16(c.fetch()), c.A)

	case LdhAImm:
		c.A = c.Mem.Read(0xFF00 + uint16(c.fetch()))

	case LdhCA:
		c.Mem.Write(0xFF00+uint16(c.C), c.A)

	case LdhAC:
		c.A = c.Mem.Read(0xFF00 + uint16(c.C))

	case LdImmSP:
		addr := c.fetchWord()
		c.Mem.Write(addr, byte(c.SP))
		c.Mem.Write(addr+1, byte(c.SP>>8))

	case Cpl:
		c.A = ^c.A
		c.F |= FlagN | FlagH

	case Scf:
		c.F = c.F&FlagZ | FlagC

	case Ccf:
		c.F = c.F&(FlagZ|FlagC) ^ FlagC

	case Rlca:
		carry := c.A >> 7
		c.A = c.A<<1 | carry
		c.setFlags(false, false, false, carry != 0)

	case Rla:
		carry := byte(0)
		if c.flag(FlagC) {
			carry = 1
		}
		newCarry := c.A&0x80 != 0
		c.A = c.A<<1 | carry
		c.setFlags(false, false, false, newCarry)

	case Rrca:
		carry := c.A & 1
		c.A = c.A>>1 | carry<<7
		c.setFlags(false, false, false, carry != 0)

	case Rra:
		carry := byte(0)
		if c.flag(FlagC) {
			carry = 0x80
		}
		newCarry := c.A&1 != 0
		c.A = c.A>>1 | carry
		c.setFlags(false, false, false, newCarry)

	case Prefix:
		return c.stepCB(c.fetch())

	default:
		return fmt.Errorf("unsupported opcode 0x%02x at address 0x%04x", op, c.PC-1)
	}
	return nil
}

func (c *CPU) stepCB(op byte) error {
	reg := Reg(op & 7)
	value := c.reg(reg)

	switch op >> 3 {
	case 0: // RLC
		carry := value >> 7
		value = value<<1 | carry
		c.setFlags(value == 0, false, false, carry != 0)

	case 1: // RRC
		carry := value & 1
		value = value>>1 | carry<<7
		c.setFlags(value == 0, false, false, carry != 0)

	case 2: // RL
		carry := byte(0)
		if c.flag(FlagC) {
			carry = 1
		}
		newCarry := value&0x80 != 0
		value = value<<1 | carry
		c.setFlags(value == 0, false, false, newCarry)

	case 3: // RR
		carry := byte(0)
		if c.flag(FlagC) {
			carry = 0x80
		}
		newCarry := value&1 != 0
		value = value>>1 | carry
		c.setFlags(value == 0, false, false, newCarry)

	case 4: // SLA
		newCarry := value&0x80 != 0
		value <<= 1
		c.setFlags(value == 0, false, false, newCarry)

	case 5: // SRA
		newCarry := value&1 != 0
		value = value>>1 | value&0x80
		c.setFlags(value == 0, false, false, newCarry)

	case 6: // SWAP
		value = value<<4 | value>>4
		c.setFlags(value == 0, false, false, false)

	case 7: // SRL
		newCarry := value&1 != 0
		value >>= 1
		c.setFlags(value == 0, false, false, newCarry)

	default:
		return fmt.Errorf("unsupported CB opcode 0x%02x at address 0x%04x", op, c.PC-2)
	}

	c.setReg(reg, value)
	return nil
}

func (c *CPU) alu(op Alu, value byte) {
	switch op {
	case AluAdd:
		result := uint16(c.A) + uint16(value)
		half := c.A&0xF+value&0xF > 0xF
		c.A = byte(result)
		c.setFlags(c.A == 0, false, half, result > 0xFF)

	case AluAdc:
		carry := uint16(0)
		if c.flag(FlagC) {
			carry = 1
		}
		result := uint16(c.A) + uint16(value) + carry
		half := uint16(c.A&0xF)+uint16(value&0xF)+carry > 0xF
		c.A = byte(result)
		c.setFlags(c.A == 0, false, half, result > 0xFF)

	case AluSub:
		result := int16(c.A) - int16(value)
		half := c.A&0xF < value&0xF
		c.A = byte(result)
		c.setFlags(c.A == 0, true, half, result < 0)

	case AluSbc:
		carry := int16(0)
		if c.flag(FlagC) {
			carry = 1
		}
		result := int16(c.A) - int16(value) - carry
		half := int16(c.A&0xF)-int16(value&0xF)-carry < 0
		c.A = byte(result)
		c.setFlags(c.A == 0, true, half, result < 0)

	case AluAnd:
		c.A &= value
		c.setFlags(c.A == 0, false, true, false)

	case AluXor:
		c.A ^= value
		c.setFlags(c.A == 0, false, false, false)

	case AluOr:
		c.A |= value
		c.setFlags(c.A == 0, false, false, false)

	case AluCp:
		result := int16(c.A) - int16(value)
		half := c.A&0xF < value&0xF
		c.setFlags(byte(result) == 0, true, half, result < 0)
	}
}

func (c *CPU) incReg(reg Reg) {
	value := c.reg(reg) + 1
	c.setReg(reg, value)
	c.F = c.F&FlagC | flagIf(value == 0, FlagZ) | flagIf(value&0xF == 0, FlagH)
}

func (c *CPU) decReg(reg Reg) {
	value := c.reg(reg) - 1
	c.setReg(reg, value)
	c.F = c.F&FlagC | FlagN | flagIf(value == 0, FlagZ) | flagIf(value&0xF == 0xF, FlagH)
}

func (c *CPU) addHL(value uint16) {
	hl := c.HL()
	result := uint32(hl) + uint32(value)
	half := hl&0xFFF+value&0xFFF > 0xFFF
	c.SetHL(uint16(result))
	c.F = c.F&FlagZ | flagIf(half, FlagH) | flagIf(result > 0xFFFF, FlagC)
}

func (c *CPU) pair(p Pair) uint16 {
	switch p {
	case BC:
		return c.BC()
	case DE:
		return c.DE()
	case HL:
		return c.HL()
	default:
		return c.SP
	}
}

func (c *CPU) setPair(p Pair, value uint16) {
	switch p {
	case BC:
		c.SetBC(value)
	case DE:
		c.SetDE(value)
	case HL:
		c.SetHL(value)
	default:
		c.SP = value
	}
}

// pushPair reads a pair for PUSH, where the SP encoding means AF.
func (c *CPU) pushPair(p Pair) uint16 {
	if p == AF {
		return uint16(c.A)<<8 | uint16(c.F)
	}
	return c.pair(p)
}

func (c *CPU) popPair(p Pair, value uint16) {
	if p == AF {
		c.A = byte(value >> 8)
		c.F = byte(value) & 0xF0
		return
	}
	c.setPair(p, value)
}

func flagIf(cond bool, flag byte) byte {
	if cond {
		return flag
	}
	return 0
}
