// Package lr35902 contains the target CPU definitions: register and
// condition encodings, instruction opcode constructors with their sizes,
// and a reference interpreter used by tests and output verification.
//
// The LR35902 is the Game Boy CPU: an 8-bit core with a 16-bit address bus,
// seven general purpose registers usable as three 16-bit pairs, and no
// hardware multiply or divide.
package lr35902

// Reg encodes an 8-bit register in the 3 bit instruction fields.
type Reg byte

const (
	B Reg = iota
	C
	D
	E
	H
	L
	IndHL // memory operand (HL)
	A
)

func (r Reg) String() string {
	return [...]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}[r]
}

// Pair encodes a 16-bit register pair in the 2 bit instruction fields.
type Pair byte

const (
	BC Pair = iota
	DE
	HL
	SP
	AF = SP // PUSH/POP encode AF where other instructions encode SP
)

// Cond encodes a jump condition.
type Cond byte

const (
	CondNZ Cond = iota
	CondZ
	CondNC
	CondC
)

// Alu encodes the operation of the 0x80-0xBF block.
type Alu byte

const (
	AluAdd Alu = iota
	AluAdc
	AluSub
	AluSbc
	AluAnd
	AluXor
	AluOr
	AluCp
)

// Hardware register addresses used by intrinsic lowerings.
const (
	AddrSTAT   = 0xFF41 // LCD status, bit 1 set while VRAM is inaccessible
	AddrLY     = 0xFF44 // current scanline, 144 marks the vertical blank start
	VBlankLine = 144
)

// Memory map constants of the target.
const (
	StackTop  = 0xFFFE
	WRAMStart = 0xC000
	WRAMEnd   = 0xDFFF
	VRAMStart = 0x8000

	// MBC1 ROM bank select register window.
	BankSelect = 0x2100
)
