package lr35902

// Fixed opcodes without register fields.
const (
	Nop      = 0x00
	Stop     = 0x10
	Jr       = 0x18
	Halt     = 0x76
	Jp       = 0xC3
	Call     = 0xCD
	Ret      = 0xC9
	Reti     = 0xD9
	JpHL     = 0xE9
	Di       = 0xF3
	Ei       = 0xFB
	Prefix   = 0xCB
	Rlca     = 0x07
	Rla      = 0x17
	Rrca     = 0x0F
	Rra      = 0x1F
	Daa      = 0x27
	Cpl      = 0x2F
	Scf      = 0x37
	Ccf      = 0x3F
	LdBCA    = 0x02
	LdDEA    = 0x12
	LdHLIA   = 0x22 // LD (HL+),A
	LdHLDA   = 0x32 // LD (HL-),A
	LdABC    = 0x0A
	LdADE    = 0x1A
	LdAHLI   = 0x2A // LD A,(HL+)
	LdAHLD   = 0x3A // LD A,(HL-)
	LdhImmA  = 0xE0 // LDH (a8),A
	LdhAImm  = 0xF0 // LDH A,(a8)
	LdhCA    = 0xE2
	LdhAC    = 0xF2
	LdImmA   = 0xEA // LD (a16),A
	LdAImm   = 0xFA // LD A,(a16)
	LdImmSP  = 0x08
	LdHLImm8 = 0x36 // LD (HL),d8
)

// LdRI returns LD r,d8.
func LdRI(r Reg) byte { return 0x06 | byte(r)<<3 }

// LdRR returns LD dst,src.
func LdRR(dst, src Reg) byte { return 0x40 | byte(dst)<<3 | byte(src) }

// LdPairImm returns LD rr,d16.
func LdPairImm(p Pair) byte { return 0x01 | byte(p)<<4 }

// IncPair returns INC rr.
func IncPair(p Pair) byte { return 0x03 | byte(p)<<4 }

// DecPair returns DEC rr.
func DecPair(p Pair) byte { return 0x0B | byte(p)<<4 }

// AddHLPair returns ADD HL,rr.
func AddHLPair(p Pair) byte { return 0x09 | byte(p)<<4 }

// IncR returns INC r.
func IncR(r Reg) byte { return 0x04 | byte(r)<<3 }

// DecR returns DEC r.
func DecR(r Reg) byte { return 0x05 | byte(r)<<3 }

// AluR returns the register form of an ALU operation on A.
func AluR(op Alu, r Reg) byte { return 0x80 | byte(op)<<3 | byte(r) }

// AluImm returns the immediate form of an ALU operation on A.
func AluImm(op Alu) byte { return 0xC6 | byte(op)<<3 }

// Push returns PUSH rr with AF encoded as SP.
func Push(p Pair) byte { return 0xC5 | byte(p)<<4 }

// Pop returns POP rr with AF encoded as SP.
func Pop(p Pair) byte { return 0xC1 | byte(p)<<4 }

// JpCond returns JP cc,a16.
func JpCond(c Cond) byte { return 0xC2 | byte(c)<<3 }

// JrCond returns JR cc,r8.
func JrCond(c Cond) byte { return 0x20 | byte(c)<<3 }

// CallCond returns CALL cc,a16.
func CallCond(c Cond) byte { return 0xC4 | byte(c)<<3 }

// RetCond returns RET cc.
func RetCond(c Cond) byte { return 0xC0 | byte(c)<<3 }

// Rst returns RST vec for vec in 0x00..0x38.
func Rst(vec byte) byte { return 0xC7 | vec }

// CB prefixed rotate/shift opcodes.
func CBRlc(r Reg) byte  { return 0x00 | byte(r) }
func CBRrc(r Reg) byte  { return 0x08 | byte(r) }
func CBRl(r Reg) byte   { return 0x10 | byte(r) }
func CBRr(r Reg) byte   { return 0x18 | byte(r) }
func CBSla(r Reg) byte  { return 0x20 | byte(r) }
func CBSra(r Reg) byte  { return 0x28 | byte(r) }
func CBSwap(r Reg) byte { return 0x30 | byte(r) }
func CBSrl(r Reg) byte  { return 0x38 | byte(r) }

// InstructionSize returns the byte size of an instruction by its first
// opcode byte. CB prefixed instructions are always two bytes.
func InstructionSize(op byte) int {
	switch op {
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E, // LD r,d8
		0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE, // ALU d8
		0xE0, 0xF0, // LDH
		0x18, 0x20, 0x28, 0x30, 0x38, // JR
		0xE8, 0xF8, // ADD SP / LD HL,SP+r8
		0x10,       // STOP
		Prefix:
		return 2
	case 0x01, 0x11, 0x21, 0x31, // LD rr,d16
		0x08,                         // LD (a16),SP
		0xC3, 0xC2, 0xCA, 0xD2, 0xDA, // JP
		0xCD, 0xC4, 0xCC, 0xD4, 0xDC, // CALL
		0xEA, 0xFA: // LD (a16),A / LD A,(a16)
		return 3
	default:
		return 1
	}
}
