package lr35902

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

// testROM builds a minimal 32 KiB image with the entry vector jumping to
// the given program, which must end in HALT.
func testROM(program []byte) []byte {
	rom := make([]byte, 0x8000)
	rom[0x0100] = Nop
	rom[0x0101] = Jp
	rom[0x0102] = 0x50
	rom[0x0103] = 0x01
	copy(rom[0x0150:], program)
	return rom
}

func runProgram(t *testing.T, program []byte) *CPU {
	t.Helper()
	cpu := New(testROM(program))
	_, err := cpu.Run(10_000)
	assert.NoError(t, err)
	assert.True(t, cpu.Halted)
	return cpu
}

func TestLoadAndStore(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdRI(A), 0x42,
		LdImmA, 0x00, 0xC0, // LD (0xC000),A
		LdAImm, 0x00, 0xC0, // LD A,(0xC000)
		LdRR(B, A),
		Halt,
	})

	assert.Equal(t, byte(0x42), cpu.B)
	assert.Equal(t, byte(0x42), cpu.Mem.Read(0xC000))
}

func TestAddHL16BitCarry(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdPairImm(HL), 0xFF, 0xFF,
		LdPairImm(DE), 0x01, 0x00,
		AddHLPair(DE),
		Halt,
	})

	assert.Equal(t, uint16(0), cpu.HL())
	assert.Equal(t, FlagC, cpu.F&FlagC)
}

func TestAluCarryChain(t *testing.T) {
	// 0x00FF + 0x0001 byte-wise with ADC
	cpu := runProgram(t, []byte{
		LdRI(A), 0xFF,
		AluImm(AluAdd), 0x01, // sets carry
		LdRR(B, A), // B = 0x00
		LdRI(A), 0x00,
		AluImm(AluAdc), 0x00, // A = carry
		LdRR(C, A), // C = 0x01
		Halt,
	})

	assert.Equal(t, byte(0x00), cpu.B)
	assert.Equal(t, byte(0x01), cpu.C)
}

func TestSbcBorrow(t *testing.T) {
	// 0x0100 - 0x0001 byte-wise
	cpu := runProgram(t, []byte{
		LdRI(A), 0x00,
		AluImm(AluSub), 0x01, // A = 0xFF, borrow set
		LdRR(C, A),
		LdRI(A), 0x01,
		AluImm(AluSbc), 0x00, // A = 0x00
		LdRR(B, A),
		Halt,
	})

	assert.Equal(t, uint16(0x00FF), cpu.BC())
}

func TestIncPairPreservesCarry(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdRI(A), 0xFF,
		AluImm(AluAdd), 0x01, // carry set
		IncPair(DE),
		LdRI(A), 0x00,
		AluImm(AluAdc), 0x00, // A = 1 if the carry survived
		Halt,
	})

	assert.Equal(t, byte(1), cpu.A)
}

func TestPushPop(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdPairImm(BC), 0x34, 0x12,
		Push(BC),
		Pop(DE),
		Halt,
	})

	assert.Equal(t, uint16(0x1234), cpu.DE())
	assert.Equal(t, uint16(StackTop), cpu.SP)
}

func TestConditionalJumps(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdRI(A), 0x00,
		AluR(AluOr, A), // Z set
		JpCond(CondZ), 0x5A, 0x01, // jump to 0x015A
		LdRI(B), 0xEE, // skipped
		Halt,
		Nop,
		LdRI(B), 0x77, // 0x015A
		Halt,
	})

	assert.Equal(t, byte(0x77), cpu.B)
}

func TestRelativeJumpBackward(t *testing.T) {
	// count A from 0 to 3 in a JR loop
	cpu := runProgram(t, []byte{
		LdRI(A), 0x00, // 0x0150
		IncR(A),                 // 0x0152
		AluImm(AluCp), 0x03,     // 0x0153
		JrCond(CondNZ), 0xFB,    // 0x0155, back to 0x0152
		Halt, // 0x0157
	})

	assert.Equal(t, byte(3), cpu.A)
}

func TestCallRet(t *testing.T) {
	cpu := runProgram(t, []byte{
		Call, 0x55, 0x01, // 0x0150: call 0x0155
		Halt, // 0x0153
		Nop,  // 0x0154
		LdRI(B), 0x99, // 0x0155
		Ret, // 0x0157
	})

	assert.Equal(t, byte(0x99), cpu.B)
	assert.Equal(t, uint16(StackTop), cpu.SP)
}

func TestCBShifts(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdRI(E), 0x81,
		Prefix, CBSla(E), // E = 0x02, carry out 1
		LdRI(D), 0x00,
		Prefix, CBRl(D), // D = carry = 1
		LdRI(H), 0x90,
		Prefix, CBSra(H), // H = 0xC8, arithmetic
		LdRI(L), 0x90,
		Prefix, CBSrl(L), // L = 0x48, logical
		Halt,
	})

	assert.Equal(t, byte(0x02), cpu.E)
	assert.Equal(t, byte(0x01), cpu.D)
	assert.Equal(t, byte(0xC8), cpu.H)
	assert.Equal(t, byte(0x48), cpu.L)
}

func TestHLIncrementingLoads(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdPairImm(HL), 0x00, 0xC0,
		LdRI(A), 0x11,
		LdHLIA, // (0xC000) = 0x11, HL = 0xC001
		LdRI(A), 0x22,
		LdRR(IndHL, A), // (0xC001) = 0x22
		LdPairImm(HL), 0x00, 0xC0,
		LdAHLI,
		LdRR(B, A),
		LdRR(A, IndHL),
		LdRR(C, A),
		Halt,
	})

	assert.Equal(t, uint16(0x1122), cpu.BC())
}

func TestStatusRegistersReadOpen(t *testing.T) {
	cpu := runProgram(t, []byte{
		LdhAImm, byte(AddrSTAT & 0xFF),
		LdRR(B, A),
		LdhAImm, byte(AddrLY & 0xFF),
		LdRR(C, A),
		Halt,
	})

	assert.Equal(t, byte(0), cpu.B)
	assert.Equal(t, byte(VBlankLine), cpu.C)
}

func TestBankSelect(t *testing.T) {
	rom := make([]byte, 0x10000) // 4 banks
	rom[0x0100] = Nop
	rom[0x0101] = Jp
	rom[0x0102] = 0x50
	rom[0x0103] = 0x01
	program := []byte{
		LdAImm, 0x00, 0x40, // bank 1 byte
		LdRR(B, A),
		LdRI(A), 0x02,
		LdImmA, 0x00, 0x21, // select bank 2
		LdAImm, 0x00, 0x40,
		LdRR(C, A),
		Halt,
	}
	copy(rom[0x0150:], program)
	rom[1*0x4000] = 0xAA
	rom[2*0x4000] = 0xBB

	cpu := New(rom)
	_, err := cpu.Run(1000)
	assert.NoError(t, err)
	assert.Equal(t, byte(0xAA), cpu.B)
	assert.Equal(t, byte(0xBB), cpu.C)
}

func TestRunErrorsWithoutHalt(t *testing.T) {
	cpu := runnable(t, []byte{Jr, 0xFE}) // jr to itself
	_, err := cpu.Run(100)
	assert.Error(t, err)
}

func runnable(t *testing.T, program []byte) *CPU {
	t.Helper()
	return New(testROM(program))
}
