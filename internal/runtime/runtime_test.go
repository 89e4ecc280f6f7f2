package runtime_test

import (
	"testing"

	"github.com/retroenv/ilgbc/internal/codegen"
	"github.com/retroenv/ilgbc/internal/lr35902"
	"github.com/retroenv/ilgbc/internal/rom"
	"github.com/retroenv/ilgbc/internal/runtime"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// runProgram links a hand assembled entry unit with the runtime library
// and executes the resulting cartridge on the reference CPU. A halt is
// appended so that execution stops after the last emitted instruction.
func runProgram(t *testing.T, build func(a *codegen.Assembler)) *lr35902.CPU {
	t.Helper()

	a := codegen.NewAssembler()
	build(a)
	a.Emit(lr35902.Halt, lr35902.Nop)
	entry, err := a.Finish("main")
	assert.NoError(t, err)

	units, err := runtime.Units()
	assert.NoError(t, err)

	program := &codegen.Program{Units: []*codegen.Unit{entry}}
	image, err := rom.Build(log.NewTestLogger(t), program, units, rom.Options{Title: "RUNTIME"})
	assert.NoError(t, err)

	cpu := lr35902.New(image)
	_, err = cpu.Run(500_000)
	assert.NoError(t, err)
	return cpu
}

func loadHL(a *codegen.Assembler, value uint16) {
	a.Emit(lr35902.LdPairImm(lr35902.HL))
	a.Imm16(value)
}

func loadDE(a *codegen.Assembler, value uint16) {
	a.Emit(lr35902.LdPairImm(lr35902.DE))
	a.Imm16(value)
}

func loadBC(a *codegen.Assembler, value uint16) {
	a.Emit(lr35902.LdPairImm(lr35902.BC))
	a.Imm16(value)
}

func call(a *codegen.Assembler, symbol string) {
	a.Emit(lr35902.Call)
	a.Sym16(symbol)
}

func storeByte(a *codegen.Assembler, addr uint16, value byte) {
	a.Emit(lr35902.LdRI(lr35902.A), value)
	a.Emit(lr35902.LdImmA)
	a.Imm16(addr)
}

func initHeap(a *codegen.Assembler) {
	storeByte(a, codegen.HeapPointer, byte(codegen.HeapStart&0xFF))
	storeByte(a, codegen.HeapPointer+1, byte(codegen.HeapStart>>8))
}

// storeHL spills the HL result to RAM so the halted CPU state can be
// inspected without relying on register survival across the final halt.
func storeHL(a *codegen.Assembler, addr uint16) {
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.L))
	a.Emit(lr35902.LdImmA)
	a.Imm16(addr)
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.LdImmA)
	a.Imm16(addr + 1)
}

func TestMul16(t *testing.T) {
	tests := []struct {
		left, right uint16
		want        uint16
	}{
		{left: 123, right: 45, want: 5535},
		{left: 0, right: 500, want: 0},
		{left: 1, right: 0xFFFF, want: 0xFFFF},
		{left: 0x8000, right: 2, want: 0}, // wraps modulo 2^16
		{left: 257, right: 255, want: 0xFFFF},
	}

	for _, test := range tests {
		cpu := runProgram(t, func(a *codegen.Assembler) {
			loadHL(a, test.left)
			loadDE(a, test.right)
			call(a, codegen.SymMul16)
			storeHL(a, 0xC000)
		})
		assert.Equal(t, test.want, cpu.ReadWord(0xC000))
	}
}

func TestUDiv16(t *testing.T) {
	tests := []struct {
		dividend, divisor uint16
		quotient, rem     uint16
	}{
		{dividend: 1000, divisor: 7, quotient: 142, rem: 6},
		{dividend: 6, divisor: 7, quotient: 0, rem: 6},
		{dividend: 0xFFFF, divisor: 1, quotient: 0xFFFF, rem: 0},
		// divisor above 0x8000 forces the carry out of the remainder shift
		{dividend: 0xFFFF, divisor: 0x9000, quotient: 1, rem: 0x6FFF},
		{dividend: 0x8000, divisor: 0x8000, quotient: 1, rem: 0},
	}

	for _, test := range tests {
		cpu := runProgram(t, func(a *codegen.Assembler) {
			loadHL(a, test.dividend)
			loadDE(a, test.divisor)
			call(a, codegen.SymUDiv16)
			storeHL(a, 0xC000)
			a.Emit(lr35902.LdRR(lr35902.H, lr35902.B))
			a.Emit(lr35902.LdRR(lr35902.L, lr35902.C))
			storeHL(a, 0xC002)
		})
		assert.Equal(t, test.quotient, cpu.ReadWord(0xC000))
		assert.Equal(t, test.rem, cpu.ReadWord(0xC002))
	}
}

func TestSDiv16(t *testing.T) {
	tests := []struct {
		dividend, divisor uint16
		quotient, rem     uint16
	}{
		// -7 / 2 = -3 remainder -1, truncated division
		{dividend: 0xFFF9, divisor: 2, quotient: 0xFFFD, rem: 0xFFFF},
		// 7 / -2 = -3 remainder 1
		{dividend: 7, divisor: 0xFFFE, quotient: 0xFFFD, rem: 1},
		// -7 / -2 = 3 remainder -1
		{dividend: 0xFFF9, divisor: 0xFFFE, quotient: 3, rem: 0xFFFF},
		{dividend: 7, divisor: 2, quotient: 3, rem: 1},
	}

	for _, test := range tests {
		cpu := runProgram(t, func(a *codegen.Assembler) {
			loadHL(a, test.dividend)
			loadDE(a, test.divisor)
			call(a, codegen.SymSDiv16)
			storeHL(a, 0xC000)
			a.Emit(lr35902.LdRR(lr35902.H, lr35902.B))
			a.Emit(lr35902.LdRR(lr35902.L, lr35902.C))
			storeHL(a, 0xC002)
		})
		assert.Equal(t, test.quotient, cpu.ReadWord(0xC000))
		assert.Equal(t, test.rem, cpu.ReadWord(0xC002))
	}
}

func TestDivByZeroTraps(t *testing.T) {
	cpu := runProgram(t, func(a *codegen.Assembler) {
		loadHL(a, 5)
		loadDE(a, 0)
		call(a, codegen.SymUDiv16)
		storeByte(a, 0xC000, 1) // never reached, the trap does not return
	})
	assert.Equal(t, byte(0), cpu.Mem.Read(0xC000))
}

func TestAlloc(t *testing.T) {
	cpu := runProgram(t, func(a *codegen.Assembler) {
		initHeap(a)
		storeByte(a, codegen.HeapStart+3, 0xAA) // dirtied, alloc must clear it

		loadHL(a, 8)
		call(a, codegen.SymAlloc)
		storeHL(a, 0xC000)

		loadHL(a, 4)
		call(a, codegen.SymAlloc)
		storeHL(a, 0xC002)
	})

	assert.Equal(t, uint16(codegen.HeapStart), cpu.ReadWord(0xC000))
	assert.Equal(t, uint16(codegen.HeapStart+8), cpu.ReadWord(0xC002))
	assert.Equal(t, byte(0), cpu.Mem.Read(codegen.HeapStart+3))
	assert.Equal(t, uint16(codegen.HeapStart+12), cpu.ReadWord(codegen.HeapPointer))
}

func TestAllocExhaustionTraps(t *testing.T) {
	cpu := runProgram(t, func(a *codegen.Assembler) {
		initHeap(a)
		loadHL(a, uint16(codegen.HeapEnd-codegen.HeapStart+1))
		call(a, codegen.SymAlloc)
		storeByte(a, 0xC000, 1)
	})
	assert.Equal(t, byte(0), cpu.Mem.Read(0xC000))
}

func TestMemcpy(t *testing.T) {
	cpu := runProgram(t, func(a *codegen.Assembler) {
		storeByte(a, 0xC100, 0x11)
		storeByte(a, 0xC101, 0x22)
		storeByte(a, 0xC102, 0x33)

		loadHL(a, 0xC100)
		loadDE(a, 0xC200)
		loadBC(a, 3)
		call(a, codegen.SymMemcpy)

		// zero length leaves the destination untouched
		loadHL(a, 0xC100)
		loadDE(a, 0xC300)
		loadBC(a, 0)
		call(a, codegen.SymMemcpy)
	})

	assert.Equal(t, byte(0x11), cpu.Mem.Read(0xC200))
	assert.Equal(t, byte(0x22), cpu.Mem.Read(0xC201))
	assert.Equal(t, byte(0x33), cpu.Mem.Read(0xC202))
	assert.Equal(t, byte(0), cpu.Mem.Read(0xC300))
}

func TestMemset(t *testing.T) {
	cpu := runProgram(t, func(a *codegen.Assembler) {
		loadHL(a, 0xC300)
		a.Emit(lr35902.LdRI(lr35902.E), 0x5A)
		loadBC(a, 4)
		call(a, codegen.SymMemset)
	})

	for addr := uint16(0xC300); addr < 0xC304; addr++ {
		assert.Equal(t, byte(0x5A), cpu.Mem.Read(addr))
	}
	assert.Equal(t, byte(0), cpu.Mem.Read(0xC304))
}
