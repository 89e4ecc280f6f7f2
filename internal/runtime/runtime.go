// Package runtime contains the hand assembled support routines linked into
// every ROM: software multiply and divide for the missing hardware
// instructions, block copy and fill, and the bump allocator.
//
// Register contracts:
//
//	__mul16:  HL = HL * DE, wraps modulo 2^16, clobbers A BC DE
//	__udiv16: HL = HL / DE, BC = HL % DE, unsigned, clobbers A
//	__sdiv16: as __udiv16 with signed operands, the remainder takes the
//	          sign of the dividend
//	__memcpy: copies BC bytes from HL to DE
//	__memset: fills BC bytes at HL with E
//	__alloc:  HL = zeroed allocation of HL bytes, advances the heap pointer
//
// Division by zero and heap exhaustion park the CPU in a disabled
// interrupt halt loop, there is no error channel at run time.
package runtime

import (
	"fmt"

	"github.com/retroenv/ilgbc/internal/codegen"
	"github.com/retroenv/ilgbc/internal/lr35902"
)

// Units assembles all runtime routines.
func Units() ([]*codegen.Unit, error) {
	builders := []struct {
		name  string
		build func(*codegen.Assembler)
	}{
		{codegen.SymMul16, mul16},
		{codegen.SymUDiv16, udiv16},
		{codegen.SymSDiv16, sdiv16},
		{codegen.SymMemcpy, memcpy},
		{codegen.SymMemset, memset},
		{codegen.SymAlloc, alloc},
	}

	units := make([]*codegen.Unit, 0, len(builders))
	for _, builder := range builders {
		a := codegen.NewAssembler()
		builder.build(a)
		unit, err := a.Finish(builder.name)
		if err != nil {
			return nil, fmt.Errorf("assembling runtime routine %s: %w", builder.name, err)
		}
		units = append(units, unit)
	}
	return units, nil
}

// mul16 is a shift and add multiply processing the multiplier from the most
// significant bit down.
func mul16(a *codegen.Assembler) {
	a.Emit(lr35902.LdRR(lr35902.B, lr35902.H))
	a.Emit(lr35902.LdRR(lr35902.C, lr35902.L))
	a.Emit(lr35902.LdPairImm(lr35902.HL))
	a.Imm16(0)
	a.Emit(lr35902.LdRI(lr35902.A), 16)

	loop := a.Label()
	skip := a.Label()
	a.Bind(loop)
	a.Emit(lr35902.AddHLPair(lr35902.HL))
	a.Emit(lr35902.Prefix, lr35902.CBSla(lr35902.E))
	a.Emit(lr35902.Prefix, lr35902.CBRl(lr35902.D))
	a.Jr(lr35902.JrCond(lr35902.CondNC), skip)
	a.Emit(lr35902.AddHLPair(lr35902.BC))
	a.Bind(skip)
	a.Emit(lr35902.DecR(lr35902.A))
	a.Jr(lr35902.JrCond(lr35902.CondNZ), loop)
	a.Emit(lr35902.Ret)
}

// udiv16 is a 16 iteration restoring division. The loop counter lives in A
// and is parked on the stack while A does the trial subtraction.
func udiv16(a *codegen.Assembler) {
	start := a.Label()
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.D))
	a.Emit(lr35902.AluR(lr35902.AluOr, lr35902.E))
	a.Jr(lr35902.JrCond(lr35902.CondNZ), start)
	trap(a)

	a.Bind(start)
	a.Emit(lr35902.LdPairImm(lr35902.BC))
	a.Imm16(0)
	a.Emit(lr35902.LdRI(lr35902.A), 16)

	loop := a.Label()
	keep := a.Label()
	next := a.Label()
	trial := a.Label()

	a.Bind(loop)
	a.Emit(lr35902.Push(lr35902.AF))
	a.Emit(lr35902.AddHLPair(lr35902.HL))
	a.Emit(lr35902.Prefix, lr35902.CBRl(lr35902.C))
	a.Emit(lr35902.Prefix, lr35902.CBRl(lr35902.B))
	// a carry out of the remainder shift exceeds any divisor,
	// the subtraction must happen
	a.Jr(lr35902.JrCond(lr35902.CondNC), trial)
	subDE(a)
	a.Emit(lr35902.IncR(lr35902.L))
	a.Jr(lr35902.Jr, next)

	a.Bind(trial)
	subDE(a)
	a.Jr(lr35902.JrCond(lr35902.CondNC), keep)
	// restore the remainder
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.C))
	a.Emit(lr35902.AluR(lr35902.AluAdd, lr35902.E))
	a.Emit(lr35902.LdRR(lr35902.C, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.AluR(lr35902.AluAdc, lr35902.D))
	a.Emit(lr35902.LdRR(lr35902.B, lr35902.A))
	a.Jr(lr35902.Jr, next)

	a.Bind(keep)
	a.Emit(lr35902.IncR(lr35902.L))

	a.Bind(next)
	a.Emit(lr35902.Pop(lr35902.AF))
	a.Emit(lr35902.DecR(lr35902.A))
	a.Jr(lr35902.JrCond(lr35902.CondNZ), loop)
	a.Emit(lr35902.Ret)
}

// subDE subtracts DE from the remainder in BC.
func subDE(a *codegen.Assembler) {
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.C))
	a.Emit(lr35902.AluR(lr35902.AluSub, lr35902.E))
	a.Emit(lr35902.LdRR(lr35902.C, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.AluR(lr35902.AluSbc, lr35902.D))
	a.Emit(lr35902.LdRR(lr35902.B, lr35902.A))
}

// sdiv16 reduces signed division to the unsigned core. Quotient and
// remainder signs follow truncated division.
func sdiv16(a *codegen.Assembler) {
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.AluR(lr35902.AluXor, lr35902.D))
	a.Emit(lr35902.Push(lr35902.AF)) // quotient sign
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.Push(lr35902.AF)) // remainder sign

	dividendOK := a.Label()
	a.Emit(lr35902.Rla)
	a.Jr(lr35902.JrCond(lr35902.CondNC), dividendOK)
	negateHL(a)
	a.Bind(dividendOK)

	divisorOK := a.Label()
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.D))
	a.Emit(lr35902.Rla)
	a.Jr(lr35902.JrCond(lr35902.CondNC), divisorOK)
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.D))
	a.Emit(lr35902.Cpl)
	a.Emit(lr35902.LdRR(lr35902.D, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.E))
	a.Emit(lr35902.Cpl)
	a.Emit(lr35902.LdRR(lr35902.E, lr35902.A))
	a.Emit(lr35902.IncPair(lr35902.DE))
	a.Bind(divisorOK)

	a.Emit(lr35902.Call)
	a.Sym16(codegen.SymUDiv16)

	remainderOK := a.Label()
	a.Emit(lr35902.Pop(lr35902.AF))
	a.Emit(lr35902.Rla)
	a.Jr(lr35902.JrCond(lr35902.CondNC), remainderOK)
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.Cpl)
	a.Emit(lr35902.LdRR(lr35902.B, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.C))
	a.Emit(lr35902.Cpl)
	a.Emit(lr35902.LdRR(lr35902.C, lr35902.A))
	a.Emit(lr35902.IncPair(lr35902.BC))
	a.Bind(remainderOK)

	quotientOK := a.Label()
	a.Emit(lr35902.Pop(lr35902.AF))
	a.Emit(lr35902.Rla)
	a.Jr(lr35902.JrCond(lr35902.CondNC), quotientOK)
	negateHL(a)
	a.Bind(quotientOK)
	a.Emit(lr35902.Ret)
}

// negateHL computes the two's complement of HL.
func negateHL(a *codegen.Assembler) {
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.Cpl)
	a.Emit(lr35902.LdRR(lr35902.H, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.L))
	a.Emit(lr35902.Cpl)
	a.Emit(lr35902.LdRR(lr35902.L, lr35902.A))
	a.Emit(lr35902.IncPair(lr35902.HL))
}

func memcpy(a *codegen.Assembler) {
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.AluR(lr35902.AluOr, lr35902.C))
	a.Emit(lr35902.RetCond(lr35902.CondZ))

	loop := a.Label()
	a.Bind(loop)
	a.Emit(lr35902.LdAHLI)
	a.Emit(lr35902.LdDEA)
	a.Emit(lr35902.IncPair(lr35902.DE))
	a.Emit(lr35902.DecPair(lr35902.BC))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.AluR(lr35902.AluOr, lr35902.C))
	a.Jr(lr35902.JrCond(lr35902.CondNZ), loop)
	a.Emit(lr35902.Ret)
}

func memset(a *codegen.Assembler) {
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.AluR(lr35902.AluOr, lr35902.C))
	a.Emit(lr35902.RetCond(lr35902.CondZ))

	loop := a.Label()
	a.Bind(loop)
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.E))
	a.Emit(lr35902.LdHLIA)
	a.Emit(lr35902.DecPair(lr35902.BC))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.B))
	a.Emit(lr35902.AluR(lr35902.AluOr, lr35902.C))
	a.Jr(lr35902.JrCond(lr35902.CondNZ), loop)
	a.Emit(lr35902.Ret)
}

// alloc bumps the heap pointer by HL bytes, zero fills the block and
// returns its base in HL.
func alloc(a *codegen.Assembler) {
	heap := codegen.HeapPointer

	a.Emit(lr35902.LdAImm)
	a.Imm16(uint16(heap))
	a.Emit(lr35902.LdRR(lr35902.E, lr35902.A))
	a.Emit(lr35902.LdAImm)
	a.Imm16(uint16(heap + 1))
	a.Emit(lr35902.LdRR(lr35902.D, lr35902.A))
	a.Emit(lr35902.AddHLPair(lr35902.DE))

	ok := a.Label()
	high := a.Label()
	a.Jr(lr35902.JrCond(lr35902.CondC), high) // address wrap
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.AluImm(lr35902.AluCp), byte(codegen.HeapEnd>>8))
	a.Jr(lr35902.JrCond(lr35902.CondC), ok)
	a.Bind(high)
	trap(a)

	a.Bind(ok)
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.L))
	a.Emit(lr35902.LdImmA)
	a.Imm16(uint16(heap))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.LdImmA)
	a.Imm16(uint16(heap + 1))

	// BC = block size, HL = block base, then zero fill
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.L))
	a.Emit(lr35902.AluR(lr35902.AluSub, lr35902.E))
	a.Emit(lr35902.LdRR(lr35902.C, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.A, lr35902.H))
	a.Emit(lr35902.AluR(lr35902.AluSbc, lr35902.D))
	a.Emit(lr35902.LdRR(lr35902.B, lr35902.A))
	a.Emit(lr35902.LdRR(lr35902.H, lr35902.D))
	a.Emit(lr35902.LdRR(lr35902.L, lr35902.E))
	a.Emit(lr35902.Push(lr35902.HL))
	a.Emit(lr35902.LdRI(lr35902.E), 0)
	a.Emit(lr35902.Call)
	a.Sym16(codegen.SymMemset)
	a.Emit(lr35902.Pop(lr35902.HL))
	a.Emit(lr35902.Ret)
}

// trap parks the CPU with interrupts disabled, the run time error channel
// of the target.
func trap(a *codegen.Assembler) {
	label := a.Label()
	a.Bind(label)
	a.Emit(lr35902.Di)
	a.Emit(lr35902.Halt, lr35902.Nop)
	a.Jr(lr35902.Jr, label)
}
