package codegen

import (
	"github.com/retroenv/ilgbc/internal/lr35902"
)

// startup builds the reset stub placed at the code start address. It sets
// up the stack and heap, initializes the static field region, calls the
// program entry point and parks the CPU when it returns.
func (g *generator) startup() (*Unit, error) {
	e := newEmitter()

	e.emit(lr35902.Di)
	e.emit(lr35902.LdPairImm(lr35902.SP))
	e.imm16(lr35902.StackTop)

	// heap bump pointer starts at the heap base
	e.emit(lr35902.LdRI(lr35902.A), byte(HeapStart&0xFF))
	e.emit(lr35902.LdImmA)
	e.imm16(HeapPointer)
	e.emit(lr35902.LdRI(lr35902.A), byte(HeapStart>>8))
	e.emit(lr35902.LdImmA)
	e.imm16(HeapPointer + 1)

	statics := g.module.StaticSize
	if statics > 0 {
		e.emit(lr35902.LdPairImm(lr35902.HL))
		e.imm16(staticBase)
		e.emit(lr35902.LdRI(lr35902.E), 0)
		e.emit(lr35902.LdPairImm(lr35902.BC))
		e.imm16(uint16(statics))
		e.emit(lr35902.Call)
		e.sym16(SymMemset, 0)
	}
	if len(g.module.StaticInit) > 0 {
		e.emit(lr35902.LdPairImm(lr35902.HL))
		e.sym16(SymStatics, 0)
		e.emit(lr35902.LdPairImm(lr35902.DE))
		e.imm16(staticBase)
		e.emit(lr35902.LdPairImm(lr35902.BC))
		e.imm16(uint16(len(g.module.StaticInit)))
		e.emit(lr35902.Call)
		e.sym16(SymMemcpy, 0)
	}

	e.emit(lr35902.Call)
	e.sym16(g.module.Entry, 0)

	// the entry point returned, park the CPU
	park := e.newLabel()
	e.bind(park)
	e.emit(lr35902.Halt, lr35902.Nop)
	e.jr(lr35902.Jr, park)

	return e.finish(SymStart, nil)
}
