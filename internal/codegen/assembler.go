package codegen

// Assembler exposes the unit emitter for hand assembled routines, the
// runtime library builds its units through it.
type Assembler struct {
	e *emitter
}

func NewAssembler() *Assembler {
	return &Assembler{e: newEmitter()}
}

// Emit appends raw instruction bytes.
func (a *Assembler) Emit(bytes ...byte) {
	a.e.emit(bytes...)
}

// Imm16 appends a little endian 16-bit immediate.
func (a *Assembler) Imm16(value uint16) {
	a.e.imm16(value)
}

// Label creates an unbound jump label.
func (a *Assembler) Label() int {
	return a.e.newLabel()
}

// Bind places a label at the current position.
func (a *Assembler) Bind(label int) {
	a.e.bind(label)
}

// Jr emits a relative jump instruction to a label.
func (a *Assembler) Jr(op byte, label int) {
	a.e.jr(op, label)
}

// Sym16 emits a 16-bit address field relocated against a symbol.
func (a *Assembler) Sym16(symbol string) {
	a.e.sym16(symbol, 0)
}

// Finish seals the unit under the given symbol name.
func (a *Assembler) Finish(name string) (*Unit, error) {
	return a.e.finish(name, nil)
}
