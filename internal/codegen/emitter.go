package codegen

import (
	"fmt"
)

// RelocKind selects how a relocation patches the unit.
type RelocKind uint8

const (
	// RelocAbs16 patches a little endian 16-bit absolute address.
	RelocAbs16 RelocKind = iota
	// RelocBank8 patches a single byte with the ROM bank number holding the
	// symbol.
	RelocBank8
)

// Reloc is an address reference that can only be resolved once the ROM
// layout has assigned final addresses.
type Reloc struct {
	Kind   RelocKind
	Pos    int    // byte position of the patched field within the unit
	Symbol string // referenced symbol, empty for unit local references
	Local  bool   // reference into the same unit
	Offset int    // byte offset within the target, added to its base address
}

// Unit is a relocatable chunk of machine code or data named by its symbol.
type Unit struct {
	Name   string
	Bytes  []byte
	Relocs []Reloc
}

// emitter assembles one unit. Short relative jumps inside inline sequences
// use labels resolved at finish time, jumps between basic blocks and all
// cross unit references become relocations.
type emitter struct {
	buf    []byte
	relocs []Reloc

	labels   []int // label id to byte position, -1 while unbound
	relJumps []relJump

	blockRefs []blockRef
}

type relJump struct {
	pos   int // position of the displacement byte
	label int
}

type blockRef struct {
	pos   int // position of the 16-bit address field
	block int
}

func newEmitter() *emitter {
	return &emitter{}
}

func (e *emitter) pos() int {
	return len(e.buf)
}

func (e *emitter) emit(bytes ...byte) {
	e.buf = append(e.buf, bytes...)
}

func (e *emitter) imm16(value uint16) {
	e.buf = append(e.buf, byte(value), byte(value>>8))
}

// newLabel creates an unbound label for a short relative jump target.
func (e *emitter) newLabel() int {
	e.labels = append(e.labels, -1)
	return len(e.labels) - 1
}

// bind places the label at the current position.
func (e *emitter) bind(label int) {
	e.labels[label] = len(e.buf)
}

// jr emits a relative jump to a label, the displacement is patched at
// finish time.
func (e *emitter) jr(op byte, label int) {
	e.emit(op, 0)
	e.relJumps = append(e.relJumps, relJump{pos: len(e.buf) - 1, label: label})
}

// jpBlock emits an absolute jump to a basic block of the same unit.
func (e *emitter) jpBlock(op byte, block int) {
	e.emit(op)
	e.blockRefs = append(e.blockRefs, blockRef{pos: len(e.buf), block: block})
	e.imm16(0)
}

// sym16 emits a 16-bit address field referencing a symbol.
func (e *emitter) sym16(symbol string, offset int) {
	e.relocs = append(e.relocs, Reloc{
		Kind:   RelocAbs16,
		Pos:    len(e.buf),
		Symbol: symbol,
		Offset: offset,
	})
	e.imm16(0)
}

// bank8 emits a single byte holding the ROM bank of a symbol.
func (e *emitter) bank8(symbol string) {
	e.relocs = append(e.relocs, Reloc{
		Kind:   RelocBank8,
		Pos:    len(e.buf),
		Symbol: symbol,
	})
	e.emit(0)
}

// finish resolves labels and block references and seals the unit.
// blockPos maps basic block indexes to their byte positions.
func (e *emitter) finish(name string, blockPos []int) (*Unit, error) {
	for _, jump := range e.relJumps {
		target := e.labels[jump.label]
		if target < 0 {
			return nil, fmt.Errorf("unit %s: unbound jump label %d", name, jump.label)
		}
		disp := target - (jump.pos + 1)
		if disp < -128 || disp > 127 {
			return nil, fmt.Errorf("unit %s: relative jump displacement %d out of range", name, disp)
		}
		e.buf[jump.pos] = byte(disp)
	}

	for _, ref := range e.blockRefs {
		if ref.block < 0 || ref.block >= len(blockPos) {
			return nil, fmt.Errorf("unit %s: jump to unknown block %d", name, ref.block)
		}
		e.relocs = append(e.relocs, Reloc{
			Kind:   RelocAbs16,
			Pos:    ref.pos,
			Local:  true,
			Offset: blockPos[ref.block],
		})
	}

	return &Unit{
		Name:   name,
		Bytes:  e.buf,
		Relocs: e.relocs,
	}, nil
}
