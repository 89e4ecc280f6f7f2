package codegen

import (
	"github.com/retroenv/ilgbc/internal/ir"
	"github.com/retroenv/ilgbc/internal/lr35902"
)

// Work RAM arena layout. Method frames are static, the compiler does not
// support recursion.
const (
	frameBase = lr35902.WRAMStart // 0xC000
	frameEnd  = 0xD000

	staticBase = 0xD000
	staticEnd  = 0xD7FE

	// HeapPointer holds the current heap bump pointer.
	HeapPointer = 0xD7FE
	// HeapStart is the first heap byte.
	HeapStart = 0xD800
	// HeapEnd is the first byte past the heap.
	HeapEnd = 0xE000
)

// tempSlotSize is the byte size of one stack temporary slot. Slots are
// uniformly sized so a temporary's address depends only on its depth.
const tempSlotSize = 4

// frame is the static work RAM frame of one method.
type frame struct {
	params []int // parameter slot addresses
	locals []int // local slot addresses
	temps  int   // base address of the temporary slots
	size   int
}

func (f *frame) temp(depth int) int {
	return f.temps + depth*tempSlotSize
}

// allocFrames assigns every method a frame in the arena, in declaration
// order.
func allocFrames(module *ir.Module) (map[string]*frame, error) {
	frames := make(map[string]*frame, len(module.Methods))
	next := frameBase

	for _, method := range module.Methods {
		f := &frame{}
		addr := next

		for _, width := range method.Params {
			f.params = append(f.params, addr)
			addr += width.Size()
		}
		for _, width := range method.Locals {
			f.locals = append(f.locals, addr)
			addr += width.Size()
		}
		f.temps = addr
		addr += method.MaxDepth * tempSlotSize
		f.size = addr - next

		if addr > frameEnd {
			return nil, &AllocationError{
				Method: method.Name,
				Region: "work ram frame space",
				Needed: f.size,
				Limit:  frameEnd - next,
			}
		}
		frames[method.Name] = f
		next = addr
	}
	return frames, nil
}
