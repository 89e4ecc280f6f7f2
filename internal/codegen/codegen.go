// Package codegen lowers the IR into LR35902 machine code. Every method
// becomes one relocatable unit, cross unit address references stay symbolic
// until the ROM layout is fixed.
//
// Operand placement uses static work RAM frames: parameters, locals and
// stack temporaries of each method live at fixed addresses assigned up
// front. Values move through the accumulator, the register pairs only hold
// pointers and short lived intermediates. The convention costs recursion
// support but removes all register pressure from lowering.
//
// Calling convention: the caller writes arguments directly into the callee
// frame, the result returns in HL, 32-bit results in DE:HL with DE holding
// the high half.
package codegen

import (
	"fmt"

	"github.com/retroenv/ilgbc/internal/ir"
	"github.com/retroenv/ilgbc/internal/lr35902"
	"github.com/retroenv/retrogolib/log"
)

// Runtime routine symbols.
const (
	SymMul16   = "__mul16"
	SymUDiv16  = "__udiv16"
	SymSDiv16  = "__sdiv16"
	SymMemcpy  = "__memcpy"
	SymMemset  = "__memset"
	SymAlloc   = "__alloc"
	SymStart   = "__start"
	SymStatics = "__static_init"
)

// Program is the lowered module: one unit per method plus the startup
// stub, ready for layout.
type Program struct {
	Units []*Unit // startup first, then methods in declaration order
	Data  []ir.DataBlob

	StaticBase int
	StaticSize int
}

// Generate lowers all methods of the module.
func Generate(logger *log.Logger, module *ir.Module) (*Program, error) {
	if module.StaticSize > staticEnd-staticBase {
		return nil, &AllocationError{
			Region: "static field space",
			Needed: module.StaticSize,
			Limit:  staticEnd - staticBase,
		}
	}

	frames, err := allocFrames(module)
	if err != nil {
		return nil, err
	}

	program := &Program{
		Data:       module.Data,
		StaticBase: staticBase,
		StaticSize: module.StaticSize,
	}

	gen := &generator{module: module, frames: frames}

	startup, err := gen.startup()
	if err != nil {
		return nil, err
	}
	program.Units = append(program.Units, startup)

	if len(module.StaticInit) > 0 {
		program.Data = append(program.Data, ir.DataBlob{
			Name:  SymStatics,
			Bytes: module.StaticInit,
		})
	}

	for _, method := range module.Methods {
		unit, err := gen.method(method)
		if err != nil {
			return nil, err
		}
		program.Units = append(program.Units, unit)

		logger.Debug("Lowered method",
			log.String("method", method.Name),
			log.Int("bytes", len(unit.Bytes)),
			log.Int("relocations", len(unit.Relocs)))
	}
	return program, nil
}

type generator struct {
	module *ir.Module
	frames map[string]*frame
}

// methodGen lowers one method.
type methodGen struct {
	*generator
	*emitter

	method *ir.Method
	frame  *frame
}

func (g *generator) method(method *ir.Method) (*Unit, error) {
	mg := &methodGen{
		generator: g,
		emitter:   newEmitter(),
		method:    method,
		frame:     g.frames[method.Name],
	}

	blockPos := make([]int, len(method.Blocks))
	for i, block := range method.Blocks {
		blockPos[i] = mg.pos()
		for _, op := range block.Ops {
			if err := mg.op(op); err != nil {
				return nil, err
			}
		}
		if err := mg.terminator(block, i); err != nil {
			return nil, err
		}
	}
	return mg.finish(method.Name, blockPos)
}

// --- small instruction helpers ---

// loadA emits LD A,(addr).
func (mg *methodGen) loadA(addr int) {
	mg.emit(lr35902.LdAImm)
	mg.imm16(uint16(addr))
}

// storeA emits LD (addr),A.
func (mg *methodGen) storeA(addr int) {
	mg.emit(lr35902.LdImmA)
	mg.imm16(uint16(addr))
}

// constA emits LD A,d8.
func (mg *methodGen) constA(value byte) {
	mg.emit(lr35902.LdRI(lr35902.A), value)
}

// copyBytes copies count bytes between absolute addresses through A.
func (mg *methodGen) copyBytes(dst, src, count int) {
	for i := range count {
		mg.loadA(src + i)
		mg.storeA(dst + i)
	}
}

// loadHL loads the 16-bit value at addr into HL.
func (mg *methodGen) loadHL(addr int) {
	mg.loadA(addr)
	mg.emit(lr35902.LdRR(lr35902.L, lr35902.A))
	mg.loadA(addr + 1)
	mg.emit(lr35902.LdRR(lr35902.H, lr35902.A))
}

// loadDE loads the 16-bit value at addr into DE.
func (mg *methodGen) loadDE(addr int) {
	mg.loadA(addr)
	mg.emit(lr35902.LdRR(lr35902.E, lr35902.A))
	mg.loadA(addr + 1)
	mg.emit(lr35902.LdRR(lr35902.D, lr35902.A))
}

// loadBC loads the 16-bit value at addr into BC.
func (mg *methodGen) loadBC(addr int) {
	mg.loadA(addr)
	mg.emit(lr35902.LdRR(lr35902.C, lr35902.A))
	mg.loadA(addr + 1)
	mg.emit(lr35902.LdRR(lr35902.B, lr35902.A))
}

// storeHL stores HL to the 16-bit slot at addr. HL is preserved.
func (mg *methodGen) storeHL(addr int) {
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.L))
	mg.storeA(addr)
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.H))
	mg.storeA(addr + 1)
}

// storeDE stores DE to the 16-bit slot at addr.
func (mg *methodGen) storeDE(addr int) {
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.E))
	mg.storeA(addr)
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.D))
	mg.storeA(addr + 1)
}

// ldPair emits LD rr,d16 with an immediate value.
func (mg *methodGen) ldPair(pair lr35902.Pair, value int) {
	mg.emit(lr35902.LdPairImm(pair))
	mg.imm16(uint16(value))
}

// callSym emits CALL to a symbol.
func (mg *methodGen) callSym(symbol string) {
	mg.emit(lr35902.Call)
	mg.sym16(symbol, 0)
}

func (mg *methodGen) widthErr(op string, width ir.Width) error {
	return &WidthError{Method: mg.method.Name, Operation: op, Width: width.String()}
}

// --- operation lowering ---

func (mg *methodGen) op(op ir.Op) error {
	switch op.Kind {
	case ir.OpLoadConst:
		mg.loadConst(op)
	case ir.OpLoadLocal:
		mg.copyBytes(mg.frame.temp(op.Result), mg.frame.locals[op.Index], op.Width.Size())
	case ir.OpStoreLocal:
		mg.copyBytes(mg.frame.locals[op.Index], mg.frame.temp(op.Args[0]), op.Width.Size())
	case ir.OpLoadParam:
		mg.copyBytes(mg.frame.temp(op.Result), mg.frame.params[op.Index], op.Width.Size())
	case ir.OpStoreParam:
		mg.copyBytes(mg.frame.params[op.Index], mg.frame.temp(op.Args[0]), op.Width.Size())
	case ir.OpStaticLoad:
		mg.copyBytes(mg.frame.temp(op.Result), staticBase+op.Index, op.Width.Size())
	case ir.OpStaticStore:
		mg.copyBytes(staticBase+op.Index, mg.frame.temp(op.Args[0]), op.Width.Size())
	case ir.OpStaticAddr:
		mg.constSlot(mg.frame.temp(op.Result), int64(staticBase+op.Index), ir.W16)
	case ir.OpCopy:
		mg.copyBytes(mg.frame.temp(op.Result), mg.frame.temp(op.Args[0]), op.Width.Size())
	case ir.OpConvert:
		mg.convert(op)
	case ir.OpBinary:
		return mg.binary(op)
	case ir.OpUnary:
		mg.unary(op)
	case ir.OpCompare:
		mg.compare(op)
	case ir.OpCall:
		mg.call(op)
	case ir.OpIntrinsic:
		mg.intrinsic(op)
	case ir.OpLoadData:
		mg.loadData(op)
	case ir.OpNewArray:
		mg.newArray(op)
	case ir.OpArrayLength:
		mg.arrayLength(op)
	case ir.OpArrayLoad:
		mg.arrayLoad(op)
	case ir.OpArrayStore:
		mg.arrayStore(op)
	case ir.OpNewObject:
		mg.newObject(op)
	case ir.OpFieldLoad:
		mg.fieldLoad(op)
	case ir.OpFieldStore:
		mg.fieldStore(op)
	default:
		return fmt.Errorf("method %s: unhandled operation kind %d", mg.method.Name, op.Kind)
	}
	return nil
}

func (mg *methodGen) loadConst(op ir.Op) {
	mg.constSlot(mg.frame.temp(op.Result), op.Value, op.Width)
}

// constSlot writes an immediate value byte by byte into a slot.
func (mg *methodGen) constSlot(addr int, value int64, width ir.Width) {
	for i := range width.Size() {
		mg.constA(byte(value >> (8 * i)))
		mg.storeA(addr + i)
	}
}

func (mg *methodGen) convert(op ir.Op) {
	slot := mg.frame.temp(op.Result)

	switch {
	case op.From == ir.W8 && op.Width == ir.W16:
		mg.extend(slot, slot+1, 1, op.Unsigned)
	case op.From == ir.W16 && op.Width == ir.W32:
		mg.extend(slot+1, slot+2, 2, op.Unsigned)
	default:
		// narrowing keeps the low bytes in place and emits no code
	}
}

// extend fills count bytes starting at dst with the extension of the sign
// byte at signAddr. For the 8 to 16 bit case signAddr is the slot itself
// and dst its second byte.
func (mg *methodGen) extend(signAddr, dst, count int, unsigned bool) {
	if unsigned {
		mg.emit(lr35902.AluR(lr35902.AluXor, lr35902.A))
	} else {
		mg.loadA(signAddr)
		mg.emit(lr35902.Rla)
		mg.emit(lr35902.AluR(lr35902.AluSbc, lr35902.A)) // A = 0x00 or 0xFF
	}
	for i := range count {
		mg.storeA(dst + i)
	}
}

func (mg *methodGen) binary(op ir.Op) error {
	a := mg.frame.temp(op.Args[0])
	b := mg.frame.temp(op.Args[1])
	result := mg.frame.temp(op.Result)

	switch op.Bin {
	case ir.BinAdd:
		if op.Width == ir.W32 {
			mg.carryChain(a, b, lr35902.AluAdd, lr35902.AluAdc, 4)
			return nil
		}
		mg.loadHL(a)
		mg.loadDE(b)
		mg.emit(lr35902.AddHLPair(lr35902.DE))
		mg.storeHL(result)

	case ir.BinSub:
		mg.carryChain(a, b, lr35902.AluSub, lr35902.AluSbc, op.Width.Size())

	case ir.BinAnd, ir.BinOr, ir.BinXor:
		mg.bitwise(a, b, op.Bin, op.Width.Size())

	case ir.BinMul:
		if op.Width == ir.W32 {
			return mg.widthErr("mul", op.Width)
		}
		mg.loadHL(a)
		mg.loadDE(b)
		mg.callSym(SymMul16)
		mg.storeHL(result)

	case ir.BinDiv, ir.BinRem:
		if op.Width == ir.W32 {
			return mg.widthErr(op.Bin.String(), op.Width)
		}
		mg.loadHL(a)
		mg.loadDE(b)
		if op.Unsigned {
			mg.callSym(SymUDiv16)
		} else {
			mg.callSym(SymSDiv16)
		}
		if op.Bin == ir.BinDiv {
			mg.storeHL(result)
		} else {
			mg.emit(lr35902.LdRR(lr35902.A, lr35902.C))
			mg.storeA(result)
			mg.emit(lr35902.LdRR(lr35902.A, lr35902.B))
			mg.storeA(result + 1)
		}

	case ir.BinShl, ir.BinShr:
		if op.Width == ir.W32 {
			return mg.widthErr(op.Bin.String(), op.Width)
		}
		mg.shift(a, b, result, op.Bin == ir.BinShl, op.Unsigned)

	default:
		return fmt.Errorf("method %s: unhandled binary operation %s", mg.method.Name, op.Bin)
	}
	return nil
}

// carryChain lowers a multi byte add or sub. DE walks the destination
// operand, HL the source, the result lands back in the destination. INC rr
// leaves the carry flag alone, which keeps the chain intact.
func (mg *methodGen) carryChain(dst, src int, first, rest lr35902.Alu, count int) {
	mg.ldPair(lr35902.DE, dst)
	mg.ldPair(lr35902.HL, src)
	for i := range count {
		alu := rest
		if i == 0 {
			alu = first
		}
		mg.emit(lr35902.LdADE)
		mg.emit(lr35902.AluR(alu, lr35902.IndHL))
		mg.emit(lr35902.LdDEA)
		if i < count-1 {
			mg.emit(lr35902.IncPair(lr35902.DE))
			mg.emit(lr35902.IncPair(lr35902.HL))
		}
	}
}

// bitwise lowers AND/OR/XOR byte by byte.
func (mg *methodGen) bitwise(dst, src int, bin ir.BinOp, count int) {
	var alu lr35902.Alu
	switch bin {
	case ir.BinAnd:
		alu = lr35902.AluAnd
	case ir.BinOr:
		alu = lr35902.AluOr
	default:
		alu = lr35902.AluXor
	}

	mg.ldPair(lr35902.HL, src)
	for i := range count {
		mg.loadA(dst + i)
		mg.emit(lr35902.AluR(alu, lr35902.IndHL))
		mg.storeA(dst + i)
		if i < count-1 {
			mg.emit(lr35902.IncPair(lr35902.HL))
		}
	}
}

// shift lowers a 16-bit shift as a count loop over DE.
func (mg *methodGen) shift(value, count, result int, left, unsigned bool) {
	mg.loadDE(value)
	mg.loadA(count)

	done := mg.newLabel()
	loop := mg.newLabel()

	mg.emit(lr35902.AluR(lr35902.AluOr, lr35902.A))
	mg.jr(lr35902.JrCond(lr35902.CondZ), done)

	mg.bind(loop)
	if left {
		mg.emit(lr35902.Prefix, lr35902.CBSla(lr35902.E))
		mg.emit(lr35902.Prefix, lr35902.CBRl(lr35902.D))
	} else {
		if unsigned {
			mg.emit(lr35902.Prefix, lr35902.CBSrl(lr35902.D))
		} else {
			mg.emit(lr35902.Prefix, lr35902.CBSra(lr35902.D))
		}
		mg.emit(lr35902.Prefix, lr35902.CBRr(lr35902.E))
	}
	mg.emit(lr35902.DecR(lr35902.A))
	mg.jr(lr35902.JrCond(lr35902.CondNZ), loop)

	mg.bind(done)
	mg.storeDE(result)
}

func (mg *methodGen) unary(op ir.Op) {
	slot := mg.frame.temp(op.Result)
	count := op.Width.Size()

	mg.ldPair(lr35902.HL, slot)
	switch op.Un {
	case ir.UnNeg:
		// two's complement as 0 minus the value, byte by byte
		mg.emit(lr35902.AluR(lr35902.AluXor, lr35902.A))
		mg.emit(lr35902.AluR(lr35902.AluSub, lr35902.IndHL))
		mg.emit(lr35902.LdRR(lr35902.IndHL, lr35902.A))
		for range count - 1 {
			mg.emit(lr35902.IncPair(lr35902.HL))
			mg.constA(0) // preserves the borrow
			mg.emit(lr35902.AluR(lr35902.AluSbc, lr35902.IndHL))
			mg.emit(lr35902.LdRR(lr35902.IndHL, lr35902.A))
		}
	case ir.UnNot:
		for i := range count {
			mg.emit(lr35902.LdRR(lr35902.A, lr35902.IndHL))
			mg.emit(lr35902.Cpl)
			mg.emit(lr35902.LdRR(lr35902.IndHL, lr35902.A))
			if i < count-1 {
				mg.emit(lr35902.IncPair(lr35902.HL))
			}
		}
	}
}

func (mg *methodGen) compare(op ir.Op) {
	a := mg.frame.temp(op.Args[0])
	b := mg.frame.temp(op.Args[1])
	result := mg.frame.temp(op.Result)
	count := op.Width.Size()

	switch op.Cmp {
	case ir.CmpEq, ir.CmpNe:
		mg.equality(a, b, result, count, op.Cmp == ir.CmpEq)
	case ir.CmpLt:
		mg.ordered(a, b, result, count, op.Unsigned, false)
	case ir.CmpGt:
		mg.ordered(b, a, result, count, op.Unsigned, false)
	case ir.CmpGe:
		mg.ordered(a, b, result, count, op.Unsigned, true)
	case ir.CmpLe:
		mg.ordered(b, a, result, count, op.Unsigned, true)
	}
}

// equality materializes (a == b) or (a != b) as 0 or 1 in the result slot.
func (mg *methodGen) equality(a, b, result, count int, wantEqual bool) {
	differ := mg.newLabel()
	store := mg.newLabel()

	mg.ldPair(lr35902.HL, b)
	for i := range count {
		mg.loadA(a + i)
		mg.emit(lr35902.AluR(lr35902.AluCp, lr35902.IndHL))
		mg.jr(lr35902.JrCond(lr35902.CondNZ), differ)
		if i < count-1 {
			mg.emit(lr35902.IncPair(lr35902.HL))
		}
	}

	equalValue, differValue := byte(1), byte(0)
	if !wantEqual {
		equalValue, differValue = 0, 1
	}
	mg.constA(equalValue)
	mg.jr(lr35902.Jr, store)
	mg.bind(differ)
	mg.constA(differValue)
	mg.bind(store)
	mg.storeA(result)
	mg.emit(lr35902.AluR(lr35902.AluXor, lr35902.A))
	mg.storeA(result + 1)
}

// ordered materializes (x < y), or its complement, as 0 or 1. The borrow
// after a full width subtraction decides the order. Signed comparison
// biases the top bytes by 0x80 before the final subtraction step, the bias
// happens in registers before the chain so the carry stays untouched.
func (mg *methodGen) ordered(x, y, result, count int, unsigned, invert bool) {
	if !unsigned {
		mg.loadA(y + count - 1)
		mg.emit(lr35902.AluImm(lr35902.AluXor), 0x80)
		mg.emit(lr35902.LdRR(lr35902.C, lr35902.A))
		mg.loadA(x + count - 1)
		mg.emit(lr35902.AluImm(lr35902.AluXor), 0x80)
		mg.emit(lr35902.LdRR(lr35902.B, lr35902.A))
	}

	mg.ldPair(lr35902.HL, y)
	for i := range count {
		last := i == count-1
		if !unsigned && last {
			mg.emit(lr35902.LdRR(lr35902.A, lr35902.B))
			mg.emit(lr35902.AluR(lr35902.AluSbc, lr35902.C))
			break
		}
		mg.loadA(x + i)
		if i == 0 {
			mg.emit(lr35902.AluR(lr35902.AluSub, lr35902.IndHL))
		} else {
			mg.emit(lr35902.AluR(lr35902.AluSbc, lr35902.IndHL))
		}
		if !last {
			mg.emit(lr35902.IncPair(lr35902.HL))
		}
	}

	// A = carry, optionally complemented
	mg.constA(0)
	mg.emit(lr35902.AluImm(lr35902.AluAdc), 0)
	if invert {
		mg.emit(lr35902.AluImm(lr35902.AluXor), 0x01)
	}
	mg.storeA(result)
	mg.emit(lr35902.AluR(lr35902.AluXor, lr35902.A))
	mg.storeA(result + 1)
}

func (mg *methodGen) call(op ir.Op) {
	callee := mg.frames[op.Target.Name]
	for i, width := range op.Target.Params {
		mg.copyBytes(callee.params[i], mg.frame.temp(op.Args[i]), width.Size())
	}
	mg.callSym(op.Target.Name)

	if op.Target.Return == ir.WNone {
		return
	}
	result := mg.frame.temp(op.Result)
	mg.storeHL(result)
	if op.Target.Return == ir.W32 {
		mg.storeDE(result + 2)
	}
}

func (mg *methodGen) loadData(op ir.Op) {
	mg.emit(lr35902.LdPairImm(lr35902.HL))
	mg.sym16(mg.module.Data[op.Index].Name, 0)
	mg.storeHL(mg.frame.temp(op.Result))
}

// newArray allocates length*elemSize+2 bytes and writes the element count
// into the two byte header.
func (mg *methodGen) newArray(op ir.Op) {
	length := mg.frame.temp(op.Args[0])
	result := mg.frame.temp(op.Result)

	mg.loadHL(length)
	mg.emit(lr35902.Push(lr35902.HL))
	mg.scaleElem(op.Width)
	mg.emit(lr35902.IncPair(lr35902.HL))
	mg.emit(lr35902.IncPair(lr35902.HL))
	mg.callSym(SymAlloc)
	mg.storeHL(result)
	mg.emit(lr35902.Pop(lr35902.DE))
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.E))
	mg.emit(lr35902.LdHLIA)
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.D))
	mg.emit(lr35902.LdRR(lr35902.IndHL, lr35902.A))
}

// scaleElem multiplies the value in HL by the element size.
func (mg *methodGen) scaleElem(width ir.Width) {
	switch width {
	case ir.W16:
		mg.emit(lr35902.AddHLPair(lr35902.HL))
	case ir.W32:
		mg.emit(lr35902.AddHLPair(lr35902.HL))
		mg.emit(lr35902.AddHLPair(lr35902.HL))
	}
}

func (mg *methodGen) arrayLength(op ir.Op) {
	result := mg.frame.temp(op.Result)
	mg.loadHL(mg.frame.temp(op.Args[0]))
	mg.emit(lr35902.LdAHLI)
	mg.storeA(result)
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.IndHL))
	mg.storeA(result + 1)
}

// elemAddr leaves the address of array element (args index) in HL.
func (mg *methodGen) elemAddr(arr, index int, width ir.Width) {
	mg.loadHL(index)
	mg.scaleElem(width)
	mg.loadDE(arr)
	mg.emit(lr35902.AddHLPair(lr35902.DE))
	mg.emit(lr35902.IncPair(lr35902.HL))
	mg.emit(lr35902.IncPair(lr35902.HL))
}

func (mg *methodGen) arrayLoad(op ir.Op) {
	mg.elemAddr(mg.frame.temp(op.Args[0]), mg.frame.temp(op.Args[1]), op.Width)
	mg.readThrough(mg.frame.temp(op.Result), op.Width.Size())
}

func (mg *methodGen) arrayStore(op ir.Op) {
	mg.elemAddr(mg.frame.temp(op.Args[0]), mg.frame.temp(op.Args[1]), op.Width)
	mg.writeThrough(mg.frame.temp(op.Args[2]), op.Width.Size())
}

// readThrough copies count bytes from (HL) into a slot.
func (mg *methodGen) readThrough(dst, count int) {
	for i := range count {
		if i < count-1 {
			mg.emit(lr35902.LdAHLI)
		} else {
			mg.emit(lr35902.LdRR(lr35902.A, lr35902.IndHL))
		}
		mg.storeA(dst + i)
	}
}

// writeThrough copies count bytes from a slot to (HL).
func (mg *methodGen) writeThrough(src, count int) {
	for i := range count {
		mg.loadA(src + i)
		if i < count-1 {
			mg.emit(lr35902.LdHLIA)
		} else {
			mg.emit(lr35902.LdRR(lr35902.IndHL, lr35902.A))
		}
	}
}

func (mg *methodGen) newObject(op ir.Op) {
	result := mg.frame.temp(op.Result)

	mg.ldPair(lr35902.HL, op.Size)
	mg.callSym(SymAlloc)
	mg.storeHL(result)

	if op.Target == nil {
		return
	}
	ctor := mg.frames[op.Target.Name]
	mg.copyBytes(ctor.params[0], result, 2)
	for i, arg := range op.Args {
		mg.copyBytes(ctor.params[i+1], mg.frame.temp(arg), op.Target.Params[i+1].Size())
	}
	mg.callSym(op.Target.Name)
}

// fieldAddr leaves the field address in HL.
func (mg *methodGen) fieldAddr(obj, offset int) {
	mg.loadHL(obj)
	switch {
	case offset == 0:
	case offset <= 3:
		for range offset {
			mg.emit(lr35902.IncPair(lr35902.HL))
		}
	default:
		mg.ldPair(lr35902.DE, offset)
		mg.emit(lr35902.AddHLPair(lr35902.DE))
	}
}

func (mg *methodGen) fieldLoad(op ir.Op) {
	mg.fieldAddr(mg.frame.temp(op.Args[0]), op.Index)
	mg.readThrough(mg.frame.temp(op.Result), op.Width.Size())
}

func (mg *methodGen) fieldStore(op ir.Op) {
	mg.fieldAddr(mg.frame.temp(op.Args[0]), op.Index)
	mg.writeThrough(mg.frame.temp(op.Args[1]), op.Width.Size())
}

// --- terminators ---

func (mg *methodGen) terminator(block *ir.BasicBlock, index int) error {
	switch block.Term.Kind {
	case ir.TermJump:
		if block.Term.Target != index+1 {
			mg.jpBlock(lr35902.Jp, block.Term.Target)
		}

	case ir.TermBranch:
		cond := mg.frame.temp(block.Term.Cond)
		mg.ldPair(lr35902.HL, cond)
		mg.emit(lr35902.LdAHLI)
		mg.emit(lr35902.AluR(lr35902.AluOr, lr35902.IndHL))

		taken := lr35902.CondNZ
		if block.Term.Negate {
			taken = lr35902.CondZ
		}
		mg.jpBlock(lr35902.JpCond(taken), block.Term.Target)
		if block.Term.Else != index+1 {
			mg.jpBlock(lr35902.Jp, block.Term.Else)
		}

	case ir.TermReturn:
		if block.Term.Value >= 0 {
			slot := mg.frame.temp(block.Term.Value)
			mg.loadHL(slot)
			if block.Term.Width == ir.W32 {
				mg.loadDE(slot + 2)
			}
		}
		mg.emit(lr35902.Ret)

	default:
		return fmt.Errorf("method %s: block %d has no terminator", mg.method.Name, index)
	}
	return nil
}
