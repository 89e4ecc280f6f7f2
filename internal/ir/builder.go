package ir

import (
	"fmt"

	"github.com/retroenv/ilgbc/internal/il"
	"github.com/retroenv/ilgbc/internal/sdk"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

// Build converts all method bodies of the assembly into IR methods.
func Build(logger *log.Logger, asm *il.Assembly) (*Module, error) {
	statics, err := resolveStatics(asm)
	if err != nil {
		return nil, fmt.Errorf("resolving static fields: %w", err)
	}

	module := &Module{
		Name:       asm.Name,
		StaticSize: statics.size,
		StaticInit: statics.init,
	}

	builder := &builder{
		asm:     asm,
		module:  module,
		layouts: newLayoutResolver(asm),
		statics: statics,
		blobs:   map[string]int{},
	}

	for _, method := range asm.Methods {
		irMethod, err := builder.buildMethod(method)
		if err != nil {
			return nil, err
		}
		module.Methods = append(module.Methods, irMethod)

		logger.Debug("Built method IR",
			log.String("method", irMethod.Name),
			log.Int("blocks", len(irMethod.Blocks)),
			log.Int("temporaries", irMethod.MaxDepth))

		if method.EntryPoint {
			if module.Entry != "" {
				return nil, fmt.Errorf("assembly declares multiple entry points: %s and %s", module.Entry, irMethod.Name)
			}
			if len(method.Params) != 0 {
				return nil, fmt.Errorf("entry point %s must not declare parameters", irMethod.Name)
			}
			module.Entry = irMethod.Name
		}
	}

	if module.Entry == "" {
		return nil, fmt.Errorf("assembly %s declares no entry point", asm.Name)
	}
	return module, nil
}

// stackValue is the compile time model of one operand stack slot.
type stackValue struct {
	width  Width
	signed bool
	data   int // index of the defining data blob, -1 if not a data address
}

type builder struct {
	asm     *il.Assembly
	module  *Module
	layouts *layoutResolver
	statics *staticLayout
	blobs   map[string]int // string literal to data blob index
}

// methodState is the per method build state.
type methodState struct {
	*builder

	def  *il.Method
	name string
	out  *Method

	paramSigned []bool
	localSigned []bool

	instructions []il.Instruction
	instrIndex   map[int]int // IL offset to instruction index

	blockOffsets []int       // leader offsets in ascending order
	blockIndex   map[int]int // leader offset to block index

	entry    [][]stackValue // entry stack state per block, nil until reached
	worklist []int
}

func (b *builder) buildMethod(def *il.Method) (*Method, error) {
	state := &methodState{
		builder: b,
		def:     def,
		name:    def.FullName(),
		out: &Method{
			Name:    def.FullName(),
			IsEntry: def.EntryPoint,
		},
	}

	var err error
	if state.out.Params, state.paramSigned, err = state.slotWidths(def.Params); err != nil {
		return nil, fmt.Errorf("method %s parameters: %w", state.name, err)
	}
	if state.out.Locals, state.localSigned, err = state.slotWidths(def.Locals); err != nil {
		return nil, fmt.Errorf("method %s locals: %w", state.name, err)
	}
	if def.Return.Kind != il.KindVoid {
		width, _, err := valueWidth(def.Return)
		if err != nil {
			return nil, fmt.Errorf("method %s return type: %w", state.name, err)
		}
		if width == W8 {
			width = W16 // byte results travel widened in the return register
		}
		state.out.Return = width
	}

	if err := state.build(); err != nil {
		return nil, err
	}
	return state.out, nil
}

func (s *methodState) slotWidths(params []il.Param) ([]Width, []bool, error) {
	widths := make([]Width, len(params))
	signed := make([]bool, len(params))
	for i, param := range params {
		var err error
		if widths[i], signed[i], err = valueWidth(param.Type); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", param.Name, err)
		}
	}
	return widths, signed, nil
}

func (s *methodState) build() error {
	var err error
	s.instructions, err = il.Decode(s.def.Body)
	if err != nil {
		return fmt.Errorf("decoding body of method %s: %w", s.name, err)
	}
	if len(s.instructions) == 0 {
		return &ControlFlowError{Method: s.name, Offset: 0, Reason: "method has no body"}
	}

	s.instrIndex = make(map[int]int, len(s.instructions))
	for i, ins := range s.instructions {
		s.instrIndex[ins.Offset] = i
	}

	if err := s.findLeaders(); err != nil {
		return err
	}

	for i, offset := range s.blockOffsets {
		s.out.Blocks = append(s.out.Blocks, &BasicBlock{
			Index:  i,
			Offset: offset,
		})
	}
	s.entry = make([][]stackValue, len(s.out.Blocks))

	s.entry[0] = []stackValue{}
	s.worklist = append(s.worklist, 0)
	processed := set.New[int]()

	for len(s.worklist) > 0 {
		index := s.worklist[len(s.worklist)-1]
		s.worklist = s.worklist[:len(s.worklist)-1]
		if processed.Contains(index) {
			continue
		}
		processed.Add(index)

		if err := s.processBlock(index); err != nil {
			return err
		}
	}

	s.pruneDeadBlocks(processed)
	return nil
}

// findLeaders splits the instruction stream into basic block leaders:
// the method start, every branch target and every instruction following a
// branch or return.
func (s *methodState) findLeaders() error {
	leaders := set.New[int]()
	leaders.Add(0)

	for i, ins := range s.instructions {
		if !isBranch(ins.Opcode) && ins.Opcode != il.Ret {
			continue
		}
		if isBranch(ins.Opcode) {
			target := int(ins.Operand)
			if _, ok := s.instrIndex[target]; !ok {
				return &ControlFlowError{
					Method: s.name,
					Offset: ins.Offset,
					Reason: fmt.Sprintf("branch target 0x%04x does not start an instruction", target),
				}
			}
			leaders.Add(target)
		}
		if i+1 < len(s.instructions) {
			leaders.Add(s.instructions[i+1].Offset)
		}
	}

	for _, ins := range s.instructions {
		if leaders.Contains(ins.Offset) {
			s.blockOffsets = append(s.blockOffsets, ins.Offset)
		}
	}
	s.blockIndex = make(map[int]int, len(s.blockOffsets))
	for i, offset := range s.blockOffsets {
		s.blockIndex[offset] = i
	}
	return nil
}

// pruneDeadBlocks drops blocks that the stack simulation never reached and
// renumbers the remaining blocks.
func (s *methodState) pruneDeadBlocks(processed set.Set[int]) {
	remap := make(map[int]int, len(s.out.Blocks))
	var kept []*BasicBlock
	for _, block := range s.out.Blocks {
		if !processed.Contains(block.Index) {
			continue
		}
		remap[block.Index] = len(kept)
		block.Index = len(kept)
		kept = append(kept, block)
	}

	for _, block := range kept {
		switch block.Term.Kind {
		case TermJump:
			block.Term.Target = remap[block.Term.Target]
		case TermBranch:
			block.Term.Target = remap[block.Term.Target]
			block.Term.Else = remap[block.Term.Else]
		}
	}
	s.out.Blocks = kept
}

// propagate merges the current stack state into the entry state of a
// successor block.
func (s *methodState) propagate(target int, state []stackValue, offset int) error {
	existing := s.entry[target]
	if existing == nil {
		entry := make([]stackValue, len(state))
		copy(entry, state)
		s.entry[target] = entry
		s.worklist = append(s.worklist, target)
		return nil
	}

	if len(existing) != len(state) {
		return &ControlFlowError{
			Method: s.name,
			Offset: offset,
			Reason: fmt.Sprintf("stack depth mismatch at merge: %d != %d", len(state), len(existing)),
		}
	}
	for i := range existing {
		if existing[i].width != state[i].width {
			return &ControlFlowError{
				Method: s.name,
				Offset: offset,
				Reason: fmt.Sprintf("operand width mismatch at merge for stack slot %d: %s != %s",
					i, state[i].width, existing[i].width),
			}
		}
		if existing[i].data != state[i].data {
			existing[i].data = -1
		}
		existing[i].signed = existing[i].signed || state[i].signed
	}
	return nil
}

// blockState wraps the mutable simulation state while processing one block.
type blockState struct {
	*methodState

	block *BasicBlock
	stack []stackValue
	ins   il.Instruction
}

func (s *methodState) processBlock(index int) error {
	bs := &blockState{
		methodState: s,
		block:       s.out.Blocks[index],
		stack:       append([]stackValue{}, s.entry[index]...),
	}

	start := s.instrIndex[s.blockOffsets[index]]
	for i := start; i < len(s.instructions); i++ {
		bs.ins = s.instructions[i]

		if i > start {
			if _, isLeader := s.blockIndex[bs.ins.Offset]; isLeader {
				// fall through into the next block
				bs.block.Term = Terminator{Kind: TermJump, Target: s.blockIndex[bs.ins.Offset]}
				return s.propagate(bs.block.Term.Target, bs.stack, bs.ins.Offset)
			}
		}

		done, err := bs.step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	// the body ended without a terminator, synthesize an implicit return
	return bs.emitReturn(true)
}

// step processes one instruction. It returns true once the block terminator
// has been emitted.
func (bs *blockState) step() (bool, error) {
	op := bs.ins.Opcode

	switch {
	case op == il.Nop || op == il.Break:
		return false, nil

	case op >= il.Ldarg0 && op <= il.Ldarg3:
		return false, bs.loadParam(int(op - il.Ldarg0))
	case op == il.LdargS:
		return false, bs.loadParam(int(bs.ins.Operand))
	case op == il.StargS:
		return false, bs.storeParam(int(bs.ins.Operand))

	case op >= il.Ldloc0 && op <= il.Ldloc3:
		return false, bs.loadLocal(int(op - il.Ldloc0))
	case op == il.LdlocS:
		return false, bs.loadLocal(int(bs.ins.Operand))
	case op >= il.Stloc0 && op <= il.Stloc3:
		return false, bs.storeLocal(int(op - il.Stloc0))
	case op == il.StlocS:
		return false, bs.storeLocal(int(bs.ins.Operand))

	case op == il.Ldnull:
		bs.loadConst(0)
		return false, nil
	case op >= il.LdcI4M1 && op <= il.LdcI48:
		bs.loadConst(int64(op) - int64(il.LdcI40))
		return false, nil
	case op == il.LdcI4S || op == il.LdcI4:
		bs.loadConst(bs.ins.Operand)
		return false, nil

	case op == il.Dup:
		return false, bs.dup()
	case op == il.Pop:
		_, err := bs.pop()
		return false, err

	case op == il.Add:
		return false, bs.binary(BinAdd, false)
	case op == il.Sub:
		return false, bs.binary(BinSub, false)
	case op == il.Mul:
		return false, bs.binary(BinMul, false)
	case op == il.Div:
		return false, bs.binary(BinDiv, false)
	case op == il.DivUn:
		return false, bs.binary(BinDiv, true)
	case op == il.Rem:
		return false, bs.binary(BinRem, false)
	case op == il.RemUn:
		return false, bs.binary(BinRem, true)
	case op == il.And:
		return false, bs.binary(BinAnd, false)
	case op == il.Or:
		return false, bs.binary(BinOr, false)
	case op == il.Xor:
		return false, bs.binary(BinXor, false)
	case op == il.Shl:
		return false, bs.binary(BinShl, false)
	case op == il.Shr:
		return false, bs.binary(BinShr, false)
	case op == il.ShrUn:
		return false, bs.binary(BinShr, true)
	case op == il.Neg:
		return false, bs.unary(UnNeg)
	case op == il.Not:
		return false, bs.unary(UnNot)

	case op == il.Ceq:
		return false, bs.compare(CmpEq, false)
	case op == il.Cgt:
		return false, bs.compare(CmpGt, false)
	case op == il.CgtUn:
		return false, bs.compare(CmpGt, true)
	case op == il.Clt:
		return false, bs.compare(CmpLt, false)
	case op == il.CltUn:
		return false, bs.compare(CmpLt, true)

	case op == il.ConvI1:
		return false, bs.convert(W8, true)
	case op == il.ConvU1:
		return false, bs.convert(W8, false)
	case op == il.ConvI2:
		return false, bs.convert(W16, true)
	case op == il.ConvU2:
		return false, bs.convert(W16, false)
	case op == il.ConvI4:
		return false, bs.convert(W32, true)
	case op == il.ConvU4:
		return false, bs.convert(W32, false)

	case op == il.Call:
		return false, bs.call()

	case op == il.Ldstr:
		return false, bs.loadString()

	case op == il.Newarr:
		return false, bs.newArray()
	case op == il.Ldlen:
		return false, bs.arrayLength()
	case op >= il.LdelemI1 && op <= il.LdelemU4:
		return false, bs.arrayLoad(op)
	case op >= il.StelemI1 && op <= il.StelemI4:
		return false, bs.arrayStore(op)

	case op == il.Newobj:
		return false, bs.newObject()
	case op == il.Ldfld:
		return false, bs.fieldLoad()
	case op == il.Stfld:
		return false, bs.fieldStore()
	case op == il.Ldsfld:
		return false, bs.staticLoad()
	case op == il.Stsfld:
		return false, bs.staticStore()
	case op == il.Ldsflda:
		return false, bs.staticAddr()

	case op == il.Ret:
		return true, bs.emitReturn(false)

	case op == il.Br || op == il.BrS:
		target, err := bs.branchTarget()
		if err != nil {
			return false, err
		}
		bs.block.Term = Terminator{Kind: TermJump, Target: target}
		return true, bs.propagate(target, bs.stack, bs.ins.Offset)

	case op == il.Brtrue || op == il.BrtrueS:
		return true, bs.conditionalBranch(false)
	case op == il.Brfalse || op == il.BrfalseS:
		return true, bs.conditionalBranch(true)

	case op == il.Beq || op == il.BeqS:
		return true, bs.compareBranch(CmpEq, false)
	case op == il.Bge || op == il.BgeS:
		return true, bs.compareBranch(CmpGe, false)
	case op == il.Bgt || op == il.BgtS:
		return true, bs.compareBranch(CmpGt, false)
	case op == il.Ble || op == il.BleS:
		return true, bs.compareBranch(CmpLe, false)
	case op == il.Blt || op == il.BltS:
		return true, bs.compareBranch(CmpLt, false)
	case op == il.BneUn || op == il.BneUnS:
		return true, bs.compareBranch(CmpNe, true)
	case op == il.BgeUn || op == il.BgeUnS:
		return true, bs.compareBranch(CmpGe, true)
	case op == il.BgtUn || op == il.BgtUnS:
		return true, bs.compareBranch(CmpGt, true)
	case op == il.BleUn || op == il.BleUnS:
		return true, bs.compareBranch(CmpLe, true)
	case op == il.BltUn || op == il.BltUnS:
		return true, bs.compareBranch(CmpLt, true)
	}

	return false, bs.unsupported(rejectReason(op))
}

// rejectReason names the category of an explicitly rejected instruction.
func rejectReason(op il.Opcode) string {
	switch op {
	case il.Callvirt, il.Ldftn:
		return "virtual dispatch is not supported"
	case il.Throw, il.Rethrow, il.Leave, il.LeaveS:
		return "exception handling is not supported"
	case il.Box, il.Unbox, il.Castclass, il.Isinst:
		return "boxing and type casts are not supported"
	case il.Constrained:
		return "generic instantiation is not supported"
	case il.LdcR4, il.LdcR8, il.ConvR4, il.ConvR8:
		return "floating point is not supported"
	case il.LdcI8, il.ConvI8, il.ConvU8:
		return "64-bit integers are not supported"
	case il.Switch:
		return "switch jump tables are not supported"
	case il.LdargaS, il.LdlocaS, il.Ldflda, il.Ldelema:
		return "managed addresses are not supported"
	default:
		return "instruction is not in the supported subset"
	}
}

func isBranch(op il.Opcode) bool {
	return (op >= il.BrS && op <= il.BltUnS) || (op >= il.Br && op <= il.BltUn)
}

func (bs *blockState) unsupported(reason string) error {
	return &UnsupportedOperationError{
		Method:      bs.name,
		Offset:      bs.ins.Offset,
		Instruction: bs.ins.Opcode.String(),
		Reason:      reason,
	}
}

func (bs *blockState) controlFlow(reason string) error {
	return &ControlFlowError{
		Method: bs.name,
		Offset: bs.ins.Offset,
		Reason: reason,
	}
}

func (bs *blockState) emit(op Op) {
	op.Offset = bs.ins.Offset
	bs.block.Ops = append(bs.block.Ops, op)
}

func (bs *blockState) push(value stackValue) int {
	bs.stack = append(bs.stack, value)
	if len(bs.stack) > bs.out.MaxDepth {
		bs.out.MaxDepth = len(bs.stack)
	}
	return len(bs.stack) - 1
}

func (bs *blockState) pop() (stackValue, error) {
	if len(bs.stack) == 0 {
		return stackValue{}, bs.controlFlow("operand stack underflow")
	}
	value := bs.stack[len(bs.stack)-1]
	bs.stack = bs.stack[:len(bs.stack)-1]
	return value, nil
}

func (bs *blockState) top() int {
	return len(bs.stack) - 1
}

func (bs *blockState) loadConst(value int64) {
	width := W16
	if value < -0x8000 || value > 0xFFFF {
		width = W32
	}
	// Constants above 0x7FFF only fit 16 bits as unsigned values, a later
	// widening must not sign-extend them.
	signed := value >= -0x8000 && value <= 0x7FFF
	result := bs.push(stackValue{width: width, signed: signed, data: -1})
	bs.emit(Op{Kind: OpLoadConst, Width: width, Value: value, Result: result})
}

// widen promotes the 8-bit value on top of the stack to 16 bits. Values on
// the operand stack are always at least 16 bits wide.
func (bs *blockState) widenTop(from Width, signed bool) {
	if from != W8 {
		return
	}
	depth := bs.top()
	bs.stack[depth].width = W16
	bs.stack[depth].signed = signed
	bs.emit(Op{Kind: OpConvert, From: W8, Width: W16, Unsigned: !signed, Args: []int{depth}, Result: depth})
}

// reconcile converts the value at the given stack depth to the wanted width.
func (bs *blockState) reconcile(depth int, want Width) {
	have := bs.stack[depth].width
	if have == want {
		return
	}
	bs.emit(Op{
		Kind:     OpConvert,
		From:     have,
		Width:    want,
		Unsigned: !bs.stack[depth].signed,
		Args:     []int{depth},
		Result:   depth,
	})
	bs.stack[depth].width = want
}

func (bs *blockState) loadParam(index int) error {
	if index < 0 || index >= len(bs.out.Params) {
		return bs.unsupported(fmt.Sprintf("parameter index %d out of range", index))
	}
	width := bs.out.Params[index]
	result := bs.push(stackValue{width: width, signed: bs.paramSigned[index], data: -1})
	bs.emit(Op{Kind: OpLoadParam, Width: width, Index: index, Result: result})
	bs.widenTop(width, bs.paramSigned[index])
	return nil
}

func (bs *blockState) storeParam(index int) error {
	if index < 0 || index >= len(bs.out.Params) {
		return bs.unsupported(fmt.Sprintf("parameter index %d out of range", index))
	}
	width := bs.out.Params[index]
	bs.reconcile(bs.top(), storedWidth(width))
	if _, err := bs.pop(); err != nil {
		return err
	}
	bs.emit(Op{Kind: OpStoreParam, Width: width, Index: index, Args: []int{len(bs.stack)}, Result: -1})
	return nil
}

func (bs *blockState) loadLocal(index int) error {
	if index < 0 || index >= len(bs.out.Locals) {
		return bs.unsupported(fmt.Sprintf("local index %d out of range", index))
	}
	width := bs.out.Locals[index]
	result := bs.push(stackValue{width: width, signed: bs.localSigned[index], data: -1})
	bs.emit(Op{Kind: OpLoadLocal, Width: width, Index: index, Result: result})
	bs.widenTop(width, bs.localSigned[index])
	return nil
}

func (bs *blockState) storeLocal(index int) error {
	if index < 0 || index >= len(bs.out.Locals) {
		return bs.unsupported(fmt.Sprintf("local index %d out of range", index))
	}
	width := bs.out.Locals[index]
	bs.reconcile(bs.top(), storedWidth(width))
	if _, err := bs.pop(); err != nil {
		return err
	}
	bs.emit(Op{Kind: OpStoreLocal, Width: width, Index: index, Args: []int{len(bs.stack)}, Result: -1})
	return nil
}

// storedWidth maps a storage width to the stack width it travels as.
// 8-bit stores consume a 16-bit stack value and keep its low byte.
func storedWidth(width Width) Width {
	if width == W8 {
		return W16
	}
	return width
}

func (bs *blockState) dup() error {
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}
	value := bs.stack[bs.top()]
	src := bs.top()
	result := bs.push(value)
	bs.emit(Op{Kind: OpCopy, Width: value.width, Args: []int{src}, Result: result})
	return nil
}

func (bs *blockState) binary(bin BinOp, unsigned bool) error {
	if len(bs.stack) < 2 {
		return bs.controlFlow("operand stack underflow")
	}

	// shift counts stay 16 bit, other operands reconcile to a common width
	da, db := bs.top()-1, bs.top()
	if bin == BinShl || bin == BinShr {
		bs.reconcile(db, W16)
	} else {
		common := maxWidth(bs.stack[da].width, bs.stack[db].width)
		bs.reconcile(da, common)
		bs.reconcile(db, common)
	}

	b, err := bs.pop()
	if err != nil {
		return err
	}
	a, err := bs.pop()
	if err != nil {
		return err
	}

	width := a.width
	result := bs.push(stackValue{
		width:  width,
		signed: !unsigned && (a.signed || b.signed),
		data:   -1,
	})
	bs.emit(Op{
		Kind:     OpBinary,
		Bin:      bin,
		Width:    width,
		Unsigned: unsigned,
		Args:     []int{da, db},
		Result:   result,
	})
	return nil
}

func (bs *blockState) unary(un UnOp) error {
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}
	depth := bs.top()
	bs.emit(Op{Kind: OpUnary, Un: un, Width: bs.stack[depth].width, Args: []int{depth}, Result: depth})
	return nil
}

func (bs *blockState) compare(cmp CmpOp, unsigned bool) error {
	if len(bs.stack) < 2 {
		return bs.controlFlow("operand stack underflow")
	}
	da, db := bs.top()-1, bs.top()
	common := maxWidth(bs.stack[da].width, bs.stack[db].width)
	bs.reconcile(da, common)
	bs.reconcile(db, common)

	if _, err := bs.pop(); err != nil {
		return err
	}
	if _, err := bs.pop(); err != nil {
		return err
	}
	result := bs.push(stackValue{width: W16, data: -1})
	bs.emit(Op{
		Kind:     OpCompare,
		Cmp:      cmp,
		Width:    common,
		Unsigned: unsigned,
		Args:     []int{da, db},
		Result:   result,
	})
	return nil
}

func (bs *blockState) convert(to Width, signed bool) error {
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}
	depth := bs.top()

	switch to {
	case W8:
		// truncate to a byte, then re-widen to the stack width
		bs.reconcile(depth, W16)
		bs.emit(Op{Kind: OpConvert, From: W16, Width: W8, Unsigned: !signed, Args: []int{depth}, Result: depth})
		bs.stack[depth].width = W8
		bs.widenTop(W8, signed)

	case W16:
		bs.reconcile(depth, W16)
		bs.stack[depth].signed = signed

	case W32:
		if bs.stack[depth].width == W16 {
			bs.emit(Op{
				Kind:     OpConvert,
				From:     W16,
				Width:    W32,
				Unsigned: !bs.stack[depth].signed,
				Args:     []int{depth},
				Result:   depth,
			})
			bs.stack[depth].width = W32
		}
		bs.stack[depth].signed = signed
	}
	bs.stack[depth].data = -1
	return nil
}

func (bs *blockState) branchTarget() (int, error) {
	target, ok := bs.blockIndex[int(bs.ins.Operand)]
	if !ok {
		return 0, bs.controlFlow(fmt.Sprintf("branch target 0x%04x is not a block leader", bs.ins.Operand))
	}
	return target, nil
}

func (bs *blockState) nextBlock() (int, error) {
	index := bs.instrIndex[bs.ins.Offset] + 1
	if index >= len(bs.instructions) {
		return 0, bs.controlFlow("conditional branch at end of method body")
	}
	next, ok := bs.blockIndex[bs.instructions[index].Offset]
	if !ok {
		return 0, bs.controlFlow("conditional branch successor is not a block leader")
	}
	return next, nil
}

func (bs *blockState) conditionalBranch(negate bool) error {
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}

	// a 32-bit condition tests all bits, fold it into a comparison with zero
	if bs.stack[bs.top()].width == W32 {
		bs.loadConst(0)
		bs.reconcile(bs.top(), W32)
		if err := bs.compare(CmpNe, true); err != nil {
			return err
		}
	}

	if _, err := bs.pop(); err != nil {
		return err
	}

	target, err := bs.branchTarget()
	if err != nil {
		return err
	}
	next, err := bs.nextBlock()
	if err != nil {
		return err
	}

	bs.block.Term = Terminator{
		Kind:   TermBranch,
		Cond:   len(bs.stack),
		Negate: negate,
		Target: target,
		Else:   next,
	}
	if err := bs.propagate(target, bs.stack, bs.ins.Offset); err != nil {
		return err
	}
	return bs.propagate(next, bs.stack, bs.ins.Offset)
}

func (bs *blockState) compareBranch(cmp CmpOp, unsigned bool) error {
	if err := bs.compare(cmp, unsigned); err != nil {
		return err
	}
	return bs.conditionalBranch(false)
}

func (bs *blockState) emitReturn(implicit bool) error {
	if bs.out.Return == WNone {
		if len(bs.stack) != 0 {
			return bs.controlFlow("operand stack not empty at return")
		}
		bs.block.Term = Terminator{Kind: TermReturn, Value: -1}
		return nil
	}

	if implicit {
		return bs.controlFlow("method falls off end without returning a value")
	}
	if len(bs.stack) == 0 {
		return bs.controlFlow("return without a value on the operand stack")
	}

	bs.reconcile(bs.top(), bs.out.Return)
	if _, err := bs.pop(); err != nil {
		return err
	}
	if len(bs.stack) != 0 {
		return bs.controlFlow("operand stack not empty at return")
	}
	bs.block.Term = Terminator{
		Kind:  TermReturn,
		Value: 0,
		Width: bs.out.Return,
	}
	return nil
}

func (bs *blockState) call() error {
	ref, err := bs.asm.MethodRef(bs.ins.Token)
	if err != nil {
		return bs.unsupported(err.Error())
	}

	if sdk.IsSDKType(ref.Owner) {
		return bs.intrinsicCall(ref)
	}

	def := bs.asm.FindMethod(ref.Owner, ref.Name)
	if def == nil {
		return bs.unsupported(fmt.Sprintf("call target %s is not defined", ref.FullName()))
	}

	target := &CallTarget{Name: def.FullName()}
	for _, param := range def.Params {
		width, _, err := valueWidth(param.Type)
		if err != nil {
			return bs.unsupported(err.Error())
		}
		target.Params = append(target.Params, width)
	}
	if def.Return.Kind != il.KindVoid {
		width, _, err := valueWidth(def.Return)
		if err != nil {
			return bs.unsupported(err.Error())
		}
		if width == W8 {
			width = W16
		}
		target.Return = width
	}

	if len(bs.stack) < len(target.Params) {
		return bs.controlFlow("operand stack underflow at call")
	}

	// arguments lie at the top of the stack in declared order
	first := len(bs.stack) - len(target.Params)
	args := make([]int, len(target.Params))
	for i, width := range target.Params {
		depth := first + i
		bs.reconcile(depth, storedWidth(width))
		args[i] = depth
	}
	bs.stack = bs.stack[:first]

	op := Op{Kind: OpCall, Target: target, Args: args, Result: -1, Width: target.Return}
	if target.Return != WNone {
		op.Result = bs.push(stackValue{width: target.Return, signed: true, data: -1})
	}
	bs.emit(op)
	return nil
}

func (bs *blockState) intrinsicCall(ref il.MethodRef) error {
	intrinsic, err := sdk.Lookup(ref.Owner, ref.Name, ref.ParamCount)
	if err != nil {
		return bs.unsupported(err.Error())
	}

	if len(bs.stack) < ref.ParamCount {
		return bs.controlFlow("operand stack underflow at intrinsic call")
	}
	first := len(bs.stack) - ref.ParamCount
	args := make([]int, ref.ParamCount)
	for i := range args {
		depth := first + i
		bs.reconcile(depth, W16)
		args[i] = depth
	}

	srcData := -1
	if intrinsic == sdk.CopyToVideoMemory {
		srcData = bs.stack[first+1].data
	}
	bs.stack = bs.stack[:first]

	op := Op{
		Kind:      OpIntrinsic,
		Intrinsic: intrinsic,
		Args:      args,
		Result:    -1,
		SrcData:   srcData,
	}
	if intrinsic == sdk.ReadByte {
		op.Width = W16
		op.Result = bs.push(stackValue{width: W16, data: -1})
	}
	bs.emit(op)
	return nil
}

func (bs *blockState) loadString() error {
	literal, err := bs.asm.String(bs.ins.Token)
	if err != nil {
		return bs.unsupported(err.Error())
	}

	index, ok := bs.blobs[literal]
	if !ok {
		index = len(bs.module.Data)
		bs.blobs[literal] = index
		bs.module.Data = append(bs.module.Data, DataBlob{
			Name:  fmt.Sprintf("data_%d", index),
			Bytes: []byte(literal),
		})
	}

	result := bs.push(stackValue{width: W16, data: index})
	bs.emit(Op{Kind: OpLoadData, Index: index, Width: W16, Result: result})
	return nil
}

func (bs *blockState) newArray() error {
	elem, err := bs.asm.TypeRef(bs.ins.Token)
	if err != nil {
		return bs.unsupported(err.Error())
	}
	if elem.Kind >= il.KindArray {
		return bs.unsupported("arrays of non primitive elements are not supported")
	}
	width, _, err := valueWidth(elem)
	if err != nil {
		return bs.unsupported(err.Error())
	}

	bs.reconcile(bs.top(), W16)
	if _, err := bs.pop(); err != nil {
		return err
	}
	result := bs.push(stackValue{width: W16, data: -1})
	bs.emit(Op{Kind: OpNewArray, Width: width, Args: []int{len(bs.stack) - 1}, Result: result})
	return nil
}

func (bs *blockState) arrayLength() error {
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}
	depth := bs.top()
	bs.stack[depth] = stackValue{width: W16, data: -1}
	bs.emit(Op{Kind: OpArrayLength, Width: W16, Args: []int{depth}, Result: depth})
	return nil
}

func (bs *blockState) arrayLoad(op il.Opcode) error {
	if len(bs.stack) < 2 {
		return bs.controlFlow("operand stack underflow")
	}
	width, signed := elemAccess(op)

	bs.reconcile(bs.top(), W16) // index
	arr, index := bs.top()-1, bs.top()
	if _, err := bs.pop(); err != nil {
		return err
	}
	if _, err := bs.pop(); err != nil {
		return err
	}

	result := bs.push(stackValue{width: width, signed: signed, data: -1})
	bs.emit(Op{Kind: OpArrayLoad, Width: width, Args: []int{arr, index}, Result: result})
	bs.widenTop(width, signed)
	return nil
}

func (bs *blockState) arrayStore(op il.Opcode) error {
	if len(bs.stack) < 3 {
		return bs.controlFlow("operand stack underflow")
	}
	width, _ := elemAccess(op)

	value := bs.top()
	bs.reconcile(value, storedWidth(width))
	bs.reconcile(value-1, W16) // index

	arr := value - 2
	for range 3 {
		if _, err := bs.pop(); err != nil {
			return err
		}
	}
	bs.emit(Op{Kind: OpArrayStore, Width: width, Args: []int{arr, arr + 1, arr + 2}, Result: -1})
	return nil
}

// elemAccess maps an array access opcode to element width and signedness.
func elemAccess(op il.Opcode) (Width, bool) {
	switch op {
	case il.LdelemI1:
		return W8, true
	case il.LdelemU1, il.StelemI1:
		return W8, false
	case il.LdelemI2:
		return W16, true
	case il.LdelemU2, il.StelemI2:
		return W16, false
	default:
		return W32, true
	}
}

func (bs *blockState) newObject() error {
	ref, err := bs.asm.MethodRef(bs.ins.Token)
	if err != nil {
		return bs.unsupported(err.Error())
	}
	layout, err := bs.layouts.layout(ref.Owner)
	if err != nil {
		return bs.unsupported(err.Error())
	}

	op := Op{Kind: OpNewObject, Size: layout.Size, Width: W16, Result: -1}

	ctor := bs.asm.FindMethod(ref.Owner, ".ctor")
	if ctor != nil {
		target := &CallTarget{Name: ctor.FullName()}
		for _, param := range ctor.Params {
			width, _, err := valueWidth(param.Type)
			if err != nil {
				return bs.unsupported(err.Error())
			}
			target.Params = append(target.Params, width)
		}
		op.Target = target

		argCount := len(target.Params) - 1 // first parameter receives the allocation
		if argCount < 0 {
			return bs.unsupported("constructor lacks the instance parameter")
		}
		if len(bs.stack) < argCount {
			return bs.controlFlow("operand stack underflow at constructor call")
		}
		first := len(bs.stack) - argCount
		for i := range argCount {
			depth := first + i
			bs.reconcile(depth, storedWidth(target.Params[i+1]))
			op.Args = append(op.Args, depth)
		}
		bs.stack = bs.stack[:first]
	} else if ref.ParamCount != 0 {
		return bs.unsupported(fmt.Sprintf("constructor %s::.ctor is not defined", ref.Owner))
	}

	op.Result = bs.push(stackValue{width: W16, data: -1})
	bs.emit(op)
	return nil
}

func (bs *blockState) fieldInfo() (FieldInfo, error) {
	ref, err := bs.asm.FieldRef(bs.ins.Token)
	if err != nil {
		return FieldInfo{}, bs.unsupported(err.Error())
	}
	layout, err := bs.layouts.layout(ref.Owner)
	if err != nil {
		return FieldInfo{}, bs.unsupported(err.Error())
	}
	info, ok := layout.Fields[ref.Name]
	if !ok {
		return FieldInfo{}, bs.unsupported(fmt.Sprintf("field %s.%s is not defined", ref.Owner, ref.Name))
	}
	return info, nil
}

func (bs *blockState) fieldLoad() error {
	info, err := bs.fieldInfo()
	if err != nil {
		return err
	}
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}

	obj := bs.top()
	if _, err := bs.pop(); err != nil {
		return err
	}
	result := bs.push(stackValue{width: info.Width, signed: info.Signed, data: -1})
	bs.emit(Op{Kind: OpFieldLoad, Width: info.Width, Index: info.Offset, Args: []int{obj}, Result: result})
	bs.widenTop(info.Width, info.Signed)
	return nil
}

func (bs *blockState) fieldStore() error {
	info, err := bs.fieldInfo()
	if err != nil {
		return err
	}
	if len(bs.stack) < 2 {
		return bs.controlFlow("operand stack underflow")
	}

	value := bs.top()
	bs.reconcile(value, storedWidth(info.Width))
	obj := value - 1
	for range 2 {
		if _, err := bs.pop(); err != nil {
			return err
		}
	}
	bs.emit(Op{Kind: OpFieldStore, Width: info.Width, Index: info.Offset, Args: []int{obj, obj + 1}, Result: -1})
	return nil
}

func (bs *blockState) staticInfo() (FieldInfo, error) {
	ref, err := bs.asm.FieldRef(bs.ins.Token)
	if err != nil {
		return FieldInfo{}, bs.unsupported(err.Error())
	}
	info, ok := bs.statics.slots[ref.Owner+"::"+ref.Name]
	if !ok {
		return FieldInfo{}, bs.unsupported(fmt.Sprintf("static field %s.%s is not defined", ref.Owner, ref.Name))
	}
	return info, nil
}

func (bs *blockState) staticLoad() error {
	info, err := bs.staticInfo()
	if err != nil {
		return err
	}
	result := bs.push(stackValue{width: info.Width, signed: info.Signed, data: -1})
	bs.emit(Op{Kind: OpStaticLoad, Width: info.Width, Index: info.Offset, Result: result})
	bs.widenTop(info.Width, info.Signed)
	return nil
}

func (bs *blockState) staticStore() error {
	info, err := bs.staticInfo()
	if err != nil {
		return err
	}
	if len(bs.stack) == 0 {
		return bs.controlFlow("operand stack underflow")
	}
	bs.reconcile(bs.top(), storedWidth(info.Width))
	if _, err := bs.pop(); err != nil {
		return err
	}
	bs.emit(Op{Kind: OpStaticStore, Width: info.Width, Index: info.Offset, Args: []int{len(bs.stack)}, Result: -1})
	return nil
}

func (bs *blockState) staticAddr() error {
	info, err := bs.staticInfo()
	if err != nil {
		return err
	}
	result := bs.push(stackValue{width: W16, data: -1})
	bs.emit(Op{Kind: OpStaticAddr, Width: W16, Index: info.Offset, Result: result})
	return nil
}

func maxWidth(a, b Width) Width {
	if a > b {
		return a
	}
	return b
}
