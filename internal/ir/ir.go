// Package ir contains the typed, register machine friendly intermediate
// representation and the builder that produces it from IL method bodies.
//
// Stack values are modeled as synthetic temporaries indexed by their operand
// stack depth. A value pushed at depth n always lives in temporary n, which
// makes block merges consistent by construction as long as the stack depth
// and widths of all predecessors agree.
package ir

import (
	"github.com/retroenv/ilgbc/internal/sdk"
)

// Width is the operand width of a value or operation.
type Width uint8

const (
	WNone Width = iota
	W8
	W16
	W32 // pair of 16-bit halves, little endian in memory
)

// Size returns the byte size of the width.
func (w Width) Size() int {
	switch w {
	case W8:
		return 1
	case W16:
		return 2
	case W32:
		return 4
	default:
		return 0
	}
}

func (w Width) String() string {
	switch w {
	case W8:
		return "i8"
	case W16:
		return "i16"
	case W32:
		return "i32"
	default:
		return "void"
	}
}

// Kind is the operation variant tag.
type Kind uint8

const (
	OpLoadConst Kind = iota
	OpLoadLocal
	OpStoreLocal
	OpLoadParam
	OpStoreParam
	OpCopy
	OpConvert
	OpBinary
	OpUnary
	OpCompare
	OpCall
	OpIntrinsic
	OpArrayLoad
	OpArrayStore
	OpArrayLength
	OpNewArray
	OpNewObject
	OpFieldLoad
	OpFieldStore
	OpStaticLoad
	OpStaticStore
	OpStaticAddr
	OpLoadData
)

// BinOp is a binary arithmetic or bitwise operation.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
)

func (b BinOp) String() string {
	return [...]string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr"}[b]
}

// UnOp is a unary operation.
type UnOp uint8

const (
	UnNeg UnOp = iota
	UnNot
)

// CmpOp is a comparison operation.
type CmpOp uint8

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (c CmpOp) String() string {
	return [...]string{"eq", "ne", "lt", "le", "gt", "ge"}[c]
}

// CallTarget describes a resolved ordinary call target.
type CallTarget struct {
	Name   string // owner qualified method name
	Params []Width
	Return Width // WNone for void
}

// Op is a single IR operation. Args and Result address stack temporaries by
// their depth index. A Result of -1 produces no value.
type Op struct {
	Kind   Kind
	Width  Width
	From   Width // source width for OpConvert
	Args   []int
	Result int

	Index  int   // local/parameter index, field or static offset, data index
	Value  int64 // constant value
	Size   int   // allocation size for OpNewObject
	Offset int   // IL offset, for diagnostics

	Bin      BinOp
	Un       UnOp
	Cmp      CmpOp
	Unsigned bool // unsigned variant of div/rem/shr/compare, zero extension for OpConvert

	Target    *CallTarget   // OpCall and OpNewObject constructor
	Intrinsic sdk.Intrinsic // OpIntrinsic
	SrcData   int           // data blob index feeding a video memory copy, -1 if unknown
}

// TermKind is the terminator variant tag.
type TermKind uint8

const (
	TermJump TermKind = iota
	TermBranch
	TermReturn
)

// Terminator ends a basic block.
type Terminator struct {
	Kind TermKind

	Target int // successor block index
	Else   int // fall through block index for TermBranch

	Cond   int  // condition temporary depth for TermBranch
	Negate bool // branch if condition is false

	Value int   // returned temporary depth, -1 for void
	Width Width // width of the returned value
}

// Successors returns the successor block indexes.
func (t Terminator) Successors() []int {
	switch t.Kind {
	case TermJump:
		return []int{t.Target}
	case TermBranch:
		return []int{t.Target, t.Else}
	default:
		return nil
	}
}

// BasicBlock is a maximal straight line operation sequence with a single
// terminator.
type BasicBlock struct {
	Index  int
	Offset int // IL offset of the first instruction
	Ops    []Op
	Term   Terminator
}

// Method is the IR of a single method.
type Method struct {
	Name   string // owner qualified name
	Params []Width
	Locals []Width
	Return Width // WNone for void

	Blocks   []*BasicBlock
	MaxDepth int // number of stack temporaries

	IsEntry bool
}

// DataBlob is a static data table placed into the ROM data segment.
type DataBlob struct {
	Name  string
	Bytes []byte
}

// Module is the IR of a complete assembly.
type Module struct {
	Name    string
	Methods []*Method // in declaration order
	Entry   string

	Data []DataBlob

	StaticSize int    // byte size of the static field region
	StaticInit []byte // initializer image for the static region, optional
}

// Method returns the method with the given owner qualified name.
func (m *Module) Method(name string) *Method {
	for _, method := range m.Methods {
		if method.Name == name {
			return method
		}
	}
	return nil
}
