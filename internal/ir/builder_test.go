package ir

import (
	"errors"
	"testing"

	"github.com/retroenv/ilgbc/internal/il"
	"github.com/retroenv/ilgbc/internal/sdk"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func entryAssembly(locals []il.Param, body []byte) *il.Assembly {
	return &il.Assembly{
		Name: "test",
		Methods: []*il.Method{{
			Owner:      "Test.Program",
			Name:       "Main",
			Locals:     locals,
			Return:     il.Type{Kind: il.KindVoid},
			Body:       body,
			EntryPoint: true,
		}},
	}
}

func build(t *testing.T, asm *il.Assembly) (*Module, error) {
	t.Helper()
	return Build(log.NewTestLogger(t), asm)
}

func TestBuildConstAddStore(t *testing.T) {
	asm := entryAssembly(
		[]il.Param{{Name: "sum", Type: il.Type{Kind: il.KindU16}}},
		[]byte{byte(il.LdcI45), byte(il.LdcI43), byte(il.Add), byte(il.Stloc0), byte(il.Ret)},
	)

	module, err := build(t, asm)
	assert.NoError(t, err)
	assert.Equal(t, "Test.Program::Main", module.Entry)

	method := module.Method("Test.Program::Main")
	assert.Equal(t, 1, len(method.Blocks))
	assert.Equal(t, 2, method.MaxDepth)

	ops := method.Blocks[0].Ops
	assert.Equal(t, 4, len(ops))
	assert.Equal(t, OpLoadConst, ops[0].Kind)
	assert.Equal(t, int64(5), ops[0].Value)
	assert.Equal(t, 0, ops[0].Result)
	assert.Equal(t, OpLoadConst, ops[1].Kind)
	assert.Equal(t, 1, ops[1].Result)
	assert.Equal(t, OpBinary, ops[2].Kind)
	assert.Equal(t, BinAdd, ops[2].Bin)
	assert.Equal(t, 0, ops[2].Result)
	assert.Equal(t, OpStoreLocal, ops[3].Kind)
	assert.Equal(t, 0, ops[3].Index)

	assert.Equal(t, TermReturn, method.Blocks[0].Term.Kind)
}

func TestBuildBranchBlocks(t *testing.T) {
	// if (local0 != 0) local0 = 1; return
	body := []byte{
		byte(il.Ldloc0),         // 0
		byte(il.BrfalseS), 0x03, // 1, target 6
		byte(il.LdcI41), // 3
		byte(il.Stloc0), // 4
		byte(il.Nop),    // 5
		byte(il.Ret),    // 6
	}
	asm := entryAssembly([]il.Param{{Name: "v", Type: il.Type{Kind: il.KindU16}}}, body)

	module, err := build(t, asm)
	assert.NoError(t, err)

	method := module.Method("Test.Program::Main")
	assert.Equal(t, 3, len(method.Blocks))

	first := method.Blocks[0]
	assert.Equal(t, TermBranch, first.Term.Kind)
	assert.True(t, first.Term.Negate)
	assert.Equal(t, 2, first.Term.Target)
	assert.Equal(t, 1, first.Term.Else)

	assert.Equal(t, TermJump, method.Blocks[1].Term.Kind)
	assert.Equal(t, TermReturn, method.Blocks[2].Term.Kind)
}

func TestBuildLoop(t *testing.T) {
	// do { i = i + 1 } while (i < 10)
	body := []byte{
		byte(il.Ldloc0),          // 0
		byte(il.LdcI41),          // 1
		byte(il.Add),             // 2
		byte(il.Stloc0),          // 3
		byte(il.Ldloc0),          // 4
		byte(il.LdcI4S), 10,      // 5
		byte(il.BltS), 0xF7,      // 7, target 0
		byte(il.Ret),             // 9
	}
	asm := entryAssembly([]il.Param{{Name: "i", Type: il.Type{Kind: il.KindI16}}}, body)

	module, err := build(t, asm)
	assert.NoError(t, err)

	method := module.Method("Test.Program::Main")
	assert.Equal(t, 2, len(method.Blocks))

	loop := method.Blocks[0]
	assert.Equal(t, TermBranch, loop.Term.Kind)
	assert.Equal(t, 0, loop.Term.Target)
	assert.Equal(t, 1, loop.Term.Else)

	// the comparison is materialized before the branch
	last := loop.Ops[len(loop.Ops)-1]
	assert.Equal(t, OpCompare, last.Kind)
	assert.Equal(t, CmpLt, last.Cmp)
}

func TestBuildMergeDepthMismatch(t *testing.T) {
	body := []byte{
		byte(il.LdcI41),         // 0
		byte(il.BrtrueS), 0x01,  // 1, target 4
		byte(il.LdcI41),         // 3
		byte(il.Ret),            // 4
	}
	asm := entryAssembly(nil, body)

	_, err := build(t, asm)
	assert.Error(t, err)

	var cfErr *ControlFlowError
	assert.True(t, errors.As(err, &cfErr))
}

func TestBuildWidthMergeMismatch(t *testing.T) {
	body := []byte{
		byte(il.Ldloc0),         // 0
		byte(il.BrtrueS), 0x04,  // 1, target 7
		byte(il.LdcI41),         // 3
		byte(il.ConvU4),         // 4
		byte(il.BrS), 0x01,      // 5, target 8
		byte(il.LdcI41),         // 7
		byte(il.Pop),            // 8
		byte(il.Ret),            // 9
	}
	asm := entryAssembly([]il.Param{{Name: "v", Type: il.Type{Kind: il.KindU16}}}, body)

	_, err := build(t, asm)
	assert.Error(t, err)

	var cfErr *ControlFlowError
	assert.True(t, errors.As(err, &cfErr))
}

func TestBuildRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"throw", []byte{byte(il.Ldnull), byte(il.Throw)}},
		{"callvirt", []byte{byte(il.Callvirt), 0x01, 0x00, 0x00, 0x0A}},
		{"box", []byte{byte(il.LdcI41), byte(il.Box), 0x01, 0x00, 0x00, 0x01}},
		{"ldc.i8", []byte{byte(il.LdcI8), 0, 0, 0, 0, 0, 0, 0, 0}},
		{"switch", []byte{byte(il.LdcI41), byte(il.Switch), 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm := entryAssembly(nil, append(tt.body, byte(il.Ret)))
			_, err := build(t, asm)
			assert.Error(t, err)

			var unsupported *UnsupportedOperationError
			assert.True(t, errors.As(err, &unsupported))
		})
	}
}

func TestBuildPrunesDeadBlocks(t *testing.T) {
	body := []byte{
		byte(il.BrS), 0x01, // 0, target 3
		byte(il.LdcI41), // 2, unreachable
		byte(il.Ret),    // 3
	}
	asm := entryAssembly(nil, body)

	module, err := build(t, asm)
	assert.NoError(t, err)

	method := module.Method("Test.Program::Main")
	assert.Equal(t, 2, len(method.Blocks))
	assert.Equal(t, TermJump, method.Blocks[0].Term.Kind)
	assert.Equal(t, 1, method.Blocks[0].Term.Target)
	assert.Equal(t, TermReturn, method.Blocks[1].Term.Kind)
}

func TestBuildImplicitReturn(t *testing.T) {
	asm := entryAssembly(nil, []byte{byte(il.Nop)})

	module, err := build(t, asm)
	assert.NoError(t, err)

	method := module.Method("Test.Program::Main")
	assert.Equal(t, TermReturn, method.Blocks[0].Term.Kind)
}

func TestBuildValueReturnFallOffEnd(t *testing.T) {
	asm := entryAssembly(nil, []byte{byte(il.Nop)})
	asm.Methods[0].Return = il.Type{Kind: il.KindU16}
	asm.Methods[0].EntryPoint = false
	asm.Methods = append(asm.Methods, &il.Method{
		Owner:      "Test.Program",
		Name:       "Start",
		Return:     il.Type{Kind: il.KindVoid},
		Body:       []byte{byte(il.Ret)},
		EntryPoint: true,
	})

	_, err := build(t, asm)
	assert.Error(t, err)

	var cfErr *ControlFlowError
	assert.True(t, errors.As(err, &cfErr))
}

func TestBuildIntrinsicCall(t *testing.T) {
	body := []byte{
		byte(il.LdcI4), 0x00, 0x80, 0x00, 0x00, // address 0x8000
		byte(il.LdcI4S), 0x41, // value
		byte(il.Call), 0x01, 0x00, 0x00, 0x0A,
		byte(il.Ret),
	}
	asm := entryAssembly(nil, body)
	asm.MethodRefs = []il.MethodRef{{Owner: sdk.Owner, Name: "WriteByte", ParamCount: 2}}

	module, err := build(t, asm)
	assert.NoError(t, err)

	method := module.Method("Test.Program::Main")
	ops := method.Blocks[0].Ops
	last := ops[len(ops)-1]
	assert.Equal(t, OpIntrinsic, last.Kind)
	assert.Equal(t, sdk.WriteByte, last.Intrinsic)
	assert.Equal(t, 2, len(last.Args))
}

func TestBuildUnknownIntrinsicIsHardError(t *testing.T) {
	body := []byte{
		byte(il.Call), 0x01, 0x00, 0x00, 0x0A,
		byte(il.Ret),
	}
	asm := entryAssembly(nil, body)
	asm.MethodRefs = []il.MethodRef{{Owner: sdk.Owner, Name: "Reboot", ParamCount: 0}}

	_, err := build(t, asm)
	assert.Error(t, err)
}

func TestBuildWidening(t *testing.T) {
	// an 8-bit local load is widened to the 16-bit stack width
	body := []byte{byte(il.Ldloc0), byte(il.Stloc1), byte(il.Ret)}
	asm := entryAssembly([]il.Param{
		{Name: "b", Type: il.Type{Kind: il.KindU8}},
		{Name: "w", Type: il.Type{Kind: il.KindU16}},
	}, body)

	module, err := build(t, asm)
	assert.NoError(t, err)

	ops := module.Method("Test.Program::Main").Blocks[0].Ops
	assert.Equal(t, 3, len(ops))
	assert.Equal(t, OpLoadLocal, ops[0].Kind)
	assert.Equal(t, W8, ops[0].Width)
	assert.Equal(t, OpConvert, ops[1].Kind)
	assert.Equal(t, W8, ops[1].From)
	assert.Equal(t, W16, ops[1].Width)
	assert.True(t, ops[1].Unsigned)
}

func TestBuildLargeConstantWidening(t *testing.T) {
	// constants above 0x7FFF are unsigned 16-bit values, conv.u4 must
	// zero-extend them instead of sign-extending
	body := []byte{
		byte(il.LdcI4), 0xFF, 0xFF, 0x00, 0x00,
		byte(il.ConvU4),
		byte(il.Stloc0),
		byte(il.Ret),
	}
	asm := entryAssembly([]il.Param{{Name: "v", Type: il.Type{Kind: il.KindU32}}}, body)

	module, err := build(t, asm)
	assert.NoError(t, err)

	ops := module.Method("Test.Program::Main").Blocks[0].Ops
	assert.Equal(t, OpLoadConst, ops[0].Kind)
	assert.Equal(t, W16, ops[0].Width)
	assert.Equal(t, int64(0xFFFF), ops[0].Value)
	assert.Equal(t, OpConvert, ops[1].Kind)
	assert.Equal(t, W16, ops[1].From)
	assert.Equal(t, W32, ops[1].Width)
	assert.True(t, ops[1].Unsigned)
}

func TestBuildStringData(t *testing.T) {
	body := []byte{
		byte(il.Ldstr), 0x01, 0x00, 0x00, 0x70,
		byte(il.Pop),
		byte(il.Ldstr), 0x01, 0x00, 0x00, 0x70,
		byte(il.Pop),
		byte(il.Ret),
	}
	asm := entryAssembly(nil, body)
	asm.Strings = []string{"TILES"}

	module, err := build(t, asm)
	assert.NoError(t, err)

	// identical literals share one data blob
	assert.Equal(t, 1, len(module.Data))
	assert.Equal(t, "TILES", string(module.Data[0].Bytes))
}

func TestBuildMissingEntryPoint(t *testing.T) {
	asm := entryAssembly(nil, []byte{byte(il.Ret)})
	asm.Methods[0].EntryPoint = false

	_, err := build(t, asm)
	assert.Error(t, err)
}
