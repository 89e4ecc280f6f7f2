package il

import (
	"bytes"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func testAssembly() *Assembly {
	return &Assembly{
		Name: "demo",
		Types: []TypeDef{{
			Name:      "Demo.Point",
			ValueType: true,
			Fields: []Field{
				{Name: "X", Type: Type{Kind: KindI16}},
				{Name: "Y", Type: Type{Kind: KindI16}},
				{Name: "Origin", Type: Type{Kind: KindU16}, Static: true, Init: []byte{0x34, 0x12}},
			},
		}},
		Methods: []*Method{{
			Owner:      "Demo.Program",
			Name:       "Main",
			Locals:     []Param{{Name: "sum", Type: Type{Kind: KindU16}}},
			Return:     Type{Kind: KindVoid},
			MaxStack:   2,
			Body:       []byte{byte(LdcI45), byte(LdcI43), byte(Add), byte(Stloc0), byte(Ret)},
			EntryPoint: true,
		}},
		MethodRefs: []MethodRef{{Owner: "GameBoy.Hardware", Name: "WriteByte", ParamCount: 2}},
		FieldRefs:  []FieldRef{{Owner: "Demo.Point", Name: "X"}},
		TypeRefs:   []Type{{Kind: KindU8}},
		Strings:    []string{"HELLO"},
	}
}

func TestContainerRoundTrip(t *testing.T) {
	asm := testAssembly()

	var buf bytes.Buffer
	assert.NoError(t, Save(&buf, asm))

	loaded, err := Load(&buf)
	assert.NoError(t, err)

	assert.Equal(t, asm.Name, loaded.Name)
	assert.Equal(t, len(asm.Types), len(loaded.Types))
	assert.Equal(t, asm.Types[0].Name, loaded.Types[0].Name)
	assert.True(t, loaded.Types[0].ValueType)
	assert.Equal(t, 3, len(loaded.Types[0].Fields))
	assert.True(t, loaded.Types[0].Fields[2].Static)
	assert.Equal(t, string(asm.Types[0].Fields[2].Init), string(loaded.Types[0].Fields[2].Init))

	assert.Equal(t, 1, len(loaded.Methods))
	method := loaded.Methods[0]
	assert.Equal(t, "Demo.Program::Main", method.FullName())
	assert.True(t, method.EntryPoint)
	assert.Equal(t, string(asm.Methods[0].Body), string(method.Body))
	assert.Equal(t, 1, len(method.Locals))
	assert.Equal(t, KindU16, method.Locals[0].Type.Kind)

	assert.Equal(t, len(asm.MethodRefs), len(loaded.MethodRefs))
	assert.Equal(t, asm.MethodRefs[0], loaded.MethodRefs[0])
	assert.Equal(t, len(asm.FieldRefs), len(loaded.FieldRefs))
	assert.Equal(t, asm.FieldRefs[0], loaded.FieldRefs[0])
	assert.Equal(t, len(asm.TypeRefs), len(loaded.TypeRefs))
	assert.Equal(t, asm.TypeRefs[0], loaded.TypeRefs[0])
	assert.Equal(t, len(asm.Strings), len(loaded.Strings))
	assert.Equal(t, asm.Strings[0], loaded.Strings[0])
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("NOPE\x01")))
	assert.Error(t, err)
}

func TestTokenResolution(t *testing.T) {
	asm := testAssembly()

	ref, err := asm.MethodRef(MethodToken(0))
	assert.NoError(t, err)
	assert.Equal(t, "GameBoy.Hardware::WriteByte", ref.FullName())

	_, err = asm.MethodRef(MethodToken(1))
	assert.Error(t, err)

	_, err = asm.MethodRef(FieldToken(0))
	assert.Error(t, err)

	literal, err := asm.String(StringToken(0))
	assert.NoError(t, err)
	assert.Equal(t, "HELLO", literal)
}
