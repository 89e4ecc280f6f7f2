package il

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDecode(t *testing.T) {
	body := []byte{
		byte(LdcI45),
		byte(LdcI43),
		byte(Add),
		byte(Stloc0),
		byte(Ret),
	}

	instructions, err := Decode(body)
	assert.NoError(t, err)
	assert.Equal(t, 5, len(instructions))

	assert.Equal(t, LdcI45, instructions[0].Opcode)
	assert.Equal(t, 0, instructions[0].Offset)
	assert.Equal(t, Add, instructions[2].Opcode)
	assert.Equal(t, Ret, instructions[4].Opcode)
	assert.Equal(t, 4, instructions[4].Offset)
}

func TestDecodeOperands(t *testing.T) {
	body := []byte{
		byte(LdcI4S), 0xFE, // ldc.i4.s -2
		byte(LdcI4), 0x00, 0x01, 0x00, 0x00, // ldc.i4 256
		byte(Call), 0x01, 0x00, 0x00, 0x0A, // call token 0x0A000001
	}

	instructions, err := Decode(body)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(instructions))

	assert.Equal(t, int64(-2), instructions[0].Operand)
	assert.Equal(t, int64(256), instructions[1].Operand)
	assert.Equal(t, MethodToken(0), instructions[2].Token)
}

func TestDecodeBranchTargetsAbsolute(t *testing.T) {
	body := []byte{
		byte(BrS), 0x01, // br.s over the nop
		byte(Nop),
		byte(Ret),
	}

	instructions, err := Decode(body)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), instructions[0].Operand)

	// backward branch
	body = []byte{
		byte(Nop),
		byte(BrS), 0xFD, // br.s -3, back to the nop
	}
	instructions, err = Decode(body)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), instructions[1].Operand)
}

func TestDecodeTwoByteOpcode(t *testing.T) {
	body := []byte{0xFE, 0x01} // ceq

	instructions, err := Decode(body)
	assert.NoError(t, err)
	assert.Equal(t, Ceq, instructions[0].Opcode)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0xA5})
	assert.Error(t, err)

	_, err = Decode([]byte{byte(LdcI4), 0x01, 0x02})
	assert.Error(t, err)

	_, err = Decode([]byte{0xFE})
	assert.Error(t, err)
}
