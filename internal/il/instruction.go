// Package il contains the intermediate language instruction model that the
// compiler consumes, a decoder for raw method body byte streams and the
// binary container format that carries assemblies.
package il

import (
	"encoding/binary"
	"fmt"
)

// Instruction is a single decoded IL instruction of a method body.
type Instruction struct {
	Offset  int    // byte offset inside the method body
	Opcode  Opcode
	Operand int64  // decoded inline operand, branch targets as absolute offsets
	Token   uint32 // metadata token for call/field/type referencing opcodes
}

func (ins Instruction) String() string {
	return fmt.Sprintf("IL_%04x: %s", ins.Offset, ins.Opcode)
}

// Decode decodes a raw method body byte stream into an instruction list.
// Branch targets are converted from relative to absolute body offsets.
func Decode(body []byte) ([]Instruction, error) {
	var instructions []Instruction

	for offset := 0; offset < len(body); {
		start := offset
		op := Opcode(body[offset])
		offset++

		if op == 0xFE {
			if offset >= len(body) {
				return nil, fmt.Errorf("truncated two byte opcode at offset %d", start)
			}
			op = 0xFE00 | Opcode(body[offset])
			offset++
		}

		info, ok := Opcodes[op]
		if !ok {
			return nil, fmt.Errorf("unknown opcode 0x%02x at offset %d", uint16(op), start)
		}

		ins := Instruction{
			Offset: start,
			Opcode: op,
		}

		size := operandSize(info.Operand)
		if offset+size > len(body) {
			return nil, fmt.Errorf("truncated operand for %s at offset %d", info.Name, start)
		}

		switch info.Operand {
		case OperandNone:

		case OperandInt8:
			ins.Operand = int64(int8(body[offset]))

		case OperandInt32:
			ins.Operand = int64(int32(binary.LittleEndian.Uint32(body[offset:])))

		case OperandInt64:
			ins.Operand = int64(binary.LittleEndian.Uint64(body[offset:]))

		case OperandToken:
			ins.Token = binary.LittleEndian.Uint32(body[offset:])

		case OperandTarget8:
			rel := int(int8(body[offset]))
			ins.Operand = int64(offset + size + rel)

		case OperandTarget32:
			rel := int(int32(binary.LittleEndian.Uint32(body[offset:])))
			ins.Operand = int64(offset + size + rel)
		}

		offset += size
		instructions = append(instructions, ins)
	}

	return instructions, nil
}

func operandSize(kind OperandKind) int {
	switch kind {
	case OperandInt8, OperandTarget8:
		return 1
	case OperandInt32, OperandToken, OperandTarget32:
		return 4
	case OperandInt64:
		return 8
	default:
		return 0
	}
}
