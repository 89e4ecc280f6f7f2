package rom

import (
	"errors"
	"testing"

	"github.com/retroenv/ilgbc/internal/codegen"
	"github.com/retroenv/ilgbc/internal/ir"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func testProgram(units ...*codegen.Unit) *codegen.Program {
	return &codegen.Program{Units: units}
}

func haltUnit() *codegen.Unit {
	return &codegen.Unit{Name: "__start", Bytes: []byte{0xF3, 0x76, 0x00}} // DI, HALT, NOP
}

func TestBuildImageBasics(t *testing.T) {
	image, err := Build(log.NewTestLogger(t), testProgram(haltUnit()), nil, Options{Title: "TEST"})
	assert.NoError(t, err)
	assert.Equal(t, MinROMSize, len(image))

	// vectors hold RETI stubs, the rest below the header is zeroed,
	// unused space is filled
	assert.Equal(t, byte(0xD9), image[0])
	assert.Equal(t, byte(0xD9), image[0x0040])
	assert.Equal(t, byte(0x00), image[0x0068])
	assert.Equal(t, byte(0xFF), image[MinROMSize-1])

	// entry vector: NOP, JP CodeStart
	assert.Equal(t, byte(0x00), image[HeaderStart])
	assert.Equal(t, byte(0xC3), image[HeaderStart+1])
	assert.Equal(t, byte(CodeStart&0xFF), image[HeaderStart+2])
	assert.Equal(t, byte(CodeStart>>8), image[HeaderStart+3])

	assert.Equal(t, byte('T'), image[offTitle])
	assert.Equal(t, byte(0), image[offROMSize])
	assert.Equal(t, byte(0), image[offRAMSize])

	// first unit sits right after the header
	assert.Equal(t, byte(0xF3), image[CodeStart])
}

func TestChecksumRoundTrip(t *testing.T) {
	image, err := Build(log.NewTestLogger(t), testProgram(haltUnit()), nil, Options{Title: "SUM"})
	assert.NoError(t, err)

	assert.Equal(t, HeaderChecksum(image), image[offHeaderChecksum])
	global := uint16(image[offGlobalChecksum])<<8 | uint16(image[offGlobalChecksum+1])
	assert.Equal(t, GlobalChecksum(image), global)

	image[offTitle] ^= 0xFF
	assert.True(t, HeaderChecksum(image) != image[offHeaderChecksum])
	assert.True(t, GlobalChecksum(image) != global)
}

func TestCodeOverflow(t *testing.T) {
	big := &codegen.Unit{Name: "huge", Bytes: make([]byte, MinROMSize)}

	_, err := Build(log.NewTestLogger(t), testProgram(big), nil, Options{})
	var overflow *OverflowError
	assert.True(t, errors.As(err, &overflow))
	assert.Equal(t, "huge", overflow.Symbol)
}

func TestDataSpill(t *testing.T) {
	first := make([]byte, BankSize)
	second := make([]byte, BankSize)
	second[0] = 0xAB

	program := testProgram(haltUnit())
	program.Data = []ir.DataBlob{
		{Name: "data_0", Bytes: first},
		{Name: "data_1", Bytes: second},
	}

	image, err := Build(log.NewTestLogger(t), program, nil, Options{Banks: 1, CartridgeType: 1})
	assert.NoError(t, err)

	// one spill bank rounds the image up to 64 KiB
	assert.Equal(t, 2*MinROMSize, len(image))
	assert.Equal(t, byte(1), image[offROMSize])

	// the spilled blob starts at the beginning of bank 2
	assert.Equal(t, byte(0xAB), image[2*BankSize])
}

func TestDataSpillWithoutBanks(t *testing.T) {
	program := testProgram(haltUnit())
	program.Data = []ir.DataBlob{
		{Name: "data_0", Bytes: make([]byte, BankSize)},
		{Name: "data_1", Bytes: make([]byte, BankSize)},
	}

	_, err := Build(log.NewTestLogger(t), program, nil, Options{})
	var overflow *OverflowError
	assert.True(t, errors.As(err, &overflow))
	assert.Equal(t, "data_1", overflow.Symbol)
}

func TestDataBlobExceedsBank(t *testing.T) {
	program := testProgram(haltUnit())
	program.Data = []ir.DataBlob{{Name: "data_0", Bytes: make([]byte, 2*BankSize)}}

	_, err := Build(log.NewTestLogger(t), program, nil, Options{Banks: 4})
	var overflow *OverflowError
	assert.True(t, errors.As(err, &overflow))
}

func TestRelocationPatching(t *testing.T) {
	caller := &codegen.Unit{
		Name:  "main",
		Bytes: []byte{0xCD, 0x00, 0x00, 0x3E, 0x00}, // CALL target, LD A,bank
		Relocs: []codegen.Reloc{
			{Kind: codegen.RelocAbs16, Pos: 1, Symbol: "target"},
			{Kind: codegen.RelocBank8, Pos: 4, Symbol: "data_far"},
		},
	}
	target := &codegen.Unit{Name: "target", Bytes: []byte{0xC9}}

	// fill the base image so that data_far has to spill into bank 2
	fill := MinROMSize - CodeStart - len(caller.Bytes) - len(target.Bytes) - 8
	program := testProgram(caller, target)
	program.Data = []ir.DataBlob{
		{Name: "data_0", Bytes: make([]byte, fill)},
		{Name: "data_far", Bytes: make([]byte, 16)},
	}

	image, err := Build(log.NewTestLogger(t), program, nil, Options{Banks: 1, CartridgeType: 1})
	assert.NoError(t, err)

	// target follows the caller in the base image
	targetAddr := CodeStart + len(caller.Bytes)
	assert.Equal(t, byte(targetAddr), image[CodeStart+1])
	assert.Equal(t, byte(targetAddr>>8), image[CodeStart+2])

	// data_far spilled into bank 2
	assert.Equal(t, byte(2), image[CodeStart+4])
}

func TestLocalRelocation(t *testing.T) {
	unit := &codegen.Unit{
		Name:  "main",
		Bytes: []byte{0xC3, 0x00, 0x00, 0x00, 0x76}, // JP block, NOP, HALT
		Relocs: []codegen.Reloc{
			{Kind: codegen.RelocAbs16, Pos: 1, Local: true, Offset: 4},
		},
	}

	image, err := Build(log.NewTestLogger(t), testProgram(unit), nil, Options{})
	assert.NoError(t, err)

	addr := CodeStart + 4
	assert.Equal(t, byte(addr), image[CodeStart+1])
	assert.Equal(t, byte(addr>>8), image[CodeStart+2])
}

func TestUnresolvedSymbol(t *testing.T) {
	unit := &codegen.Unit{
		Name:   "main",
		Bytes:  []byte{0xCD, 0x00, 0x00},
		Relocs: []codegen.Reloc{{Kind: codegen.RelocAbs16, Pos: 1, Symbol: "missing"}},
	}

	_, err := Build(log.NewTestLogger(t), testProgram(unit), nil, Options{})
	assert.Error(t, err)
}
