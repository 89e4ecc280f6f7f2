package codegen

import (
	"errors"
	"testing"

	"github.com/retroenv/ilgbc/internal/ir"
	"github.com/retroenv/retrogolib/assert"
)

func TestAllocFrames(t *testing.T) {
	module := &ir.Module{
		Methods: []*ir.Method{
			{
				Name:     "Demo.Program::Main",
				Params:   []ir.Width{ir.W16},
				Locals:   []ir.Width{ir.W8, ir.W32},
				MaxDepth: 2,
			},
			{
				Name:     "Demo.Program::Helper",
				Locals:   []ir.Width{ir.W16},
				MaxDepth: 1,
			},
		},
	}

	frames, err := allocFrames(module)
	assert.NoError(t, err)

	main := frames["Demo.Program::Main"]
	assert.Equal(t, 0xC000, main.params[0])
	assert.Equal(t, 0xC002, main.locals[0])
	assert.Equal(t, 0xC003, main.locals[1])
	assert.Equal(t, 0xC007, main.temps)
	assert.Equal(t, 0xC007, main.temp(0))
	assert.Equal(t, 0xC00B, main.temp(1))
	assert.Equal(t, 15, main.size)

	helper := frames["Demo.Program::Helper"]
	assert.Equal(t, 0xC00F, helper.locals[0])
	assert.Equal(t, 0xC011, helper.temps)
}

func TestAllocFramesOverflow(t *testing.T) {
	module := &ir.Module{
		Methods: []*ir.Method{
			{
				Name:     "Demo.Program::Deep",
				MaxDepth: 2000,
			},
		},
	}

	_, err := allocFrames(module)
	var allocErr *AllocationError
	assert.True(t, errors.As(err, &allocErr))
	assert.Equal(t, "Demo.Program::Deep", allocErr.Method)
}
