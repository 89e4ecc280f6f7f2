package ir

import "fmt"

// UnsupportedOperationError marks a bytecode construct outside the supported
// subset. It aborts the build, naming the method and instruction offset.
type UnsupportedOperationError struct {
	Method      string
	Offset      int
	Instruction string
	Reason      string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("unsupported operation %s in method %s at offset 0x%04x",
		e.Instruction, e.Method, e.Offset)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ControlFlowError marks an inconsistent operand stack state at a basic
// block merge point.
type ControlFlowError struct {
	Method string
	Offset int
	Reason string
}

func (e *ControlFlowError) Error() string {
	return fmt.Sprintf("control flow inconsistency in method %s at offset 0x%04x: %s",
		e.Method, e.Offset, e.Reason)
}
