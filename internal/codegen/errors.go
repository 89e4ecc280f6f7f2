package codegen

import "fmt"

// AllocationError reports that the fixed work RAM arena cannot hold the
// frames, statics or heap bookkeeping of the program.
type AllocationError struct {
	Method string // method whose frame failed to allocate, empty for regions
	Region string // arena region name
	Needed int
	Limit  int
}

func (e *AllocationError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("cannot allocate %d bytes of %s for method %s, %d bytes available",
			e.Needed, e.Region, e.Method, e.Limit)
	}
	return fmt.Sprintf("cannot allocate %d bytes of %s, %d bytes available",
		e.Needed, e.Region, e.Limit)
}

// WidthError reports an operation that the target cannot perform at the
// requested operand width.
type WidthError struct {
	Method    string
	Operation string
	Width     string
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("operation %s is not supported at width %s in method %s",
		e.Operation, e.Width, e.Method)
}
