package rom

import "fmt"

// OverflowError reports that the layout cannot place all code and data
// into the available ROM space.
type OverflowError struct {
	Symbol    string
	Needed    int
	Available int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("rom layout overflow placing %s: %d bytes needed, %d available",
		e.Symbol, e.Needed, e.Available)
}
