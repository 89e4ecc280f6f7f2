// Package sdk declares the fixed hardware intrinsic contract. Calls into the
// SDK owner type are replaced by direct hardware access sequences during
// code generation, never compiled as ordinary calls.
package sdk

import "fmt"

// Intrinsic identifies a recognized hardware intrinsic.
type Intrinsic uint8

const (
	None Intrinsic = iota
	WriteByte
	ReadByte
	CopyToVideoMemory
	WaitForVerticalBlank
	Halt
)

func (i Intrinsic) String() string {
	switch i {
	case WriteByte:
		return "WriteByte"
	case ReadByte:
		return "ReadByte"
	case CopyToVideoMemory:
		return "CopyToVideoMemory"
	case WaitForVerticalBlank:
		return "WaitForVerticalBlank"
	case Halt:
		return "Halt"
	default:
		return "None"
	}
}

// Owner is the owning type of the intrinsic methods.
const Owner = "GameBoy.Hardware"

type signature struct {
	name       string
	paramCount int
}

// The closed contract. Matching is by exact owner, name and parameter count.
var contract = map[signature]Intrinsic{
	{"WriteByte", 2}:            WriteByte,
	{"ReadByte", 1}:             ReadByte,
	{"CopyToVideoMemory", 3}:    CopyToVideoMemory,
	{"WaitForVerticalBlank", 0}: WaitForVerticalBlank,
	{"Halt", 0}:                 Halt,
}

// IsSDKType returns true if the owner names the hardware SDK type.
func IsSDKType(owner string) bool {
	return owner == Owner
}

// Lookup resolves an SDK call to its intrinsic. A call targeting the SDK
// type that matches no contract entry is a hard compile error.
func Lookup(owner, name string, paramCount int) (Intrinsic, error) {
	if !IsSDKType(owner) {
		return None, fmt.Errorf("type %s is not the SDK type", owner)
	}
	intrinsic, ok := contract[signature{name: name, paramCount: paramCount}]
	if !ok {
		return None, fmt.Errorf("call to %s::%s with %d arguments matches no intrinsic signature", owner, name, paramCount)
	}
	return intrinsic, nil
}
