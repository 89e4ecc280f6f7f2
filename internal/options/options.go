// Package options contains the program options.
package options

// Program contains the command line options of the compiler.
type Program struct {
	Input  string // input IL container file
	Output string // output ROM file

	Title         string // cartridge title, truncated/padded to 16 characters
	CartridgeType int    // cartridge type header byte
	Banks         int    // number of switchable 16 KiB data banks, 0 disables banking

	Debug  bool
	Quiet  bool
	Verify bool
}

// Compiler defines options to control the compilation.
type Compiler struct {
	Title         string
	CartridgeType byte
	Banks         int

	Verify bool
}

// NewCompiler returns compiler options derived from the program options.
func NewCompiler(opts Program) Compiler {
	return Compiler{
		Title:         opts.Title,
		CartridgeType: byte(opts.CartridgeType),
		Banks:         opts.Banks,
		Verify:        opts.Verify,
	}
}
