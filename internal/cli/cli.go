// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/retroenv/ilgbc/internal/options"
)

// ParseFlags parses command line flags and returns the program options.
func ParseFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || len(args) == 0 {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(flags, args); err != nil {
		return opts, err
	}
	if err := validateOptions(flags, opts); err != nil {
		return opts, err
	}

	opts.Input = args[0]
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	if e.msg != "" {
		fmt.Printf("%s\n\n", e.msg)
	}
	fmt.Printf("usage: ilgbc [options] <file to compile>\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(flags *flag.FlagSet, args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				flags: flags,
				msg:   fmt.Sprintf("Potential argument %s found after file to compile, please pass the file to compile as last argument", arg),
			}
		}
	}
	return nil
}

// validateOptions validates option values
func validateOptions(flags *flag.FlagSet, opts options.Program) error {
	if opts.CartridgeType < 0 || opts.CartridgeType > 0xFF {
		return &UsageError{
			flags: flags,
			msg:   fmt.Sprintf("Invalid cartridge type %d, value needs to fit into a byte", opts.CartridgeType),
		}
	}
	if opts.Banks < 0 || opts.Banks > maxDataBanks {
		return &UsageError{
			flags: flags,
			msg:   fmt.Sprintf("Invalid bank count %d, supported range is 0 to %d", opts.Banks, maxDataBanks),
		}
	}
	return nil
}

// maxDataBanks limits banked builds to what the ROM size header byte can express.
const maxDataBanks = 127

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Output, "o", "out.gb", "name of the output ROM file")
	flags.StringVar(&opts.Title, "title", "HELLO WORLD", "cartridge title, truncated/padded to 16 characters")
	flags.IntVar(&opts.CartridgeType, "cartridge-type", 0, "cartridge type header byte")
	flags.IntVar(&opts.Banks, "banks", 0, "number of switchable 16 KiB data banks, 0 fails the build on overflow")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the generated ROM by revalidating checksums and executing it on the reference CPU")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
