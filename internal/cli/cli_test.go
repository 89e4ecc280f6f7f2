package cli

import (
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/retroenv/ilgbc/internal/options"
	"github.com/retroenv/retrogolib/assert"
)

func parseArgs(t *testing.T, args ...string) (options.Program, error) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"ilgbc"}, args...)
	defer func() {
		os.Args = saved
	}()
	return ParseFlags()
}

func TestParseFlags(t *testing.T) {
	opts, err := parseArgs(t, "-o", "game.gb", "-title", "demo", "-banks", "2", "program.ilc")
	assert.NoError(t, err)
	assert.Equal(t, "program.ilc", opts.Input)
	assert.Equal(t, "game.gb", opts.Output)
	assert.Equal(t, "demo", opts.Title)
	assert.Equal(t, 2, opts.Banks)
}

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseArgs(t, "program.ilc")
	assert.NoError(t, err)
	assert.Equal(t, "out.gb", opts.Output)
	assert.Equal(t, "HELLO WORLD", opts.Title)
	assert.Equal(t, 0, opts.CartridgeType)
	assert.Equal(t, false, opts.Verify)
}

func TestParseFlagsMissingInput(t *testing.T) {
	_, err := parseArgs(t)
	var usageErr *UsageError
	assert.True(t, errors.As(err, &usageErr))
}

func TestParseFlagsArgumentAfterFile(t *testing.T) {
	_, err := parseArgs(t, "program.ilc", "-debug")
	var usageErr *UsageError
	assert.True(t, errors.As(err, &usageErr))
}

func TestValidateOptions(t *testing.T) {
	flags := flag.NewFlagSet("ilgbc", flag.ContinueOnError)
	assert.NoError(t, validateOptions(flags, options.Program{}))
	assert.Error(t, validateOptions(flags, options.Program{CartridgeType: 0x100}))
	assert.Error(t, validateOptions(flags, options.Program{Banks: maxDataBanks + 1}))
	assert.Error(t, validateOptions(flags, options.Program{Banks: -1}))
}
