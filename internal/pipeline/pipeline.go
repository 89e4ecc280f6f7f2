// Package pipeline orchestrates the compilation workflow stages.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/ilgbc/internal/codegen"
	"github.com/retroenv/ilgbc/internal/il"
	"github.com/retroenv/ilgbc/internal/ir"
	"github.com/retroenv/ilgbc/internal/options"
	"github.com/retroenv/ilgbc/internal/rom"
	"github.com/retroenv/ilgbc/internal/runtime"
	"github.com/retroenv/ilgbc/internal/verification"
	"github.com/retroenv/retrogolib/log"
)

// Pipeline orchestrates the complete compilation workflow.
type Pipeline struct {
	logger *log.Logger
}

// New creates a new compilation pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Execute compiles the input assembly into a cartridge image and writes it
// to the output file. The output is only written after the whole image is
// assembled and verified, a failing stage never leaves a partial file.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program) error {
	assembly, err := il.LoadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("loading assembly: %w", err)
	}
	p.logger.Debug("Assembly loaded",
		log.String("name", assembly.Name),
		log.Int("methods", len(assembly.Methods)))

	if err := ctx.Err(); err != nil {
		return err
	}

	module, err := ir.Build(p.logger, assembly)
	if err != nil {
		return fmt.Errorf("building IR: %w", err)
	}

	program, err := codegen.Generate(p.logger, module)
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	runtimeUnits, err := runtime.Units()
	if err != nil {
		return fmt.Errorf("assembling runtime: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// all methods are lowered at this point, the layout runs strictly after
	comp := options.NewCompiler(opts)
	image, err := rom.Build(p.logger, program, runtimeUnits, rom.Options{
		Title:         strings.ToUpper(comp.Title),
		CartridgeType: comp.CartridgeType,
		Banks:         comp.Banks,
	})
	if err != nil {
		return fmt.Errorf("building rom: %w", err)
	}

	if comp.Verify {
		if err := verification.VerifyImage(ctx, p.logger, image); err != nil {
			return fmt.Errorf("verifying rom: %w", err)
		}
	}

	if err := os.WriteFile(opts.Output, image, 0o644); err != nil {
		return fmt.Errorf("writing output file %s: %w", opts.Output, err)
	}

	p.logger.Info("Cartridge written",
		log.String("output", opts.Output),
		log.Int("size", len(image)))
	return nil
}

// PrintBanner prints application version information.
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("ilgbc", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
