// Package verification revalidates a finished cartridge image: header
// structure, both checksums, and a bounded smoke execution on the reference
// interpreter.
package verification

import (
	"context"
	"fmt"

	"github.com/retroenv/ilgbc/internal/lr35902"
	"github.com/retroenv/ilgbc/internal/rom"
	"github.com/retroenv/retrogolib/log"
)

// maxSmokeSteps bounds the smoke execution, generous enough for video
// memory copy loops of full tile maps.
const maxSmokeSteps = 2_000_000

// VerifyImage checks the cartridge image for structural validity and runs
// it on the reference interpreter until it halts.
func VerifyImage(ctx context.Context, logger *log.Logger, image []byte) error {
	if err := verifyHeader(image); err != nil {
		return err
	}
	logger.Debug("Header verified", log.Int("size", len(image)))

	if err := ctx.Err(); err != nil {
		return err
	}

	cpu := lr35902.New(image)
	steps, err := cpu.Run(maxSmokeSteps)
	if err != nil {
		return fmt.Errorf("smoke execution: %w", err)
	}
	logger.Debug("Smoke execution finished", log.Int("instructions", steps))
	return nil
}

func verifyHeader(image []byte) error {
	if len(image) < rom.MinROMSize {
		return fmt.Errorf("image is %d bytes, the minimum cartridge size is %d", len(image), rom.MinROMSize)
	}
	if len(image)&(len(image)-1) != 0 {
		return fmt.Errorf("image size %d is not a power of two", len(image))
	}

	// entry vector: NOP, JP CodeStart
	if image[rom.HeaderStart] != 0x00 || image[rom.HeaderStart+1] != 0xC3 {
		return fmt.Errorf("entry vector at 0x%04x is not NOP JP", rom.HeaderStart)
	}
	target := int(image[rom.HeaderStart+2]) | int(image[rom.HeaderStart+3])<<8
	if target != rom.CodeStart {
		return fmt.Errorf("entry vector jumps to 0x%04x instead of 0x%04x", target, rom.CodeStart)
	}

	if got, want := image[0x014D], rom.HeaderChecksum(image); got != want {
		return fmt.Errorf("header checksum 0x%02x does not match computed 0x%02x", got, want)
	}
	stored := uint16(image[0x014E])<<8 | uint16(image[0x014F])
	if want := rom.GlobalChecksum(image); stored != want {
		return fmt.Errorf("global checksum 0x%04x does not match computed 0x%04x", stored, want)
	}
	return nil
}
