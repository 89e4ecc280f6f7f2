// Package rom lays out compiled code and data into a cartridge image and
// finalizes the header the boot ROM validates.
package rom

import (
	"fmt"

	"github.com/retroenv/ilgbc/internal/codegen"
	"github.com/retroenv/retrogolib/log"
)

// Options controls the cartridge image.
type Options struct {
	Title         string
	CartridgeType byte
	Banks         int // switchable data banks beyond the 32 KiB base image
}

// Build lays out all units and data blobs, patches their relocations and
// returns the finished cartridge image.
func Build(logger *log.Logger, program *codegen.Program, units []*codegen.Unit, opts Options) ([]byte, error) {
	all := make([]*codegen.Unit, 0, len(program.Units)+len(units))
	all = append(all, program.Units...)
	all = append(all, units...)

	plan := newLayout(opts.Banks)
	for _, unit := range all {
		if err := plan.placeCode(unit.Name, len(unit.Bytes)); err != nil {
			return nil, err
		}
	}
	for _, blob := range program.Data {
		if err := plan.placeData(blob.Name, len(blob.Bytes)); err != nil {
			return nil, err
		}
	}

	if plan.spillBanks > 0 {
		logger.Debug("Data spilled to switchable banks",
			log.Int("banks", plan.spillBanks))
		if opts.CartridgeType == 0 {
			logger.Warn("Banked data requires a mapper but the cartridge type declares none")
		}
	}

	image := make([]byte, plan.imageSize())
	for i := range image {
		image[i] = fillByte
	}
	for i := 0; i < CodeStart; i++ {
		image[i] = 0
	}

	for _, unit := range all {
		copy(image[plan.symbols[unit.Name].pos:], unit.Bytes)
	}
	for _, blob := range program.Data {
		copy(image[plan.symbols[blob.Name].pos:], blob.Bytes)
	}

	for _, unit := range all {
		if err := patch(image, plan, unit); err != nil {
			return nil, err
		}
	}

	writeHeader(image, opts.Title, opts.CartridgeType)
	writeChecksums(image)

	logger.Debug("Cartridge image assembled",
		log.Int("size", len(image)),
		log.Int("units", len(all)),
		log.Int("dataBlobs", len(program.Data)))
	return image, nil
}

// patch resolves all relocations of a unit against the layout.
func patch(image []byte, plan *layout, unit *codegen.Unit) error {
	base := plan.symbols[unit.Name]

	for _, reloc := range unit.Relocs {
		pos := base.pos + reloc.Pos

		var target placement
		if reloc.Local {
			target = base
		} else {
			var ok bool
			target, ok = plan.symbols[reloc.Symbol]
			if !ok {
				return fmt.Errorf("unit %s references unresolved symbol %s", unit.Name, reloc.Symbol)
			}
		}

		switch reloc.Kind {
		case codegen.RelocAbs16:
			addr := target.addr + reloc.Offset
			image[pos] = byte(addr)
			image[pos+1] = byte(addr >> 8)
		case codegen.RelocBank8:
			image[pos] = target.bankNumber()
		default:
			return fmt.Errorf("unit %s has a relocation of unknown kind %d", unit.Name, reloc.Kind)
		}
	}
	return nil
}
