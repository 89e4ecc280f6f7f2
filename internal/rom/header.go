package rom

// Cartridge image geometry and header field offsets.
const (
	// HeaderStart is the execution entry vector address.
	HeaderStart = 0x0100
	// CodeStart is the first address after the cartridge header.
	CodeStart = 0x0150

	// BankSize is the size of one ROM bank.
	BankSize = 0x4000
	// MinROMSize is the smallest valid cartridge image.
	MinROMSize = 2 * BankSize

	offLogo           = 0x0104
	offTitle          = 0x0134
	offTitleEnd       = 0x0143
	offCartridgeType  = 0x0147
	offROMSize        = 0x0148
	offRAMSize        = 0x0149
	offHeaderChecksum = 0x014D
	offGlobalChecksum = 0x014E

	// fillByte pads unused ROM space, matching erased flash.
	fillByte = 0xFF
)

// nintendoLogo is the bitmap the boot ROM validates before handing over
// control, a cartridge without it never starts.
var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B,
	0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC,
	0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// vectorEnd is the last RST/interrupt vector address.
const vectorEnd = 0x0060

// writeVectors fills the RST and interrupt vectors with RETI stubs, a
// stray jump or spurious interrupt returns immediately.
func writeVectors(rom []byte) {
	for addr := 0; addr <= vectorEnd; addr += 8 {
		rom[addr] = 0xD9 // RETI
	}
}

// writeHeader fills in the cartridge header except the checksums.
func writeHeader(rom []byte, title string, cartridgeType byte) {
	writeVectors(rom)

	// entry vector: NOP, JP CodeStart
	rom[HeaderStart] = 0x00
	rom[HeaderStart+1] = 0xC3
	rom[HeaderStart+2] = byte(CodeStart & 0xFF)
	rom[HeaderStart+3] = byte(CodeStart >> 8)

	copy(rom[offLogo:], nintendoLogo[:])

	for i := offTitle; i < offTitleEnd; i++ {
		rom[i] = 0
	}
	for i := 0; i < len(title) && i < offTitleEnd-offTitle; i++ {
		rom[offTitle+i] = title[i]
	}

	rom[offCartridgeType] = cartridgeType
	rom[offROMSize] = romSizeCode(len(rom))
	rom[offRAMSize] = 0 // no cartridge RAM
}

// romSizeCode encodes the image size as the shift count over 32 KiB.
func romSizeCode(size int) byte {
	code := byte(0)
	for s := MinROMSize; s < size; s <<= 1 {
		code++
	}
	return code
}

// HeaderChecksum computes the 8-bit checksum over the header fields
// 0x0134-0x014C that the boot ROM validates.
func HeaderChecksum(rom []byte) byte {
	var sum byte
	for i := offTitle; i < offHeaderChecksum; i++ {
		sum = sum - rom[i] - 1
	}
	return sum
}

// GlobalChecksum computes the 16-bit sum of all ROM bytes excluding the
// checksum field itself.
func GlobalChecksum(rom []byte) uint16 {
	var sum uint16
	for i, b := range rom {
		if i == offGlobalChecksum || i == offGlobalChecksum+1 {
			continue
		}
		sum += uint16(b)
	}
	return sum
}

// writeChecksums finalizes both header checksums. The global checksum
// covers the header checksum byte, the order is fixed.
func writeChecksums(rom []byte) {
	rom[offHeaderChecksum] = HeaderChecksum(rom)
	global := GlobalChecksum(rom)
	rom[offGlobalChecksum] = byte(global >> 8) // big endian, unlike the CPU
	rom[offGlobalChecksum+1] = byte(global)
}
