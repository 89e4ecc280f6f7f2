package rom

// placement is the resolved location of one symbol.
type placement struct {
	addr int // CPU visible address
	bank int // ROM bank holding the bytes
	pos  int // absolute image offset
}

// layout assigns final addresses to all code units and data blobs.
//
// Code always lives in the base image, banks 0 and 1, which the CPU sees as
// one flat 32 KiB window with the power on bank mapping. Data blobs fill the
// remaining base image space first and spill into switchable banks when the
// bank budget allows it, large data tables are the only thing worth paying
// a bank switch for.
type layout struct {
	symbols map[string]placement

	cursor     int // next free base image address
	spillBanks int // number of switchable banks in use beyond bank 1
	bankCursor int // next free offset inside the current spill bank
	bankBudget int
}

func newLayout(bankBudget int) *layout {
	return &layout{
		symbols:    make(map[string]placement),
		cursor:     CodeStart,
		bankBudget: bankBudget,
	}
}

// placeCode appends a code unit to the base image.
func (l *layout) placeCode(name string, size int) error {
	if l.cursor+size > MinROMSize {
		return &OverflowError{
			Symbol:    name,
			Needed:    size,
			Available: MinROMSize - l.cursor,
		}
	}
	bank := 0
	if l.cursor >= BankSize {
		bank = 1
	}
	l.symbols[name] = placement{addr: l.cursor, bank: bank, pos: l.cursor}
	l.cursor += size
	return nil
}

// placeData places a data blob in the base image or a spill bank.
func (l *layout) placeData(name string, size int) error {
	if l.cursor+size <= MinROMSize {
		return l.placeCode(name, size)
	}
	return l.spill(name, size)
}

func (l *layout) spill(name string, size int) error {
	if size > BankSize {
		return &OverflowError{Symbol: name, Needed: size, Available: BankSize}
	}
	if l.spillBanks == 0 || l.bankCursor+size > BankSize {
		if l.spillBanks >= l.bankBudget {
			return &OverflowError{
				Symbol:    name,
				Needed:    size,
				Available: MinROMSize - l.cursor,
			}
		}
		l.spillBanks++
		l.bankCursor = 0
	}

	bank := 1 + l.spillBanks
	l.symbols[name] = placement{
		addr: BankSize + l.bankCursor,
		bank: bank,
		pos:  bank*BankSize + l.bankCursor,
	}
	l.bankCursor += size
	return nil
}

// imageSize returns the final image size, a power of two with a 32 KiB
// floor.
func (l *layout) imageSize() int {
	size := (2 + l.spillBanks) * BankSize
	rounded := MinROMSize
	for rounded < size {
		rounded <<= 1
	}
	return rounded
}

// bankNumber returns the value written into the bank select register to
// reach a symbol. The base image is reachable under the default mapping.
func (p placement) bankNumber() byte {
	if p.bank <= 1 {
		return 1
	}
	return byte(p.bank)
}
