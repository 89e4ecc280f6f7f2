package codegen

import (
	"github.com/retroenv/ilgbc/internal/ir"
	"github.com/retroenv/ilgbc/internal/lr35902"
	"github.com/retroenv/ilgbc/internal/sdk"
)

// intrinsic lowers a hardware intrinsic to its fixed expansion. Expansions
// are always inline sequences, never calls.
func (mg *methodGen) intrinsic(op ir.Op) {
	switch op.Intrinsic {
	case sdk.WriteByte:
		mg.loadHL(mg.frame.temp(op.Args[0]))
		mg.loadA(mg.frame.temp(op.Args[1]))
		mg.emit(lr35902.LdRR(lr35902.IndHL, lr35902.A))

	case sdk.ReadByte:
		result := mg.frame.temp(op.Result)
		mg.loadHL(mg.frame.temp(op.Args[0]))
		mg.emit(lr35902.LdRR(lr35902.A, lr35902.IndHL))
		mg.storeA(result)
		mg.emit(lr35902.AluR(lr35902.AluXor, lr35902.A))
		mg.storeA(result + 1)

	case sdk.CopyToVideoMemory:
		mg.videoCopy(op)

	case sdk.WaitForVerticalBlank:
		wait := mg.newLabel()
		mg.bind(wait)
		mg.emit(lr35902.LdhAImm, byte(lr35902.AddrLY&0xFF))
		mg.emit(lr35902.AluImm(lr35902.AluCp), lr35902.VBlankLine)
		mg.jr(lr35902.JrCond(lr35902.CondNZ), wait)

	case sdk.Halt:
		mg.emit(lr35902.Halt, lr35902.Nop)
	}
}

// videoCopy expands copy-to-video-memory as a bounded loop that polls the
// LCD status register before every byte, video memory rejects writes while
// the PPU holds the bus. When the source is a data table that may have been
// spilled to a switchable ROM bank, the copy runs with that bank mapped in
// and restores the default bank afterwards.
func (mg *methodGen) videoCopy(op ir.Op) {
	banked := op.SrcData >= 0
	if banked {
		mg.emit(lr35902.LdRI(lr35902.A))
		mg.bank8(mg.module.Data[op.SrcData].Name)
		mg.storeA(lr35902.BankSelect)
	}

	mg.loadHL(mg.frame.temp(op.Args[1])) // source
	mg.loadDE(mg.frame.temp(op.Args[0])) // destination
	mg.loadBC(mg.frame.temp(op.Args[2])) // length

	done := mg.newLabel()
	loop := mg.newLabel()
	wait := mg.newLabel()

	mg.emit(lr35902.LdRR(lr35902.A, lr35902.B))
	mg.emit(lr35902.AluR(lr35902.AluOr, lr35902.C))
	mg.jr(lr35902.JrCond(lr35902.CondZ), done)

	mg.bind(loop)
	mg.bind(wait)
	mg.emit(lr35902.LdhAImm, byte(lr35902.AddrSTAT&0xFF))
	mg.emit(lr35902.AluImm(lr35902.AluAnd), 0x02)
	mg.jr(lr35902.JrCond(lr35902.CondNZ), wait)

	mg.emit(lr35902.LdAHLI)
	mg.emit(lr35902.LdDEA)
	mg.emit(lr35902.IncPair(lr35902.DE))
	mg.emit(lr35902.DecPair(lr35902.BC))
	mg.emit(lr35902.LdRR(lr35902.A, lr35902.B))
	mg.emit(lr35902.AluR(lr35902.AluOr, lr35902.C))
	mg.jr(lr35902.JrCond(lr35902.CondNZ), loop)

	mg.bind(done)
	if banked {
		mg.constA(1)
		mg.storeA(lr35902.BankSelect)
	}
}
