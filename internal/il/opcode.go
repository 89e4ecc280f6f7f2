package il

// Opcode identifies a CIL instruction. Two byte opcodes carry the 0xFE
// prefix in the high byte.
type Opcode uint16

// OperandKind describes the inline operand encoding of an opcode.
type OperandKind int

const (
	OperandNone   OperandKind = iota
	OperandInt8               // inline int8
	OperandInt32              // inline int32
	OperandToken              // metadata token, 4 bytes
	OperandTarget8            // branch target, int8 relative to next instruction
	OperandTarget32           // branch target, int32 relative to next instruction
	OperandInt64              // inline int64
)

// Supported single byte opcodes.
const (
	Nop       Opcode = 0x00
	Break     Opcode = 0x01
	Ldarg0    Opcode = 0x02
	Ldarg1    Opcode = 0x03
	Ldarg2    Opcode = 0x04
	Ldarg3    Opcode = 0x05
	Ldloc0    Opcode = 0x06
	Ldloc1    Opcode = 0x07
	Ldloc2    Opcode = 0x08
	Ldloc3    Opcode = 0x09
	Stloc0    Opcode = 0x0A
	Stloc1    Opcode = 0x0B
	Stloc2    Opcode = 0x0C
	Stloc3    Opcode = 0x0D
	LdargS    Opcode = 0x0E
	LdargaS   Opcode = 0x0F
	StargS    Opcode = 0x10
	LdlocS    Opcode = 0x11
	LdlocaS   Opcode = 0x12
	StlocS    Opcode = 0x13
	Ldnull    Opcode = 0x14
	LdcI4M1   Opcode = 0x15
	LdcI40    Opcode = 0x16
	LdcI41    Opcode = 0x17
	LdcI42    Opcode = 0x18
	LdcI43    Opcode = 0x19
	LdcI44    Opcode = 0x1A
	LdcI45    Opcode = 0x1B
	LdcI46    Opcode = 0x1C
	LdcI47    Opcode = 0x1D
	LdcI48    Opcode = 0x1E
	LdcI4S    Opcode = 0x1F
	LdcI4     Opcode = 0x20
	LdcI8     Opcode = 0x21
	LdcR4     Opcode = 0x22
	LdcR8     Opcode = 0x23
	Dup       Opcode = 0x25
	Pop       Opcode = 0x26
	Jmp       Opcode = 0x27
	Call      Opcode = 0x28
	Calli     Opcode = 0x29
	Ret       Opcode = 0x2A
	BrS       Opcode = 0x2B
	BrfalseS  Opcode = 0x2C
	BrtrueS   Opcode = 0x2D
	BeqS      Opcode = 0x2E
	BgeS      Opcode = 0x2F
	BgtS      Opcode = 0x30
	BleS      Opcode = 0x31
	BltS      Opcode = 0x32
	BneUnS    Opcode = 0x33
	BgeUnS    Opcode = 0x34
	BgtUnS    Opcode = 0x35
	BleUnS    Opcode = 0x36
	BltUnS    Opcode = 0x37
	Br        Opcode = 0x38
	Brfalse   Opcode = 0x39
	Brtrue    Opcode = 0x3A
	Beq       Opcode = 0x3B
	Bge       Opcode = 0x3C
	Bgt       Opcode = 0x3D
	Ble       Opcode = 0x3E
	Blt       Opcode = 0x3F
	BneUn     Opcode = 0x40
	BgeUn     Opcode = 0x41
	BgtUn     Opcode = 0x42
	BleUn     Opcode = 0x43
	BltUn     Opcode = 0x44
	Switch    Opcode = 0x45
	Add       Opcode = 0x58
	Sub       Opcode = 0x59
	Mul       Opcode = 0x5A
	Div       Opcode = 0x5B
	DivUn     Opcode = 0x5C
	Rem       Opcode = 0x5D
	RemUn     Opcode = 0x5E
	And       Opcode = 0x5F
	Or        Opcode = 0x60
	Xor       Opcode = 0x61
	Shl       Opcode = 0x62
	Shr       Opcode = 0x63
	ShrUn     Opcode = 0x64
	Neg       Opcode = 0x65
	Not       Opcode = 0x66
	ConvI1    Opcode = 0x67
	ConvI2    Opcode = 0x68
	ConvI4    Opcode = 0x69
	ConvI8    Opcode = 0x6A
	ConvR4    Opcode = 0x6B
	ConvR8    Opcode = 0x6C
	ConvU4    Opcode = 0x6D
	ConvU8    Opcode = 0x6E
	Callvirt  Opcode = 0x6F
	Ldstr     Opcode = 0x72
	Newobj    Opcode = 0x73
	Castclass Opcode = 0x74
	Isinst    Opcode = 0x75
	Unbox     Opcode = 0x79
	Throw     Opcode = 0x7A
	Ldfld     Opcode = 0x7B
	Ldflda    Opcode = 0x7C
	Stfld     Opcode = 0x7D
	Ldsfld    Opcode = 0x7E
	Ldsflda   Opcode = 0x7F
	Stsfld    Opcode = 0x80
	Box       Opcode = 0x8C
	Newarr    Opcode = 0x8D
	Ldlen     Opcode = 0x8E
	Ldelema   Opcode = 0x8F
	LdelemI1  Opcode = 0x90
	LdelemU1  Opcode = 0x91
	LdelemI2  Opcode = 0x92
	LdelemU2  Opcode = 0x93
	LdelemI4  Opcode = 0x94
	LdelemU4  Opcode = 0x95
	StelemI1  Opcode = 0x9C
	StelemI2  Opcode = 0x9D
	StelemI4  Opcode = 0x9E
	ConvU2    Opcode = 0xD1
	ConvU1    Opcode = 0xD2
	Leave     Opcode = 0xDD
	LeaveS    Opcode = 0xDE
)

// Two byte opcodes, 0xFE prefixed.
const (
	Ceq         Opcode = 0xFE01
	Cgt         Opcode = 0xFE02
	CgtUn       Opcode = 0xFE03
	Clt         Opcode = 0xFE04
	CltUn       Opcode = 0xFE05
	Ldftn       Opcode = 0xFE06
	Initobj     Opcode = 0xFE15
	Constrained Opcode = 0xFE16
	Rethrow     Opcode = 0xFE1A
)

// OpcodeInfo describes the name and operand encoding of an opcode.
type OpcodeInfo struct {
	Name    string
	Operand OperandKind
}

// Opcodes maps all opcodes of the accepted and explicitly rejected subset
// to their decoding info. Opcodes missing from this table fail decoding.
var Opcodes = map[Opcode]OpcodeInfo{
	Nop:       {"nop", OperandNone},
	Break:     {"break", OperandNone},
	Ldarg0:    {"ldarg.0", OperandNone},
	Ldarg1:    {"ldarg.1", OperandNone},
	Ldarg2:    {"ldarg.2", OperandNone},
	Ldarg3:    {"ldarg.3", OperandNone},
	Ldloc0:    {"ldloc.0", OperandNone},
	Ldloc1:    {"ldloc.1", OperandNone},
	Ldloc2:    {"ldloc.2", OperandNone},
	Ldloc3:    {"ldloc.3", OperandNone},
	Stloc0:    {"stloc.0", OperandNone},
	Stloc1:    {"stloc.1", OperandNone},
	Stloc2:    {"stloc.2", OperandNone},
	Stloc3:    {"stloc.3", OperandNone},
	LdargS:    {"ldarg.s", OperandInt8},
	LdargaS:   {"ldarga.s", OperandInt8},
	StargS:    {"starg.s", OperandInt8},
	LdlocS:    {"ldloc.s", OperandInt8},
	LdlocaS:   {"ldloca.s", OperandInt8},
	StlocS:    {"stloc.s", OperandInt8},
	Ldnull:    {"ldnull", OperandNone},
	LdcI4M1:   {"ldc.i4.m1", OperandNone},
	LdcI40:    {"ldc.i4.0", OperandNone},
	LdcI41:    {"ldc.i4.1", OperandNone},
	LdcI42:    {"ldc.i4.2", OperandNone},
	LdcI43:    {"ldc.i4.3", OperandNone},
	LdcI44:    {"ldc.i4.4", OperandNone},
	LdcI45:    {"ldc.i4.5", OperandNone},
	LdcI46:    {"ldc.i4.6", OperandNone},
	LdcI47:    {"ldc.i4.7", OperandNone},
	LdcI48:    {"ldc.i4.8", OperandNone},
	LdcI4S:    {"ldc.i4.s", OperandInt8},
	LdcI4:     {"ldc.i4", OperandInt32},
	LdcI8:     {"ldc.i8", OperandInt64},
	LdcR4:     {"ldc.r4", OperandInt32},
	LdcR8:     {"ldc.r8", OperandInt64},
	Dup:       {"dup", OperandNone},
	Pop:       {"pop", OperandNone},
	Jmp:       {"jmp", OperandToken},
	Call:      {"call", OperandToken},
	Calli:     {"calli", OperandToken},
	Ret:       {"ret", OperandNone},
	BrS:       {"br.s", OperandTarget8},
	BrfalseS:  {"brfalse.s", OperandTarget8},
	BrtrueS:   {"brtrue.s", OperandTarget8},
	BeqS:      {"beq.s", OperandTarget8},
	BgeS:      {"bge.s", OperandTarget8},
	BgtS:      {"bgt.s", OperandTarget8},
	BleS:      {"ble.s", OperandTarget8},
	BltS:      {"blt.s", OperandTarget8},
	BneUnS:    {"bne.un.s", OperandTarget8},
	BgeUnS:    {"bge.un.s", OperandTarget8},
	BgtUnS:    {"bgt.un.s", OperandTarget8},
	BleUnS:    {"ble.un.s", OperandTarget8},
	BltUnS:    {"blt.un.s", OperandTarget8},
	Br:        {"br", OperandTarget32},
	Brfalse:   {"brfalse", OperandTarget32},
	Brtrue:    {"brtrue", OperandTarget32},
	Beq:       {"beq", OperandTarget32},
	Bge:       {"bge", OperandTarget32},
	Bgt:       {"bgt", OperandTarget32},
	Ble:       {"ble", OperandTarget32},
	Blt:       {"blt", OperandTarget32},
	BneUn:     {"bne.un", OperandTarget32},
	BgeUn:     {"bge.un", OperandTarget32},
	BgtUn:     {"bgt.un", OperandTarget32},
	BleUn:     {"ble.un", OperandTarget32},
	BltUn:     {"blt.un", OperandTarget32},
	Switch:    {"switch", OperandToken},
	Add:       {"add", OperandNone},
	Sub:       {"sub", OperandNone},
	Mul:       {"mul", OperandNone},
	Div:       {"div", OperandNone},
	DivUn:     {"div.un", OperandNone},
	Rem:       {"rem", OperandNone},
	RemUn:     {"rem.un", OperandNone},
	And:       {"and", OperandNone},
	Or:        {"or", OperandNone},
	Xor:       {"xor", OperandNone},
	Shl:       {"shl", OperandNone},
	Shr:       {"shr", OperandNone},
	ShrUn:     {"shr.un", OperandNone},
	Neg:       {"neg", OperandNone},
	Not:       {"not", OperandNone},
	ConvI1:    {"conv.i1", OperandNone},
	ConvI2:    {"conv.i2", OperandNone},
	ConvI4:    {"conv.i4", OperandNone},
	ConvI8:    {"conv.i8", OperandNone},
	ConvR4:    {"conv.r4", OperandNone},
	ConvR8:    {"conv.r8", OperandNone},
	ConvU4:    {"conv.u4", OperandNone},
	ConvU8:    {"conv.u8", OperandNone},
	Callvirt:  {"callvirt", OperandToken},
	Ldstr:     {"ldstr", OperandToken},
	Newobj:    {"newobj", OperandToken},
	Castclass: {"castclass", OperandToken},
	Isinst:    {"isinst", OperandToken},
	Unbox:     {"unbox", OperandToken},
	Throw:     {"throw", OperandNone},
	Ldfld:     {"ldfld", OperandToken},
	Ldflda:    {"ldflda", OperandToken},
	Stfld:     {"stfld", OperandToken},
	Ldsfld:    {"ldsfld", OperandToken},
	Ldsflda:   {"ldsflda", OperandToken},
	Stsfld:    {"stsfld", OperandToken},
	Box:       {"box", OperandToken},
	Newarr:    {"newarr", OperandToken},
	Ldlen:     {"ldlen", OperandNone},
	Ldelema:   {"ldelema", OperandToken},
	LdelemI1:  {"ldelem.i1", OperandNone},
	LdelemU1:  {"ldelem.u1", OperandNone},
	LdelemI2:  {"ldelem.i2", OperandNone},
	LdelemU2:  {"ldelem.u2", OperandNone},
	LdelemI4:  {"ldelem.i4", OperandNone},
	LdelemU4:  {"ldelem.u4", OperandNone},
	StelemI1:  {"stelem.i1", OperandNone},
	StelemI2:  {"stelem.i2", OperandNone},
	StelemI4:  {"stelem.i4", OperandNone},
	ConvU2:    {"conv.u2", OperandNone},
	ConvU1:    {"conv.u1", OperandNone},
	Leave:     {"leave", OperandTarget32},
	LeaveS:    {"leave.s", OperandTarget8},

	Ceq:         {"ceq", OperandNone},
	Cgt:         {"cgt", OperandNone},
	CgtUn:       {"cgt.un", OperandNone},
	Clt:         {"clt", OperandNone},
	CltUn:       {"clt.un", OperandNone},
	Ldftn:       {"ldftn", OperandToken},
	Initobj:     {"initobj", OperandToken},
	Constrained: {"constrained.", OperandToken},
	Rethrow:     {"rethrow", OperandNone},
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	info, ok := Opcodes[op]
	if !ok {
		return "unknown"
	}
	return info.Name
}
