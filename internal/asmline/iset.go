package asmline

// Category classifies an instruction's operand shape (spec §3
// "Instruction set table").
type Category int

const (
	Binary Category = iota
	Unary
	Zero
	Branch
	Spmove
	Osix
	Spec
	MacroCtl
)

// Inst is one instruction-set table entry: its base opcode byte and
// operand category.
type Inst struct {
	Opcode   byte
	Category Category
}

// ISet is the CdM-8 instruction mnemonic table, ported from the
// reference assembler's opcode map.
var ISet = map[string]Inst{
	"move": {0x00, Binary},
	"add":  {0x10, Binary},
	"addc": {0x20, Binary},
	"sub":  {0x30, Binary},
	"and":  {0x40, Binary},
	"or":   {0x50, Binary},
	"xor":  {0x60, Binary},
	"cmp":  {0x70, Binary},

	"not":  {0x80, Unary},
	"neg":  {0x84, Unary},
	"dec":  {0x88, Unary},
	"inc":  {0x8C, Unary},
	"shr":  {0x90, Unary},
	"shla": {0x94, Unary},
	"shra": {0x98, Unary},
	"swan": {0x9C, Unary},

	"st":  {0xA0, Binary},
	"ld":  {0xB0, Binary},
	"ldc": {0xF0, Binary},

	"push": {0xC0, Unary},
	"pop":  {0xC4, Unary},

	"ldsa":    {0xC8, Unary},
	"addsp":   {0xCC, Spmove},
	"setsp":   {0xCD, Spmove},
	"pushall": {0xCE, Zero},
	"popall":  {0xCF, Zero},

	"ldi": {0xD0, Unary},

	"halt": {0xD4, Zero},
	"wait": {0xD5, Zero},

	"jsr": {0xD6, Branch},
	"rts": {0xD7, Zero},

	"ioi": {0xD8, Zero},
	"rti": {0xD9, Zero},
	"crc": {0xDA, Zero},

	"beq": {0xE0, Branch}, "bz": {0xE0, Branch},
	"bne": {0xE1, Branch}, "bnz": {0xE1, Branch},
	"bhs": {0xE2, Branch}, "bcs": {0xE2, Branch},
	"blo": {0xE3, Branch}, "bcc": {0xE3, Branch},
	"bmi": {0xE4, Branch},
	"bpl": {0xE5, Branch},
	"bvs": {0xE6, Branch},
	"bvc": {0xE7, Branch},
	"bhi": {0xE8, Branch},
	"bls": {0xE9, Branch},
	"bge": {0xEA, Branch},
	"blt": {0xEB, Branch},
	"bgt": {0xEC, Branch},
	"ble": {0xED, Branch},
	"br":   {0xEE, Branch},
	"noop": {0xEF, Branch},
	"lchk": {0x00, Branch}, // pseudo: zero-sized no-op (spec §4.3)

	"asect":  {0, Spec},
	"rsect":  {0, Spec},
	"tplate": {0, Spec},
	"ext":    {0, Spec},
	"ds":     {0, Spec},
	"dc":     {0, Spec},
	"set":    {0, Spec},
	"end":    {0, Spec},

	"macro": {0, MacroCtl},
	"mend":  {0, MacroCtl},
}

// legacyOnly lists the Mark 4 instructions that the --v3 flag forbids:
// when Context.V3 is true the assembler targets the older Mark 3 core
// and rejects any of these (spec §3).
var legacyOnly = map[string]bool{
	"ldsa": true, "addsp": true, "setsp": true, "pushall": true, "popall": true,
}

// LegacyOnly reports whether mnemonic is a Mark 4 instruction that
// Context.V3 (legacy/Mark 3 mode) forbids.
func LegacyOnly(mnemonic string) bool {
	return legacyOnly[mnemonic]
}
