package x86

// Width is the operand size of a register or memory access.
type Width uint8

const (
	Byte Width = iota
	Word
)

// Register is one of the sixteen addressable 8086 general-purpose
// registers. Byte and word registers that alias the same storage share a
// bank index; BankIndex and High together describe the aliasing.
type Register uint8

const (
	AL Register = iota
	CL
	DL
	BL
	AH
	CH
	DH
	BH
	AX
	CX
	DX
	BX
	SP
	BP
	SI
	DI
)

var registerNames = [...]string{
	AL: "al", CL: "cl", DL: "dl", BL: "bl", AH: "ah", CH: "ch", DH: "dh", BH: "bh",
	AX: "ax", CX: "cx", DX: "dx", BX: "bx", SP: "sp", BP: "bp", SI: "si", DI: "di",
}

// registerFromField maps the 3-bit reg/r/m field plus the w bit to a
// Register, per the standard 8086 encoding table.
var registerFromField = [2][8]Register{
	0: {AL, CL, DL, BL, AH, CH, DH, BH},
	1: {AX, CX, DX, BX, SP, BP, SI, DI},
}

// RegisterFromField decodes a 3-bit register field together with the w bit.
func RegisterFromField(field, w uint8) Register {
	return registerFromField[w&1][field&0x7]
}

func (r Register) String() string {
	if int(r) >= len(registerNames) {
		return "?"
	}
	return registerNames[r]
}

// Width reports whether r is a byte or word register.
func (r Register) Width() Width {
	if r >= AX {
		return Word
	}
	return Byte
}

// BankIndex returns the 0-7 slot shared by a word register and its two
// byte aliases, e.g. AX, AH and AL all return 0. Byte register field
// values run AL,CL,DL,BL,AH,CH,DH,BH (the standard 8086 reg-field order),
// so the low and high half of each word sit 4 apart: r%4 recovers the
// parent word's bank.
func (r Register) BankIndex() int {
	if r >= AX {
		return int(r - AX)
	}
	return int(r) % 4
}

// High reports whether a byte register addresses the high half of its
// parent word (AH, CH, DH, BH). Meaningless for word registers.
func (r Register) High() bool {
	return r < AX && r >= AH
}

// RegisterAddress is one of the eight r/m base forms used when mod != 11,
// plus the synthetic direct-address form (mod=00, r/m=110).
type RegisterAddress uint8

const (
	BXSI RegisterAddress = iota
	BXDI
	BPSI
	BPDI
	AddrSI
	AddrDI
	DirectBP
	AddrBX
)

var addressNames = [...]string{
	BXSI: "bx + si", BXDI: "bx + di", BPSI: "bp + si", BPDI: "bp + di",
	AddrSI: "si", AddrDI: "di", DirectBP: "bp", AddrBX: "bx",
}

// RegisterAddressFromField decodes the 3-bit r/m field (mod != 11) into its
// base-register combination.
func RegisterAddressFromField(field uint8) RegisterAddress {
	return RegisterAddress(field & 0x7)
}

// EffectiveAddress is a RegisterAddress plus a signed displacement. The
// IsDirect flag marks the mod=00,r/m=110 form, whose base contributes
// nothing and whose Disp is an absolute unsigned address.
type EffectiveAddress struct {
	Base     RegisterAddress
	Disp     int16
	IsDirect bool
}

// OperandKind tags the active field of an Operand.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandAccumulator
	OperandMemory
	OperandJumpTarget
)

// Operand is a tagged union over the five operand shapes an 8086
// instruction can reference. Only the fields matching Kind are meaningful.
type Operand struct {
	Kind OperandKind

	Register Register // OperandRegister

	Immediate int16 // OperandImmediate

	AccWidth Width // OperandAccumulator

	Memory       EffectiveAddress // OperandMemory
	MemoryWidth  Width
	ExplicitSize bool // print "byte"/"word" prefix

	JumpOffset int8   // OperandJumpTarget: raw signed displacement byte
	JumpLabel  string // OperandJumpTarget: synthesized label name
}

func (o Operand) isEmpty() bool { return o.Kind == OperandNone }

// InstKind is the decoded instruction mnemonic.
type InstKind uint8

const (
	MOV InstKind = iota
	ADD
	SUB
	CMP
	JE
	JNZ
	JL
	JLE
	JB
	JBE
	JP
	JO
	JS
	JNL
	JG
	JNB
	JA
	JNP
	JNO
	JNS
	LOOP
	LOOPZ
	LOOPNZ
	JCXZ
	LABEL
)

var instNames = [...]string{
	MOV: "mov", ADD: "add", SUB: "sub", CMP: "cmp",
	JE: "je", JNZ: "jnz", JL: "jl", JLE: "jle", JB: "jb", JBE: "jbe",
	JP: "jp", JO: "jo", JS: "js", JNL: "jnl", JG: "jg", JNB: "jnb",
	JA: "ja", JNP: "jnp", JNO: "jno", JNS: "jns",
	LOOP: "loop", LOOPZ: "loopz", LOOPNZ: "loopnz", JCXZ: "jcxz",
}

func (k InstKind) String() string {
	if int(k) >= len(instNames) {
		return "?"
	}
	return instNames[k]
}

// jumpKinds lists the twenty InstKind values that take a single signed
// displacement byte and resolve to a synthesized label, i.e. everything
// besides MOV/ADD/SUB/CMP/LABEL.
var jumpKinds = map[InstKind]bool{
	JE: true, JNZ: true, JL: true, JLE: true, JB: true, JBE: true,
	JP: true, JO: true, JS: true, JNL: true, JG: true, JNB: true,
	JA: true, JNP: true, JNO: true, JNS: true,
	LOOP: true, LOOPZ: true, LOOPNZ: true, JCXZ: true,
}

// loopKinds lists the four forms that decrement or test CX instead of
// evaluating a flag predicate.
var loopKinds = map[InstKind]bool{
	LOOP: true, LOOPZ: true, LOOPNZ: true, JCXZ: true,
}

// IsLoop reports whether k is one of LOOP/LOOPZ/LOOPNZ/JCXZ.
func (k InstKind) IsLoop() bool { return loopKinds[k] }

// IsJump reports whether k is one of the twenty conditional/loop jumps.
func (k InstKind) IsJump() bool { return jumpKinds[k] }

// Instruction is a single decoded row: an InstKind plus up to two operands
// and the number of bytes it occupied in the source stream. LABEL rows
// carry only LabelName and have Length 0.
type Instruction struct {
	Kind      InstKind
	Lhs       Operand
	Rhs       Operand
	Length    uint8
	IP        uint16
	LabelName string // set for Kind == LABEL
}

// DecodedProgram is the output of Decode: an ordered instruction stream
// plus an index from byte offset to position in that stream.
type DecodedProgram struct {
	Rows  []DecodedRow
	ByIP  map[uint16]int
	Bytes []byte // original input, retained for diagnostics and dumps
}

// DecodedRow is either a successfully decoded Instruction or a decode
// error anchored at the offending byte's offset.
type DecodedRow struct {
	Instruction Instruction
	Err         error
	IP          uint16
}

// Instructions returns the successfully decoded instructions in program
// order, skipping error rows.
func (p *DecodedProgram) Instructions() []Instruction {
	out := make([]Instruction, 0, len(p.Rows))
	for _, row := range p.Rows {
		if row.Err == nil {
			out = append(out, row.Instruction)
		}
	}
	return out
}
