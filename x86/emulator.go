package x86

// ProcessorState is the architectural state the emulator mutates:
// instruction pointer, flags, the eight-register bank and 1 MiB of flat
// memory (spec.md §3). of tracks the overflow flag purely to drive the
// signed jump predicates (JL/JLE/JG/JNL) and JO/JNO; spec.md §4.D fixes
// the publicly visible Flags bit set at CF/PF/AF/ZF/SF, so of is kept
// out of Flags and never printed.
type ProcessorState struct {
	IP        uint16
	Flags     Flags
	of        bool
	Registers RegisterFile
	Memory    *Memory
}

// Step is the record emitted for every executed instruction (spec.md
// §3 Step).
type Step struct {
	Instruction Instruction
	IPBefore    uint16
	IPAfter     uint16

	RegisterChanged bool
	Register        Register
	Old             uint16
	New             uint16

	FlagsChanged bool
	FlagsBefore  Flags
	FlagsAfter   Flags

	MemoryWrite bool
	MemoryAddr  uint32
	MemoryValue uint16

	Clock Clock
}

// EmulatorOptions configures Emulator construction.
type EmulatorOptions struct {
	CompatCarry bool
}

// EmulatorOption mutates an EmulatorOptions value.
type EmulatorOption func(*EmulatorOptions)

// WithCompatCarry reproduces the original approximate CF heuristic
// (`(to>0&&from<0)||(to<0&&from>0)`) documented in spec.md §9, instead of
// the corrected carry rule used by default.
func WithCompatCarry(enabled bool) EmulatorOption {
	return func(o *EmulatorOptions) { o.CompatCarry = enabled }
}

// Emulator replays a DecodedProgram against a ProcessorState.
type Emulator struct {
	Program *DecodedProgram
	State   *ProcessorState
	opts    EmulatorOptions
}

// NewEmulator constructs an Emulator with a fresh, zero-initialized
// ProcessorState loaded with the decoded program's original bytes.
func NewEmulator(program *DecodedProgram, options ...EmulatorOption) (*Emulator, error) {
	opts := EmulatorOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	mem := NewMemory()
	if err := mem.LoadProgram(program.Bytes); err != nil {
		return nil, err
	}
	return &Emulator{
		Program: program,
		State:   &ProcessorState{Memory: mem},
		opts:    opts,
	}, nil
}

// Step fetches the instruction at the current IP, executes it and
// advances IP. ok is false when no instruction is mapped at the current
// IP, which is the normal halt condition.
func (e *Emulator) Step() (step Step, ok bool, err error) {
	idx, mapped := e.Program.ByIP[e.State.IP]
	if !mapped {
		return Step{}, false, nil
	}
	inst := e.Program.Rows[idx].Instruction

	step.Instruction = inst
	step.IPBefore = e.State.IP

	if inst.Kind.IsJump() {
		if err := e.executeJump(inst, &step); err != nil {
			return step, true, err
		}
	} else {
		if err := e.executeArith(inst, &step); err != nil {
			return step, true, err
		}
		e.State.IP += uint16(inst.Length)
	}

	step.IPAfter = e.State.IP
	return step, true, nil
}

// Run executes instructions until Step reports halt or an error.
func (e *Emulator) Run() ([]Step, error) {
	var steps []Step
	for {
		step, ok, err := e.Step()
		if err != nil {
			return steps, err
		}
		if !ok {
			return steps, nil
		}
		steps = append(steps, step)
	}
}

func operandWidth(op Operand) Width {
	switch op.Kind {
	case OperandRegister:
		return op.Register.Width()
	case OperandMemory:
		return op.MemoryWidth
	case OperandAccumulator:
		return op.AccWidth
	default:
		return Word
	}
}

func (e *Emulator) readOperand(op Operand) uint16 {
	switch op.Kind {
	case OperandRegister:
		return e.State.Registers.Get(op.Register)
	case OperandImmediate:
		return uint16(op.Immediate)
	case OperandAccumulator:
		if op.AccWidth == Word {
			return e.State.Registers.GetWord(AX)
		}
		return uint16(e.State.Registers.GetByte(AL))
	case OperandMemory:
		addr := effectiveAddr(e.State, op.Memory)
		if op.MemoryWidth == Word {
			return e.State.Memory.Read16(addr)
		}
		return uint16(e.State.Memory.Read8(addr))
	default:
		return 0
	}
}

func (e *Emulator) writeOperand(op Operand, value uint16, step *Step) {
	switch op.Kind {
	case OperandRegister:
		old := e.State.Registers.Get(op.Register)
		e.State.Registers.Set(op.Register, value)
		step.RegisterChanged = true
		step.Register = op.Register
		step.Old = old
		step.New = e.State.Registers.Get(op.Register)
	case OperandAccumulator:
		reg := AL
		if op.AccWidth == Word {
			reg = AX
		}
		old := e.State.Registers.Get(reg)
		e.State.Registers.Set(reg, value)
		step.RegisterChanged = true
		step.Register = reg
		step.Old = old
		step.New = e.State.Registers.Get(reg)
	case OperandMemory:
		addr := effectiveAddr(e.State, op.Memory)
		if op.MemoryWidth == Word {
			e.State.Memory.Write16(addr, value)
		} else {
			e.State.Memory.Write8(addr, uint8(value))
		}
		step.MemoryWrite = true
		step.MemoryAddr = addr
		step.MemoryValue = value
	}
}

// effectiveAddr translates an EffectiveAddress to a linear memory address
// (spec.md §4.E "Effective-address translation").
func effectiveAddr(state *ProcessorState, ea EffectiveAddress) uint32 {
	if ea.IsDirect {
		return uint32(uint16(ea.Disp))
	}
	r := &state.Registers
	var base int32
	switch ea.Base {
	case BXSI:
		base = int32(int16(r.GetWord(BX))) + int32(int16(r.GetWord(SI)))
	case BXDI:
		base = int32(int16(r.GetWord(BX))) + int32(int16(r.GetWord(DI)))
	case BPSI:
		base = int32(int16(r.GetWord(BP))) + int32(int16(r.GetWord(SI)))
	case BPDI:
		base = int32(int16(r.GetWord(BP))) + int32(int16(r.GetWord(DI)))
	case AddrSI:
		base = int32(int16(r.GetWord(SI)))
	case AddrDI:
		base = int32(int16(r.GetWord(DI)))
	case AddrBX:
		base = int32(int16(r.GetWord(BX)))
	case DirectBP:
		base = int32(int16(r.GetWord(BP)))
	}
	addr := base + int32(ea.Disp)
	return uint32(uint16(addr))
}

func (e *Emulator) executeArith(inst Instruction, step *Step) error {
	width := operandWidth(inst.Lhs)
	mask := uint16(0xFFFF)
	if width == Byte {
		mask = 0xFF
	}

	src := e.readOperand(inst.Rhs)
	var old uint16
	if inst.Kind != MOV {
		old = e.readOperand(inst.Lhs)
	}

	var result uint16
	switch inst.Kind {
	case MOV:
		result = src
	case ADD:
		result = (old + src) & mask
	case SUB, CMP:
		result = (old - src) & mask
	default:
		return &UnimplementedError{Inst: inst}
	}

	if inst.Kind != MOV {
		before := e.State.Flags
		e.updateFlags(old, src, result, width, inst.Kind == ADD)
		step.FlagsChanged = before != e.State.Flags
		step.FlagsBefore, step.FlagsAfter = before, e.State.Flags
	}

	memAddr := uint32(0)
	memTouched := inst.Lhs.Kind == OperandMemory || inst.Rhs.Kind == OperandMemory
	if inst.Lhs.Kind == OperandMemory {
		memAddr = effectiveAddr(e.State, inst.Lhs.Memory)
	} else if inst.Rhs.Kind == OperandMemory {
		memAddr = effectiveAddr(e.State, inst.Rhs.Memory)
	}

	if inst.Kind != CMP {
		e.writeOperand(inst.Lhs, result, step)
	}

	step.Clock = e.clockFor(inst, memAddr, memTouched, width)
	return nil
}

// updateFlags applies the SF/ZF/PF/AF/CF rules of spec.md §4.E. CF uses
// the corrected textbook rule by default, or the documented approximate
// heuristic when EmulatorOptions.CompatCarry is set.
func (e *Emulator) updateFlags(old, src, result uint16, width Width, isAdd bool) {
	mask := uint16(0xFFFF)
	signBit := uint16(0x8000)
	if width == Byte {
		mask = 0xFF
		signBit = 0x80
	}
	res := result & mask

	e.State.Flags.SetSign(res&signBit != 0)
	e.State.Flags.SetZero(res == 0)
	e.State.Flags.SetParity(parity(res))

	if isAdd {
		e.State.Flags.SetAuxCarry((old&0xF)+(src&0xF) > 0xF)
	} else {
		e.State.Flags.SetAuxCarry(int(old&0xF)-int(src&0xF) < 0)
	}

	oldSign := old&mask&signBit != 0
	srcSign := src&mask&signBit != 0
	resSign := res&signBit != 0
	if isAdd {
		e.State.of = oldSign == srcSign && resSign != oldSign
	} else {
		e.State.of = oldSign != srcSign && resSign != oldSign
	}

	var carry bool
	switch {
	case e.opts.CompatCarry:
		to := int32(int16(res))
		from := int32(int16(old & mask))
		carry = (to > 0 && from < 0) || (to < 0 && from > 0)
	case isAdd:
		carry = uint32(old&mask)+uint32(src&mask) > uint32(mask)
	default:
		carry = uint32(src&mask) > uint32(old&mask)
	}
	e.State.Flags.SetCarry(carry)
}

func (e *Emulator) clockFor(inst Instruction, memAddr uint32, memTouched bool, width Width) Clock {
	lhs, rhs := inst.Lhs.Kind, inst.Rhs.Kind
	ea := 0
	switch {
	case lhs == OperandMemory:
		ea = eaPenalty(inst.Lhs.Memory)
	case rhs == OperandMemory:
		ea = eaPenalty(inst.Rhs.Memory)
	}

	var base int
	switch {
	case inst.Kind == MOV && lhs == OperandRegister && rhs == OperandImmediate:
		base = 4
	case inst.Kind == MOV && lhs == OperandRegister && rhs == OperandRegister:
		base = 2
	case inst.Kind == MOV && lhs == OperandRegister && rhs == OperandMemory:
		base = 8
	case inst.Kind == MOV && lhs == OperandMemory && rhs == OperandRegister:
		base = 9
	case inst.Kind == MOV && lhs == OperandMemory && rhs == OperandImmediate:
		base = 10
	case inst.Kind == MOV && (lhs == OperandAccumulator || rhs == OperandAccumulator):
		base, ea = 10, 0
	case lhs == OperandAccumulator && rhs == OperandImmediate: // ADD/SUB/CMP acc, imm
		base, ea = 4, 0
	case lhs == OperandRegister && rhs == OperandImmediate:
		base = 4
	case lhs == OperandRegister && rhs == OperandRegister:
		base = 3
	case lhs == OperandRegister && rhs == OperandMemory:
		base = 9
	case lhs == OperandMemory && rhs == OperandRegister:
		base = 16
	case lhs == OperandMemory && rhs == OperandImmediate:
		base = 17
	default:
		base = 3
	}

	transfer := 0
	if memTouched && isOddTransfer(memAddr, width) {
		switch {
		case lhs == OperandMemory && rhs == OperandRegister:
			transfer = 8
		case lhs == OperandRegister && rhs == OperandMemory:
			transfer = 4
		}
	}
	return Clock{Base: base, EA: ea, Transfer: transfer}
}

// jumpTaken evaluates the branch predicate for all twenty conditional and
// loop forms, satisfying spec.md §9's "provide all twenty predicates
// uniformly" redesign instruction.
func (e *Emulator) jumpTaken(kind InstKind, cx uint16) bool {
	f := e.State.Flags
	switch kind {
	case JE:
		return f.GetZero()
	case JNZ:
		return !f.GetZero()
	case JL:
		return f.GetSign() != e.State.of
	case JLE:
		return f.GetSign() != e.State.of || f.GetZero()
	case JB:
		return f.GetCarry()
	case JBE:
		return f.GetCarry() || f.GetZero()
	case JP:
		return f.GetParity()
	case JO:
		return e.State.of
	case JS:
		return f.GetSign()
	case JNL:
		return f.GetSign() == e.State.of
	case JG:
		return f.GetSign() == e.State.of && !f.GetZero()
	case JNB:
		return !f.GetCarry()
	case JA:
		return !f.GetCarry() && !f.GetZero()
	case JNP:
		return !f.GetParity()
	case JNO:
		return !e.State.of
	case JNS:
		return !f.GetSign()
	case LOOP:
		return cx != 0
	case LOOPZ:
		return cx != 0 && f.GetZero()
	case LOOPNZ:
		return cx != 0 && !f.GetZero()
	case JCXZ:
		return cx == 0
	default:
		return false
	}
}

func (e *Emulator) executeJump(inst Instruction, step *Step) error {
	isLoopForm := inst.Kind == LOOP || inst.Kind == LOOPZ || inst.Kind == LOOPNZ
	cx := e.State.Registers.GetWord(CX)

	if isLoopForm {
		oldCX := cx
		cx--
		e.State.Registers.SetWord(CX, cx)
		step.RegisterChanged = true
		step.Register = CX
		step.Old = oldCX
		step.New = cx
	}

	taken := e.jumpTaken(inst.Kind, cx)
	nextIP := e.State.IP + uint16(inst.Length)
	if taken {
		nextIP = uint16(int32(e.State.IP) + int32(inst.Length) + int32(inst.Lhs.JumpOffset))
	}
	e.State.IP = nextIP

	if taken {
		step.Clock = Clock{Base: 16}
		if isLoopForm || inst.Kind == JCXZ {
			step.Clock = Clock{Base: 17}
		}
	} else {
		step.Clock = Clock{Base: 4}
		if isLoopForm || inst.Kind == JCXZ {
			step.Clock = Clock{Base: 5}
		}
	}
	return nil
}
