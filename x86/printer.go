package x86

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders ea in NASM syntax: "[base + disp]" / "[base - disp]" /
// "[base]" when disp is zero, or "[number]" for the pure-direct form
// (mod=00, r/m=110), whose displacement is the absolute unsigned address.
func (ea EffectiveAddress) String() string {
	if ea.IsDirect {
		return fmt.Sprintf("[%d]", uint16(ea.Disp))
	}
	base := addressNames[ea.Base]
	if ea.Disp == 0 {
		return "[" + base + "]"
	}
	sign := "+"
	disp := ea.Disp
	if disp < 0 {
		sign = "-"
		disp = -disp
	}
	return fmt.Sprintf("[%s %s %d]", base, sign, disp)
}

// String renders o in NASM syntax.
func (o Operand) String() string {
	switch o.Kind {
	case OperandRegister:
		return o.Register.String()
	case OperandImmediate:
		return strconv.Itoa(int(o.Immediate))
	case OperandAccumulator:
		if o.AccWidth == Word {
			return "ax"
		}
		return "al"
	case OperandMemory:
		addr := o.Memory.String()
		if o.ExplicitSize {
			size := "byte"
			if o.MemoryWidth == Word {
				size = "word"
			}
			return size + " " + addr
		}
		return addr
	case OperandJumpTarget:
		return o.JumpLabel
	default:
		return ""
	}
}

// String renders i in NASM syntax. LABEL rows print only their label text.
func (i Instruction) String() string {
	if i.Kind == LABEL {
		return i.LabelName
	}
	switch {
	case i.Lhs.isEmpty():
		return i.Kind.String()
	case i.Rhs.isEmpty():
		return i.Kind.String() + " " + i.Lhs.String()
	default:
		return i.Kind.String() + " " + i.Lhs.String() + ", " + i.Rhs.String()
	}
}

// String renders every row of p, one instruction or label per line. Error
// rows print a diagnostic line so decode output interleaves cleanly with
// valid disassembly, matching the `decode` command's contract.
func (p *DecodedProgram) String() string {
	var b strings.Builder
	for _, row := range p.Rows {
		if row.Err != nil {
			b.WriteString(row.Err.Error())
		} else {
			b.WriteString(row.Instruction.String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
