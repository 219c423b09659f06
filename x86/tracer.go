package x86

import (
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/sim8086/set"
)

// TracerOptions configures what a Tracer prints and whether it writes a
// final memory dump, per spec.md §4.G / §6.
type TracerOptions struct {
	PrintIP        bool
	PrintEstimates bool
	PrintTrace     bool
	DumpPath       string
}

// Tracer drives an Emulator to completion, printing one line per executed
// Step and a final register/flag summary, in the format spec.md §4.G
// requires.
type Tracer struct {
	Emulator *Emulator
	Opts     TracerOptions

	touched    set.Set[Register]
	totalClock int
}

// NewTracer returns a Tracer wrapping e.
func NewTracer(e *Emulator, opts TracerOptions) *Tracer {
	return &Tracer{
		Emulator: e,
		Opts:     opts,
		touched:  set.New[Register](),
	}
}

// Run executes the wrapped Emulator to completion, writing trace lines to
// w as it goes (unless Opts.PrintTrace is false) and returning the full
// Step history.
func (t *Tracer) Run(w *os.File) ([]Step, error) {
	var steps []Step
	for {
		step, ok, err := t.Emulator.Step()
		if err != nil {
			return steps, err
		}
		if !ok {
			break
		}
		steps = append(steps, step)
		t.totalClock += step.Clock.Total()
		if step.RegisterChanged {
			t.touched.Add(step.Register.baseRegister())
		}
		if t.Opts.PrintTrace {
			fmt.Fprintln(w, t.formatLine(step))
		}
	}
	if t.Opts.PrintTrace {
		fmt.Fprintln(w, t.formatFinal())
	}
	if t.Opts.DumpPath != "" {
		if err := os.WriteFile(t.Opts.DumpPath, t.Emulator.State.Memory.Bytes(), 0o644); err != nil {
			return steps, fmt.Errorf("dumping memory: %w", err)
		}
	}
	return steps, nil
}

// baseRegister maps a byte register to its parent word register, so the
// trace always reports the register the user named on the command line
// (mov al, ... prints al, not ax) while still letting Tracer group changes
// by bank when summarizing touched registers.
func (r Register) baseRegister() Register {
	if r.Width() == Word {
		return r
	}
	return RegisterFromField(uint8(r.BankIndex()), 1)
}

// formatLine renders a single trace line; each segment after <asm> is
// optional and separated from the previous one by a single space:
//
//	<asm> ; Clocks: +<inc> = <total> (<base> + <ea>ea + <xfer>p) <reg>:0x<old>->0x<new> ip:0x<old>->0x<new> flags:<old>-><new>
func (t *Tracer) formatLine(step Step) string {
	var b strings.Builder
	b.WriteString(step.Instruction.String())

	if t.Opts.PrintEstimates {
		fmt.Fprintf(&b, " ; Clocks: +%d = %d (%d + %dea + %dp)",
			step.Clock.Total(), t.totalClock, step.Clock.Base, step.Clock.EA, step.Clock.Transfer)
	}
	if step.RegisterChanged {
		fmt.Fprintf(&b, " %s:0x%x->0x%x", step.Register, step.Old, step.New)
	}
	if t.Opts.PrintIP {
		fmt.Fprintf(&b, " ip:0x%x->0x%x", step.IPBefore, step.IPAfter)
	}
	if step.FlagsChanged {
		fmt.Fprintf(&b, " flags:%s->%s", step.FlagsBefore, step.FlagsAfter)
	}
	return b.String()
}

// formatFinal renders the summary block printed once the program halts:
// final values of every register the program touched, plus IP when
// Opts.PrintIP is set and the flags when any flag is set.
func (t *Tracer) formatFinal() string {
	var b strings.Builder
	b.WriteString("Final registers:\n")
	for _, r := range []Register{AX, BX, CX, DX, SP, BP, SI, DI} {
		if !t.touched.Contains(r) {
			continue
		}
		fmt.Fprintf(&b, "      %s: 0x%04x (%d)\n", r, t.Emulator.State.Registers.GetWord(r), t.Emulator.State.Registers.GetWord(r))
	}
	if t.Opts.PrintIP {
		fmt.Fprintf(&b, "      ip: 0x%04x (%d)\n", t.Emulator.State.IP, t.Emulator.State.IP)
	}
	if t.Emulator.State.Flags != 0 {
		fmt.Fprintf(&b, "   flags: %s\n", t.Emulator.State.Flags)
	}
	return b.String()
}
