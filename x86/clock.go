package x86

// Clock breaks a Step's cycle cost into the textbook base count, the
// effective-address penalty, and the unaligned-transfer penalty, per
// spec.md §4.F.
type Clock struct {
	Base     int
	EA       int
	Transfer int
}

// Total returns the full cycle cost this Clock contributes.
func (c Clock) Total() int { return c.Base + c.EA + c.Transfer }

// eaPenalty looks up the clock penalty for computing an effective address,
// per spec.md §4.F's table. The direct-address and register-direct forms
// are not part of this table (they contribute either 0, for a register
// operand, or 6, the "empty base" row, for a direct address).
func eaPenalty(ea EffectiveAddress) int {
	if ea.IsDirect {
		return 6
	}
	hasDisp := ea.Disp != 0
	switch ea.Base {
	case AddrBX, DirectBP, AddrSI, AddrDI:
		if hasDisp {
			return 9
		}
		return 5
	case BPDI, BXSI:
		if hasDisp {
			return 11
		}
		return 7
	case BPSI, BXDI:
		if hasDisp {
			return 12
		}
		return 8
	}
	return 0
}

// isOddTransfer reports whether a word-sized memory transfer at addr
// crosses the unaligned-access penalty threshold (odd byte address).
func isOddTransfer(addr uint32, width Width) bool {
	return width == Word && addr%2 != 0
}
