package x86

// RegisterFile is the eight-slot 16-bit register bank. Byte registers
// alias the low or high half of their parent word slot per Register's
// BankIndex/High methods; spec.md permits this array representation as
// an alternative to a literal packed 128-bit word, since only the
// aliasing semantics are contractual.
type RegisterFile struct {
	slots [8]uint16
}

// GetWord returns the full 16-bit value of a word register.
func (rf *RegisterFile) GetWord(r Register) uint16 {
	return rf.slots[r.BankIndex()]
}

// SetWord overwrites the full 16-bit value of a word register.
func (rf *RegisterFile) SetWord(r Register, v uint16) {
	rf.slots[r.BankIndex()] = v
}

// GetByte returns the low or high half of a byte register's parent word.
func (rf *RegisterFile) GetByte(r Register) uint8 {
	word := rf.slots[r.BankIndex()]
	if r.High() {
		return uint8(word >> 8)
	}
	return uint8(word)
}

// SetByte overwrites the low or high half of a byte register's parent
// word, leaving the other half untouched.
func (rf *RegisterFile) SetByte(r Register, v uint8) {
	idx := r.BankIndex()
	if r.High() {
		rf.slots[idx] = rf.slots[idx]&0x00FF | uint16(v)<<8
	} else {
		rf.slots[idx] = rf.slots[idx]&0xFF00 | uint16(v)
	}
}

// Get returns a register's value widened to uint16, regardless of width.
func (rf *RegisterFile) Get(r Register) uint16 {
	if r.Width() == Word {
		return rf.GetWord(r)
	}
	return uint16(rf.GetByte(r))
}

// Set stores v into r, truncating to a byte for byte registers.
func (rf *RegisterFile) Set(r Register, v uint16) {
	if r.Width() == Word {
		rf.SetWord(r, v)
	} else {
		rf.SetByte(r, uint8(v))
	}
}
