package x86

import "sort"

// jumpOpcodes maps the twenty single-byte short jump/loop opcodes to their
// InstKind, per the standard 8086 encoding.
var jumpOpcodes = map[byte]InstKind{
	0x74: JE, 0x75: JNZ, 0x7C: JL, 0x7E: JLE, 0x72: JB, 0x76: JBE,
	0x7A: JP, 0x70: JO, 0x78: JS, 0x7D: JNL, 0x7F: JG, 0x73: JNB,
	0x77: JA, 0x7B: JNP, 0x71: JNO, 0x79: JNS,
	0xE2: LOOP, 0xE1: LOOPZ, 0xE0: LOOPNZ, 0xE3: JCXZ,
}

// rmOpcodes maps the top six bits of a reg<->r/m opcode byte to its
// mnemonic.
var rmOpcodes = map[byte]InstKind{
	0b000000: ADD,
	0b001010: SUB,
	0b100010: MOV,
	0b001110: CMP,
}

// imGroupOpcodes maps the reg sub-field of the 100000xx immediate group's
// ModR/M byte to its mnemonic.
var imGroupOpcodes = map[byte]InstKind{
	0b000: ADD,
	0b101: SUB,
	0b111: CMP,
}

// Decode parses a raw byte stream into a DecodedProgram. Decoding is
// single-pass left to right: an unrecognized opcode produces an error row
// and decoding resumes at the next byte, but a truncated instruction
// (stream ends before all required bytes are available) aborts decoding
// immediately with the rows collected so far.
func Decode(data []byte) *DecodedProgram {
	prog := &DecodedProgram{
		ByIP:  make(map[uint16]int),
		Bytes: data,
	}

	labelNumbers := make(map[int]int) // target ip -> label number
	ip := 0

	for ip < len(data) {
		inst, consumed, err := decodeOne(data, ip)
		if trunc, ok := err.(*TruncatedError); ok {
			prog.Rows = append(prog.Rows, DecodedRow{Err: trunc, IP: uint16(ip)})
			break
		}
		if err != nil {
			prog.Rows = append(prog.Rows, DecodedRow{Err: err, IP: uint16(ip)})
			ip += consumed
			continue
		}

		inst.IP = uint16(ip)
		row := DecodedRow{Instruction: inst, IP: uint16(ip)}
		prog.Rows = append(prog.Rows, row)

		if inst.Kind.IsJump() {
			target := ip + 2 + int(inst.Lhs.JumpOffset)
			number, seen := labelNumbers[target]
			if !seen {
				number = len(labelNumbers) + 1
				labelNumbers[target] = number
			}
			label := labelName(number)
			prog.Rows[len(prog.Rows)-1].Instruction.Lhs.JumpLabel = label
			prog.Rows = append(prog.Rows, DecodedRow{
				IP: uint16(target - 1),
				Instruction: Instruction{
					Kind:      LABEL,
					LabelName: label + ":",
					IP:        uint16(target - 1),
				},
			})
		}

		ip += consumed
	}

	sortRows(prog.Rows)
	for i, row := range prog.Rows {
		if row.Err != nil || row.Instruction.Kind == LABEL {
			continue
		}
		if _, exists := prog.ByIP[row.IP]; !exists {
			prog.ByIP[row.IP] = i
		}
	}
	return prog
}

func labelName(n int) string {
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return "label_" + string(digits)
}

// sortRows stably sorts the successfully decoded rows by IP while leaving
// error rows pinned to their original position in the slice. This
// reproduces the documented contract ("error rows retain their insertion
// position") without depending on a comparator that is inconsistent for
// mixed Ok/error pairs.
func sortRows(rows []DecodedRow) {
	var okIdx []int
	var ok []DecodedRow
	for i, row := range rows {
		if row.Err == nil {
			okIdx = append(okIdx, i)
			ok = append(ok, row)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].IP < ok[j].IP })
	for i, idx := range okIdx {
		rows[idx] = ok[i]
	}
}

// decodeOne attempts to decode a single instruction starting at data[ip].
// consumed is only meaningful when err is nil or a plain *DecodeError (1).
func decodeOne(data []byte, ip int) (Instruction, int, error) {
	b := data[ip]

	if mnemonic, ok := jumpOpcodes[b]; ok {
		return decodeJP(data, ip, mnemonic)
	}
	if mnemonic, ok := rmOpcodes[b>>2]; ok {
		inst, n, err := decodeRM(data, ip, mnemonic)
		return inst, n, err
	}
	if b&0xFE == 0xC6 { // 1100011w: MOV imm -> r/m
		return decodeIM(data, ip, true)
	}
	if b&0xFC == 0x80 { // 100000sw: ADD/SUB/CMP imm -> r/m
		return decodeIM(data, ip, false)
	}
	if b&0xF0 == 0xB0 { // 1011wreg: MOV imm -> reg
		return decodeIR(data, ip)
	}
	if b&0xFC == 0xA0 || b&0xFE == 0x04 || b&0xFE == 0x2C || b&0xFE == 0x3C {
		return decodeMA(data, ip)
	}

	return Instruction{}, 1, &DecodeError{IP: uint16(ip), Byte: b}
}

func decodeJP(data []byte, ip int, mnemonic InstKind) (Instruction, int, error) {
	if ip+1 >= len(data) {
		return Instruction{}, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
	}
	offset := int8(data[ip+1])
	inst := Instruction{
		Kind:   mnemonic,
		Lhs:    Operand{Kind: OperandJumpTarget, JumpOffset: offset},
		Length: 2,
	}
	return inst, 2, nil
}

// decodeModRM reads the mod/reg/r/m byte and any displacement bytes
// following it, returning the r/m-side operand, the register field value,
// and the total instruction length consumed so far (opcode + modrm + disp).
func decodeModRM(data []byte, ip int, w uint8) (rm Operand, reg uint8, length int, err error) {
	if ip+1 >= len(data) {
		return Operand{}, 0, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
	}
	modrm := data[ip+1]
	mod := modrm >> 6
	reg = (modrm >> 3) & 0x7
	field := modrm & 0x7
	width := Byte
	if w == 1 {
		width = Word
	}

	if mod == 0b11 {
		return Operand{Kind: OperandRegister, Register: RegisterFromField(field, w)}, reg, 2, nil
	}

	base := RegisterAddressFromField(field)
	switch mod {
	case 0b00:
		if base == DirectBP { // mod=00,r/m=110: absolute direct address
			if ip+3 >= len(data) {
				return Operand{}, 0, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
			}
			addr := int16(uint16(data[ip+2]) | uint16(data[ip+3])<<8)
			ea := EffectiveAddress{IsDirect: true, Disp: addr}
			return Operand{Kind: OperandMemory, Memory: ea, MemoryWidth: width}, reg, 4, nil
		}
		ea := EffectiveAddress{Base: base}
		return Operand{Kind: OperandMemory, Memory: ea, MemoryWidth: width}, reg, 2, nil
	case 0b01:
		if ip+2 >= len(data) {
			return Operand{}, 0, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
		}
		disp := int16(int8(data[ip+2]))
		ea := EffectiveAddress{Base: base, Disp: disp}
		return Operand{Kind: OperandMemory, Memory: ea, MemoryWidth: width}, reg, 3, nil
	default: // 0b10
		if ip+3 >= len(data) {
			return Operand{}, 0, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
		}
		disp := int16(uint16(data[ip+2]) | uint16(data[ip+3])<<8)
		ea := EffectiveAddress{Base: base, Disp: disp}
		return Operand{Kind: OperandMemory, Memory: ea, MemoryWidth: width}, reg, 4, nil
	}
}

func decodeRM(data []byte, ip int, mnemonic InstKind) (Instruction, int, error) {
	b := data[ip]
	d := (b >> 1) & 1
	w := b & 1

	rmOperand, regField, length, err := decodeModRM(data, ip, w)
	if err != nil {
		return Instruction{}, 0, err
	}
	regOperand := Operand{Kind: OperandRegister, Register: RegisterFromField(regField, w)}

	lhs, rhs := rmOperand, regOperand
	if d == 1 {
		lhs, rhs = regOperand, rmOperand
	}
	return Instruction{Kind: mnemonic, Lhs: lhs, Rhs: rhs, Length: uint8(length)}, length, nil
}

func decodeIM(data []byte, ip int, isMov bool) (Instruction, int, error) {
	b := data[ip]
	w := b & 1
	s := (b >> 1) & 1

	if ip+1 >= len(data) {
		return Instruction{}, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
	}
	modrm := data[ip+1]
	regField := (modrm >> 3) & 0x7

	var mnemonic InstKind
	if isMov {
		mnemonic = MOV
	} else {
		var ok bool
		mnemonic, ok = imGroupOpcodes[regField]
		if !ok {
			return Instruction{}, 1, &OpGroupError{IP: uint16(ip), GroupOp: regField}
		}
	}

	rmOperand, _, length, err := decodeModRM(data, ip, w)
	if err != nil {
		return Instruction{}, 0, err
	}
	if rmOperand.Kind == OperandMemory {
		rmOperand.ExplicitSize = true
	}

	dataLen := 1
	if isMov {
		if w == 1 {
			dataLen = 2
		}
	} else if s == 0 && w == 1 {
		dataLen = 2
	}

	start := ip + length
	if start+dataLen > len(data) {
		return Instruction{}, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
	}
	var imm int16
	if dataLen == 2 {
		imm = int16(uint16(data[start]) | uint16(data[start+1])<<8)
	} else {
		imm = int16(int8(data[start]))
	}
	length += dataLen

	immOperand := Operand{Kind: OperandImmediate, Immediate: imm}
	return Instruction{Kind: mnemonic, Lhs: rmOperand, Rhs: immOperand, Length: uint8(length)}, length, nil
}

func decodeIR(data []byte, ip int) (Instruction, int, error) {
	b := data[ip]
	w := (b >> 3) & 1
	field := b & 0x7

	dataLen := 1
	if w == 1 {
		dataLen = 2
	}
	if ip+dataLen >= len(data) {
		return Instruction{}, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
	}

	var imm int16
	if dataLen == 2 {
		imm = int16(uint16(data[ip+1]) | uint16(data[ip+2])<<8)
	} else {
		imm = int16(int8(data[ip+1]))
	}

	reg := Operand{Kind: OperandRegister, Register: RegisterFromField(field, w)}
	immOperand := Operand{Kind: OperandImmediate, Immediate: imm}
	length := 1 + dataLen
	return Instruction{Kind: MOV, Lhs: reg, Rhs: immOperand, Length: uint8(length)}, length, nil
}

func decodeMA(data []byte, ip int) (Instruction, int, error) {
	b := data[ip]
	w := b & 1
	d := (b >> 1) & 1

	dataLen := 1
	if w == 1 {
		dataLen = 2
	}
	if ip+dataLen >= len(data) {
		return Instruction{}, 0, &TruncatedError{IP: uint16(ip), Partial: data[ip:]}
	}

	var val int16
	if dataLen == 2 {
		val = int16(uint16(data[ip+1]) | uint16(data[ip+2])<<8)
	} else {
		val = int16(int8(data[ip+1]))
	}
	length := 1 + dataLen
	accWidth := Byte
	if w == 1 {
		accWidth = Word
	}
	accOperand := Operand{Kind: OperandAccumulator, AccWidth: accWidth}

	var mnemonic InstKind
	switch {
	case b&0xFC == 0xA0:
		mnemonic = MOV
		memOperand := Operand{
			Kind:        OperandMemory,
			Memory:      EffectiveAddress{IsDirect: true, Disp: val},
			MemoryWidth: accWidth,
		}
		lhs, rhs := accOperand, memOperand
		if d == 1 {
			lhs, rhs = memOperand, accOperand
		}
		return Instruction{Kind: mnemonic, Lhs: lhs, Rhs: rhs, Length: uint8(length)}, length, nil
	case b&0xFE == 0x04:
		mnemonic = ADD
	case b&0xFE == 0x2C:
		mnemonic = SUB
	case b&0xFE == 0x3C:
		mnemonic = CMP
	}

	immOperand := Operand{Kind: OperandImmediate, Immediate: val}
	return Instruction{Kind: mnemonic, Lhs: accOperand, Rhs: immOperand, Length: uint8(length)}, length, nil
}
