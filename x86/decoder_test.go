package x86

import (
	"testing"

	"github.com/retroenv/sim8086/assert"
)

func TestDecodeMovImmediateToRegister(t *testing.T) {
	// mov cx, 12
	data := []byte{0xB9, 0x0C, 0x00}
	prog := Decode(data)
	assert.Equal(t, 1, len(prog.Rows))
	inst := prog.Rows[0].Instruction
	assert.NoError(t, prog.Rows[0].Err)
	assert.Equal(t, MOV, inst.Kind)
	assert.Equal(t, "mov cx, 12", inst.String())
}

func TestDecodeMovRegisterToRegister(t *testing.T) {
	// mov ax, bx
	data := []byte{0x8B, 0xC3}
	prog := Decode(data)
	assert.Equal(t, 1, len(prog.Rows))
	assert.Equal(t, "mov ax, bx", prog.Rows[0].Instruction.String())
}

func TestDecodeAddImmediateToMemoryByte(t *testing.T) {
	// add byte [bx + si], 5
	data := []byte{0x80, 0x00, 0x05}
	prog := Decode(data)
	assert.Equal(t, 1, len(prog.Rows))
	assert.Equal(t, "add byte [bx + si], 5", prog.Rows[0].Instruction.String())
}

func TestDecodeCmpAccumulatorImmediate(t *testing.T) {
	// cmp ax, 100
	data := []byte{0x3D, 0x64, 0x00}
	prog := Decode(data)
	assert.Equal(t, 1, len(prog.Rows))
	assert.Equal(t, "cmp ax, 100", prog.Rows[0].Instruction.String())
}

func TestDecodeMovDirectAddressStore(t *testing.T) {
	// mov [2000], ax
	data := []byte{0xA3, 0xD0, 0x07}
	prog := Decode(data)
	assert.Equal(t, 1, len(prog.Rows))
	assert.Equal(t, "mov [2000], ax", prog.Rows[0].Instruction.String())
}

func TestDecodeMovDirectAddressLoad(t *testing.T) {
	// mov ax, [2000]
	data := []byte{0xA1, 0xD0, 0x07}
	prog := Decode(data)
	assert.Equal(t, 1, len(prog.Rows))
	assert.Equal(t, "mov ax, [2000]", prog.Rows[0].Instruction.String())
}

func TestDecodeJumpSynthesizesLabel(t *testing.T) {
	// jnz +2 (forward): target = 0 + 2 + 2 = 4, inside mov's data word
	data := []byte{0x75, 0x02, 0xB9, 0x0C, 0x00} // jnz label_1; mov cx, 12
	prog := Decode(data)

	assert.Equal(t, 3, len(prog.Rows))
	assert.Equal(t, "jnz label_1", prog.Rows[0].Instruction.String())
	assert.Equal(t, "mov cx, 12", prog.Rows[1].Instruction.String())
	assert.Equal(t, LABEL, prog.Rows[2].Instruction.Kind)
	assert.Equal(t, "label_1:", prog.Rows[2].Instruction.LabelName)
	// label sits at target_ip - 1 = 4 - 1 = 3, the low byte of mov's data
	// word, so it sorts after the mov at ip 2.
	assert.Equal(t, uint16(3), prog.Rows[2].IP)
}

func TestDecodeAllTwentyJumpMnemonicsRoundTrip(t *testing.T) {
	tests := []struct {
		opcode byte
		want   string
	}{
		{0x74, "je"}, {0x75, "jnz"}, {0x7C, "jl"}, {0x7E, "jle"},
		{0x72, "jb"}, {0x76, "jbe"}, {0x7A, "jp"}, {0x70, "jo"},
		{0x78, "js"}, {0x7D, "jnl"}, {0x7F, "jg"}, {0x73, "jnb"},
		{0x77, "ja"}, {0x7B, "jnp"}, {0x71, "jno"}, {0x79, "jns"},
		{0xE2, "loop"}, {0xE1, "loopz"}, {0xE0, "loopnz"}, {0xE3, "jcxz"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			data := []byte{tt.opcode, 0x00} // offset 0 -> target = ip+2
			prog := Decode(data)
			assert.Equal(t, 2, len(prog.Rows))
			assert.NoError(t, prog.Rows[0].Err)
			assert.Equal(t, tt.want+" label_1", prog.Rows[0].Instruction.String())
			assert.Equal(t, LABEL, prog.Rows[1].Instruction.Kind)
		})
	}
}

func TestDecodeUnknownOpcodeContinuesAfterError(t *testing.T) {
	data := []byte{0xF4, 0xB9, 0x0C, 0x00} // hlt (unsupported), mov cx, 12
	prog := Decode(data)

	assert.Equal(t, 2, len(prog.Rows))
	assert.Error(t, prog.Rows[0].Err)
	var decErr *DecodeError
	assert.ErrorAs(t, prog.Rows[0].Err, &decErr)
	assert.Equal(t, "mov cx, 12", prog.Rows[1].Instruction.String())
}

func TestDecodeTruncatedInstructionAborts(t *testing.T) {
	data := []byte{0x8B} // RM opcode missing its ModR/M byte
	prog := Decode(data)

	assert.Equal(t, 1, len(prog.Rows))
	var truncErr *TruncatedError
	assert.ErrorAs(t, prog.Rows[0].Err, &truncErr)
}

func TestDecodeSuccessfulRowLengthsSumToInputSize(t *testing.T) {
	// Every successfully decoded instruction's length, summed, accounts for
	// exactly the bytes consumed; synthesized LABEL rows contribute zero
	// length since they don't consume input bytes.
	data := []byte{
		0xB9, 0x0C, 0x00, // mov cx, 12
		0x83, 0xC1, 0x01, // add cx, 1
		0x75, 0xFA, // jnz -6 -> target 8 - 6 = 2
		0xA1, 0xD0, 0x07, // mov ax, [2000]
	}
	prog := Decode(data)

	var consumed int
	for _, row := range prog.Rows {
		if row.Err != nil || row.Instruction.Kind == LABEL {
			continue
		}
		consumed += int(row.Instruction.Length)
	}
	assert.Equal(t, len(data), consumed)
}

func TestDecodeModRMDirectAddressVsBxBase(t *testing.T) {
	// r/m=110 (mod=00) is the direct-address special case, not "[bp]".
	rm, _, length, err := decodeModRM([]byte{0x00, 0b00_000_110, 0x00, 0x01}, 0, 1)
	assert.NoError(t, err)
	assert.Equal(t, OperandMemory, rm.Kind)
	assert.True(t, rm.Memory.IsDirect)
	assert.Equal(t, int16(0x0100), rm.Memory.Disp)
	assert.Equal(t, 4, length)

	// r/m=111 (mod=00) is plain "[bx]", with no displacement bytes consumed.
	rm, _, length, err = decodeModRM([]byte{0x00, 0b00_000_111}, 0, 1)
	assert.NoError(t, err)
	assert.Equal(t, OperandMemory, rm.Kind)
	assert.False(t, rm.Memory.IsDirect)
	assert.Equal(t, AddrBX, rm.Memory.Base)
	assert.Equal(t, 2, length)
}

func TestDecodeErrorRowsKeepOriginalPositionAfterSort(t *testing.T) {
	// A forward jump pushes a later instruction's label before an
	// out-of-order error byte; the error row must stay pinned at its
	// original index while the successfully decoded rows sort by IP.
	data := []byte{
		0x75, 0x02, // jnz +2 -> target 4
		0xF4,       // bad opcode at ip=2
		0xB9, 0x0C, 0x00, // mov cx, 12 at ip=3
	}
	prog := Decode(data)
	var sawError bool
	for _, row := range prog.Rows {
		if row.Err != nil {
			sawError = true
			assert.Equal(t, uint16(2), row.IP)
		}
	}
	assert.True(t, sawError)
}
