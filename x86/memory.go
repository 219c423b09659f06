package x86

import "fmt"

// MemorySize is the fixed 1 MiB flat address space a ProcessorState
// operates over (spec.md §3 ProcessorState, "1 MiB array").
const MemorySize = 1024 * 1024

// Memory is the flat, unsegmented 1 MiB byte array the emulator loads
// and stores through. Addresses outside the buffer are undefined per
// spec.md §4.E and are clamped to the valid range rather than panicking.
type Memory struct {
	data [MemorySize]byte
}

// NewMemory returns a freshly zeroed 1 MiB memory buffer.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) clampedAddr(addr uint32) uint32 {
	return addr % MemorySize
}

// Read8 reads a single byte at addr.
func (m *Memory) Read8(addr uint32) uint8 {
	return m.data[m.clampedAddr(addr)]
}

// Read16 reads a little-endian word at addr.
func (m *Memory) Read16(addr uint32) uint16 {
	lo := uint16(m.Read8(addr))
	hi := uint16(m.Read8(addr + 1))
	return hi<<8 | lo
}

// Write8 writes a single byte at addr.
func (m *Memory) Write8(addr uint32, v uint8) {
	m.data[m.clampedAddr(addr)] = v
}

// Write16 writes a little-endian word at addr.
func (m *Memory) Write16(addr uint32, v uint16) {
	m.Write8(addr, uint8(v))
	m.Write8(addr+1, uint8(v>>8))
}

// LoadProgram copies the decoded program's original bytes into memory
// starting at address 0, so that memory-mapped reads of the code itself
// (self-modifying or otherwise) observe the same bytes the decoder saw.
func (m *Memory) LoadProgram(data []byte) error {
	if len(data) > MemorySize {
		return fmt.Errorf("%w: program is %d bytes, memory is %d", ErrMemorySize, len(data), MemorySize)
	}
	copy(m.data[:], data)
	return nil
}

// Bytes returns the full 1,048,576-byte buffer for dumping to disk.
func (m *Memory) Bytes() []byte {
	return m.data[:]
}
