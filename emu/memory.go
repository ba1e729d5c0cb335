package emu

import (
	"encoding/binary"
	"fmt"
)

// DefaultRAMSize is the size of physical RAM when none is given (24MB).
const DefaultRAMSize = 24 * 1024 * 1024

// Memory is big-endian physical RAM starting at physical address 0.
// Accesses outside of RAM read as 0 and writes to them are dropped.
type Memory struct {
	data []byte
}

// NewMemory creates zeroed RAM of the given size in bytes.
func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the size of RAM in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Contains reports whether n bytes starting at pa are all inside RAM.
func (m *Memory) Contains(pa uint32, n uint32) bool {
	end := uint64(pa) + uint64(n)
	return end <= uint64(len(m.data))
}

// Read8 reads a byte.
func (m *Memory) Read8(pa uint32) uint8 {
	if !m.Contains(pa, 1) {
		return 0
	}
	return m.data[pa]
}

// Read16 reads a big-endian halfword.
func (m *Memory) Read16(pa uint32) uint16 {
	if !m.Contains(pa, 2) {
		return 0
	}
	return binary.BigEndian.Uint16(m.data[pa:])
}

// Read32 reads a big-endian word.
func (m *Memory) Read32(pa uint32) uint32 {
	if !m.Contains(pa, 4) {
		return 0
	}
	return binary.BigEndian.Uint32(m.data[pa:])
}

// Write8 writes a byte.
func (m *Memory) Write8(pa uint32, value uint8) {
	if !m.Contains(pa, 1) {
		return
	}
	m.data[pa] = value
}

// Write16 writes a big-endian halfword.
func (m *Memory) Write16(pa uint32, value uint16) {
	if !m.Contains(pa, 2) {
		return
	}
	binary.BigEndian.PutUint16(m.data[pa:], value)
}

// Write32 writes a big-endian word.
func (m *Memory) Write32(pa uint32, value uint32) {
	if !m.Contains(pa, 4) {
		return
	}
	binary.BigEndian.PutUint32(m.data[pa:], value)
}

// Load copies data into RAM at pa.
func (m *Memory) Load(pa uint32, data []byte) error {
	if !m.Contains(pa, uint32(len(data))) {
		return fmt.Errorf("block of %d bytes at 0x%08X does not fit in %d bytes of RAM",
			len(data), pa, len(m.data))
	}
	copy(m.data[pa:], data)
	return nil
}

// Bytes returns the backing store of RAM. Changes to the returned slice
// are visible to the machine.
func (m *Memory) Bytes() []byte {
	return m.data
}
