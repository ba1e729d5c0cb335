// Package emu provides the virtual machine the patch engine runs against:
// physical RAM, block address translation and the register file.
package emu

// StackPointerReg is the general-purpose register used as the stack
// pointer by the ABI.
const StackPointerReg = 1

// RegFile represents the 32-bit register file.
// It contains 32 general-purpose registers (GPR0-GPR31),
// the program counter (PC), the link register (LR) and the machine state
// register (MSR).
type RegFile struct {
	// GPR holds general-purpose registers. GPR[1] is the stack pointer.
	GPR [32]uint32

	// PC is the program counter.
	PC uint32

	// LR is the link register.
	LR uint32

	// MSR holds the machine state flags.
	MSR MSR
}

// MSR represents the machine state register bits the patch engine cares
// about.
type MSR struct {
	// EE enables external interrupts.
	EE bool
	// IR enables instruction address translation.
	IR bool
	// DR enables data address translation.
	DR bool
}

// MSR bit positions, counted from the least significant bit.
const (
	msrEE = 1 << 15
	msrIR = 1 << 5
	msrDR = 1 << 4
)

// Hex packs the flags into their machine state register bit positions.
func (m MSR) Hex() uint32 {
	var v uint32
	if m.EE {
		v |= msrEE
	}
	if m.IR {
		v |= msrIR
	}
	if m.DR {
		v |= msrDR
	}
	return v
}

// MSRFromHex unpacks a machine state register value.
func MSRFromHex(v uint32) MSR {
	return MSR{
		EE: v&msrEE != 0,
		IR: v&msrIR != 0,
		DR: v&msrDR != 0,
	}
}

// ReadReg reads a general-purpose register. Out-of-range registers read as 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg >= 32 {
		return 0
	}
	return r.GPR[reg]
}

// WriteReg writes a general-purpose register. Writes to out-of-range
// registers are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg >= 32 {
		return
	}
	r.GPR[reg] = value
}

// SP returns the stack pointer.
func (r *RegFile) SP() uint32 {
	return r.GPR[StackPointerReg]
}

// SetSP sets the stack pointer.
func (r *RegFile) SetSP(sp uint32) {
	r.GPR[StackPointerReg] = sp
}
