package emu

import "fmt"

// Machine is the virtual machine state visible to the patch engine: the
// register file, physical RAM and the address translation windows.
type Machine struct {
	regFile *RegFile
	memory  *Memory
	mmu     *MMU
}

// MachineOption is a functional option for configuring the Machine.
type MachineOption func(*machineConfig)

type machineConfig struct {
	ramSize     uint32
	bats        []BAT
	sp          uint32
	pc          uint32
	translation bool
}

// WithRAMSize sets the size of physical RAM in bytes.
func WithRAMSize(size uint32) MachineOption {
	return func(c *machineConfig) {
		c.ramSize = size
	}
}

// WithBATs replaces the default translation windows.
func WithBATs(bats ...BAT) MachineOption {
	return func(c *machineConfig) {
		c.bats = bats
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint32) MachineOption {
	return func(c *machineConfig) {
		c.sp = sp
	}
}

// WithProgramCounter sets the initial program counter value.
func WithProgramCounter(pc uint32) MachineOption {
	return func(c *machineConfig) {
		c.pc = pc
	}
}

// WithTranslation turns data and instruction translation on or off.
func WithTranslation(enabled bool) MachineOption {
	return func(c *machineConfig) {
		c.translation = enabled
	}
}

// NewMachine creates a Machine. By default it has DefaultRAMSize bytes of
// RAM, the DefaultBATs windows and translation enabled.
func NewMachine(opts ...MachineOption) *Machine {
	c := &machineConfig{
		ramSize:     DefaultRAMSize,
		bats:        DefaultBATs(),
		translation: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	m := &Machine{
		regFile: &RegFile{},
		memory:  NewMemory(c.ramSize),
		mmu:     NewMMU(c.bats...),
	}

	m.regFile.SetSP(c.sp)
	m.regFile.PC = c.pc
	m.regFile.MSR.DR = c.translation
	m.regFile.MSR.IR = c.translation

	return m
}

// RegFile returns the machine's register file.
func (m *Machine) RegFile() *RegFile {
	return m.regFile
}

// Memory returns the machine's physical RAM.
func (m *Machine) Memory() *Memory {
	return m.memory
}

// MMU returns the machine's address translation.
func (m *Machine) MMU() *MMU {
	return m.mmu
}

// dataAddress resolves an effective address for a load or store. With data
// translation off the effective address is used as is.
func (m *Machine) dataAddress(ea uint32) (uint32, bool) {
	if !m.regFile.MSR.DR {
		return ea, true
	}
	return m.mmu.TranslateData(ea)
}

func (m *Machine) instructionAddress(ea uint32) (uint32, bool) {
	if !m.regFile.MSR.IR {
		return ea, true
	}
	return m.mmu.TranslateInstruction(ea)
}

// ReadU8 reads a byte at an effective address. Unmapped addresses read as 0.
func (m *Machine) ReadU8(ea uint32) uint8 {
	pa, ok := m.dataAddress(ea)
	if !ok {
		return 0
	}
	return m.memory.Read8(pa)
}

// ReadU16 reads a halfword at an effective address.
func (m *Machine) ReadU16(ea uint32) uint16 {
	pa, ok := m.dataAddress(ea)
	if !ok {
		return 0
	}
	return m.memory.Read16(pa)
}

// ReadU32 reads a word at an effective address.
func (m *Machine) ReadU32(ea uint32) uint32 {
	pa, ok := m.dataAddress(ea)
	if !ok {
		return 0
	}
	return m.memory.Read32(pa)
}

// WriteU8 writes a byte at an effective address. Writes to unmapped
// addresses are dropped.
func (m *Machine) WriteU8(value uint8, ea uint32) {
	if pa, ok := m.dataAddress(ea); ok {
		m.memory.Write8(pa, value)
	}
}

// WriteU16 writes a halfword at an effective address.
func (m *Machine) WriteU16(value uint16, ea uint32) {
	if pa, ok := m.dataAddress(ea); ok {
		m.memory.Write16(pa, value)
	}
}

// WriteU32 writes a word at an effective address.
func (m *Machine) WriteU32(value uint32, ea uint32) {
	if pa, ok := m.dataAddress(ea); ok {
		m.memory.Write32(pa, value)
	}
}

// IsRAMAddress reports whether an effective address translates to RAM on
// the data path.
func (m *Machine) IsRAMAddress(ea uint32) bool {
	pa, ok := m.dataAddress(ea)
	return ok && m.memory.Contains(pa, 1)
}

// IsInstructionRAMAddress reports whether an effective address translates
// to RAM on the instruction path.
func (m *Machine) IsInstructionRAMAddress(ea uint32) bool {
	pa, ok := m.instructionAddress(ea)
	return ok && m.memory.Contains(pa, 1)
}

// ReadInstruction fetches the instruction word at an effective address.
func (m *Machine) ReadInstruction(ea uint32) uint32 {
	pa, ok := m.instructionAddress(ea)
	if !ok {
		return 0
	}
	return m.memory.Read32(pa)
}

// StackPointer returns GPR1.
func (m *Machine) StackPointer() uint32 {
	return m.regFile.SP()
}

// ProgramCounter returns PC.
func (m *Machine) ProgramCounter() uint32 {
	return m.regFile.PC
}

// TranslationEnabled returns the MSR data and instruction translation bits.
func (m *Machine) TranslationEnabled() (data, instruction bool) {
	return m.regFile.MSR.DR, m.regFile.MSR.IR
}

// MSRHex returns the packed machine state register.
func (m *Machine) MSRHex() uint32 {
	return m.regFile.MSR.Hex()
}

// WriteBlock copies data to memory starting at an effective address. The
// whole block must translate to one contiguous range of RAM.
func (m *Machine) WriteBlock(ea uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	start, ok := m.dataAddress(ea)
	if !ok {
		return fmt.Errorf("address 0x%08X is not mapped", ea)
	}

	last := ea + uint32(len(data)) - 1
	end, ok := m.dataAddress(last)
	if !ok || end-start != last-ea {
		return fmt.Errorf("block 0x%08X-0x%08X is not contiguous in RAM", ea, last)
	}

	return m.memory.Load(start, data)
}
