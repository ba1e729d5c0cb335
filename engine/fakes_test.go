package engine_test

import (
	"github.com/sarchlab/patchsim/engine"
)

// flatMemory is a synthetic memory image: every address below ramEnd is
// data RAM, addresses in [codeStart, codeEnd) are also instruction RAM.
// Reads are counted so tests can check the hook did not touch memory.
type flatMemory struct {
	words  map[uint32]uint32
	reads  int
	writes int

	ramStart, ramEnd   uint32
	codeStart, codeEnd uint32

	sp          uint32
	pc          uint32
	data, instr bool
}

func newFlatMemory() *flatMemory {
	return &flatMemory{
		words:     make(map[uint32]uint32),
		ramStart:  0x80000000,
		ramEnd:    0x81800000,
		codeStart: 0x80003000,
		codeEnd:   0x80400000,
		data:      true,
		instr:     true,
	}
}

func (m *flatMemory) word(addr uint32) uint32 {
	return m.words[addr&^3]
}

func (m *flatMemory) ReadU8(addr uint32) uint8 {
	m.reads++
	shift := (3 - addr&3) * 8
	return uint8(m.word(addr) >> shift)
}

func (m *flatMemory) ReadU16(addr uint32) uint16 {
	m.reads++
	shift := (2 - addr&2) * 8
	return uint16(m.word(addr) >> shift)
}

func (m *flatMemory) ReadU32(addr uint32) uint32 {
	m.reads++
	return m.word(addr)
}

func (m *flatMemory) WriteU8(v uint8, addr uint32) {
	m.writes++
	shift := (3 - addr&3) * 8
	w := m.word(addr) &^ (0xFF << shift)
	m.words[addr&^3] = w | uint32(v)<<shift
}

func (m *flatMemory) WriteU16(v uint16, addr uint32) {
	m.writes++
	shift := (2 - addr&2) * 8
	w := m.word(addr) &^ (0xFFFF << shift)
	m.words[addr&^3] = w | uint32(v)<<shift
}

func (m *flatMemory) WriteU32(v uint32, addr uint32) {
	m.writes++
	m.words[addr&^3] = v
}

func (m *flatMemory) IsRAMAddress(addr uint32) bool {
	m.reads++
	return addr >= m.ramStart && addr < m.ramEnd
}

func (m *flatMemory) IsInstructionRAMAddress(addr uint32) bool {
	m.reads++
	return addr >= m.codeStart && addr < m.codeEnd
}

func (m *flatMemory) ReadInstruction(addr uint32) uint32 {
	m.reads++
	return m.word(addr)
}

func (m *flatMemory) StackPointer() uint32   { return m.sp }
func (m *flatMemory) ProgramCounter() uint32 { return m.pc }
func (m *flatMemory) MSRHex() uint32         { return 0 }

func (m *flatMemory) TranslationEnabled() (bool, bool) {
	return m.data, m.instr
}

// buildStack lays out two stack frames whose back chain leads to a saved
// link register pointing at lr.
func (m *flatMemory) buildStack(sp, nextSP, lr, inst uint32) {
	m.sp = sp
	m.words[sp] = nextSP
	m.words[nextSP+4] = lr
	m.words[lr] = inst
}

// recordingEngine logs every call it receives into a shared journal.
type recordingEngine struct {
	name    string
	journal *[]string

	global, local engine.Source
}

func (e *recordingEngine) note(call string) {
	*e.journal = append(*e.journal, e.name+"."+call)
}

func (e *recordingEngine) LoadActiveSet(global, local engine.Source) {
	e.global, e.local = global, local
	e.note("LoadActiveSet")
}

func (e *recordingEngine) SetSyncedActiveFromSharedSource() {
	e.note("SetSyncedActiveFromSharedSource")
}

func (e *recordingEngine) RunPerFrameHandler() { e.note("RunPerFrameHandler") }
func (e *recordingEngine) RunAllActive()       { e.note("RunAllActive") }
func (e *recordingEngine) Reset()              { e.note("Reset") }

// section is one in-memory configuration source.
type section struct {
	lines map[string][]string
	keys  map[string]map[string]string
	order map[string][]string
}

func newSection() *section {
	return &section{
		lines: make(map[string][]string),
		keys:  make(map[string]map[string]string),
		order: make(map[string][]string),
	}
}

func (s *section) GetLines(name string) []string { return s.lines[name] }

func (s *section) SetLines(name string, lines []string) { s.lines[name] = lines }

func (s *section) GetKeys(name string) []string { return s.order[name] }

func (s *section) Get(name, key string) (string, bool) {
	v, ok := s.keys[name][key]
	return v, ok
}

func (s *section) set(name, key, value string) {
	if s.keys[name] == nil {
		s.keys[name] = make(map[string]string)
	}
	if _, ok := s.keys[name][key]; !ok {
		s.order[name] = append(s.order[name], key)
	}
	s.keys[name][key] = value
}

// staticProvider returns fixed sources.
type staticProvider struct {
	cfg  engine.GameConfig
	err  error
	sync bool
}

func (p *staticProvider) LoadGameConfig() (engine.GameConfig, error) {
	return p.cfg, p.err
}

func (p *staticProvider) CodeSyncOverride() bool {
	return p.sync
}
