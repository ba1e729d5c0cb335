package emu

// BAT is a block address translation window mapping a range of effective
// addresses onto physical addresses.
type BAT struct {
	Effective uint32
	Physical  uint32
	Size      uint32

	// Data and Instruction select which translation paths use the window.
	Data        bool
	Instruction bool
}

func (b BAT) translate(ea uint32) (uint32, bool) {
	if ea < b.Effective || ea-b.Effective >= b.Size {
		return 0, false
	}
	return b.Physical + (ea - b.Effective), true
}

// DefaultBATs returns the cached and uncached views of the first 24MB of
// physical memory at 0x80000000 and 0xC0000000. Only the cached view is
// mapped for instruction fetch.
func DefaultBATs() []BAT {
	return []BAT{
		{
			Effective:   0x80000000,
			Physical:    0,
			Size:        DefaultRAMSize,
			Data:        true,
			Instruction: true,
		},
		{
			Effective: 0xC0000000,
			Physical:  0,
			Size:      DefaultRAMSize,
			Data:      true,
		},
	}
}

// MMU translates effective addresses using an ordered list of BATs. The
// first matching window wins.
type MMU struct {
	bats []BAT
}

// NewMMU creates an MMU with the given windows.
func NewMMU(bats ...BAT) *MMU {
	return &MMU{bats: append([]BAT(nil), bats...)}
}

// AddBAT appends a translation window.
func (u *MMU) AddBAT(b BAT) {
	u.bats = append(u.bats, b)
}

// TranslateData translates an effective address for a load or store.
func (u *MMU) TranslateData(ea uint32) (uint32, bool) {
	for _, b := range u.bats {
		if !b.Data {
			continue
		}
		if pa, ok := b.translate(ea); ok {
			return pa, true
		}
	}
	return 0, false
}

// TranslateInstruction translates an effective address for an instruction
// fetch.
func (u *MMU) TranslateInstruction(ea uint32) (uint32, bool) {
	for _, b := range u.bats {
		if !b.Instruction {
			continue
		}
		if pa, ok := b.translate(ea); ok {
			return pa, true
		}
	}
	return 0, false
}
