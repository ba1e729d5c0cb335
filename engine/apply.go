package engine

import (
	"github.com/sarchlab/patchsim/patch"
)

// ApplyPatches writes every entry of every enabled patch, in order. It
// returns the number of writes performed.
func ApplyPatches(mem Memory, patches []patch.Patch) int {
	writes := 0

	for _, p := range patches {
		if !p.Enabled {
			continue
		}

		for _, e := range p.Entries {
			if applyEntry(mem, e) {
				writes++
			}
		}
	}

	return writes
}

func applyEntry(mem Memory, e patch.Entry) bool {
	switch e.Type {
	case patch.Type8Bit:
		if e.Conditional && mem.ReadU8(e.Address) != uint8(e.Comparand) {
			return false
		}
		mem.WriteU8(uint8(e.Value), e.Address)
	case patch.Type16Bit:
		if e.Conditional && mem.ReadU16(e.Address) != uint16(e.Comparand) {
			return false
		}
		mem.WriteU16(uint16(e.Value), e.Address)
	case patch.Type32Bit:
		if e.Conditional && mem.ReadU32(e.Address) != e.Comparand {
			return false
		}
		mem.WriteU32(e.Value, e.Address)
	default:
		return false
	}

	return true
}
