// Package speedhack provides the table of per-address cycle-count hints
// read from a title's configuration.
package speedhack

import (
	"github.com/sarchlab/patchsim/patch"
)

// Section is the configuration section that holds speed hints.
const Section = "Speedhacks"

// KeySource reads key/value pairs from a configuration section.
type KeySource interface {
	GetKeys(section string) []string
	Get(section, key string) (string, bool)
}

// Table maps addresses to cycle counts.
type Table struct {
	cycles map[uint32]int
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{cycles: make(map[uint32]int)}
}

// Load adds every parseable key of a section to the table, overwriting
// existing hints for the same address. It returns the number of keys that
// were skipped because the key or the value did not parse.
func (t *Table) Load(section string, src KeySource) (skipped int) {
	for _, key := range src.GetKeys(section) {
		value, ok := src.Get(section, key)
		if !ok {
			continue
		}

		address, err := patch.ParseU32(key)
		if err != nil {
			skipped++
			continue
		}

		cycles, err := patch.ParseU32(value)
		if err != nil {
			skipped++
			continue
		}

		t.cycles[address] = int(int32(cycles))
	}

	return skipped
}

// Cycles returns the hint for an address, or 0 when there is none.
func (t *Table) Cycles(address uint32) int {
	return t.cycles[address]
}

// Len returns the number of hints.
func (t *Table) Len() int {
	return len(t.cycles)
}

// Clear removes every hint.
func (t *Table) Clear() {
	clear(t.cycles)
}
