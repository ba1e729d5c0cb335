// Package engine provides the frame-hook patch engine: the CPU safety gate,
// the patch applicator and the session that loads and clears patch state.
package engine

import (
	"github.com/sarchlab/patchsim/patch"
	"github.com/sarchlab/patchsim/speedhack"
)

// Memory is the virtual address space as seen by the patch engine. All
// addresses are effective addresses and must only be used while data and
// instruction translation are enabled.
type Memory interface {
	ReadU8(address uint32) uint8
	ReadU16(address uint32) uint16
	ReadU32(address uint32) uint32

	WriteU8(value uint8, address uint32)
	WriteU16(value uint16, address uint32)
	WriteU32(value uint32, address uint32)

	IsRAMAddress(address uint32) bool
	IsInstructionRAMAddress(address uint32) bool
	ReadInstruction(address uint32) uint32
}

// Registers gives read-only access to the virtual CPU registers.
type Registers interface {
	StackPointer() uint32
	ProgramCounter() uint32
	TranslationEnabled() (data, instruction bool)
	MSRHex() uint32
}

// CPU is the virtual CPU the frame hook runs against.
type CPU interface {
	Memory
	Registers
}

// Source is one configuration source: raw section lines plus key/value
// pairs.
type Source interface {
	patch.LineSource
	speedhack.KeySource
}

// GameConfig holds the configuration sources of one loaded title.
type GameConfig struct {
	// Merged is Global with Local layered on top.
	Merged Source
	// Global is the distributed default configuration.
	Global Source
	// Local is the user's configuration.
	Local Source
}

// ConfigProvider loads the configuration of the current title.
type ConfigProvider interface {
	LoadGameConfig() (GameConfig, error)

	// CodeSyncOverride reports whether code sets are to be taken from a
	// shared, synchronized source instead of the title's configuration.
	CodeSyncOverride() bool
}

// CodeEngine is a code-injection engine that runs next to the patch engine
// at the frame hook.
type CodeEngine interface {
	// LoadActiveSet loads the engine's codes from the title's configuration.
	LoadActiveSet(global, local Source)

	// SetSyncedActiveFromSharedSource activates the synchronized code set.
	SetSyncedActiveFromSharedSource()

	// RunPerFrameHandler runs the engine's per-frame handler. It is called
	// before patches are applied.
	RunPerFrameHandler()

	// RunAllActive runs every active code. It is called after patches are
	// applied.
	RunAllActive()

	// Reset clears the engine's active codes.
	Reset()
}
