package engine

// IsStackSane is a heuristic that decides whether the CPU is in normal
// program flow, where memory can be patched without corrupting execution.
//
// It requires at least two stack frames: the stack pointer must point to
// RAM, the back chain word it points to must be a higher RAM address, and
// the saved link register of that frame must point to a non-zero
// instruction. A false result does not mean patching would be harmful.
//
// Translation must be enabled when this is called.
func IsStackSane(mem Memory, regs Registers) bool {
	sp := regs.StackPointer()
	if !mem.IsRAMAddress(sp) {
		return false
	}

	nextSP := mem.ReadU32(sp)
	if nextSP <= sp || !mem.IsRAMAddress(nextSP) || !mem.IsRAMAddress(nextSP+4) {
		return false
	}

	lr := mem.ReadU32(nextSP + 4)
	return mem.IsInstructionRAMAddress(lr) && mem.ReadInstruction(lr) != 0
}

func translationEnabled(regs Registers) bool {
	data, instruction := regs.TranslationEnabled()
	return data && instruction
}
