// Package loader places guest programs into the virtual machine's memory.
// It reads 32-bit big-endian PowerPC ELF executables and raw RAM images.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the initial stack pointer, just below the end of the
// cached RAM mirror.
const DefaultStackTop = 0x817FFF00

// Segment represents a loadable segment.
type Segment struct {
	// VirtAddr is the effective address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program is a guest image ready to be installed.
type Program struct {
	// EntryPoint is the effective address where execution begins.
	EntryPoint uint32
	// Segments contains all loadable segments.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint32
}

// BlockWriter writes a contiguous block at an effective address.
// emu.Machine implements it.
type BlockWriter interface {
	WriteBlock(ea uint32, data []byte) error
}

// Load parses a PowerPC ELF executable.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_PPC {
		return nil, fmt.Errorf("not a PowerPC ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadRaw wraps a raw memory dump as a single readable, writable and
// executable segment at base. Execution starts at base.
func LoadRaw(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw image: %w", err)
	}

	if uint64(base)+uint64(len(data)) > 1<<32 {
		return nil, fmt.Errorf("raw image of %d bytes does not fit at 0x%08X", len(data), base)
	}

	return &Program{
		EntryPoint: base,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint32(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}, nil
}

// Install copies every segment of prog through w. The part of a segment
// beyond its file data is zero-filled.
func Install(prog *Program, w BlockWriter) error {
	for _, seg := range prog.Segments {
		if err := w.WriteBlock(seg.VirtAddr, seg.Data); err != nil {
			return fmt.Errorf("failed to install segment at 0x%08X: %w", seg.VirtAddr, err)
		}

		filesz := uint32(len(seg.Data))
		if seg.MemSize > filesz {
			bss := make([]byte, seg.MemSize-filesz)
			if err := w.WriteBlock(seg.VirtAddr+filesz, bss); err != nil {
				return fmt.Errorf("failed to clear bss at 0x%08X: %w", seg.VirtAddr+filesz, err)
			}
		}
	}

	return nil
}
