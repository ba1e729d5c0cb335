package loader_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/patchsim/emu"
	"github.com/sarchlab/patchsim/loader"
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("with a valid PowerPC ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				writeELF(elfPath, 0x80003100, []segmentDef{{
					vaddr: 0x80003100,
					flags: 0x5,
					data: []byte{
						0x38, 0x60, 0x00, 0x2a, // li r3, 42
						0x4e, 0x80, 0x00, 0x20, // blr
					},
				}})
			})

			It("should load without error", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog).NotTo(BeNil())
			})

			It("should extract the correct entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x80003100)))
			})

			It("should set up initial stack pointer", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.InitialSP).To(Equal(uint32(loader.DefaultStackTop)))
			})

			It("should keep segment contents and permissions", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint32(0x80003100)))
				Expect(seg.Data).To(Equal([]byte{0x38, 0x60, 0x00, 0x2a, 0x4e, 0x80, 0x00, 0x20}))
				Expect(seg.Flags & loader.SegmentFlagRead).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagWrite).To(BeZero())
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load(filepath.Join(tempDir, "missing.elf"))
				Expect(err).To(HaveOccurred())
			})

			It("should return error for non-ELF file", func() {
				path := filepath.Join(tempDir, "text.txt")
				Expect(os.WriteFile(path, []byte("not an elf file"), 0644)).To(Succeed())

				_, err := loader.Load(path)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a foreign ELF", func() {
			It("should reject 64-bit ELF files", func() {
				path := filepath.Join(tempDir, "elf64")
				writeELF64Header(path)

				_, err := loader.Load(path)
				Expect(err).To(MatchError(ContainSubstring("not a 32-bit ELF file")))
			})

			It("should reject other machines", func() {
				path := filepath.Join(tempDir, "x86")
				writeELFWithMachine(path, 3, 0, nil)

				_, err := loader.Load(path)
				Expect(err).To(MatchError(ContainSubstring("not a PowerPC ELF file")))
			})
		})

		Context("with several segments", func() {
			It("should load every PT_LOAD segment in order", func() {
				path := filepath.Join(tempDir, "multi.elf")
				writeELF(path, 0x80003100, []segmentDef{
					{vaddr: 0x80003100, flags: 0x5, data: []byte{0x60, 0x00, 0x00, 0x00}},
					{vaddr: 0x80400000, flags: 0x6, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
				})

				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(2))
				Expect(prog.Segments[1].VirtAddr).To(Equal(uint32(0x80400000)))
				Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
			})

			It("should report BSS through MemSize", func() {
				path := filepath.Join(tempDir, "bss.elf")
				writeELF(path, 0x80003100, []segmentDef{
					{vaddr: 0x80500000, flags: 0x6, data: []byte{0xAA, 0xBB}, memsz: 0x100},
				})

				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments[0].Data).To(HaveLen(2))
				Expect(prog.Segments[0].MemSize).To(Equal(uint32(0x100)))
			})
		})

		It("should return no segments for ELF without PT_LOAD", func() {
			path := filepath.Join(tempDir, "empty.elf")
			writeELF(path, 0x80003100, nil)

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
		})
	})

	Describe("LoadRaw", func() {
		It("should wrap the file as one segment at the base", func() {
			path := filepath.Join(tempDir, "ram.raw")
			Expect(os.WriteFile(path, []byte{0xde, 0xad, 0xbe, 0xef}, 0644)).To(Succeed())

			prog, err := loader.LoadRaw(path, 0x80000000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint32(0x80000000)))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].MemSize).To(Equal(uint32(4)))
		})

		It("should reject images that overflow the address space", func() {
			path := filepath.Join(tempDir, "ram.raw")
			Expect(os.WriteFile(path, make([]byte, 16), 0644)).To(Succeed())

			_, err := loader.LoadRaw(path, 0xFFFFFFF8)
			Expect(err).To(HaveOccurred())
		})

		It("should fail on a missing file", func() {
			_, err := loader.LoadRaw(filepath.Join(tempDir, "none"), 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Install", func() {
		It("should copy data and zero-fill BSS", func() {
			machine := emu.NewMachine()
			machine.WriteU32(0x11111111, 0x80500004)

			prog := &loader.Program{Segments: []loader.Segment{{
				VirtAddr: 0x80500000,
				Data:     []byte{0xCA, 0xFE, 0xBA, 0xBE},
				MemSize:  8,
			}}}

			Expect(loader.Install(prog, machine)).To(Succeed())
			Expect(machine.ReadU32(0x80500000)).To(Equal(uint32(0xCAFEBABE)))
			Expect(machine.ReadU32(0x80500004)).To(BeZero())
		})

		It("should report segments that cannot be written", func() {
			prog := &loader.Program{Segments: []loader.Segment{{
				VirtAddr: 0x80000000,
				Data:     []byte{1},
				MemSize:  1,
			}}}

			err := loader.Install(prog, failingWriter{})
			Expect(err).To(MatchError(ContainSubstring("0x80000000")))
		})
	})
})

type failingWriter struct{}

func (failingWriter) WriteBlock(uint32, []byte) error {
	return errors.New("unmapped")
}

type segmentDef struct {
	vaddr uint32
	flags uint32
	data  []byte
	memsz uint32
}

const (
	elf32HeaderSize = 52
	elf32PhdrSize   = 32
	emPPC           = 20
)

// writeELF writes a big-endian ELF32 PowerPC executable.
func writeELF(path string, entry uint32, segs []segmentDef) {
	writeELFWithMachine(path, emPPC, entry, segs)
}

func writeELFWithMachine(path string, machine uint16, entry uint32, segs []segmentDef) {
	be := binary.BigEndian

	header := make([]byte, elf32HeaderSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1                        // ELFCLASS32
	header[5] = 2                        // big endian
	header[6] = 1                        // version
	be.PutUint16(header[16:18], 2)       // executable
	be.PutUint16(header[18:20], machine) // machine
	be.PutUint32(header[20:24], 1)       // version
	be.PutUint32(header[24:28], entry)   // entry
	be.PutUint32(header[28:32], elf32HeaderSize)
	be.PutUint16(header[40:42], elf32HeaderSize)
	be.PutUint16(header[42:44], elf32PhdrSize)
	be.PutUint16(header[44:46], uint16(len(segs)))

	offset := uint32(elf32HeaderSize + elf32PhdrSize*len(segs))
	phdrs := make([]byte, 0, elf32PhdrSize*len(segs))
	var payload []byte

	for _, s := range segs {
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint32(len(s.data))
		}

		ph := make([]byte, elf32PhdrSize)
		be.PutUint32(ph[0:4], 1) // PT_LOAD
		be.PutUint32(ph[4:8], offset)
		be.PutUint32(ph[8:12], s.vaddr)
		be.PutUint32(ph[12:16], s.vaddr)
		be.PutUint32(ph[16:20], uint32(len(s.data)))
		be.PutUint32(ph[20:24], memsz)
		be.PutUint32(ph[24:28], s.flags)
		be.PutUint32(ph[28:32], 4)

		phdrs = append(phdrs, ph...)
		payload = append(payload, s.data...)
		offset += uint32(len(s.data))
	}

	file, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = file.Close() }()
	_, _ = file.Write(header)
	_, _ = file.Write(phdrs)
	_, _ = file.Write(payload)
}

func writeELF64Header(path string) {
	header := make([]byte, 64)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2 // ELFCLASS64
	header[5] = 2
	header[6] = 1
	binary.BigEndian.PutUint16(header[16:18], 2)
	binary.BigEndian.PutUint16(header[18:20], 21) // PPC64
	binary.BigEndian.PutUint32(header[20:24], 1)
	binary.BigEndian.PutUint16(header[52:54], 64)
	binary.BigEndian.PutUint16(header[54:56], 56)

	Expect(os.WriteFile(path, header, 0644)).To(Succeed())
}
