package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novasim/nova32/emu"
)

var _ = Describe("RegFile", func() {
	var regs *emu.RegFile

	BeforeEach(func() {
		regs = emu.NewRegFile()
	})

	It("should start with all registers zero", func() {
		for i := uint8(0); i < emu.NumRegs; i++ {
			Expect(regs.Read(i)).To(Equal(uint32(0)))
		}
	})

	It("should read back written values", func() {
		regs.Write(5, 0xDEADBEEF)

		Expect(regs.Read(5)).To(Equal(uint32(0xDEADBEEF)))
	})

	It("should discard writes to register 0", func() {
		regs.Write(0, 0xFFFFFFFF)

		Expect(regs.Read(0)).To(Equal(uint32(0)))
	})

	It("should mask out-of-range indices onto valid registers", func() {
		regs.Write(33, 42)

		Expect(regs.Read(1)).To(Equal(uint32(42)))
		Expect(regs.Read(32)).To(Equal(uint32(0)))
	})

	It("should clear every register on Reset", func() {
		regs.Write(7, 1)
		regs.Write(31, 2)

		regs.Reset()

		Expect(regs.Read(7)).To(Equal(uint32(0)))
		Expect(regs.Read(31)).To(Equal(uint32(0)))
	})
})
