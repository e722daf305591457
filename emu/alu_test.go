package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novasim/nova32/emu"
)

var _ = Describe("Compute", func() {
	It("should wrap addition modulo 2^32", func() {
		Expect(emu.Compute(emu.AluAdd, 0xFFFFFFFF, 1)).To(Equal(uint32(0)))
		Expect(emu.Compute(emu.AluAdd, 2, 3)).To(Equal(uint32(5)))
	})

	It("should add identically through the immediate selector", func() {
		Expect(emu.Compute(emu.AluAddImm, 2, 3)).To(Equal(uint32(5)))
		Expect(emu.Compute(emu.AluAddImm, 5, 0xFFFFFFFF)).
			To(Equal(uint32(4)))
		Expect(emu.Compute(emu.AluAddImm, 0xFFFFFFFF, 1)).
			To(Equal(emu.Compute(emu.AluAdd, 0xFFFFFFFF, 1)))
	})

	It("should wrap subtraction modulo 2^32", func() {
		Expect(emu.Compute(emu.AluSub, 0, 1)).To(Equal(uint32(0xFFFFFFFF)))
	})

	It("should compute bitwise operations", func() {
		Expect(emu.Compute(emu.AluAnd, 0xF0F0, 0xFF00)).To(Equal(uint32(0xF000)))
		Expect(emu.Compute(emu.AluOr, 0xF0F0, 0x0F0F)).To(Equal(uint32(0xFFFF)))
		Expect(emu.Compute(emu.AluXor, 0xFF, 0x0F)).To(Equal(uint32(0xF0)))
	})

	It("should compare signed for Slt", func() {
		Expect(emu.Compute(emu.AluSlt, 0xFFFFFFFF, 0)).To(Equal(uint32(1)))
		Expect(emu.Compute(emu.AluSlt, 0, 0xFFFFFFFF)).To(Equal(uint32(0)))
		Expect(emu.Compute(emu.AluSlt, 3, 3)).To(Equal(uint32(0)))
	})

	It("should compare unsigned for Sltu", func() {
		Expect(emu.Compute(emu.AluSltu, 0xFFFFFFFF, 0)).To(Equal(uint32(0)))
		Expect(emu.Compute(emu.AluSltu, 0, 0xFFFFFFFF)).To(Equal(uint32(1)))
	})

	It("should mask shift amounts to five bits", func() {
		Expect(emu.Compute(emu.AluShl, 1, 33)).To(Equal(uint32(2)))
		Expect(emu.Compute(emu.AluShr, 4, 32)).To(Equal(uint32(4)))
	})

	It("should shift in sign bits for Sar", func() {
		Expect(emu.Compute(emu.AluSar, 0x80000000, 4)).
			To(Equal(uint32(0xF8000000)))
		Expect(emu.Compute(emu.AluShr, 0x80000000, 4)).
			To(Equal(uint32(0x08000000)))
	})

	It("should yield the sentinel for unknown selectors", func() {
		Expect(emu.Compute(emu.AluOp(0xFF), 1, 2)).
			To(Equal(uint32(emu.UndefinedResult)))
	})
})
