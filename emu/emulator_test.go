package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novasim/nova32/bus"
	"github.com/novasim/nova32/emu"
	"github.com/novasim/nova32/insts"
)

func rr(op insts.Op, rd, rs, rt uint8) uint32 {
	return insts.Encode(&insts.Instruction{
		Op: op, Format: insts.FormatRegister, Rd: rd, Rs: rs, Rt: rt,
	})
}

func ri(op insts.Op, rd, rs uint8, imm uint16) uint32 {
	return insts.Encode(&insts.Instruction{
		Op: op, Format: insts.FormatImmediate, Rd: rd, Rs: rs, Imm16: imm,
	})
}

func jm(op insts.Op, byteAddr uint32) uint32 {
	return insts.Encode(&insts.Instruction{
		Op: op, Format: insts.FormatJump, Target: byteAddr >> 2,
	})
}

var halt = uint32(insts.OpHALT) << 26

var _ = Describe("Emulator", func() {
	var (
		m   bus.AddressMap
		b   *bus.SystemBus
		e   *emu.Emulator
		out *bytes.Buffer
	)

	BeforeEach(func() {
		m = bus.DefaultAddressMap()
		out = &bytes.Buffer{}

		var err error
		b, err = bus.New(m, out)
		Expect(err).ToNot(HaveOccurred())
		e = emu.New(b)
	})

	load := func(words ...uint32) {
		for i, word := range words {
			Expect(b.LoadWord(m.RomBase+uint32(4*i), word)).To(Succeed())
		}
	}

	Describe("ALU instructions", func() {
		It("should execute three-operand register arithmetic", func() {
			load(
				ri(insts.OpADDI, 1, 0, 5),
				ri(insts.OpADDI, 2, 0, 7),
				rr(insts.OpADD, 3, 1, 2),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(3)).To(Equal(uint32(12)))
		})

		It("should sign-extend the ADDI immediate", func() {
			load(ri(insts.OpADDI, 1, 0, 0xFFFF), halt)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(1)).To(Equal(uint32(0xFFFFFFFF)))
		})

		It("should zero-extend the ORI immediate", func() {
			load(ri(insts.OpORI, 1, 0, 0xFFFF), halt)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(1)).To(Equal(uint32(0x0000FFFF)))
		})

		It("should wrap arithmetic modulo 2^32", func() {
			load(
				ri(insts.OpADDI, 1, 0, 0xFFFF), // r1 = -1
				ri(insts.OpADDI, 2, 0, 2),
				rr(insts.OpADD, 3, 1, 2),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(3)).To(Equal(uint32(1)))
		})

		It("should discard writes to register 0", func() {
			load(ri(insts.OpADDI, 0, 0, 5), halt)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(0)).To(Equal(uint32(0)))
		})

		It("should compose a 32-bit constant from LUI and ORI", func() {
			load(
				ri(insts.OpLUI, 1, 0, 0x8000),
				ri(insts.OpORI, 1, 1, 0x2200),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(1)).To(Equal(uint32(0x80002200)))
		})
	})

	Describe("loads and stores", func() {
		It("should store and load words through RAM", func() {
			load(
				ri(insts.OpLUI, 1, 0, uint16(m.RamBase>>16)),
				ri(insts.OpADDI, 2, 0, 0x1234),
				ri(insts.OpSW, 2, 1, 8),
				ri(insts.OpLW, 3, 1, 8),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(3)).To(Equal(uint32(0x1234)))
		})

		It("should sign-extend loaded bytes", func() {
			load(
				ri(insts.OpLUI, 1, 0, uint16(m.RamBase>>16)),
				ri(insts.OpADDI, 2, 0, 0x80),
				ri(insts.OpSB, 2, 1, 0),
				ri(insts.OpLB, 3, 1, 0),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(3)).To(Equal(uint32(0xFFFFFF80)))
		})

		It("should fault on a store to program memory", func() {
			load(ri(insts.OpSW, 0, 0, 0), halt)

			Expect(e.Run()).To(MatchError(bus.ErrReadOnly))
		})

		It("should fault on a misaligned word load", func() {
			load(
				ri(insts.OpADDI, 1, 0, 2),
				ri(insts.OpLW, 2, 1, 0),
				halt,
			)

			Expect(e.Run()).To(MatchError(bus.ErrMisaligned))
		})
	})

	Describe("branches", func() {
		It("should skip forward when taken", func() {
			load(
				ri(insts.OpADDI, 1, 0, 1),
				ri(insts.OpBNE, 1, 0, 1), // over the next instruction
				ri(insts.OpADDI, 2, 0, 99),
				ri(insts.OpADDI, 3, 0, 5),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(2)).To(Equal(uint32(0)))
			Expect(e.Regs().Read(3)).To(Equal(uint32(5)))
		})

		It("should fall through when not taken", func() {
			load(
				ri(insts.OpBNE, 0, 0, 1),
				ri(insts.OpADDI, 2, 0, 99),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(2)).To(Equal(uint32(99)))
		})

		It("should loop on a backward displacement", func() {
			load(
				ri(insts.OpADDI, 1, 0, 3),
				ri(insts.OpADDI, 2, 2, 1),      // loop body
				ri(insts.OpADDI, 1, 1, 0xFFFF), // r1--
				ri(insts.OpBNE, 1, 0, 0xFFFD),  // back to the body
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(2)).To(Equal(uint32(3)))
		})

		It("should compare signed for BLT", func() {
			load(
				ri(insts.OpADDI, 1, 0, 0xFFFF), // r1 = -1
				ri(insts.OpBLT, 1, 0, 1),       // -1 < 0, taken
				ri(insts.OpADDI, 2, 0, 99),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(2)).To(Equal(uint32(0)))
		})
	})

	Describe("jumps", func() {
		It("should jump to an absolute word target", func() {
			load(
				jm(insts.OpJ, 12),
				ri(insts.OpADDI, 2, 0, 1),
				halt,
				ri(insts.OpADDI, 3, 0, 7),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(2)).To(Equal(uint32(0)))
			Expect(e.Regs().Read(3)).To(Equal(uint32(7)))
		})

		It("should link the return address for JAL and return via JR", func() {
			load(
				jm(insts.OpJAL, 8),
				halt,
				ri(insts.OpADDI, 1, 0, 1),
				rr(insts.OpJR, 0, 31, 0),
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(31)).To(Equal(uint32(4)))
			Expect(e.Regs().Read(1)).To(Equal(uint32(1)))
		})

		It("should link into rd for JALR", func() {
			load(
				ri(insts.OpADDI, 1, 0, 16),
				rr(insts.OpJALR, 5, 1, 0),
				halt,
				halt,
				ri(insts.OpADDI, 2, 0, 9),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(5)).To(Equal(uint32(8)))
			Expect(e.Regs().Read(2)).To(Equal(uint32(9)))
		})
	})

	Describe("halting", func() {
		It("should stop on HALT and stay stopped", func() {
			load(ri(insts.OpADDI, 1, 0, 1), halt)

			Expect(e.Run()).To(Succeed())
			Expect(e.Halted()).To(BeTrue())

			pc := e.PC()
			steps := e.Steps()
			res := e.Step()

			Expect(res.Halted).To(BeTrue())
			Expect(res.Err).ToNot(HaveOccurred())
			Expect(e.PC()).To(Equal(pc))
			Expect(e.Steps()).To(Equal(steps))
		})

		It("should not tick devices once halted", func() {
			load(halt)
			Expect(e.Run()).To(Succeed())

			b.Timer1().SetPeriod(10)
			b.Timer1().SetCtrl(1)
			before := b.Timer1().Count()

			e.Step()

			Expect(b.Timer1().Count()).To(Equal(before))
		})
	})

	Describe("unknown opcodes", func() {
		It("should execute as a no-op and advance", func() {
			load(
				uint32(0x2F)<<26 | 0x12345,
				ri(insts.OpADDI, 1, 0, 1),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(1)).To(Equal(uint32(1)))
			Expect(e.Steps()).To(Equal(uint64(3)))
		})
	})

	Describe("device ticking", func() {
		It("should advance enabled timers once per retired instruction", func() {
			load(
				ri(insts.OpLUI, 1, 0, uint16(m.Timer1Base>>16)),
				ri(insts.OpORI, 1, 1, uint16(m.Timer1Base)),
				ri(insts.OpADDI, 2, 0, 100),
				ri(insts.OpSW, 2, 1, 0x04), // period
				ri(insts.OpADDI, 3, 0, 1),
				ri(insts.OpSW, 3, 1, 0x00), // ctrl: enable
				uint32(insts.OpNOP) << 26,
				uint32(insts.OpNOP) << 26,
				uint32(insts.OpNOP) << 26,
				halt,
			)

			Expect(e.Run()).To(Succeed())

			// The enabling store, three NOPs and HALT each tick once.
			Expect(b.Timer1().Count()).To(Equal(uint32(5)))
		})
	})

	Describe("serial output", func() {
		It("should print HI and a newline", func() {
			load(
				ri(insts.OpLUI, 1, 0, uint16(m.UartBase>>16)),
				ri(insts.OpORI, 1, 1, uint16(m.UartBase)),
				ri(insts.OpADDI, 2, 0, 'H'),
				ri(insts.OpSB, 2, 1, 0),
				ri(insts.OpADDI, 2, 0, 'I'),
				ri(insts.OpSB, 2, 1, 0),
				ri(insts.OpADDI, 2, 0, '\n'),
				ri(insts.OpSB, 2, 1, 0),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(out.String()).To(Equal("HI\n"))
		})

		It("should print the digits 0 through 9", func() {
			load(
				ri(insts.OpLUI, 1, 0, uint16(m.UartBase>>16)),
				ri(insts.OpORI, 1, 1, uint16(m.UartBase)),
				ri(insts.OpADDI, 2, 0, '0'),
				ri(insts.OpADDI, 3, 0, '9'+1),
				ri(insts.OpSB, 2, 1, 0), // loop body
				ri(insts.OpADDI, 2, 2, 1),
				ri(insts.OpBNE, 2, 3, 0xFFFD), // back to the body
				ri(insts.OpADDI, 4, 0, '\n'),
				ri(insts.OpSB, 4, 1, 0),
				halt,
			)

			Expect(e.Run()).To(Succeed())

			Expect(out.String()).To(Equal("0123456789\n"))
		})
	})

	Describe("options", func() {
		It("should stop at the instruction limit", func() {
			load(jm(insts.OpJ, 0))
			e = emu.New(b, emu.WithMaxInstructions(25))

			err := e.Run()

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("instruction limit"))
			Expect(e.Steps()).To(Equal(uint64(25)))
		})

		It("should start at a configured PC", func() {
			load(
				ri(insts.OpADDI, 1, 0, 1),
				ri(insts.OpADDI, 2, 0, 2),
				halt,
			)
			e = emu.New(b, emu.WithPC(m.RomBase+4))

			Expect(e.Run()).To(Succeed())

			Expect(e.Regs().Read(1)).To(Equal(uint32(0)))
			Expect(e.Regs().Read(2)).To(Equal(uint32(2)))
		})

		It("should write a trace line per instruction", func() {
			trace := &bytes.Buffer{}
			load(ri(insts.OpADDI, 1, 0, 5), halt)
			e = emu.New(b, emu.WithTrace(trace))

			Expect(e.Run()).To(Succeed())

			Expect(trace.String()).To(ContainSubstring("ADDI r1, r0, 5"))
			Expect(trace.String()).To(ContainSubstring("HALT"))
		})
	})

	Describe("faults", func() {
		It("should report a fetch from an unmapped address", func() {
			load(
				ri(insts.OpLUI, 1, 0, 0x4000),
				rr(insts.OpJR, 0, 1, 0),
			)

			Expect(e.Run()).To(MatchError(bus.ErrUnmapped))
		})
	})
})
