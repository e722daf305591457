// Package emu implements the fetch, decode and execute loop together
// with the register file and the arithmetic unit it drives.
package emu

import (
	"fmt"
	"io"

	"github.com/novasim/nova32/bus"
	"github.com/novasim/nova32/insts"
)

// instBytes is the size of one instruction word.
const instBytes = 4

// StepResult reports the outcome of executing one instruction.
type StepResult struct {
	// Halted is true once the machine has executed HALT. Further
	// steps keep returning a halted result without side effects.
	Halted bool

	// Err holds the bus fault that stopped the instruction, if any.
	Err error
}

// Emulator drives a system bus through the fetch, decode and execute
// cycle.
type Emulator struct {
	regs    *RegFile
	bus     *bus.SystemBus
	decoder *insts.Decoder

	pc     uint32
	halted bool
	steps  uint64

	trace    io.Writer
	maxSteps uint64
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithTrace makes the emulator write one line per retired instruction
// to w.
func WithTrace(w io.Writer) Option {
	return func(e *Emulator) {
		e.trace = w
	}
}

// WithMaxInstructions stops Run after n retired instructions. Zero
// means no limit.
func WithMaxInstructions(n uint64) Option {
	return func(e *Emulator) {
		e.maxSteps = n
	}
}

// WithPC sets the initial program counter.
func WithPC(pc uint32) Option {
	return func(e *Emulator) {
		e.pc = pc
	}
}

// New creates an emulator attached to b, with the program counter at
// the start of program memory.
func New(b *bus.SystemBus, opts ...Option) *Emulator {
	e := &Emulator{
		regs:    NewRegFile(),
		bus:     b,
		decoder: insts.NewDecoder(),
		pc:      b.Map().RomBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Regs returns the register file.
func (e *Emulator) Regs() *RegFile {
	return e.regs
}

// PC returns the current program counter.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// SetPC moves the program counter to pc.
func (e *Emulator) SetPC(pc uint32) {
	e.pc = pc
}

// Halted reports whether the machine has stopped.
func (e *Emulator) Halted() bool {
	return e.halted
}

// Steps returns the number of retired instructions.
func (e *Emulator) Steps() uint64 {
	return e.steps
}

// Step executes a single instruction. On a halted machine it is a
// no-op that reports the halted state.
func (e *Emulator) Step() StepResult {
	if e.halted {
		return StepResult{Halted: true}
	}

	word, err := e.bus.Fetch(e.pc)
	if err != nil {
		return StepResult{Err: fmt.Errorf("fetch at 0x%08X: %w", e.pc, err)}
	}
	inst := e.decoder.Decode(word)

	if e.trace != nil {
		fmt.Fprintf(e.trace, "0x%08X: %08X  %s\n",
			e.pc, word, insts.Disassemble(inst))
	}

	nextPC, err := e.execute(inst)
	if err != nil {
		return StepResult{Err: fmt.Errorf("at 0x%08X: %w", e.pc, err)}
	}

	e.pc = nextPC
	e.steps++
	e.bus.Tick()

	return StepResult{Halted: e.halted}
}

// Run steps the machine until it halts, faults, or reaches the
// configured instruction limit.
func (e *Emulator) Run() error {
	for !e.halted {
		if e.maxSteps > 0 && e.steps >= e.maxSteps {
			return fmt.Errorf(
				"instruction limit of %d reached at 0x%08X",
				e.maxSteps, e.pc)
		}
		if res := e.Step(); res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func (e *Emulator) execute(inst *insts.Instruction) (uint32, error) {
	seqPC := e.pc + instBytes

	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpAND, insts.OpOR,
		insts.OpXOR, insts.OpSLT, insts.OpSLTU,
		insts.OpSHL, insts.OpSHR, insts.OpSAR:
		a := e.regs.Read(inst.Rs)
		b := e.regs.Read(inst.Rt)
		e.regs.Write(inst.Rd, Compute(aluOpFor(inst.Op), a, b))
		return seqPC, nil

	case insts.OpADDI:
		a := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd,
			Compute(AluAddImm, a, insts.SignExtend16(inst.Imm16)))
		return seqPC, nil
	case insts.OpANDI:
		a := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd, Compute(AluAnd, a, uint32(inst.Imm16)))
		return seqPC, nil
	case insts.OpORI:
		a := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd, Compute(AluOr, a, uint32(inst.Imm16)))
		return seqPC, nil
	case insts.OpXORI:
		a := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd, Compute(AluXor, a, uint32(inst.Imm16)))
		return seqPC, nil
	case insts.OpSLTI:
		a := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd,
			Compute(AluSlt, a, insts.SignExtend16(inst.Imm16)))
		return seqPC, nil
	case insts.OpSLTIU:
		a := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd, Compute(AluSltu, a, uint32(inst.Imm16)))
		return seqPC, nil
	case insts.OpLUI:
		e.regs.Write(inst.Rd, uint32(inst.Imm16)<<16)
		return seqPC, nil

	case insts.OpLW:
		addr := e.regs.Read(inst.Rs) + insts.SignExtend16(inst.Imm16)
		v, err := e.bus.Read32(addr)
		if err != nil {
			return 0, err
		}
		e.regs.Write(inst.Rd, v)
		return seqPC, nil
	case insts.OpSW:
		addr := e.regs.Read(inst.Rs) + insts.SignExtend16(inst.Imm16)
		if err := e.bus.Write32(addr, e.regs.Read(inst.Rd)); err != nil {
			return 0, err
		}
		return seqPC, nil
	case insts.OpLB:
		addr := e.regs.Read(inst.Rs) + insts.SignExtend16(inst.Imm16)
		v, err := e.bus.Read8(addr)
		if err != nil {
			return 0, err
		}
		e.regs.Write(inst.Rd, uint32(int32(int8(v))))
		return seqPC, nil
	case insts.OpSB:
		addr := e.regs.Read(inst.Rs) + insts.SignExtend16(inst.Imm16)
		if err := e.bus.Write8(addr, uint8(e.regs.Read(inst.Rd))); err != nil {
			return 0, err
		}
		return seqPC, nil

	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE:
		if e.branchTaken(inst) {
			return seqPC + (insts.SignExtend16(inst.Imm16) << 2), nil
		}
		return seqPC, nil

	case insts.OpJ:
		return e.jumpTarget(inst.Target), nil
	case insts.OpJAL:
		e.regs.Write(LinkReg, seqPC)
		return e.jumpTarget(inst.Target), nil
	case insts.OpJR:
		return e.regs.Read(inst.Rs), nil
	case insts.OpJALR:
		target := e.regs.Read(inst.Rs)
		e.regs.Write(inst.Rd, seqPC)
		return target, nil

	case insts.OpHALT:
		e.halted = true
		return e.pc, nil

	case insts.OpNOP, insts.OpSYS:
		return seqPC, nil

	default:
		// Unrecognized opcodes execute as no-ops.
		return seqPC, nil
	}
}

func (e *Emulator) branchTaken(inst *insts.Instruction) bool {
	a := e.regs.Read(inst.Rd)
	b := e.regs.Read(inst.Rs)
	switch inst.Op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	}
	return false
}

// jumpTarget folds the 26 bit target into the upper bits of the
// current instruction's address.
func (e *Emulator) jumpTarget(target uint32) uint32 {
	return (e.pc & 0xF0000000) | (target << 2)
}

func aluOpFor(op insts.Op) AluOp {
	switch op {
	case insts.OpADD:
		return AluAdd
	case insts.OpSUB:
		return AluSub
	case insts.OpAND:
		return AluAnd
	case insts.OpOR:
		return AluOr
	case insts.OpXOR:
		return AluXor
	case insts.OpSLT:
		return AluSlt
	case insts.OpSLTU:
		return AluSltu
	case insts.OpSHL:
		return AluShl
	case insts.OpSHR:
		return AluShr
	case insts.OpSAR:
		return AluSar
	}
	return AluOp(0xFF)
}

// DumpState writes the program counter and all registers to w.
func (e *Emulator) DumpState(w io.Writer) {
	fmt.Fprintf(w, "pc = 0x%08X  steps = %d  halted = %v\n",
		e.pc, e.steps, e.halted)
	for i := 0; i < NumRegs; i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(w, "r%-2d = 0x%08X  ", j, e.regs.Read(uint8(j)))
		}
		fmt.Fprintln(w)
	}
}
