// Package insts provides Nova32 instruction definitions and decoding.
//
// Nova32 instructions are 32-bit words with the opcode in bits [31:26].
// The remaining 26 bits are reinterpreted per opcode class:
//   - Register format: rd(5) | rs(5) | rt(5) | unused(11)
//   - Immediate format: rd(5) | rs(5) | imm16(16)
//   - Jump format: target(26)
//
// The rt field and the low 16 immediate bits overlap in the encoding; a
// decoded Instruction carries only the fields its format defines.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x4022FFFF) // ADDI r1, r2, -1
//	fmt.Println(insts.Disassemble(inst))
package insts

import "fmt"

// Op is a Nova32 opcode, the raw 6-bit value from bits [31:26].
type Op uint8

// Nova32 opcodes.
const (
	// Register-format ALU operations.
	OpADD  Op = 0x00 // rd = rs + rt
	OpSUB  Op = 0x01 // rd = rs - rt
	OpAND  Op = 0x02 // rd = rs & rt
	OpOR   Op = 0x03 // rd = rs | rt
	OpXOR  Op = 0x04 // rd = rs ^ rt
	OpSLT  Op = 0x05 // rd = (rs < rt) ? 1 : 0, signed
	OpSLTU Op = 0x06 // rd = (rs < rt) ? 1 : 0, unsigned
	OpSHL  Op = 0x07 // rd = rs << (rt & 31)
	OpSHR  Op = 0x08 // rd = rs >> (rt & 31), logical
	OpSAR  Op = 0x09 // rd = rs >> (rt & 31), arithmetic

	// Immediate-format ALU operations.
	OpADDI  Op = 0x10 // rd = rs + signext(imm16)
	OpANDI  Op = 0x11 // rd = rs & zeroext(imm16)
	OpORI   Op = 0x12 // rd = rs | zeroext(imm16)
	OpXORI  Op = 0x13 // rd = rs ^ zeroext(imm16)
	OpSLTI  Op = 0x14 // rd = (rs < signext(imm16)) ? 1 : 0, signed
	OpSLTIU Op = 0x15 // rd = (rs < zeroext(imm16)) ? 1 : 0, unsigned
	OpLUI   Op = 0x16 // rd = imm16 << 16

	// Loads and stores. Effective address is rs + signext(imm16).
	OpLW Op = 0x18 // rd = mem32[addr]
	OpSW Op = 0x19 // mem32[addr] = rd
	OpLB Op = 0x1A // rd = signext(mem8[addr])
	OpSB Op = 0x1B // mem8[addr] = rd & 0xFF

	// Branches. Compare rd with rs; taken target is pc+4+(signext(imm16)<<2).
	OpBEQ Op = 0x20
	OpBNE Op = 0x21
	OpBLT Op = 0x22 // signed
	OpBGE Op = 0x23 // signed

	// Jumps and calls.
	OpJ    Op = 0x28 // pc = (pc & 0xF0000000) | (target << 2)
	OpJAL  Op = 0x29 // r31 = pc + 4, then as J
	OpJR   Op = 0x2A // pc = rs
	OpJALR Op = 0x2B // rd = pc + 4, pc = rs

	// OpSYS is the reserved trap opcode. The ABI assigns the call number
	// to r2 and arguments to r4-r7, but no executable semantics exist in
	// this model; the engine treats it as a no-op extension point.
	OpSYS Op = 0x30

	// System and misc operations.
	OpNOP  Op = 0x3E
	OpHALT Op = 0x3F
)

// Format identifies how the low 26 bits of an instruction word are laid out.
type Format uint8

// Instruction formats.
const (
	FormatUnknown   Format = iota
	FormatRegister         // rd, rs, rt
	FormatImmediate        // rd, rs, imm16
	FormatJump             // target
)

// Instruction is a decoded Nova32 instruction. It is immutable once
// decoded and is not retained past the step that executes it. Only the
// fields belonging to Format are populated; in particular Rt and Imm16
// are never both set, since they overlap in the encoding.
type Instruction struct {
	Op     Op
	Format Format

	Rd uint8 // destination register, 0-31
	Rs uint8 // first source register, 0-31
	Rt uint8 // second source register (register format only)

	Imm16  uint16 // immediate (immediate format only)
	Target uint32 // 26-bit jump target (jump format only)
}

// FormatOf classifies an opcode. Opcodes with no recognized meaning map
// to FormatUnknown; the engine executes those as no-ops.
func FormatOf(op Op) Format {
	switch op {
	case OpADD, OpSUB, OpAND, OpOR, OpXOR, OpSLT, OpSLTU, OpSHL, OpSHR,
		OpSAR, OpJR, OpJALR:
		return FormatRegister
	case OpADDI, OpANDI, OpORI, OpXORI, OpSLTI, OpSLTIU, OpLUI,
		OpLW, OpSW, OpLB, OpSB,
		OpBEQ, OpBNE, OpBLT, OpBGE:
		return FormatImmediate
	case OpJ, OpJAL:
		return FormatJump
	case OpSYS, OpNOP, OpHALT:
		return FormatRegister
	default:
		return FormatUnknown
	}
}

var opNames = map[Op]string{
	OpADD: "ADD", OpSUB: "SUB", OpAND: "AND", OpOR: "OR", OpXOR: "XOR",
	OpSLT: "SLT", OpSLTU: "SLTU", OpSHL: "SHL", OpSHR: "SHR", OpSAR: "SAR",
	OpADDI: "ADDI", OpANDI: "ANDI", OpORI: "ORI", OpXORI: "XORI",
	OpSLTI: "SLTI", OpSLTIU: "SLTIU", OpLUI: "LUI",
	OpLW: "LW", OpSW: "SW", OpLB: "LB", OpSB: "SB",
	OpBEQ: "BEQ", OpBNE: "BNE", OpBLT: "BLT", OpBGE: "BGE",
	OpJ: "J", OpJAL: "JAL", OpJR: "JR", OpJALR: "JALR",
	OpSYS: "SYS", OpNOP: "NOP", OpHALT: "HALT",
}

// OpString returns the mnemonic for an opcode, or "UNKNOWN".
func OpString(op Op) string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

// SignExtend16 widens a 16-bit immediate to 32 bits, replicating the sign
// bit into the upper half.
func SignExtend16(imm uint16) uint32 {
	return uint32(int32(int16(imm)))
}

// Disassemble renders a decoded instruction as a one-line string. It is
// used by the host's verbose trace and by test failure output.
func Disassemble(inst *Instruction) string {
	name := OpString(inst.Op)
	switch inst.Op {
	case OpNOP, OpHALT, OpSYS:
		return name
	case OpJ, OpJAL:
		return fmt.Sprintf("%s 0x%07X", name, inst.Target<<2)
	case OpJR:
		return fmt.Sprintf("%s r%d", name, inst.Rs)
	case OpJALR:
		return fmt.Sprintf("%s r%d, r%d", name, inst.Rd, inst.Rs)
	case OpLUI:
		return fmt.Sprintf("%s r%d, 0x%04X", name, inst.Rd, inst.Imm16)
	case OpLW, OpSW, OpLB, OpSB:
		return fmt.Sprintf("%s r%d, %d(r%d)", name, inst.Rd, int16(inst.Imm16), inst.Rs)
	case OpBEQ, OpBNE, OpBLT, OpBGE:
		return fmt.Sprintf("%s r%d, r%d, %d", name, inst.Rd, inst.Rs, int16(inst.Imm16))
	}
	switch inst.Format {
	case FormatRegister:
		return fmt.Sprintf("%s r%d, r%d, r%d", name, inst.Rd, inst.Rs, inst.Rt)
	case FormatImmediate:
		return fmt.Sprintf("%s r%d, r%d, %d", name, inst.Rd, inst.Rs, int16(inst.Imm16))
	}
	return name
}
