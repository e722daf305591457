package insts

// Field positions within a Nova32 instruction word.
const (
	opcodeShift = 26
	rdShift     = 21
	rsShift     = 16
	rtShift     = 11

	regMask    = 0x1F
	imm16Mask  = 0xFFFF
	targetMask = 0x03FFFFFF
)

// Decoder decodes Nova32 machine words into instructions. Decoding is
// total: every 32-bit word maps to some Instruction, with unrecognized
// opcodes yielding FormatUnknown. The decoder holds no state.
type Decoder struct{}

// NewDecoder creates a new Nova32 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a single 32-bit instruction word. Register indices come
// from 5-bit fields, so they are in range 0-31 by construction. Only the
// fields belonging to the opcode's format are populated: the rt field and
// the 16-bit immediate occupy overlapping bits and are never both read
// from the same word.
func (d *Decoder) Decode(word uint32) *Instruction {
	op := Op((word >> opcodeShift) & 0x3F)
	inst := &Instruction{
		Op:     op,
		Format: FormatOf(op),
	}

	switch inst.Format {
	case FormatRegister:
		inst.Rd = uint8((word >> rdShift) & regMask)
		inst.Rs = uint8((word >> rsShift) & regMask)
		inst.Rt = uint8((word >> rtShift) & regMask)
	case FormatImmediate:
		inst.Rd = uint8((word >> rdShift) & regMask)
		inst.Rs = uint8((word >> rsShift) & regMask)
		inst.Imm16 = uint16(word & imm16Mask)
	case FormatJump:
		inst.Target = word & targetMask
	}

	return inst
}

// Encode produces the instruction word for a decoded instruction. It is
// the inverse of Decode for well-formed instructions and is shared by the
// assembler and by tests that build programs programmatically.
func Encode(inst *Instruction) uint32 {
	word := uint32(inst.Op&0x3F) << opcodeShift
	switch inst.Format {
	case FormatRegister:
		word |= uint32(inst.Rd&regMask) << rdShift
		word |= uint32(inst.Rs&regMask) << rsShift
		word |= uint32(inst.Rt&regMask) << rtShift
	case FormatImmediate:
		word |= uint32(inst.Rd&regMask) << rdShift
		word |= uint32(inst.Rs&regMask) << rsShift
		word |= uint32(inst.Imm16)
	case FormatJump:
		word |= inst.Target & targetMask
	}
	return word
}
