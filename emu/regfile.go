package emu

// NumRegs is the number of general purpose registers.
const NumRegs = 32

// LinkReg receives the return address from jump-and-link instructions.
const LinkReg = 31

// RegFile holds the general purpose registers. Register 0 reads as zero
// and ignores writes.
type RegFile struct {
	regs [NumRegs]uint32
}

// NewRegFile creates a register file with all registers cleared.
func NewRegFile() *RegFile {
	return &RegFile{}
}

// Read returns the value of register n. Indices are masked to the
// register count, so out of range values alias onto valid registers.
func (r *RegFile) Read(n uint8) uint32 {
	n &= NumRegs - 1
	if n == 0 {
		return 0
	}
	return r.regs[n]
}

// Write sets register n to v. Writes to register 0 are discarded.
func (r *RegFile) Write(n uint8, v uint32) {
	n &= NumRegs - 1
	if n == 0 {
		return
	}
	r.regs[n] = v
}

// Reset clears every register to zero.
func (r *RegFile) Reset() {
	r.regs = [NumRegs]uint32{}
}
