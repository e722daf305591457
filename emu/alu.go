package emu

// AluOp selects the operation performed by Compute.
type AluOp uint8

const (
	AluAdd AluOp = iota
	AluAddImm
	AluSub
	AluAnd
	AluOr
	AluXor
	AluSlt
	AluSltu
	AluShl
	AluShr
	AluSar
)

// UndefinedResult is returned by Compute for selectors it does not
// recognize, making stray selector values easy to spot in traces.
const UndefinedResult = 0xDEADBEEF

// shiftMask limits shift amounts to the low five bits of b.
const shiftMask = 31

// Compute applies the selected operation to a and b. Arithmetic wraps
// modulo 2^32 and comparisons produce 0 or 1.
func Compute(op AluOp, a, b uint32) uint32 {
	switch op {
	case AluAdd, AluAddImm:
		return a + b
	case AluSub:
		return a - b
	case AluAnd:
		return a & b
	case AluOr:
		return a | b
	case AluXor:
		return a ^ b
	case AluSlt:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case AluSltu:
		if a < b {
			return 1
		}
		return 0
	case AluShl:
		return a << (b & shiftMask)
	case AluShr:
		return a >> (b & shiftMask)
	case AluSar:
		return uint32(int32(a) >> (b & shiftMask))
	default:
		return UndefinedResult
	}
}
