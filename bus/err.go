package bus

import (
	"errors"
	"fmt"
)

// Bus access error kinds. All three are fatal to the current run: the
// engine reports them to the host and makes no attempt at partial
// recovery mid-instruction.
var (
	// ErrUnmapped marks an access to an address outside every configured
	// region.
	ErrUnmapped = errors.New("unmapped address")

	// ErrMisaligned marks a 32-bit access at an address that is not a
	// multiple of four.
	ErrMisaligned = errors.New("misaligned access")

	// ErrReadOnly marks a store to program storage or to a read-only
	// device register.
	ErrReadOnly = errors.New("store to read-only location")
)

func unmappedErr(addr uint32) error {
	return fmt.Errorf("%w: 0x%08X", ErrUnmapped, addr)
}

func misalignedErr(addr uint32) error {
	return fmt.Errorf("%w: 0x%08X", ErrMisaligned, addr)
}

func readOnlyErr(addr uint32) error {
	return fmt.Errorf("%w: 0x%08X", ErrReadOnly, addr)
}
