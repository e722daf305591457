package bus

import "encoding/binary"

// storage is a flat little-endian byte array backing the ROM and RAM
// regions. Offsets are region-relative; range checks happen in the bus
// routing, which only passes in-region offsets down.
type storage struct {
	data []byte
}

func newStorage(size uint32) *storage {
	return &storage{data: make([]byte, size)}
}

func (s *storage) read8(off uint32) byte {
	return s.data[off]
}

func (s *storage) write8(off uint32, v byte) {
	s.data[off] = v
}

func (s *storage) read32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(s.data[off : off+4])
}

func (s *storage) write32(off uint32, v uint32) {
	binary.LittleEndian.PutUint32(s.data[off:off+4], v)
}
