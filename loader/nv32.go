// Package loader reads and writes NV32 program images and places
// their sections into machine memory.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/novasim/nova32/bus"
)

// Magic identifies an NV32 image file.
const Magic = "NV32"

// Version is the image format version this package understands.
const Version = 1

// Section kinds.
const (
	// KindProgbits marks a section whose payload words follow the
	// header.
	KindProgbits = 0

	// KindBss marks a zero initialized section with no payload.
	KindBss = 1
)

// headerLen is the size of the fixed file header in bytes.
const headerLen = 8

// sectionHeaderLen is the size of one section header in bytes.
const sectionHeaderLen = 16

var (
	ErrBadMagic   = errors.New("not an NV32 image")
	ErrBadVersion = errors.New("unsupported image version")
	ErrBadKind    = errors.New("unknown section kind")
)

// Section is one loadable region of an image. Progbits sections carry
// their payload in Words; bss sections carry only a size.
type Section struct {
	Kind     uint8
	Base     uint32
	Words    []uint32
	BssWords uint32
}

// SizeWords returns the section size in words.
func (s *Section) SizeWords() uint32 {
	if s.Kind == KindBss {
		return s.BssWords
	}
	return uint32(len(s.Words))
}

// Program is a parsed NV32 image.
type Program struct {
	Sections []Section
}

// Read parses an NV32 image from r.
func Read(r io.Reader) (*Program, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if string(header[0:4]) != Magic {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint16(header[4:6])
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	count := binary.LittleEndian.Uint16(header[6:8])

	prog := &Program{}
	for i := 0; i < int(count); i++ {
		sec, err := readSection(r)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		prog.Sections = append(prog.Sections, *sec)
	}
	return prog, nil
}

func readSection(r io.Reader) (*Section, error) {
	var header [sectionHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading section header: %w", err)
	}
	kind := header[0]
	base := binary.LittleEndian.Uint32(header[4:8])
	sizeWords := binary.LittleEndian.Uint32(header[8:12])

	sec := &Section{Kind: kind, Base: base}
	switch kind {
	case KindProgbits:
		payload := make([]byte, int(sizeWords)*4)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading section payload: %w", err)
		}
		sec.Words = make([]uint32, sizeWords)
		for i := range sec.Words {
			sec.Words[i] = binary.LittleEndian.Uint32(payload[i*4:])
		}
	case KindBss:
		sec.BssWords = sizeWords
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadKind, kind)
	}
	return sec, nil
}

// Load parses the NV32 image at path.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write serializes the program as an NV32 image to w.
func Write(w io.Writer, prog *Program) error {
	var header [headerLen]byte
	copy(header[0:4], Magic)
	binary.LittleEndian.PutUint16(header[4:6], Version)
	binary.LittleEndian.PutUint16(header[6:8], uint16(len(prog.Sections)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	for i := range prog.Sections {
		if err := writeSection(w, &prog.Sections[i]); err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
	}
	return nil
}

func writeSection(w io.Writer, sec *Section) error {
	if sec.Kind != KindProgbits && sec.Kind != KindBss {
		return fmt.Errorf("%w: %d", ErrBadKind, sec.Kind)
	}

	var header [sectionHeaderLen]byte
	header[0] = sec.Kind
	binary.LittleEndian.PutUint32(header[4:8], sec.Base)
	binary.LittleEndian.PutUint32(header[8:12], sec.SizeWords())
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	if sec.Kind == KindBss {
		return nil
	}
	payload := make([]byte, len(sec.Words)*4)
	for i, word := range sec.Words {
		binary.LittleEndian.PutUint32(payload[i*4:], word)
	}
	_, err := w.Write(payload)
	return err
}

// Install copies the program's sections into machine memory, logging
// one line per section to logw.
func (p *Program) Install(b *bus.SystemBus, logw io.Writer) error {
	for i := range p.Sections {
		sec := &p.Sections[i]
		switch sec.Kind {
		case KindProgbits:
			fmt.Fprintf(logw,
				"Loading section at 0x%08X, size %d words\n",
				sec.Base, sec.SizeWords())
			for j, word := range sec.Words {
				addr := sec.Base + uint32(j)*4
				if err := b.LoadWord(addr, word); err != nil {
					return fmt.Errorf(
						"loading word at 0x%08X: %w", addr, err)
				}
			}
		case KindBss:
			fmt.Fprintf(logw,
				"Zero-initializing section at 0x%08X, size %d words\n",
				sec.Base, sec.SizeWords())
			for j := uint32(0); j < sec.BssWords; j++ {
				addr := sec.Base + j*4
				if err := b.LoadWord(addr, 0); err != nil {
					return fmt.Errorf(
						"zeroing word at 0x%08X: %w", addr, err)
				}
			}
		}
	}
	return nil
}
