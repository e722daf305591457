// Package asm implements a two pass assembler producing NV32 program
// images.
//
// The source language has one statement per line. A statement is an
// optional "label:" prefix followed by a directive or an instruction.
// Comments start with ';' or '#'. Immediate operands accept decimal
// and hex literals, character literals, equate names, and compile
// time expressions written as $(...).
package asm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/novasim/nova32/insts"
	"github.com/novasim/nova32/loader"
)

var (
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrUnknownLabel    = errors.New("unknown label")
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrBadDirective    = errors.New("malformed directive")
	ErrBadRegister     = errors.New("bad register")
	ErrBadImmediate    = errors.New("bad immediate")
	ErrBadOperands     = errors.New("bad operands")
)

// immKind tells the second pass how to resolve an immediate operand.
type immKind uint8

const (
	immValue immKind = iota
	immLabel
	immLabelHi
	immLabelLo
)

type imm struct {
	kind  immKind
	value int16
	name  string
}

// pending is one instruction awaiting label resolution.
type pending struct {
	lineNo int
	addr   uint32
	op     insts.Op
	rd     uint8
	rs     uint8
	rt     uint8
	imm    imm
	label  string
}

// Assembler translates source text into NV32 sections. The zero value
// is not usable; call New.
type Assembler struct {
	labels  map[string]uint32
	equates map[string]uint32

	pc    uint32
	insts []pending
	data  map[uint32]uint32
	bss   []loader.Section
}

// New creates an empty assembler.
func New() *Assembler {
	return &Assembler{
		labels:  map[string]uint32{},
		equates: map[string]uint32{},
		data:    map[uint32]uint32{},
	}
}

// Assemble translates source into a loadable program.
func Assemble(source string) (*loader.Program, error) {
	return New().Assemble(source)
}

// Assemble translates source into a loadable program.
func (a *Assembler) Assemble(source string) (*loader.Program, error) {
	for i, raw := range strings.Split(source, "\n") {
		if err := a.firstPass(raw, i+1); err != nil {
			return nil, err
		}
	}

	mem := map[uint32]uint32{}
	for addr, word := range a.data {
		mem[addr] = word
	}
	for i := range a.insts {
		p := &a.insts[i]
		word, err := a.encode(p)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", p.lineNo, err)
		}
		mem[p.addr] = word
	}

	prog := &loader.Program{Sections: a.groupSections(mem)}
	prog.Sections = append(prog.Sections, a.bss...)
	sort.SliceStable(prog.Sections, func(i, j int) bool {
		return prog.Sections[i].Base < prog.Sections[j].Base
	})
	return prog, nil
}

func (a *Assembler) firstPass(raw string, lineNo int) error {
	line := stripComment(raw)
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if idx := strings.Index(line, ":"); idx >= 0 {
		label := strings.TrimSpace(line[:idx])
		if label == "" {
			return fmt.Errorf("line %d: empty label", lineNo)
		}
		if _, ok := a.labels[label]; ok {
			return fmt.Errorf("line %d: %w: %s",
				lineNo, ErrDuplicateLabel, label)
		}
		a.labels[label] = a.pc
		line = line[idx+1:]
	}

	stmt := strings.TrimSpace(line)
	if stmt == "" {
		return nil
	}

	if strings.HasPrefix(stmt, ".") {
		if err := a.directive(stmt); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		return nil
	}

	if err := a.instruction(stmt, lineNo); err != nil {
		return fmt.Errorf("line %d: %w", lineNo, err)
	}
	return nil
}

func (a *Assembler) directive(stmt string) error {
	name, rest := splitMnemonic(stmt)
	switch name {
	case ".equ":
		pair := strings.SplitN(rest, ",", 2)
		if len(pair) != 2 {
			return fmt.Errorf("%w: .equ wants NAME, VALUE", ErrBadDirective)
		}
		val, err := a.parseWord(strings.TrimSpace(pair[1]))
		if err != nil {
			return err
		}
		a.equates[strings.TrimSpace(pair[0])] = val
		return nil

	case ".org":
		addr, err := a.parseWord(strings.TrimSpace(rest))
		if err != nil {
			return err
		}
		a.pc = addr
		return nil

	case ".bss":
		count, err := a.parseWord(strings.TrimSpace(rest))
		if err != nil {
			return err
		}
		a.bss = append(a.bss, loader.Section{
			Kind:     loader.KindBss,
			Base:     a.pc,
			BssWords: count,
		})
		a.pc += count * 4
		return nil

	case ".string":
		bytes, err := parseQuoted(rest)
		if err != nil {
			return err
		}
		a.emitBytes(append(bytes, 0))
		return nil

	case ".ascii":
		bytes, err := parseQuoted(rest)
		if err != nil {
			return err
		}
		a.emitBytes(bytes)
		return nil

	case ".text", ".data":
		// Section markers; layout is driven by .org alone.
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrBadDirective, name)
	}
}

// emitBytes packs bytes into little endian words at the current
// location, padding the final word with zeros.
func (a *Assembler) emitBytes(bytes []byte) {
	for i := 0; i < len(bytes); i += 4 {
		var word uint32
		for j := 0; j < 4 && i+j < len(bytes); j++ {
			word |= uint32(bytes[i+j]) << (8 * j)
		}
		a.data[a.pc] = word
		a.pc += 4
	}
}

func (a *Assembler) emit(p pending) {
	p.addr = a.pc
	a.insts = append(a.insts, p)
	a.pc += 4
}

// groupSections folds the sparse word map into contiguous progbits
// sections.
func (a *Assembler) groupSections(mem map[uint32]uint32) []loader.Section {
	addrs := make([]uint32, 0, len(mem))
	for addr := range mem {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var sections []loader.Section
	var cur *loader.Section
	var next uint32
	for _, addr := range addrs {
		if cur == nil || addr != next {
			sections = append(sections, loader.Section{
				Kind: loader.KindProgbits,
				Base: addr,
			})
			cur = &sections[len(sections)-1]
		}
		cur.Words = append(cur.Words, mem[addr])
		next = addr + 4
	}
	return sections
}

func stripComment(line string) string {
	var quote rune
	for i, c := range line {
		escaped := strings.HasSuffix(line[:i], "\\")
		switch {
		case quote != 0:
			if c == quote && !escaped {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';' || c == '#':
			return line[:i]
		}
	}
	return line
}

func splitMnemonic(stmt string) (string, string) {
	fields := strings.SplitN(stmt, " ", 2)
	name := strings.ToLower(strings.TrimSpace(fields[0]))
	if len(fields) == 1 {
		return name, ""
	}
	return name, strings.TrimSpace(fields[1])
}

func splitArgs(rest string, want int) ([]string, error) {
	var args []string
	for _, part := range splitTopLevel(rest) {
		arg := strings.TrimSpace(part)
		if arg != "" {
			args = append(args, arg)
		}
	}
	if len(args) != want {
		return nil, fmt.Errorf("%w: want %d operands, got %d in %q",
			ErrBadOperands, want, len(args), rest)
	}
	return args, nil
}

// splitTopLevel splits on commas that are not nested inside $( ... )
// expressions.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
