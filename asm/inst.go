package asm

import (
	"fmt"
	"strings"

	"github.com/novasim/nova32/insts"
)

var aluOps = map[string]insts.Op{
	"add":  insts.OpADD,
	"sub":  insts.OpSUB,
	"and":  insts.OpAND,
	"or":   insts.OpOR,
	"xor":  insts.OpXOR,
	"slt":  insts.OpSLT,
	"sltu": insts.OpSLTU,
	"shl":  insts.OpSHL,
	"shr":  insts.OpSHR,
	"sar":  insts.OpSAR,
}

var aluImmOps = map[string]insts.Op{
	"addi":  insts.OpADDI,
	"andi":  insts.OpANDI,
	"ori":   insts.OpORI,
	"xori":  insts.OpXORI,
	"slti":  insts.OpSLTI,
	"sltiu": insts.OpSLTIU,
}

var loadStoreOps = map[string]insts.Op{
	"lw": insts.OpLW,
	"sw": insts.OpSW,
	"lb": insts.OpLB,
	"sb": insts.OpSB,
}

var branchOps = map[string]insts.Op{
	"beq": insts.OpBEQ,
	"bne": insts.OpBNE,
	"blt": insts.OpBLT,
	"bge": insts.OpBGE,
}

func (a *Assembler) instruction(stmt string, lineNo int) error {
	mnemonic, rest := splitMnemonic(stmt)

	if op, ok := aluOps[mnemonic]; ok {
		return a.parseAlu(op, rest, lineNo)
	}
	if op, ok := aluImmOps[mnemonic]; ok {
		return a.parseAluImm(op, rest, lineNo)
	}
	if op, ok := loadStoreOps[mnemonic]; ok {
		return a.parseLoadStore(op, rest, lineNo)
	}
	if op, ok := branchOps[mnemonic]; ok {
		return a.parseBranch(op, rest, lineNo)
	}

	switch mnemonic {
	case "lui":
		args, err := splitArgs(rest, 2)
		if err != nil {
			return err
		}
		rd, err := parseReg(args[0])
		if err != nil {
			return err
		}
		iv, err := a.parseImm(args[1])
		if err != nil {
			return err
		}
		a.emit(pending{lineNo: lineNo, op: insts.OpLUI, rd: rd, imm: iv})
		return nil

	case "j", "jal":
		args, err := splitArgs(rest, 1)
		if err != nil {
			return err
		}
		op := insts.OpJ
		if mnemonic == "jal" {
			op = insts.OpJAL
		}
		a.emit(pending{lineNo: lineNo, op: op, label: args[0]})
		return nil

	case "jr":
		args, err := splitArgs(rest, 1)
		if err != nil {
			return err
		}
		rs, err := parseReg(args[0])
		if err != nil {
			return err
		}
		a.emit(pending{lineNo: lineNo, op: insts.OpJR, rs: rs})
		return nil

	case "jalr":
		args, err := splitArgs(rest, 2)
		if err != nil {
			return err
		}
		rd, err := parseReg(args[0])
		if err != nil {
			return err
		}
		rs, err := parseReg(args[1])
		if err != nil {
			return err
		}
		a.emit(pending{lineNo: lineNo, op: insts.OpJALR, rd: rd, rs: rs})
		return nil

	case "move", "mv":
		args, err := splitArgs(rest, 2)
		if err != nil {
			return err
		}
		rd, err := parseReg(args[0])
		if err != nil {
			return err
		}
		rs, err := parseReg(args[1])
		if err != nil {
			return err
		}
		a.emit(pending{lineNo: lineNo, op: insts.OpADDI, rd: rd, rs: rs})
		return nil

	case "li":
		return a.parseLoadImm(rest, lineNo, false)
	case "la":
		return a.parseLoadImm(rest, lineNo, true)

	case "sys":
		a.emit(pending{lineNo: lineNo, op: insts.OpSYS})
		return nil
	case "nop":
		a.emit(pending{lineNo: lineNo, op: insts.OpNOP})
		return nil
	case "halt":
		a.emit(pending{lineNo: lineNo, op: insts.OpHALT})
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownMnemonic, mnemonic)
}

// parseAlu handles register ALU operations in both the three operand
// form "op rd, rs, rt" and the two operand form "op rd, rs", which
// assembles as rd = rd OP rs.
func (a *Assembler) parseAlu(op insts.Op, rest string, lineNo int) error {
	args, err := splitArgsRange(rest, 2, 3)
	if err != nil {
		return err
	}
	rd, err := parseReg(args[0])
	if err != nil {
		return err
	}
	rs, err := parseReg(args[1])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		a.emit(pending{lineNo: lineNo, op: op, rd: rd, rs: rd, rt: rs})
		return nil
	}
	rt, err := parseReg(args[2])
	if err != nil {
		return err
	}
	a.emit(pending{lineNo: lineNo, op: op, rd: rd, rs: rs, rt: rt})
	return nil
}

func (a *Assembler) parseAluImm(op insts.Op, rest string, lineNo int) error {
	args, err := splitArgs(rest, 3)
	if err != nil {
		return err
	}
	rd, err := parseReg(args[0])
	if err != nil {
		return err
	}
	rs, err := parseReg(args[1])
	if err != nil {
		return err
	}
	iv, err := a.parseImm(args[2])
	if err != nil {
		return err
	}
	a.emit(pending{lineNo: lineNo, op: op, rd: rd, rs: rs, imm: iv})
	return nil
}

// parseLoadStore handles the "op rd, imm(rs)" addressing form. The
// displacement may be empty, a literal, an equate or an expression.
func (a *Assembler) parseLoadStore(op insts.Op, rest string, lineNo int) error {
	args, err := splitArgs(rest, 2)
	if err != nil {
		return err
	}
	rd, err := parseReg(args[0])
	if err != nil {
		return err
	}

	addr := strings.TrimSpace(args[1])
	open := strings.LastIndex(addr, "(")
	if open < 0 || !strings.HasSuffix(addr, ")") {
		return fmt.Errorf("%w: want imm(base), got %q", ErrBadOperands, addr)
	}
	base, err := parseReg(addr[open+1 : len(addr)-1])
	if err != nil {
		return err
	}
	iv := imm{}
	if disp := strings.TrimSpace(addr[:open]); disp != "" {
		iv, err = a.parseImm(disp)
		if err != nil {
			return err
		}
	}
	a.emit(pending{lineNo: lineNo, op: op, rd: rd, rs: base, imm: iv})
	return nil
}

func (a *Assembler) parseBranch(op insts.Op, rest string, lineNo int) error {
	args, err := splitArgs(rest, 3)
	if err != nil {
		return err
	}
	rd, err := parseReg(args[0])
	if err != nil {
		return err
	}
	rs, err := parseReg(args[1])
	if err != nil {
		return err
	}
	a.emit(pending{lineNo: lineNo, op: op, rd: rd, rs: rs, label: args[2]})
	return nil
}

// parseLoadImm handles the li and la pseudo instructions. Values that
// fit a signed 16 bit immediate become a single addi; everything else
// expands to lui plus ori. The la form always expands, and defers
// unresolved labels to the second pass.
func (a *Assembler) parseLoadImm(rest string, lineNo int, loadAddr bool) error {
	args, err := splitArgs(rest, 2)
	if err != nil {
		return err
	}
	rd, err := parseReg(args[0])
	if err != nil {
		return err
	}

	operand := strings.TrimSpace(args[1])
	if val, ok := a.resolveOperandValue(operand); ok {
		if !loadAddr && fitsInt16(val) {
			a.emit(pending{
				lineNo: lineNo, op: insts.OpADDI, rd: rd,
				imm: imm{kind: immValue, value: int16(uint16(val))},
			})
			return nil
		}
		a.emit(pending{
			lineNo: lineNo, op: insts.OpLUI, rd: rd,
			imm: imm{kind: immValue, value: int16(uint16(val >> 16))},
		})
		a.emit(pending{
			lineNo: lineNo, op: insts.OpORI, rd: rd, rs: rd,
			imm: imm{kind: immValue, value: int16(uint16(val))},
		})
		return nil
	}

	if isNumeric(operand) {
		return fmt.Errorf("%w: %q", ErrBadImmediate, operand)
	}

	// Unresolved label, split across lui and ori in the second pass.
	a.emit(pending{
		lineNo: lineNo, op: insts.OpLUI, rd: rd,
		imm: imm{kind: immLabelHi, name: operand},
	})
	a.emit(pending{
		lineNo: lineNo, op: insts.OpORI, rd: rd, rs: rd,
		imm: imm{kind: immLabelLo, name: operand},
	})
	return nil
}

// fitsInt16 reports whether v, read as a signed 32 bit value, can be
// reproduced by sign extending a 16 bit immediate.
func fitsInt16(v uint32) bool {
	return int32(v) >= -0x8000 && int32(v) <= 0x7FFF
}

func splitArgsRange(rest string, min, max int) ([]string, error) {
	var args []string
	for _, part := range splitTopLevel(rest) {
		arg := strings.TrimSpace(part)
		if arg != "" {
			args = append(args, arg)
		}
	}
	if len(args) < min || len(args) > max {
		return nil, fmt.Errorf("%w: want %d to %d operands, got %d in %q",
			ErrBadOperands, min, max, len(args), rest)
	}
	return args, nil
}

// encode resolves labels and produces the final instruction word.
func (a *Assembler) encode(p *pending) (uint32, error) {
	inst := insts.Instruction{
		Op:     p.op,
		Format: insts.FormatOf(p.op),
		Rd:     p.rd,
		Rs:     p.rs,
		Rt:     p.rt,
	}

	switch inst.Format {
	case insts.FormatJump:
		addr, err := a.labelAddr(p.label)
		if err != nil {
			return 0, err
		}
		inst.Target = (addr >> 2) & 0x03FFFFFF

	case insts.FormatImmediate:
		if p.label != "" {
			disp, err := a.branchDisp(p.label, p.addr)
			if err != nil {
				return 0, err
			}
			inst.Imm16 = uint16(disp)
			break
		}
		v, err := a.resolveImm(p.imm)
		if err != nil {
			return 0, err
		}
		inst.Imm16 = uint16(v)
	}

	return insts.Encode(&inst), nil
}

func (a *Assembler) resolveImm(iv imm) (int16, error) {
	switch iv.kind {
	case immValue:
		return iv.value, nil
	case immLabel:
		addr, err := a.labelAddr(iv.name)
		if err != nil {
			return 0, err
		}
		if addr > 0x7FFF {
			return 0, fmt.Errorf(
				"%w: label %q address 0x%08X does not fit 16 bits",
				ErrBadImmediate, iv.name, addr)
		}
		return int16(addr), nil
	case immLabelHi:
		addr, err := a.labelAddr(iv.name)
		if err != nil {
			return 0, err
		}
		return int16(uint16(addr >> 16)), nil
	case immLabelLo:
		addr, err := a.labelAddr(iv.name)
		if err != nil {
			return 0, err
		}
		return int16(uint16(addr)), nil
	}
	return 0, fmt.Errorf("%w: unresolved immediate", ErrBadImmediate)
}

func (a *Assembler) labelAddr(name string) (uint32, error) {
	if addr, ok := a.labels[name]; ok {
		return addr, nil
	}
	if val, ok := a.equates[name]; ok {
		return val, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownLabel, name)
}

// branchDisp computes the word displacement from the instruction after
// the branch to the target label.
func (a *Assembler) branchDisp(label string, pc uint32) (int16, error) {
	target, err := a.labelAddr(label)
	if err != nil {
		return 0, err
	}
	diff := (int64(target) - int64(pc+4)) / 4
	if diff < -0x8000 || diff > 0x7FFF {
		return 0, fmt.Errorf("%w: branch target %q out of range",
			ErrBadImmediate, label)
	}
	return int16(diff), nil
}
