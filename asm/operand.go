package asm

import (
	"fmt"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

func parseReg(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != 'r' && s[0] != 'R') {
		return 0, fmt.Errorf("%w: %q", ErrBadRegister, s)
	}
	n, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil || n >= 32 {
		return 0, fmt.Errorf("%w: %q", ErrBadRegister, s)
	}
	return uint8(n), nil
}

// parseWord evaluates a 32 bit operand for directives such as .org and
// .bss. Equate names, numeric literals and $(...) expressions are all
// accepted.
func (a *Assembler) parseWord(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if val, ok := a.equates[s]; ok {
		return val, nil
	}
	if expr, ok := exprBody(s); ok {
		return a.evalExpr(expr)
	}
	if ch, ok := charLiteral(s); ok {
		return uint32(ch), nil
	}
	if val, err := parseUint32(s); err == nil {
		return val, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadImmediate, s)
}

// parseImm turns an immediate operand into a pending imm. Names that
// resolve to neither a literal, an equate, nor an expression are
// treated as label references for the second pass.
func (a *Assembler) parseImm(s string) (imm, error) {
	s = strings.TrimSpace(s)

	if ch, ok := charLiteral(s); ok {
		return imm{kind: immValue, value: int16(ch)}, nil
	}
	if expr, ok := exprBody(s); ok {
		val, err := a.evalExpr(expr)
		if err != nil {
			return imm{}, err
		}
		return toImm16(s, val)
	}
	if val, ok := a.equates[s]; ok {
		return toImm16(s, val)
	}
	if val, err := parseInt16(s); err == nil {
		return imm{kind: immValue, value: val}, nil
	}
	if isNumeric(s) {
		return imm{}, fmt.Errorf("%w: %q out of 16-bit range",
			ErrBadImmediate, s)
	}
	return imm{kind: immLabel, name: s}, nil
}

// resolveWord evaluates an operand to a full 32 bit value, looking up
// labels as well. Used by the li and la expansions.
func (a *Assembler) resolveOperandValue(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if ch, ok := charLiteral(s); ok {
		return uint32(ch), true
	}
	if expr, ok := exprBody(s); ok {
		if val, err := a.evalExpr(expr); err == nil {
			return val, true
		}
		return 0, false
	}
	if val, ok := a.equates[s]; ok {
		return val, true
	}
	if val, err := parseUint32(s); err == nil {
		return val, true
	}
	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return uint32(val), true
	}
	return 0, false
}

// toImm16 checks that a 32 bit value fits a 16 bit field. Values in
// the 0x8000..0xFFFF range pass through as their raw bit pattern.
func toImm16(src string, val uint32) (imm, error) {
	if val > 0xFFFF && val < 0xFFFF8000 {
		return imm{}, fmt.Errorf("%w: %q value 0x%X does not fit 16 bits",
			ErrBadImmediate, src, val)
	}
	return imm{kind: immValue, value: int16(uint16(val))}, nil
}

// parseInt16 accepts signed decimal and hex literals. A bare hex
// literal is a raw 16 bit pattern, so 0xFFFF means -1.
func parseInt16(s string) (int16, error) {
	neg := false
	body := s
	if strings.HasPrefix(body, "-") {
		neg = true
		body = body[1:]
	}
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		val, err := strconv.ParseUint(body[2:], 16, 32)
		if err != nil || val > 0xFFFF {
			return 0, fmt.Errorf("%w: %q", ErrBadImmediate, s)
		}
		v := int32(uint16(val))
		if neg {
			v = -v
		}
		if v < -0x8000 || v > 0x7FFF {
			return 0, fmt.Errorf("%w: %q", ErrBadImmediate, s)
		}
		if neg {
			return int16(v), nil
		}
		return int16(uint16(val)), nil
	}
	val, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadImmediate, s)
	}
	return int16(val), nil
}

func parseUint32(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		val, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(val), err
	}
	val, err := strconv.ParseUint(s, 10, 32)
	return uint32(val), err
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	if _, err := parseUint32(s); err == nil {
		return true
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func charLiteral(s string) (byte, bool) {
	if len(s) == 3 && s[0] == '\'' && s[2] == '\'' {
		return s[1], true
	}
	return 0, false
}

// exprBody strips the $( ... ) wrapper from a compile time
// expression.
func exprBody(s string) (string, bool) {
	if strings.HasPrefix(s, "$(") && strings.HasSuffix(s, ")") {
		return s[2 : len(s)-1], true
	}
	return "", false
}

// evalExpr evaluates a compile time expression with all equates
// predeclared as integers.
func (a *Assembler) evalExpr(expr string) (uint32, error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for name, val := range a.equates {
		pred[name] = starlark.MakeInt64(int64(val))
	}
	globals, err := starlark.ExecFileOptions(
		&opts, &thread, "expr", "rc="+expr+"\n", pred)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadImmediate, expr, err)
	}
	rc, ok := globals["rc"].(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrBadImmediate, expr)
	}
	val, ok := rc.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadImmediate, expr)
	}
	return uint32(val), nil
}

// parseQuoted parses a double quoted string operand with the usual
// backslash escapes.
func parseQuoted(rest string) ([]byte, error) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return nil, fmt.Errorf("%w: expected quoted string", ErrBadDirective)
	}
	inner := rest[1 : len(rest)-1]

	var bytes []byte
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' {
			bytes = append(bytes, c)
			continue
		}
		i++
		if i >= len(inner) {
			return nil, fmt.Errorf("%w: dangling backslash", ErrBadDirective)
		}
		switch inner[i] {
		case 'n':
			bytes = append(bytes, '\n')
		case 't':
			bytes = append(bytes, '\t')
		case 'r':
			bytes = append(bytes, '\r')
		case '\\':
			bytes = append(bytes, '\\')
		case '"':
			bytes = append(bytes, '"')
		case '0':
			bytes = append(bytes, 0)
		default:
			return nil, fmt.Errorf("%w: unknown escape \\%c",
				ErrBadDirective, inner[i])
		}
	}
	return bytes, nil
}
