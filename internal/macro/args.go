package macro

import (
	"fmt"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/token"
)

// RenderArg renders one macro-invocation argument token back into
// canonical source text, per spec §4.4: id -> id; reg -> r<n>; num ->
// 0x<hh>; str -> quoted-and-escaped; template field -> id.id.
func RenderArg(t token.Token) string {
	switch t.Kind {
	case token.ID:
		return t.Str
	case token.Reg:
		return fmt.Sprintf("r%d", t.Reg)
	case token.Num:
		return fmt.Sprintf("0x%02x", t.Num)
	case token.Str:
		return quoteString(t.Str)
	default:
		return t.String()
	}
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		default:
			sb.WriteByte(s[i])
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// ParseStackOperands parses the operand list of an mpop/mread line: each
// operand is exactly one token, either a bare name (the macro variable
// to assign) or a quoted string (the underflow error message, spec
// §4.4).
func ParseStackOperands(toks []token.Token) ([]Operand, error) {
	single, err := splitSingleOperands(toks)
	if err != nil {
		return nil, err
	}
	ops := make([]Operand, len(single))
	for i, t := range single {
		switch t.Kind {
		case token.ID:
			ops[i] = Operand{Name: t.Str}
		case token.Str:
			ops[i] = Operand{String: t.Str, IsStr: true}
		default:
			return nil, fmt.Errorf("expected a name or string literal operand, got %s", t)
		}
	}
	return ops, nil
}

// ParseUniqueOperands parses the operand list of a `unique` line: each
// operand is exactly one token, either a macro-variable name or a
// literal register (spec §4.4, §9).
func ParseUniqueOperands(toks []token.Token) ([]string, error) {
	single, err := splitSingleOperands(toks)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(single))
	for i, t := range single {
		switch t.Kind {
		case token.ID:
			out[i] = t.Str
		case token.Reg:
			out[i] = fmt.Sprintf("r%d", t.Reg)
		default:
			return nil, fmt.Errorf("expected a name or register operand, got %s", t)
		}
	}
	return out, nil
}

// splitSingleOperands splits toks on top-level commas and requires each
// resulting group to be exactly one token.
func splitSingleOperands(toks []token.Token) ([]token.Token, error) {
	var ops []token.Token
	sawAny := false
	pending := false
	for _, t := range toks {
		if t.Kind == token.End {
			continue
		}
		sawAny = true
		if t.Kind == token.Comma {
			if !pending {
				return nil, fmt.Errorf("empty operand in list")
			}
			pending = false
			continue
		}
		if pending {
			return nil, fmt.Errorf("expected a single name, register or string literal per operand")
		}
		ops = append(ops, t)
		pending = true
	}
	if sawAny && !pending {
		return nil, fmt.Errorf("trailing comma in operand list")
	}
	return ops, nil
}

// CommaSep splits a macro invocation's operand tokens (everything after
// the opcode) into canonical-text arguments at top-level commas,
// rendering each argument. A template-field reference ("id.id", lexed
// as ID, Dot, ID) is joined into one argument.
func CommaSep(toks []token.Token) ([]string, error) {
	var args []string
	var cur []string
	sawAny := false

	flush := func() {
		args = append(args, strings.Join(cur, ""))
		cur = nil
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Kind {
		case token.End:
			// terminator, not part of any argument.
		case token.Comma:
			sawAny = true
			flush()
		case token.Dot:
			sawAny = true
			cur = append(cur, ".")
		default:
			sawAny = true
			cur = append(cur, RenderArg(t))
		}
	}
	if sawAny {
		flush()
	}
	return args, nil
}
