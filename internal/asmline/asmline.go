// Package asmline turns one tokenized source line into a directive or
// instruction node (spec §4.3), the largest single component of the
// assembler.
package asmline

import (
	"fmt"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/expr"
	"github.com/uh-mickwal/cdm8toolchain/internal/token"
)

// Kind identifies the parsed shape of one source line.
type Kind int

const (
	Empty Kind = iota
	Code
	MacroStart
	MacroEnd
	MacroInvoke
	Set
	Asect
	Rsect
	Tplate
	End
	Ext
)

// ExtFixup records that the byte at Offset within the node's bytes must
// be registered against external symbol Name once resolved.
type ExtFixup struct {
	Offset int
	Name   string
}

// Node is the parsed shape of one source line (spec §4.3).
type Node struct {
	Kind Kind

	Label      string // "name" from a "name:"/"name>" prefix, if any
	LabelEntry bool   // true if the prefix was "name>" (entry export)

	Size  int    // byte size of this line's emission
	Bytes []byte // pass-2 emitted bytes (placeholders on pass 1)

	// RelOffsets lists offsets within Bytes that hold a relocatable
	// address and must be registered into rel_list[section].
	RelOffsets []int

	// ExtFixups lists offsets within Bytes that reference an external
	// symbol and must be registered into exts[name].
	ExtFixups []ExtFixup

	// Directive payloads.
	SectionArg  int    // asect N
	SectionName string // rsect/tplate name

	SetName string // set name = expr

	MacroName  string
	MacroArity int
	MacroArgs  []token.Token // raw operand tokens of a macro invocation
}

// Parse parses one already-tokenized line (spec §4.3). passno is 1 or 2:
// on pass 1, expressions that cannot yet resolve are not an error;
// placeholder bytes are emitted and the real value is filled on pass 2.
func Parse(ctx *context.Context, toks []token.Token, passno int) (Node, error) {
	i := 0
	label, entry, extFlag, consumed := parseLabelPrefix(toks)
	i += consumed

	if toks[i].Kind == token.End || toks[i].Kind == token.Empty {
		if label == "" {
			return Node{Kind: Empty}, nil
		}
		return Node{Kind: Code, Label: label, LabelEntry: entry}, nil
	}

	if toks[i].Kind != token.ID {
		return Node{}, fmt.Errorf("expected mnemonic, got %s", toks[i])
	}
	mnemonic := toks[i].Str
	rest := toks[i+1:]

	inst, known := ISet[mnemonic]
	if !known {
		return Node{
			Kind:       MacroInvoke,
			Label:      label,
			LabelEntry: entry,
			MacroName:  mnemonic,
			MacroArgs:  rest,
		}, nil
	}

	if LegacyOnly(mnemonic) && ctx.V3 {
		return Node{}, fmt.Errorf("%q is not available in legacy (v3) mode", mnemonic)
	}

	switch inst.Category {
	case Binary:
		return parseBinary(label, entry, inst, rest)
	case Unary:
		if mnemonic == "ldi" || mnemonic == "ldsa" {
			return parseUnaryOperand(ctx, label, entry, mnemonic, inst, rest, passno)
		}
		return parseUnarySimple(label, entry, inst, rest)
	case Zero:
		return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 1, Bytes: []byte{inst.Opcode}}, nil
	case Branch:
		return parseBranch(ctx, label, entry, mnemonic, inst, rest, passno)
	case Spmove:
		return parseSpmove(ctx, label, entry, inst, rest, passno)
	case Spec:
		return parseSpec(ctx, label, entry, extFlag, mnemonic, rest, passno)
	case MacroCtl:
		return parseMacroCtl(mnemonic, rest)
	default:
		return Node{}, fmt.Errorf("unhandled instruction category for %q", mnemonic)
	}
}

// parseLabelPrefix recognizes an optional "name:" or "name>" prefix and
// returns the label, whether it's an entry export, the ext flag, and the
// number of tokens consumed. The ext flag is always false: a leading "!"
// before the label is not recognized.
func parseLabelPrefix(toks []token.Token) (label string, entry bool, extFlag bool, consumed int) {
	if len(toks) >= 2 && toks[0].Kind == token.ID {
		switch toks[1].Kind {
		case token.Colon:
			return toks[0].Str, false, false, 2
		case token.Greater:
			return toks[0].Str, true, false, 2
		}
	}
	return "", false, false, 0
}

func parseBinary(label string, entry bool, inst Inst, rest []token.Token) (Node, error) {
	if len(rest) < 4 || rest[0].Kind != token.Reg || rest[1].Kind != token.Comma || rest[2].Kind != token.Reg {
		return Node{}, fmt.Errorf("expected register, comma, register")
	}
	rd, rs := rest[0].Reg, rest[2].Reg
	b := inst.Opcode + byte(4*rd+rs)
	return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 1, Bytes: []byte{b}}, nil
}

func parseUnarySimple(label string, entry bool, inst Inst, rest []token.Token) (Node, error) {
	if len(rest) < 2 || rest[0].Kind != token.Reg {
		return Node{}, fmt.Errorf("expected register operand")
	}
	b := inst.Opcode + byte(rest[0].Reg)
	return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 1, Bytes: []byte{b}}, nil
}

// parseUnaryOperand handles ldi/ldsa: register, comma, operand, where
// operand is a char literal, a template field, or an expression.
func parseUnaryOperand(ctx *context.Context, label string, entry bool, mnemonic string, inst Inst, rest []token.Token, passno int) (Node, error) {
	if len(rest) < 3 || rest[0].Kind != token.Reg || rest[1].Kind != token.Comma {
		return Node{}, fmt.Errorf("expected register, comma, operand")
	}
	reg := rest[0].Reg
	opBase := inst.Opcode + byte(reg)
	operandToks := rest[2:]

	if operandToks[0].Kind == token.Str {
		if mnemonic == "ldsa" {
			return Node{}, fmt.Errorf("string literal operand not allowed for ldsa")
		}
		if len(operandToks[0].Str) != 1 {
			return Node{}, fmt.Errorf("char literal operand must be exactly one character")
		}
		return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2,
			Bytes: []byte{opBase, operandToks[0].Str[0]}}, nil
	}

	var triple [3]token.Token
	copy(triple[:], padEnd(joinTemplateField(operandToks), 3))
	res, err := expr.Eval(ctx, triple, false)
	if err != nil {
		if passno == 1 {
			return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2, Bytes: []byte{opBase, 0}}, nil
		}
		return Node{}, err
	}

	n := Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2, Bytes: []byte{opBase, byte(res.Value)}}
	if res.Relocatable {
		if ctx.Rel {
			n.RelOffsets = append(n.RelOffsets, 1)
		}
		if name := identName(operandToks); name != "" && isExternal(ctx, name) {
			n.ExtFixups = append(n.ExtFixups, ExtFixup{Offset: 1, Name: name})
		}
	}
	return n, nil
}

func parseBranch(ctx *context.Context, label string, entry bool, mnemonic string, inst Inst, rest []token.Token, passno int) (Node, error) {
	if mnemonic == "lchk" {
		return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 0}, nil
	}

	var triple [3]token.Token
	copy(triple[:], padEnd(joinTemplateField(rest), 3))
	res, err := expr.Eval(ctx, triple, false)
	if err != nil {
		if passno == 1 {
			return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2, Bytes: []byte{inst.Opcode, 0}}, nil
		}
		return Node{}, err
	}
	n := Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2, Bytes: []byte{inst.Opcode, byte(res.Value)}}
	if res.Relocatable {
		if ctx.Rel {
			n.RelOffsets = append(n.RelOffsets, 1)
		}
		if name := identName(rest); name != "" && isExternal(ctx, name) {
			n.ExtFixups = append(n.ExtFixups, ExtFixup{Offset: 1, Name: name})
		}
	}
	return n, nil
}

func parseSpmove(ctx *context.Context, label string, entry bool, inst Inst, rest []token.Token, passno int) (Node, error) {
	neg := false
	if len(rest) > 0 && rest[0].Kind == token.Minus {
		neg = true
		rest = rest[1:]
	}
	var triple [3]token.Token
	copy(triple[:], padEnd(joinTemplateField(rest), 3))
	res, err := expr.Eval(ctx, triple, true)
	if err != nil {
		if passno == 1 {
			return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2, Bytes: []byte{inst.Opcode, 0}}, nil
		}
		return Node{}, err
	}
	v := res.Value
	if neg {
		v = (256 - v) % 256
	}
	return Node{Kind: Code, Label: label, LabelEntry: entry, Size: 2, Bytes: []byte{inst.Opcode, byte(v)}}, nil
}

func parseMacroCtl(mnemonic string, rest []token.Token) (Node, error) {
	if mnemonic == "mend" {
		return Node{Kind: MacroEnd}, nil
	}
	// "macro name / arity"
	if len(rest) < 3 || rest[0].Kind != token.ID || rest[1].Kind != token.Solidus || rest[2].Kind != token.Num {
		return Node{}, fmt.Errorf("expected \"macro name / arity\"")
	}
	return Node{Kind: MacroStart, MacroName: rest[0].Str, MacroArity: rest[2].Num}, nil
}

func identName(toks []token.Token) string {
	if len(toks) > 0 && toks[0].Kind == token.ID {
		return toks[0].Str
	}
	return ""
}

func isExternal(ctx *context.Context, name string) bool {
	_, ok := ctx.Symbols.Exts[name]
	return ok
}

// joinTemplateField collapses a leading "ID . ID" token sequence (a
// template-field reference such as "vec.x") into one synthetic ID token
// carrying the dotted name, mirroring how CommaSep joins the same shape
// for macro-invocation arguments. The lexer splits on the dot (it is
// its own punctuation token), but expr.Eval's 3-token grammar only ever
// sees a single identifier per operand (spec §4.3 tplate field
// addressing).
func joinTemplateField(toks []token.Token) []token.Token {
	if len(toks) >= 3 && toks[0].Kind == token.ID && toks[1].Kind == token.Dot && toks[2].Kind == token.ID {
		merged := token.Token{Kind: token.ID, Str: toks[0].Str + "." + toks[2].Str, Pos: toks[0].Pos}
		return append([]token.Token{merged}, toks[3:]...)
	}
	return toks
}

// padEnd pads toks with trailing End tokens up to length n.
func padEnd(toks []token.Token, n int) []token.Token {
	out := make([]token.Token, n)
	copy(out, toks)
	for i := len(toks); i < n; i++ {
		out[i] = token.Token{Kind: token.End}
	}
	return out
}
