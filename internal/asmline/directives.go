package asmline

import (
	"fmt"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/expr"
	"github.com/uh-mickwal/cdm8toolchain/internal/token"
)

func parseSpec(ctx *context.Context, label string, entry, extFlag bool, mnemonic string, rest []token.Token, passno int) (Node, error) {
	switch mnemonic {
	case "ds":
		return parseDs(ctx, label, entry, rest, passno)
	case "dc":
		return parseDc(ctx, label, entry, rest, passno)
	case "set":
		return parseSet(ctx, rest, passno)
	case "asect":
		return parseAsect(ctx, rest, passno)
	case "rsect":
		return parseRsect(ctx, rest)
	case "tplate":
		return parseTplate(ctx, rest, passno)
	case "ext":
		if label == "" {
			return Node{}, fmt.Errorf("ext requires a label on the same line")
		}
		return Node{Kind: Ext, Label: label}, nil
	case "end":
		ctx.Ended = true
		return Node{Kind: End}, nil
	default:
		return Node{}, fmt.Errorf("unhandled directive %q", mnemonic)
	}
}

func parseDs(ctx *context.Context, label string, entry bool, rest []token.Token, passno int) (Node, error) {
	var triple [3]token.Token
	copy(triple[:], padEnd(joinTemplateField(rest), 3))
	res, err := expr.Eval(ctx, triple, true)
	if err != nil {
		return Node{}, fmt.Errorf("ds: %w", err)
	}
	_ = passno
	return Node{Kind: Code, Label: label, LabelEntry: entry, Size: res.Value, Bytes: make([]byte, res.Value)}, nil
}

func parseDc(ctx *context.Context, label string, entry bool, rest []token.Token, passno int) (Node, error) {
	groups := splitOnComma(rest)
	n := Node{Kind: Code, Label: label, LabelEntry: entry}

	for _, g := range groups {
		if len(g) == 1 && g[0].Kind == token.Str {
			for i := 0; i < len(g[0].Str); i++ {
				n.Bytes = append(n.Bytes, g[0].Str[i])
			}
			continue
		}

		var triple [3]token.Token
		copy(triple[:], padEnd(joinTemplateField(g), 3))
		res, err := expr.Eval(ctx, triple, false)
		if err != nil {
			if passno == 1 {
				n.Bytes = append(n.Bytes, 0)
				continue
			}
			return Node{}, fmt.Errorf("dc: %w", err)
		}
		off := len(n.Bytes)
		n.Bytes = append(n.Bytes, byte(res.Value))
		if res.Relocatable {
			if ctx.Rel {
				n.RelOffsets = append(n.RelOffsets, off)
			}
			if name := identName(g); name != "" && isExternal(ctx, name) {
				n.ExtFixups = append(n.ExtFixups, ExtFixup{Offset: off, Name: name})
			}
		}
	}
	n.Size = len(n.Bytes)
	return n, nil
}

func parseSet(ctx *context.Context, rest []token.Token, passno int) (Node, error) {
	if len(rest) < 2 || rest[0].Kind != token.ID || rest[1].Kind != token.Equal {
		return Node{}, fmt.Errorf("expected \"set name = expr\"")
	}
	name := rest[0].Str
	var triple [3]token.Token
	copy(triple[:], padEnd(joinTemplateField(rest[2:]), 3))
	res, err := expr.Eval(ctx, triple, true)
	if err != nil {
		if passno == 1 {
			return Node{Kind: Set, SetName: name}, nil
		}
		return Node{}, fmt.Errorf("set: %w", err)
	}
	if passno == 1 {
		if err := ctx.Symbols.DefineAbs(name, res.Value); err != nil {
			return Node{}, err
		}
	}
	return Node{Kind: Set, SetName: name}, nil
}

func parseAsect(ctx *context.Context, rest []token.Token, passno int) (Node, error) {
	var triple [3]token.Token
	copy(triple[:], padEnd(joinTemplateField(rest), 3))
	res, err := expr.Eval(ctx, triple, true)
	if err != nil {
		return Node{}, fmt.Errorf("asect: %w", err)
	}
	ctx.EnterAbs(res.Value)
	_ = passno
	return Node{Kind: Asect, SectionArg: res.Value}, nil
}

func parseRsect(ctx *context.Context, rest []token.Token) (Node, error) {
	if len(rest) < 1 || rest[0].Kind != token.ID {
		return Node{}, fmt.Errorf("expected rsect name")
	}
	name := rest[0].Str
	ctx.EnterRsect(name)
	return Node{Kind: Rsect, SectionName: name}, nil
}

func parseTplate(ctx *context.Context, rest []token.Token, passno int) (Node, error) {
	if len(rest) < 1 || rest[0].Kind != token.ID {
		return Node{}, fmt.Errorf("expected tplate name")
	}
	name := rest[0].Str
	ctx.EnterTemplate(name)
	if passno == 1 {
		if _, err := ctx.Symbols.OpenTemplate(name); err != nil {
			return Node{}, err
		}
	}
	return Node{Kind: Tplate, SectionName: name}, nil
}

func splitOnComma(toks []token.Token) [][]token.Token {
	var groups [][]token.Token
	var cur []token.Token
	for _, t := range toks {
		if t.Kind == token.End {
			continue
		}
		if t.Kind == token.Comma {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}
