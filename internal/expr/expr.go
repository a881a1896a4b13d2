// Package expr evaluates the fixed 3-token expression grammar used for
// operands throughout the assembler (spec §4.2).
package expr

import (
	"fmt"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/token"
)

// Result is the resolved value of an expression: a single byte plus
// whether it is relocatable (section-relative) or absolute.
type Result struct {
	Value       int
	Relocatable bool
}

// Eval resolves a 3-token expression triple against the Context's
// symbol tables. onlyAbsolute rejects a relocatable result.
//
// Grammar (spec §4.2):
//
//	[num, end, _]          -> (num, false)
//	[id, end|colon, _]     -> label/abs/current-counter lookup
//	[id, plus|minus, id|num] -> (v1 op v2) mod 256, with relocatable rules
//	[minus, num, end] num<=128 -> two's complement negation
func Eval(ctx *context.Context, toks [3]token.Token, onlyAbsolute bool) (Result, error) {
	t0, t1 := toks[0], toks[1]

	switch {
	case t0.Kind == token.Num && t1.Kind == token.End:
		return Result{Value: t0.Num, Relocatable: false}, nil

	case t0.Kind == token.ID && (t1.Kind == token.End || t1.Kind == token.Colon):
		return resolveIdentifier(ctx, t0.Str, onlyAbsolute)

	case t0.Kind == token.ID && (t1.Kind == token.Plus || t1.Kind == token.Minus):
		t2 := toks[2]
		r1, err := resolveIdentifier(ctx, t0.Str, false)
		if err != nil {
			return Result{}, err
		}
		var r2 Result
		switch t2.Kind {
		case token.Num:
			r2 = Result{Value: t2.Num, Relocatable: false}
		case token.ID:
			if isExternal(ctx, t2.Str) {
				return Result{}, fmt.Errorf("external label %q not allowed as second operand", t2.Str)
			}
			r2, err = resolveIdentifier(ctx, t2.Str, false)
			if err != nil {
				return Result{}, err
			}
		default:
			return Result{}, fmt.Errorf("syntax error in expression")
		}
		return combine(r1, r2, t1.Kind == token.Minus, onlyAbsolute)

	case t0.Kind == token.Minus && t1.Kind == token.Num:
		if t1.Num > 128 {
			return Result{}, fmt.Errorf("negated literal %d out of range", t1.Num)
		}
		return Result{Value: (256 - t1.Num) % 256, Relocatable: false}, nil

	default:
		return Result{}, fmt.Errorf("syntax error in expression")
	}
}

func combine(r1, r2 Result, subtract, onlyAbsolute bool) (Result, error) {
	if r1.Relocatable && r2.Relocatable {
		if !subtract {
			return Result{}, fmt.Errorf("two relocatable operands may only be subtracted")
		}
		// byte distance between two relocatables is absolute.
		v := (r1.Value - r2.Value) % 256
		if v < 0 {
			v += 256
		}
		return Result{Value: v, Relocatable: false}, nil
	}

	var v int
	if subtract {
		v = (r1.Value - r2.Value) % 256
	} else {
		v = (r1.Value + r2.Value) % 256
	}
	if v < 0 {
		v += 256
	}
	rel := r1.Relocatable || r2.Relocatable
	if rel && onlyAbsolute {
		return Result{}, fmt.Errorf("relocatable value not allowed here")
	}
	return Result{Value: v, Relocatable: rel}, nil
}

func isExternal(ctx *context.Context, name string) bool {
	_, ok := ctx.Symbols.Exts[name]
	return ok
}

// resolveIdentifier implements the id lookup chain: section-local
// label, then abses, then "*" meaning the current counter.
func resolveIdentifier(ctx *context.Context, name string, onlyAbsolute bool) (Result, error) {
	if name == "*" {
		rel := ctx.Rel
		if rel && onlyAbsolute {
			return Result{}, fmt.Errorf("relocatable value not allowed here")
		}
		return Result{Value: ctx.Counter, Relocatable: rel}, nil
	}

	if off, ok := ctx.Symbols.LookupLabel(ctx.SectName, name); ok {
		rel := ctx.SectName != context.AbsSection && !isExternal(ctx, name)
		if rel && onlyAbsolute {
			return Result{}, fmt.Errorf("relocatable value not allowed here")
		}
		return Result{Value: off, Relocatable: rel}, nil
	}

	if v, ok := ctx.Symbols.LookupAbs(name); ok {
		return Result{Value: v, Relocatable: false}, nil
	}

	if isExternal(ctx, name) {
		if onlyAbsolute {
			return Result{}, fmt.Errorf("relocatable value not allowed here")
		}
		// An external's real address is unknown until link time; the
		// zero placeholder is fixed up by the linker (spec §4.6, §4.9).
		return Result{Value: 0, Relocatable: true}, nil
	}

	if strings.Contains(name, ".") {
		parts := strings.SplitN(name, ".", 2)
		if off, ok := ctx.Symbols.LookupTemplateField(parts[0], parts[1]); ok {
			return Result{Value: off, Relocatable: false}, nil
		}
	}

	return Result{}, fmt.Errorf("Label not found: %s", name)
}
