package macro

import (
	"fmt"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
)

// Operand is one argument of an mpush/mpop/mread/unique directive line:
// either a bare name (macro variable / register) or a quoted string
// literal used only as an mpop/mread empty-stack error message.
type Operand struct {
	Name   string
	String string
	IsStr  bool
}

// Push implements mpush: values are pushed in reverse of the given
// order onto stack i, so a later mpop yields them back in the original
// left-to-right order (spec §4.4).
func Push(ctx *context.Context, idx int, values []string) error {
	if idx < 0 || idx > 5 {
		return fmt.Errorf("macro stack index %d out of range 0..5", idx)
	}
	for i := len(values) - 1; i >= 0; i-- {
		ctx.Mstack[idx] = append(ctx.Mstack[idx], values[i])
	}
	return nil
}

// Pop implements mpop: pops one frame per named macro variable and
// assigns it; a string-literal operand supplies the error message used
// if the stack runs out (spec §4.4).
func Pop(ctx *context.Context, idx int, ops []Operand) error {
	return popOrRead(ctx, idx, ops, true)
}

// Read implements mread: identical to Pop but non-destructive.
func Read(ctx *context.Context, idx int, ops []Operand) error {
	return popOrRead(ctx, idx, ops, false)
}

func popOrRead(ctx *context.Context, idx int, ops []Operand, consume bool) error {
	if idx < 0 || idx > 5 {
		return fmt.Errorf("macro stack index %d out of range 0..5", idx)
	}
	errMsg := "macro stack underflow"
	for _, op := range ops {
		if op.IsStr {
			errMsg = op.String
		}
	}

	stack := ctx.Mstack[idx]
	read := 0
	for _, op := range ops {
		if op.IsStr {
			continue
		}
		pos := len(stack) - 1 - read
		if pos < 0 {
			return fmt.Errorf("%s", errMsg)
		}
		ctx.Mvars[op.Name] = stack[pos]
		read++
	}
	if consume {
		ctx.Mstack[idx] = stack[:len(stack)-read]
	}
	return nil
}

// Unique implements the lexical-hygiene `unique` directive: from the
// four hardware registers r0..r3, it assigns the free ones to the
// named macro variables. Registers mentioned explicitly among the
// operands are reserved first; at most four operands are allowed;
// re-using a register or macro variable is an error (spec §4.4, §9).
func Unique(ctx *context.Context, operands []string) error {
	if len(operands) > 4 {
		return fmt.Errorf("More than 4 operands specified")
	}

	var taken [4]bool
	for _, op := range operands {
		if reg, ok := parseRegLiteral(op); ok {
			if taken[reg] {
				return fmt.Errorf("register r%d specified twice", reg)
			}
			taken[reg] = true
		}
	}

	seen := map[string]bool{}
	for _, op := range operands {
		if _, ok := parseRegLiteral(op); ok {
			continue
		}
		if seen[op] {
			return fmt.Errorf("macro variable %q reused", op)
		}
		seen[op] = true

		reg := -1
		for r := 0; r < 4; r++ {
			if !taken[r] {
				reg = r
				taken[r] = true
				break
			}
		}
		if reg < 0 {
			return fmt.Errorf("no free register for %q", op)
		}
		ctx.Mvars[op] = fmt.Sprintf("r%d", reg)
	}
	return nil
}

func parseRegLiteral(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 2 || (s[0] != 'r' && s[0] != 'R') {
		return 0, false
	}
	if s[1] < '0' || s[1] > '3' {
		return 0, false
	}
	return int(s[1] - '0'), true
}
