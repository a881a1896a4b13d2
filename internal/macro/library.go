// Package macro implements the macro library loader, the macro table,
// substitution engine, six-deep macro-parameter stack, and the `unique`
// register-allocation directive (spec §4.4, §6.3).
package macro

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
)

// ParseLibrary parses a `.mlb` macro library text into macro definitions
// keyed by "name/arity" (spec §6.3). Blank lines and lines beginning
// with `#` are ignored. A definition begins with `*name/arity` and runs
// up to (not including) the next line starting with `*`.
func ParseLibrary(text string) (map[string]*context.Macro, error) {
	lines := strings.Split(text, "\n")
	out := map[string]*context.Macro{}

	var cur *context.Macro
	var key string

	flush := func() {
		if cur != nil {
			out[key] = cur
		}
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "*") {
			flush()
			name, arity, err := parseHeader(trimmed)
			if err != nil {
				return nil, err
			}
			key = fmt.Sprintf("%s/%d", name, arity)
			cur = &context.Macro{Name: name, Arity: arity}
			continue
		}

		if cur == nil {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			return nil, fmt.Errorf("macro library text outside a *name/arity block: %q", line)
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		cur.Body = append(cur.Body, line)
	}
	flush()

	return out, nil
}

func parseHeader(header string) (string, int, error) {
	body := strings.TrimPrefix(header, "*")
	idx := strings.IndexByte(body, '/')
	if idx < 0 {
		return "", 0, fmt.Errorf("malformed macro library header %q: missing /arity", header)
	}
	name := body[:idx]
	arity, err := strconv.Atoi(body[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed macro library header %q: %v", header, err)
	}
	return name, arity, nil
}

// Define registers a user-defined macro (from `macro name/arity … mend`)
// into the context's macro table, keyed "name/arity".
func Define(ctx *context.Context, name string, arity int, body []string) {
	key := fmt.Sprintf("%s/%d", name, arity)
	ctx.Macros[key] = &context.Macro{Name: name, Arity: arity, Body: body}
}

// Lookup finds a registered macro by invocation name and argument count.
func Lookup(ctx *context.Context, name string, arity int) (*context.Macro, bool) {
	m, ok := ctx.Macros[fmt.Sprintf("%s/%d", name, arity)]
	return m, ok
}
