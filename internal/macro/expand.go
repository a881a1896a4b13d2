package macro

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
)

// Invoke expands one call of a registered macro: it binds Pars, advances
// Mcount/Mcalls, substitutes each body line, and suffixes each expanded
// line with the generated-line sentinel "#\x01" (spec §4.4).
//
// label is the "name:" or "name>" prefix (if any) carried by the
// invocation line; it is propagated onto the first expanded line only.
func Invoke(ctx *context.Context, m *context.Macro, args []string, label string) ([]string, error) {
	if len(args) != m.Arity {
		return nil, fmt.Errorf("macro %q expects %d argument(s), got %d", m.Name, m.Arity, len(args))
	}
	if ctx.Mcalls >= context.MaxMacroExpansions {
		return nil, fmt.Errorf("macro expansion limit exceeded (%d)", context.MaxMacroExpansions)
	}

	ctx.Mcalls++
	ctx.Mcount++
	savedPars, savedMvars := ctx.Pars, ctx.Mvars
	ctx.Pars = args
	ctx.Mvars = map[string]string{}
	defer func() {
		ctx.Pars = savedPars
		ctx.Mvars = savedMvars
	}()

	out := make([]string, 0, len(m.Body))
	for i, body := range m.Body {
		expanded, err := Substitute(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("in expansion of %q: %w", m.Name, err)
		}
		if i == 0 && label != "" {
			expanded = label + expanded
		}
		out = append(out, expanded+"#\x01")
	}
	return out, nil
}

// Substitute applies the sigil substitutions ($n, !name, ?name, ')
// left-to-right over one macro body line, leaving quoted text inert
// (spec §4.4 substitution table).
func Substitute(ctx *context.Context, line string) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(line) {
		ch := line[i]
		switch ch {
		case '"':
			j := i + 1
			sb.WriteByte('"')
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' && j+1 < len(line) && (line[j+1] == '\\' || line[j+1] == '"') {
					sb.WriteByte(line[j])
					sb.WriteByte(line[j+1])
					j += 2
					continue
				}
				sb.WriteByte(line[j])
				j++
			}
			if j < len(line) {
				sb.WriteByte('"')
				j++
			}
			i = j

		case '$':
			if i+1 < len(line) && line[i+1] >= '1' && line[i+1] <= '9' {
				n := int(line[i+1] - '0')
				if n > len(ctx.Pars) {
					return "", fmt.Errorf("macro parameter $%d exceeds arity %d", n, len(ctx.Pars))
				}
				sb.WriteString(ctx.Pars[n-1])
				i += 2
				continue
			}
			sb.WriteByte(ch)
			i++

		case '!':
			name, next, ok := readIdent(line, i+1)
			if !ok {
				sb.WriteByte(ch)
				i++
				continue
			}
			v, ok := ctx.Mvars[name]
			if !ok {
				return "", fmt.Errorf("macro variable %q is unset", name)
			}
			sb.WriteString(v)
			i = next

		case '?':
			name, next, ok := readIdent(line, i+1)
			if !ok {
				sb.WriteByte(ch)
				i++
				continue
			}
			first, ok := ctx.Mvars[name]
			if !ok {
				return "", fmt.Errorf("macro variable %q is unset", name)
			}
			second, ok := ctx.Mvars[first]
			if !ok {
				return "", fmt.Errorf("macro variable %q is unset", first)
			}
			sb.WriteString(second)
			i = next

		case '\'':
			sb.WriteString(strconv.Itoa(ctx.Mcount))
			i++

		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return sb.String(), nil
}

func readIdent(s string, start int) (string, int, bool) {
	i := start
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	if i == start {
		return "", start, false
	}
	return s[start:i], i, true
}

func isIdentByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}
