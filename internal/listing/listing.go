// Package listing renders the assembler's listing output: source lines
// interleaved with addresses and emitted bytes (spec §4.7).
package listing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/driver"
)

const bytesPerRow = 4

// Format renders the full listing for ctx's line buffer and pass-2
// emissions. lstMe disables folding of macro-generated lines (spec
// §4.7 `lst_me`).
func Format(ctx *context.Context, emissions []driver.Emission, lstMe bool) string {
	byLine := map[int][]byte{}
	for _, e := range emissions {
		byLine[e.LineIndex] = append(byLine[e.LineIndex], e.Bytes...)
	}

	var sb strings.Builder
	i := 0
	for i < len(ctx.Text) {
		if ctx.Text[i].Generated {
			// Should not happen at a fold boundary's start; defensive skip.
			i++
			continue
		}

		lineNo := ctx.VisibleLineNumber(i)
		source := ctx.Text[i].Text
		bytes := append([]byte(nil), byLine[i]...)

		j := i + 1
		for j < len(ctx.Text) && ctx.Text[j].Generated {
			if lstMe {
				writeRow(&sb, addressOf(ctx, emissions, j), byLine[j], ctx.VisibleLineNumber(j), ctx.Text[j].Text)
			} else {
				bytes = append(bytes, byLine[j]...)
			}
			j++
		}

		writeRow(&sb, addressOf(ctx, emissions, i), bytes, lineNo, source)
		i = j
	}

	sb.WriteString("\n")
	writeSummary(&sb, ctx, emissions)
	return sb.String()
}

// absSectionSize returns the byte span of the $abs section: the highest
// address reached by any of its emissions, not its label count.
func absSectionSize(emissions []driver.Emission) int {
	size := 0
	for _, e := range emissions {
		if e.Section != context.AbsSection {
			continue
		}
		if end := e.Address + len(e.Bytes); end > size {
			size = end
		}
	}
	return size
}

func addressOf(ctx *context.Context, emissions []driver.Emission, lineIdx int) int {
	for _, e := range emissions {
		if e.LineIndex == lineIdx {
			return e.Address
		}
	}
	return -1
}

func writeRow(sb *strings.Builder, addr int, bytes []byte, lineNo int, source string) {
	if len(bytes) == 0 {
		fmt.Fprintf(sb, "%*s %4d  %s\n", 3, "", lineNo, source)
		return
	}
	for row := 0; row*bytesPerRow < len(bytes); row++ {
		start := row * bytesPerRow
		end := start + bytesPerRow
		if end > len(bytes) {
			end = len(bytes)
		}
		chunk := bytes[start:end]

		var addrCol, numCol string
		if addr >= 0 {
			addrCol = fmt.Sprintf("%02x:", (addr+start)&0xff)
		} else {
			addrCol = "  :"
		}
		if row == 0 {
			numCol = fmt.Sprintf("%4d", lineNo)
		} else {
			numCol = "    "
		}

		var hexParts []string
		for _, b := range chunk {
			hexParts = append(hexParts, fmt.Sprintf("%02x", b))
		}
		for len(hexParts) < bytesPerRow {
			hexParts = append(hexParts, "  ")
		}

		srcCol := ""
		if row == 0 {
			srcCol = source
		}
		fmt.Fprintf(sb, "%s %s   %s  %s\n", addrCol, strings.Join(hexParts, " "), numCol, srcCol)
	}
}

func writeSummary(sb *strings.Builder, ctx *context.Context, emissions []driver.Emission) {
	sb.WriteString("SECTIONS\n")
	fmt.Fprintf(sb, "  %-16s %4d bytes\n", context.AbsSection, absSectionSize(emissions))
	for _, sect := range ctx.RsectOrder {
		fmt.Fprintf(sb, "  %-16s %4d bytes\n", sect, ctx.Rsects[sect])
	}

	sb.WriteString("ENTRIES\n")
	sections := append([]string{context.AbsSection}, ctx.RsectOrder...)
	for _, sect := range sections {
		names := make([]string, 0, len(ctx.Symbols.Ents[sect]))
		for n := range ctx.Symbols.Ents[sect] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(sb, "  %-16s %s = %02x\n", sect, n, ctx.Symbols.Ents[sect][n])
		}
	}

	sb.WriteString("EXTERNALS\n")
	names := make([]string, 0, len(ctx.Symbols.Exts))
	for n := range ctx.Symbols.Exts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		sites := ctx.Symbols.Exts[n]
		if len(sites) == 0 {
			fmt.Fprintf(sb, "  %-16s (unused)\n", n)
			continue
		}
		for _, s := range sites {
			fmt.Fprintf(sb, "  %-16s %s:%02x\n", n, s.Section, s.Offset)
		}
	}
}
