// Package objfmt reads and writes the line-oriented object file format
// (spec §4.6, §6.1).
package objfmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/driver"
	"github.com/uh-mickwal/cdm8toolchain/internal/symtab"
)

// absRun is one coalesced contiguous absolute byte run.
type absRun struct {
	start int
	bytes []byte
}

// Write serializes ctx and its pass-2 emissions into object-file text
// (spec §4.6). It returns the text and the list of declared-but-unused
// external warnings.
func Write(ctx *context.Context, emissions []driver.Emission) (string, []string, error) {
	var sb strings.Builder

	absBytes := map[int]byte{}
	for _, e := range emissions {
		if e.Section != context.AbsSection {
			continue
		}
		for i, b := range e.Bytes {
			absBytes[e.Address+i] = b
		}
	}
	for _, run := range coalesce(absBytes) {
		fmt.Fprintf(&sb, "ABS %s:", hex2(run.start))
		for _, b := range run.bytes {
			fmt.Fprintf(&sb, " %s", hex2(int(b)))
		}
		sb.WriteByte('\n')
	}

	for _, name := range sortedKeys(ctx.Symbols.Ents[context.AbsSection]) {
		fmt.Fprintf(&sb, "NTRY %s %s\n", name, hex2(ctx.Symbols.Ents[context.AbsSection][name]))
	}

	for _, sect := range ctx.RsectOrder {
		size := ctx.Rsects[sect]
		data := make([]byte, size)
		for _, e := range emissions {
			if e.Section != sect {
				continue
			}
			for i, b := range e.Bytes {
				if e.Address+i < size {
					data[e.Address+i] = b
				}
			}
		}

		fmt.Fprintf(&sb, "NAME %s\n", sect)
		sb.WriteString("DATA")
		for _, b := range data {
			fmt.Fprintf(&sb, " %s", hex2(int(b)))
		}
		sb.WriteByte('\n')

		sb.WriteString("REL")
		rel := append([]int(nil), ctx.Symbols.RelList[sect]...)
		sort.Ints(rel)
		for _, off := range rel {
			fmt.Fprintf(&sb, " %s", hex2(off))
		}
		sb.WriteByte('\n')

		for _, name := range sortedKeys(ctx.Symbols.Ents[sect]) {
			fmt.Fprintf(&sb, "NTRY %s %s\n", name, hex2(ctx.Symbols.Ents[sect][name]))
		}
	}

	var warnings []string
	for _, name := range sortedExtKeys(ctx.Symbols.Exts) {
		sites := ctx.Symbols.Exts[name]
		if len(sites) == 0 {
			warnings = append(warnings, fmt.Sprintf("external %q declared but unused", name))
			fmt.Fprintf(&sb, "XTRN %s:\n", name)
			continue
		}
		fmt.Fprintf(&sb, "XTRN %s:", name)
		for _, site := range sites {
			fmt.Fprintf(&sb, " %s %s", site.Section, hex2(site.Offset))
		}
		sb.WriteByte('\n')
	}

	return sb.String(), warnings, nil
}

func coalesce(bytes map[int]byte) []absRun {
	if len(bytes) == 0 {
		return nil
	}
	addrs := make([]int, 0, len(bytes))
	for a := range bytes {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)

	var runs []absRun
	cur := absRun{start: addrs[0], bytes: []byte{bytes[addrs[0]]}}
	for _, a := range addrs[1:] {
		if a == cur.start+len(cur.bytes) {
			cur.bytes = append(cur.bytes, bytes[a])
			continue
		}
		runs = append(runs, cur)
		cur = absRun{start: a, bytes: []byte{bytes[a]}}
	}
	runs = append(runs, cur)
	return runs
}

func hex2(v int) string {
	v = ((v % 256) + 256) % 256
	return fmt.Sprintf("%02x", v)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedExtKeys(m map[string][]symtab.Ext) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
