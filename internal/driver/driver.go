// Package driver orchestrates the two-pass assembly (spec §4.5): pass 1
// collects symbols and splices macro expansions into the line buffer;
// pass 2 resolves expressions and emits the final byte stream.
package driver

import (
	"fmt"

	"github.com/uh-mickwal/cdm8toolchain/internal/asmerr"
	"github.com/uh-mickwal/cdm8toolchain/internal/asmline"
	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/lexer"
	"github.com/uh-mickwal/cdm8toolchain/internal/macro"
	"github.com/uh-mickwal/cdm8toolchain/internal/token"
)

// Emission is one pass-2 output tuple (spec §3 "Emitted tuple").
type Emission struct {
	LineIndex int
	Address   int
	Bytes     []byte
	Section   string // "" for template-reference (listing-only) emissions
}

// Driver runs the two-pass assembly over one Context.
type Driver struct {
	Ctx   *context.Context
	Diags *asmerr.List
}

// New creates a Driver over freshly constructed Context for the given
// source lines, with any pre-loaded macro libraries merged in.
func New(lines []string, libraries ...map[string]*context.Macro) *Driver {
	ctx := context.New(lines)
	for _, lib := range libraries {
		for k, m := range lib {
			ctx.Macros[k] = m
		}
	}
	return &Driver{Ctx: ctx, Diags: &asmerr.List{}}
}

// Run executes pass 1 then pass 2 and returns the pass-2 emissions.
// On a fatal diagnostic it returns as soon as the pass that failed
// completes; d.Diags.HasErrors() reports success.
func (d *Driver) Run() []Emission {
	if !d.pass1() {
		return nil
	}
	if d.Diags.HasErrors() {
		return nil
	}
	return d.pass2()
}

func (d *Driver) tokenize(i int) ([]token.Token, error) {
	return lexer.LexLine(d.Ctx.Text[i].Text, d.Ctx.VisibleLineNumber(i))
}

// pass1 walks the (growing) line buffer, registers labels/templates/
// entries, and splices macro expansions. Returns false on a fatal error.
func (d *Driver) pass1() bool {
	ctx := d.Ctx

	for i := 0; i < len(ctx.Text); i++ {
		toks, err := d.tokenize(i)
		if err != nil {
			d.addLexErr(i, err)
			return false
		}

		if matched, serr := d.runStackDirective(toks); matched {
			if serr != nil {
				d.addMacroErr(i, serr)
				return false
			}
			continue
		}

		node, err := asmline.Parse(ctx, toks, 1)
		if err != nil {
			d.addSyntaxErr(i, err)
			return false
		}

		switch node.Kind {
		case asmline.Empty:
			continue

		case asmline.MacroStart:
			j, body, err := d.collectMacroBody(i)
			if err != nil {
				d.addMacroErr(i, err)
				return false
			}
			macro.Define(ctx, node.MacroName, node.MacroArity, body)
			i = j
			continue

		case asmline.MacroEnd:
			d.addMacroErr(i, fmt.Errorf("mend without matching macro"))
			return false

		case asmline.MacroInvoke:
			if !d.expandInvocation(i, node) {
				return false
			}
			continue

		case asmline.Ext:
			if _, ok := ctx.Symbols.Exts[node.Label]; !ok {
				ctx.Symbols.Exts[node.Label] = nil
			}
			continue

		case asmline.End:
			ctx.CloseCurrentSection()
			return true

		case asmline.Asect, asmline.Rsect, asmline.Tplate, asmline.Set:
			if err := d.registerLabel(node); err != nil {
				d.addSyntaxErr(i, err)
				return false
			}
			continue

		case asmline.Code:
			if node.Size > 0 && !ctx.InSection() {
				d.addSyntaxErr(i, fmt.Errorf("emission before any asect/rsect"))
				return false
			}
			if err := d.registerLabel(node); err != nil {
				d.addSyntaxErr(i, err)
				return false
			}
			ctx.Counter += node.Size
			continue
		}
	}

	if !ctx.Ended {
		d.addSyntaxErr(len(ctx.Text)-1, fmt.Errorf("file ends before end of program"))
		return false
	}
	return true
}

// registerLabel records a Code/section node's label into the current
// section's labels, or, inside a template, into the template's fields.
func (d *Driver) registerLabel(node asmline.Node) error {
	ctx := d.Ctx
	if node.Label == "" {
		return nil
	}
	if ctx.Tpl {
		if node.LabelEntry {
			return fmt.Errorf("label %q inside a template must not use the entry (>) prefix", node.Label)
		}
		tpl, ok := ctx.Symbols.Tpls[ctx.TplName]
		if !ok {
			return fmt.Errorf("internal error: template %q not open", ctx.TplName)
		}
		return tpl.AddField(node.Label, ctx.Counter)
	}

	if err := ctx.Symbols.DefineLabel(ctx.SectName, node.Label, ctx.Counter); err != nil {
		return err
	}
	if node.LabelEntry {
		return ctx.Symbols.AddEntry(ctx.SectName, node.Label, ctx.Counter)
	}
	return nil
}

// collectMacroBody consumes raw lines after a "macro" header up to (not
// including) the matching "mend", swallowing any per-line assembly
// errors as spec §4.4/§7 require. It returns the index of the "mend"
// line and the captured body.
func (d *Driver) collectMacroBody(start int) (int, []string, error) {
	ctx := d.Ctx
	var body []string
	for j := start + 1; j < len(ctx.Text); j++ {
		toks, err := d.tokenize(j)
		if err != nil {
			body = append(body, ctx.Text[j].Text)
			continue
		}
		if isMendLine(toks) {
			return j, body, nil
		}
		body = append(body, ctx.Text[j].Text)
	}
	return 0, nil, fmt.Errorf("macro definition missing mend")
}

// isMendLine reports whether toks is a bare "mend" line, without
// invoking asmline.Parse (which would execute section-changing
// directives as a side effect): body lines inside macro…mend are
// captured verbatim, never assembled during capture (spec §4.4).
func isMendLine(toks []token.Token) bool {
	i := 0
	if len(toks) >= 2 && toks[0].Kind == token.ID && (toks[1].Kind == token.Colon || toks[1].Kind == token.Greater) {
		i = 2
	}
	return i < len(toks) && toks[i].Kind == token.ID && toks[i].Str == "mend"
}

// expandInvocation looks up and splices a user-macro call.
func (d *Driver) expandInvocation(i int, node asmline.Node) bool {
	ctx := d.Ctx
	args, _ := macro.CommaSep(node.MacroArgs)
	m, ok := macro.Lookup(ctx, node.MacroName, len(args))
	if !ok {
		d.addSyntaxErr(i, fmt.Errorf("undefined mnemonic %q", node.MacroName))
		return false
	}

	label := ""
	if node.Label != "" {
		if node.LabelEntry {
			label = node.Label + ">"
		} else {
			label = node.Label + ":"
		}
	}

	expanded, err := macro.Invoke(ctx, m, args, label)
	if err != nil {
		d.addMacroErr(i, err)
		return false
	}
	ctx.Splice(i, expanded)
	return true
}

// pass2 walks the fully-expanded buffer, resolves expressions, and
// produces the final emission list.
func (d *Driver) pass2() []Emission {
	ctx := d.Ctx
	ctx.Counter = 0
	ctx.SectName = ""
	ctx.Rel = false
	ctx.Tpl = false
	ctx.Rsects = map[string]int{}

	var out []Emission

	for i := 0; i < len(ctx.Text); i++ {
		toks, err := d.tokenize(i)
		if err != nil {
			d.addLexErr(i, err)
			return nil
		}

		if _, _, _, ok := detectStackDirective(toks); ok {
			continue
		}

		node, err := asmline.Parse(ctx, toks, 2)
		if err != nil {
			d.addSyntaxErr(i, err)
			return nil
		}

		switch node.Kind {
		case asmline.MacroStart:
			j, _, _ := d.collectMacroBody(i)
			i = j
			continue
		case asmline.MacroInvoke, asmline.MacroEnd, asmline.Empty, asmline.Ext, asmline.Set:
			continue
		case asmline.End:
			ctx.CloseCurrentSection()
			return out
		case asmline.Asect, asmline.Rsect, asmline.Tplate:
			continue
		case asmline.Code:
			addr := ctx.Counter
			extAt := map[int]bool{}
			for _, fx := range node.ExtFixups {
				extAt[fx.Offset] = true
			}
			for _, off := range node.RelOffsets {
				if extAt[off] {
					// An external site is completed by the linker's
					// external fix-up, not by section relocation.
					continue
				}
				ctx.Symbols.AddRel(ctx.SectName, addr+off)
			}
			for _, fx := range node.ExtFixups {
				if err := ctx.Symbols.AddExtSite(fx.Name, ctx.SectName, addr+fx.Offset); err != nil {
					d.addSyntaxErr(i, err)
					return nil
				}
			}
			if node.Size > 0 {
				section := ctx.SectName
				if ctx.Tpl {
					section = ""
				}
				out = append(out, Emission{LineIndex: i, Address: addr, Bytes: node.Bytes, Section: section})
			}
			ctx.Counter += node.Size
		}
	}
	return out
}

// stackDirectiveNames are the macro-stack control mnemonics the driver
// recognizes ahead of normal line assembly (spec §4.4): they never
// reach asmline.ISet, so without this hook they fall through to
// MacroInvoke and fail as an undefined mnemonic.
var stackDirectiveNames = map[string]bool{
	"mpush": true, "mpop": true, "mread": true, "unique": true,
}

// detectStackDirective recognizes an optional leading stack index
// (0..5, default 0) followed by mpush/mpop/mread/unique.
func detectStackDirective(toks []token.Token) (name string, idx int, rest []token.Token, ok bool) {
	i := 0
	if len(toks) > 0 && toks[i].Kind == token.Num {
		idx = toks[i].Num
		i++
	}
	if i >= len(toks) || toks[i].Kind != token.ID || !stackDirectiveNames[toks[i].Str] {
		return "", 0, nil, false
	}
	return toks[i].Str, idx, toks[i+1:], true
}

// runStackDirective dispatches a recognized mpush/mpop/mread/unique
// line to the macro package's stack implementation. It reports matched
// = false for any other line, leaving it to normal line assembly.
func (d *Driver) runStackDirective(toks []token.Token) (matched bool, err error) {
	name, idx, rest, ok := detectStackDirective(toks)
	if !ok {
		return false, nil
	}

	switch name {
	case "mpush":
		values, _ := macro.CommaSep(rest)
		return true, macro.Push(d.Ctx, idx, values)
	case "mpop":
		ops, perr := macro.ParseStackOperands(rest)
		if perr != nil {
			return true, perr
		}
		return true, macro.Pop(d.Ctx, idx, ops)
	case "mread":
		ops, perr := macro.ParseStackOperands(rest)
		if perr != nil {
			return true, perr
		}
		return true, macro.Read(d.Ctx, idx, ops)
	case "unique":
		values, perr := macro.ParseUniqueOperands(rest)
		if perr != nil {
			return true, perr
		}
		return true, macro.Unique(d.Ctx, values)
	default:
		return false, nil
	}
}

func (d *Driver) addLexErr(i int, err error) {
	d.Diags.AddError(asmerr.New(asmerr.KindLex, d.Ctx.VisibleLineNumber(i), 1, err.Error()))
}

func (d *Driver) addSyntaxErr(i int, err error) {
	d.Diags.AddError(asmerr.New(asmerr.KindSyntax, d.Ctx.VisibleLineNumber(i), 1, err.Error()))
}

func (d *Driver) addMacroErr(i int, err error) {
	d.Diags.AddError(asmerr.New(asmerr.KindMacro, d.Ctx.VisibleLineNumber(i), 1, err.Error()))
}
