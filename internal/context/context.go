// Package context holds the single mutable Context record (spec §3)
// shared by the line assembler, macro processor, expression evaluator
// and two-pass driver. It has a single owner (the driver) and is
// borrowed, never copied, by every stage that mutates it.
package context

import "github.com/uh-mickwal/cdm8toolchain/internal/symtab"

// AbsSection is the reserved name of the absolute section (spec §3).
const AbsSection = "$abs"

// MaxMacroExpansions is the hard cap on total macro expansions per
// compilation (spec §4.4, §5, §8): a recursive-macro-bomb guard.
const MaxMacroExpansions = 800

// Line is one entry of the growing, macro-spliceable line buffer.
type Line struct {
	Text      string
	Generated bool // true iff spliced in by macro expansion (spec §3 `generated[i]`)
}

// Macro is one registered user macro body, keyed externally by "name/arity".
type Macro struct {
	Name  string
	Arity int
	Body  []string // raw, unexpanded source lines between macro/mend
}

// Context is the assembler's single mutable state record (spec §3).
type Context struct {
	// Text is the line buffer; macro expansion splices new entries in
	// after the currently processing index.
	Text []Line

	// Counter is the byte-offset cursor inside the current section.
	Counter int

	// SectName is the current section name; AbsSection for absolute,
	// empty inside a template.
	SectName string

	// Rel is true while inside a relocatable (non-absolute, non-template)
	// section.
	Rel bool

	// Tpl/TplName track an open template block; templates emit no image.
	Tpl     bool
	TplName string

	// Rsects saves the resume counter for each relocatable section.
	Rsects map[string]int

	// RsectOrder records relocatable section names in first-seen order,
	// for deterministic object-file emission (spec §4.6 "insertion order").
	RsectOrder []string
	rsectSeen  map[string]bool

	Symbols *symtab.Table

	// Macros holds user macro bodies keyed by "name/arity".
	Macros map[string]*Macro

	// Mvars holds the current macro-expansion scope's variable bindings,
	// cleared on each new expansion scope.
	Mvars map[string]string

	// Mstack is the six-deep set of parallel textual frame stacks used
	// by mpush/mpop/mread.
	Mstack [6][]string

	// Pars holds the positional parameters of the macro invocation
	// currently being expanded; arity = len(Pars).
	Pars []string

	// Mcalls counts total expansions so far; Mcount is the fresh-number
	// nonce handed out to `'` substitutions.
	Mcalls int
	Mcount int

	// Ended is set once an `end` directive has been processed.
	Ended bool

	// V3 selects legacy Mark 3 compilation (the --v3 flag): when true,
	// ldsa/addsp/setsp/pushall/popall are rejected (spec §3). Defaults
	// to false (Mark 4).
	V3 bool
}

// New creates an empty Context over the given source lines.
func New(lines []string) *Context {
	text := make([]Line, len(lines))
	for i, l := range lines {
		text[i] = Line{Text: l}
	}
	return &Context{
		Text:     text,
		SectName: "",
		Rsects:   map[string]int{},
		Symbols:  symtab.New(),
		Macros:   map[string]*Macro{},
		Mvars:    map[string]string{},
	}
}

// Splice inserts newLines into the buffer immediately after index idx,
// marking each as generated, and returns the number of lines inserted
// (spec §4.4, §5: "the splice must occur after the current index").
func (c *Context) Splice(idx int, newLines []string) int {
	inserted := make([]Line, len(newLines))
	for i, l := range newLines {
		inserted[i] = Line{Text: l, Generated: true}
	}
	tail := make([]Line, len(c.Text)-idx-1)
	copy(tail, c.Text[idx+1:])

	c.Text = append(c.Text[:idx+1], append(inserted, tail...)...)
	return len(inserted)
}

// VisibleLineNumber returns the 1-based diagnostic line number for
// buffer index idx: it counts only non-generated lines up to and
// including idx (spec §8: "the visible line number increments only
// over non-generated lines").
func (c *Context) VisibleLineNumber(idx int) int {
	n := 0
	for i := 0; i <= idx && i < len(c.Text); i++ {
		if !c.Text[i].Generated {
			n++
		}
	}
	return n
}

// EnterAbs closes any active rsect/template and switches to the
// absolute section at byte offset n (spec §4.3 `asect`).
func (c *Context) EnterAbs(n int) {
	c.closeSection()
	c.SectName = AbsSection
	c.Rel = false
	c.Tpl = false
	c.Counter = n
}

// EnterRsect closes any active rsect/template and (re-)enters a
// relocatable section, resuming its saved counter (spec §4.3 `rsect`).
func (c *Context) EnterRsect(name string) {
	c.closeSection()
	if !c.rsectSeen[name] {
		if c.rsectSeen == nil {
			c.rsectSeen = map[string]bool{}
		}
		c.rsectSeen[name] = true
		c.RsectOrder = append(c.RsectOrder, name)
	}
	c.SectName = name
	c.Rel = true
	c.Tpl = false
	c.Counter = c.Rsects[name]
}

// EnterTemplate closes any active rsect/template and opens a template
// definition, which emits no image (spec §4.3 `tplate`).
func (c *Context) EnterTemplate(name string) {
	c.closeSection()
	c.SectName = ""
	c.Rel = false
	c.Tpl = true
	c.TplName = name
	c.Counter = 0
}

func (c *Context) closeSection() {
	if c.Rel && c.SectName != "" {
		c.Rsects[c.SectName] = c.Counter
	}
	if c.Tpl && c.TplName != "" {
		if tpl, ok := c.Symbols.Tpls[c.TplName]; ok {
			tpl.Close(c.Counter)
		}
	}
}

// CloseCurrentSection finalizes the currently open section's saved
// counter (and a template's size). Callers invoke this once at `end`,
// since no further asect/rsect/tplate switch will trigger it otherwise.
func (c *Context) CloseCurrentSection() { c.closeSection() }

// InSection reports whether any section (abs, relocatable or template)
// is currently open, i.e. whether emission is legal (spec §4.5
// precondition: "No emission is allowed before a first asect/rsect").
func (c *Context) InSection() bool {
	return c.SectName != "" || c.Tpl
}
