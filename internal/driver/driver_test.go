package driver

import (
	"strings"
	"testing"
)

func assemble(t *testing.T, src string) (*Driver, []Emission) {
	t.Helper()
	d := New(strings.Split(src, "\n"))
	em := d.Run()
	if d.Diags.HasErrors() {
		t.Fatalf("assembly errors: %s", d.Diags.Error())
	}
	return d, em
}

// Scenario 1 (spec §8): a lone absolute section assembles to its literal
// bytes at the given address.
func TestScenarioAbsoluteSection(t *testing.T) {
	d, em := assemble(t, "asect 0x10\nfoo: dc 1,2,3\nend\n")
	if len(em) != 1 {
		t.Fatalf("got %d emissions, want 1: %+v", len(em), em)
	}
	if em[0].Address != 0x10 {
		t.Errorf("address: got %#x, want 0x10", em[0].Address)
	}
	want := []byte{1, 2, 3}
	if string(em[0].Bytes) != string(want) {
		t.Errorf("bytes: got %v, want %v", em[0].Bytes, want)
	}
	if off, ok := d.Ctx.Symbols.LookupLabel("$abs", "foo"); !ok || off != 0x10 {
		t.Errorf("label foo: got (%d, %v), want (0x10, true)", off, ok)
	}
}

func TestScenarioRelocatableSection(t *testing.T) {
	d, em := assemble(t, "rsect text\nloop: move r0,r1\nbr loop\nend\n")
	var total int
	for _, e := range em {
		total += len(e.Bytes)
	}
	if total != 3 {
		t.Fatalf("got %d total bytes, want 3 (1 move + 2 branch)", total)
	}
	if d.Ctx.Rsects["text"] != 3 {
		t.Errorf("section size: got %d, want 3", d.Ctx.Rsects["text"])
	}
}

func TestScenarioMacroExpansionPreservesInvocationLineNumber(t *testing.T) {
	src := "macro dup / 1\ndc $1,$1\nmend\nasect 0x00\ndup 5\nend\n"
	d, em := assemble(t, src)
	if len(em) != 1 {
		t.Fatalf("got %d emissions, want 1: %+v", len(em), em)
	}
	want := []byte{5, 5}
	if string(em[0].Bytes) != string(want) {
		t.Errorf("got %v, want %v", em[0].Bytes, want)
	}

	// The invocation line ("dup 5") is visible source line 5; the
	// generated "dc 0x05,0x05" line must not advance the visible line number.
	if got := d.Ctx.VisibleLineNumber(em[0].LineIndex); got != 5 {
		t.Errorf("diagnostic line: got %d, want 5 (the invocation line)", got)
	}
}

func TestScenarioEntryExport(t *testing.T) {
	d, _ := assemble(t, "rsect text\nhelper> move r0,r1\nrts\nend\n")
	if off, ok := d.Ctx.Symbols.Ents["text"]["helper"]; !ok || off != 0 {
		t.Errorf("got (%d, %v), want (0, true)", off, ok)
	}
}

func TestScenarioExternalFixupSite(t *testing.T) {
	d, _ := assemble(t, "rsect text\nfoo: ext\nldi r0, foo\nend\n")
	sites := d.Ctx.Symbols.Exts["foo"]
	if len(sites) != 1 {
		t.Fatalf("got %d external fix-up sites, want 1: %+v", len(sites), sites)
	}
	if sites[0].Section != "text" {
		t.Errorf("got section %q, want text", sites[0].Section)
	}
}

func TestMissingEndIsAnError(t *testing.T) {
	d := New(strings.Split("asect 0\ndc 1\n", "\n"))
	d.Run()
	if !d.Diags.HasErrors() {
		t.Error("expected an error for a file missing its end directive")
	}
}

func TestEmissionBeforeAnySectionIsAnError(t *testing.T) {
	d := New(strings.Split("dc 1\nend\n", "\n"))
	d.Run()
	if !d.Diags.HasErrors() {
		t.Error("expected an error for emission before any asect/rsect")
	}
}

func TestRedefinedLabelIsAnError(t *testing.T) {
	d := New(strings.Split("asect 0\nfoo: dc 1\nfoo: dc 2\nend\n", "\n"))
	d.Run()
	if !d.Diags.HasErrors() {
		t.Error("expected an error for a redefined label")
	}
}

// Scenario 5 (spec §8): the macro stack persists across separate macro
// invocations, so a value pushed inside one macro's body is visible to
// mpop/mread inside a later, unrelated invocation.
func TestMacroStackCrossInvocationPersistence(t *testing.T) {
	src := "macro remember / 1\nmpush $1\nmend\n" +
		"macro recall / 1\nmpop $1\nmend\n" +
		"asect 0\nremember 0x2a\nrecall got\ndc 1\nend\n"
	d, _ := assemble(t, src)
	if got := d.Ctx.Mvars["got"]; got != "0x2a" {
		t.Errorf("Mvars[got]: got %q, want %q", got, "0x2a")
	}
	if n := len(d.Ctx.Mstack[0]); n != 0 {
		t.Errorf("stack 0: got %d frames left, want 0", n)
	}
}

func TestMacroStackMreadIsNonDestructive(t *testing.T) {
	d, _ := assemble(t, "asect 0\nmpush 0x07\nmread val\nmread val2\nmpop val3\ndc 1\nend\n")
	if d.Ctx.Mvars["val"] != "0x07" || d.Ctx.Mvars["val2"] != "0x07" || d.Ctx.Mvars["val3"] != "0x07" {
		t.Fatalf("got %+v, want val=val2=val3=0x07", d.Ctx.Mvars)
	}
	if n := len(d.Ctx.Mstack[0]); n != 0 {
		t.Errorf("stack 0: got %d frames left after the one mpop, want 0", n)
	}
}

func TestMacroStackIndexIsolation(t *testing.T) {
	src := "asect 0\nmpush 0x01\n2 mpush 0x02\nmpop a\n2 mpop b\ndc 1\nend\n"
	d, _ := assemble(t, src)
	if d.Ctx.Mvars["a"] != "0x01" {
		t.Errorf("Mvars[a]: got %q, want 0x01 (default stack 0)", d.Ctx.Mvars["a"])
	}
	if d.Ctx.Mvars["b"] != "0x02" {
		t.Errorf("Mvars[b]: got %q, want 0x02 (stack 2)", d.Ctx.Mvars["b"])
	}
}

func TestMacroStackUnderflowIsAnError(t *testing.T) {
	d := New(strings.Split("asect 0\nmpop x\ndc 1\nend\n", "\n"))
	d.Run()
	if !d.Diags.HasErrors() {
		t.Error("expected an error popping an empty macro stack")
	}
}

func TestUniqueAssignsDistinctRegisters(t *testing.T) {
	d, _ := assemble(t, "asect 0\nunique a, b\ndc 1\nend\n")
	ra, rb := d.Ctx.Mvars["a"], d.Ctx.Mvars["b"]
	if ra == "" || rb == "" || ra == rb {
		t.Fatalf("got a=%q b=%q, want two distinct non-empty registers", ra, rb)
	}
}

func TestUniqueRejectsMoreThanFourOperands(t *testing.T) {
	d := New(strings.Split("asect 0\nunique a, b, c, d, e\ndc 1\nend\n", "\n"))
	d.Run()
	if !d.Diags.HasErrors() {
		t.Error("expected an error for more than 4 unique operands")
	}
}

// Scenario from spec §4.3: a template field reference (Template.field)
// resolves through the dotted-identifier path even though the lexer
// splits it into three tokens.
func TestTemplateFieldOperandResolves(t *testing.T) {
	src := "tplate vec\nx: ds 1\ny: ds 1\nasect 0\nldi r0, vec.x\nend\n"
	d, em := assemble(t, src)
	if len(em) != 1 || len(em[0].Bytes) != 2 {
		t.Fatalf("got %+v", em)
	}
	if em[0].Bytes[1] != 0 {
		t.Errorf("vec.x: got %d, want 0 (first field's offset)", em[0].Bytes[1])
	}
	if off, ok := d.Ctx.Symbols.LookupTemplateField("vec", "y"); !ok || off != 1 {
		t.Errorf("vec.y: got (%d, %v), want (1, true)", off, ok)
	}
}

func TestTemplateFieldOperandInDc(t *testing.T) {
	src := "tplate vec\nx: ds 1\ny: ds 1\nasect 0\ndc vec.y\nend\n"
	d, em := assemble(t, src)
	if len(em) != 1 || len(em[0].Bytes) != 1 || em[0].Bytes[0] != 1 {
		t.Fatalf("got %+v", em)
	}
	_ = d
}

func TestMacroExpansionCapIsEnforced(t *testing.T) {
	src := "macro bomb / 0\nbomb\nmend\nasect 0\nbomb\nend\n"
	d := New(strings.Split(src, "\n"))
	d.Run()
	if !d.Diags.HasErrors() {
		t.Error("expected the 800-expansion cap to trip on unbounded recursive expansion")
	}
}
