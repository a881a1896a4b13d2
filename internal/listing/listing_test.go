package listing

import (
	"strings"
	"testing"

	"github.com/uh-mickwal/cdm8toolchain/internal/driver"
)

func TestFormatIncludesSourceAndHexBytes(t *testing.T) {
	src := "asect 0x10\nfoo: dc 1,2,3\nend\n"
	d := driver.New(strings.Split(src, "\n"))
	em := d.Run()
	if d.Diags.HasErrors() {
		t.Fatalf("assembly errors: %s", d.Diags.Error())
	}

	out := Format(d.Ctx, em, false)
	if !strings.Contains(out, "01 02 03") {
		t.Errorf("got %q, want it to contain the emitted bytes \"01 02 03\"", out)
	}
	if !strings.Contains(out, "foo: dc 1,2,3") {
		t.Errorf("got %q, want it to contain the source line", out)
	}
	if !strings.Contains(out, "SECTIONS") || !strings.Contains(out, "ENTRIES") || !strings.Contains(out, "EXTERNALS") {
		t.Errorf("got %q, want a SECTIONS/ENTRIES/EXTERNALS summary", out)
	}
}

// The $abs section's reported size is its byte span, not its label
// count: a single label at offset 0x10 followed by 3 bytes must report
// 19 (0x13), not 1.
func TestFormatReportsAbsSectionByteSpanNotLabelCount(t *testing.T) {
	src := "asect 0x10\nfoo: dc 1,2,3\nend\n"
	d := driver.New(strings.Split(src, "\n"))
	em := d.Run()
	if d.Diags.HasErrors() {
		t.Fatalf("assembly errors: %s", d.Diags.Error())
	}

	out := Format(d.Ctx, em, false)
	if !strings.Contains(out, "19 bytes") {
		t.Errorf("got %q, want the $abs summary line to report a 19-byte span, not the 1-label count", out)
	}
}

func TestFormatFoldsGeneratedLinesByDefault(t *testing.T) {
	src := "macro dup / 1\ndc $1,$1\nmend\nasect 0x00\ndup 5\nend\n"
	d := driver.New(strings.Split(src, "\n"))
	em := d.Run()
	if d.Diags.HasErrors() {
		t.Fatalf("assembly errors: %s", d.Diags.Error())
	}

	out := Format(d.Ctx, em, false)
	if strings.Contains(out, "dc 0x05,0x05") {
		t.Errorf("folded listing should not show the generated line verbatim, got %q", out)
	}
	if !strings.Contains(out, "dup 5") {
		t.Errorf("got %q, want the invocation line to appear", out)
	}
}

func TestFormatWithLstMeShowsGeneratedLines(t *testing.T) {
	src := "macro dup / 1\ndc $1,$1\nmend\nasect 0x00\ndup 5\nend\n"
	d := driver.New(strings.Split(src, "\n"))
	em := d.Run()
	if d.Diags.HasErrors() {
		t.Fatalf("assembly errors: %s", d.Diags.Error())
	}

	out := Format(d.Ctx, em, true)
	if !strings.Contains(out, "dc 0x05,0x05") {
		t.Errorf("lstMe listing should show the generated line, got %q", out)
	}
}
