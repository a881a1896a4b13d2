package macro

import (
	"strings"
	"testing"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
)

func TestInvokeSubstitutesParamsAndTagsGenerated(t *testing.T) {
	ctx := context.New(nil)
	m := &context.Macro{Name: "dup", Arity: 1, Body: []string{"dc $1,$1"}}

	out, err := Invoke(ctx, m, []string{"0x05"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d lines, want 1", len(out))
	}
	if !strings.HasSuffix(out[0], "#\x01") {
		t.Errorf("expanded line must carry the generated sentinel, got %q", out[0])
	}
	body := strings.TrimSuffix(out[0], "#\x01")
	if body != "dc 0x05,0x05" {
		t.Errorf("got %q, want %q", body, "dc 0x05,0x05")
	}
}

func TestInvokeAppliesLabelToFirstLineOnly(t *testing.T) {
	ctx := context.New(nil)
	m := &context.Macro{Name: "dup", Arity: 1, Body: []string{"dc $1", "dc $1"}}

	out, err := Invoke(ctx, m, []string{"0x05"}, "start: ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out[0], "start: ") {
		t.Errorf("first line must carry the label, got %q", out[0])
	}
	if strings.HasPrefix(out[1], "start: ") {
		t.Errorf("second line must not carry the label, got %q", out[1])
	}
}

func TestInvokeRejectsArityMismatch(t *testing.T) {
	ctx := context.New(nil)
	m := &context.Macro{Name: "dup", Arity: 1, Body: []string{"dc $1"}}
	if _, err := Invoke(ctx, m, []string{"a", "b"}, ""); err == nil {
		t.Error("expected arity mismatch error")
	}
}

func TestInvokeEnforcesExpansionCap(t *testing.T) {
	ctx := context.New(nil)
	ctx.Mcalls = context.MaxMacroExpansions
	m := &context.Macro{Name: "dup", Arity: 0, Body: []string{"dc 1"}}
	if _, err := Invoke(ctx, m, nil, ""); err == nil {
		t.Error("expected expansion-limit error")
	}
}

func TestInvokeRestoresParsAndMvarsAfterward(t *testing.T) {
	ctx := context.New(nil)
	ctx.Pars = []string{"outer"}
	ctx.Mvars = map[string]string{"x": "outer-val"}

	m := &context.Macro{Name: "inner", Arity: 1, Body: []string{"dc $1"}}
	if _, err := Invoke(ctx, m, []string{"0x01"}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctx.Pars) != 1 || ctx.Pars[0] != "outer" {
		t.Errorf("Pars not restored: got %v", ctx.Pars)
	}
	if ctx.Mvars["x"] != "outer-val" {
		t.Errorf("Mvars not restored: got %v", ctx.Mvars)
	}
}

func TestSubstituteSigils(t *testing.T) {
	ctx := context.New(nil)
	ctx.Pars = []string{"r0", "r1"}
	ctx.Mvars = map[string]string{"tmp": "r2", "r2": "r3"}
	ctx.Mcount = 7

	got, err := Substitute(ctx, `move $1,$2 ; !tmp ?tmp '`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `move r0,r1 ; r2 r3 7`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteLeavesQuotedTextInert(t *testing.T) {
	ctx := context.New(nil)
	ctx.Pars = []string{"X"}
	got, err := Substitute(ctx, `dc "$1 literal"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `dc "$1 literal"` {
		t.Errorf("quoted $1 must not be substituted, got %q", got)
	}
}

func TestSubstituteUnsetMvarIsError(t *testing.T) {
	ctx := context.New(nil)
	if _, err := Substitute(ctx, "!missing"); err == nil {
		t.Error("expected error for an unset macro variable")
	}
}

func TestSubstituteParamOutOfArityIsError(t *testing.T) {
	ctx := context.New(nil)
	ctx.Pars = []string{"only-one"}
	if _, err := Substitute(ctx, "dc $2"); err == nil {
		t.Error("expected error for a parameter index exceeding arity")
	}
}
