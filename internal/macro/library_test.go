package macro

import (
	"testing"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
)

func TestParseLibraryBasic(t *testing.T) {
	text := "# comment\n*dup/1\ndc $1,$1\n\n*zero/0\ndc 0\n"
	libs, err := ParseLibrary(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := libs["dup/1"]
	if !ok {
		t.Fatalf("expected dup/1 to be defined, got %v", libs)
	}
	if m.Arity != 1 || len(m.Body) != 1 || m.Body[0] != "dc $1,$1" {
		t.Errorf("got %+v", m)
	}
	if _, ok := libs["zero/0"]; !ok {
		t.Error("expected zero/0 to be defined")
	}
}

func TestParseLibraryRejectsTextOutsideBlock(t *testing.T) {
	if _, err := ParseLibrary("dc 1\n*foo/0\n"); err == nil {
		t.Error("expected error for body text before any *name/arity header")
	}
}

func TestParseLibraryMalformedHeader(t *testing.T) {
	if _, err := ParseLibrary("*foo\ndc 1\n"); err == nil {
		t.Error("expected error for header missing /arity")
	}
	if _, err := ParseLibrary("*foo/x\ndc 1\n"); err == nil {
		t.Error("expected error for non-numeric arity")
	}
}

func TestDefineAndLookup(t *testing.T) {
	ctx := context.New(nil)
	Define(ctx, "dup", 1, []string{"dc $1,$1"})
	m, ok := Lookup(ctx, "dup", 1)
	if !ok || m.Name != "dup" {
		t.Fatalf("got (%+v, %v)", m, ok)
	}
	if _, ok := Lookup(ctx, "dup", 2); ok {
		t.Error("arity must be part of the lookup key")
	}
}
