package macro

import (
	"testing"

	"github.com/uh-mickwal/cdm8toolchain/internal/token"
)

func TestRenderArg(t *testing.T) {
	cases := []struct {
		tok  token.Token
		want string
	}{
		{token.Token{Kind: token.ID, Str: "foo"}, "foo"},
		{token.Token{Kind: token.Reg, Reg: 2}, "r2"},
		{token.Token{Kind: token.Num, Num: 0x1a}, "0x1a"},
		{token.Token{Kind: token.Str, Str: `a"b`}, `"a\"b"`},
	}
	for _, c := range cases {
		if got := RenderArg(c.tok); got != c.want {
			t.Errorf("RenderArg(%+v) = %q, want %q", c.tok, got, c.want)
		}
	}
}

func TestCommaSepEmptyArity(t *testing.T) {
	args, err := CommaSep([]token.Token{{Kind: token.End}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 0 {
		t.Errorf("got %v, want zero arguments for an empty operand list", args)
	}
}

func TestCommaSepSplitsOnTopLevelCommas(t *testing.T) {
	toks := []token.Token{
		{Kind: token.Num, Num: 5},
		{Kind: token.Comma},
		{Kind: token.ID, Str: "foo"},
		{Kind: token.End},
	}
	args, err := CommaSep(toks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"0x05", "foo"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, args[i], want[i])
		}
	}
}

func TestParseStackOperandsAcceptsNameAndString(t *testing.T) {
	toks := []token.Token{
		{Kind: token.ID, Str: "x"},
		{Kind: token.Comma},
		{Kind: token.Str, Str: "underflow"},
		{Kind: token.End},
	}
	ops, err := ParseStackOperands(toks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 2 || ops[0].Name != "x" || !ops[1].IsStr || ops[1].String != "underflow" {
		t.Errorf("got %+v", ops)
	}
}

func TestParseStackOperandsRejectsMultiTokenOperand(t *testing.T) {
	toks := []token.Token{
		{Kind: token.ID, Str: "x"},
		{Kind: token.ID, Str: "y"},
		{Kind: token.End},
	}
	if _, err := ParseStackOperands(toks); err == nil {
		t.Error("expected an error for two tokens in one operand slot")
	}
}

func TestParseUniqueOperandsAcceptsNameAndRegister(t *testing.T) {
	toks := []token.Token{
		{Kind: token.ID, Str: "tmp"},
		{Kind: token.Comma},
		{Kind: token.Reg, Reg: 1},
		{Kind: token.End},
	}
	out, err := ParseUniqueOperands(toks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"tmp", "r1"}
	if len(out) != len(want) || out[0] != want[0] || out[1] != want[1] {
		t.Errorf("got %v, want %v", out, want)
	}
}

func TestCommaSepTemplateField(t *testing.T) {
	toks := []token.Token{
		{Kind: token.ID, Str: "point"},
		{Kind: token.Dot},
		{Kind: token.ID, Str: "x"},
		{Kind: token.End},
	}
	args, err := CommaSep(toks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 1 || args[0] != "point.x" {
		t.Errorf("got %v, want [\"point.x\"]", args)
	}
}
