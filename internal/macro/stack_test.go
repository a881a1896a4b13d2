package macro

import (
	"testing"

	"github.com/uh-mickwal/cdm8toolchain/internal/context"
)

func TestPushThenPopPreservesOrder(t *testing.T) {
	ctx := context.New(nil)
	if err := Push(ctx, 0, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Pop(ctx, 0, []Operand{{Name: "x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Mvars["x"] != "a" {
		t.Errorf("got %q, want %q (first pushed value pops out first)", ctx.Mvars["x"], "a")
	}
	if err := Pop(ctx, 0, []Operand{{Name: "y"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Mvars["y"] != "b" {
		t.Errorf("got %q, want %q", ctx.Mvars["y"], "b")
	}
}

func TestReadIsNonDestructive(t *testing.T) {
	ctx := context.New(nil)
	Push(ctx, 1, []string{"only"})
	if err := Read(ctx, 1, []Operand{{Name: "x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctx.Mstack[1]) != 1 {
		t.Errorf("mread must not consume the stack, got %v", ctx.Mstack[1])
	}
}

func TestPopUnderflowUsesStringOperandAsMessage(t *testing.T) {
	ctx := context.New(nil)
	err := Pop(ctx, 2, []Operand{{Name: "x"}, {IsStr: true, String: "stack is empty"}})
	if err == nil || err.Error() != "stack is empty" {
		t.Errorf("got %v, want \"stack is empty\"", err)
	}
}

func TestPushRejectsOutOfRangeIndex(t *testing.T) {
	ctx := context.New(nil)
	if err := Push(ctx, 6, []string{"a"}); err == nil {
		t.Error("expected error for macro stack index out of 0..5 range")
	}
}

func TestUniqueReservesExplicitRegistersFirst(t *testing.T) {
	ctx := context.New(nil)
	if err := Unique(ctx, []string{"r1", "tmp"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Mvars["tmp"] == "r1" {
		t.Errorf("tmp must not collide with explicitly reserved r1, got %q", ctx.Mvars["tmp"])
	}
	if ctx.Mvars["tmp"] != "r0" {
		t.Errorf("got %q, want r0 (first free register)", ctx.Mvars["tmp"])
	}
}

func TestUniqueRejectsMoreThanFourOperands(t *testing.T) {
	ctx := context.New(nil)
	if err := Unique(ctx, []string{"a", "b", "c", "d", "e"}); err == nil {
		t.Error("expected \"More than 4 operands specified\" error")
	}
}

func TestUniqueRejectsReusedRegister(t *testing.T) {
	ctx := context.New(nil)
	if err := Unique(ctx, []string{"r2", "r2"}); err == nil {
		t.Error("expected error for a register specified twice")
	}
}

func TestUniqueCanReserveAllFourRegisters(t *testing.T) {
	ctx := context.New(nil)
	if err := Unique(ctx, []string{"r0", "r1", "r2", "r3"}); err != nil {
		t.Fatalf("unexpected error reserving all four registers: %v", err)
	}
}
