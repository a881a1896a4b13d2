// Package token defines the lexical token types produced by the CdM-8
// lexer and shared by every downstream stage of the assembler.
package token

import "fmt"

// Kind identifies the lexical class of a Token.
type Kind int

const (
	Empty Kind = iota
	ID
	Num
	Reg
	Str
	Par
	Colon
	Comma
	Plus
	Minus
	Greater
	Solidus
	Apostrophe
	Question
	Exclaim
	Dot
	Equal
	End
)

var kindNames = map[Kind]string{
	Empty:      "EMPTY",
	ID:         "ID",
	Num:        "NUM",
	Reg:        "REG",
	Str:        "STR",
	Par:        "PAR",
	Colon:      ":",
	Comma:      ",",
	Plus:       "+",
	Minus:      "-",
	Greater:    ">",
	Solidus:    "/",
	Apostrophe: "'",
	Question:   "?",
	Exclaim:    "!",
	Dot:        ".",
	Equal:      "=",
	End:        "END",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Position locates a token within a source line.
type Position struct {
	Line   int // 1-based visible source line number
	Column int // 1-based column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is the tagged value the lexer emits: a kind, a source column, and
// one of a string, numeric, or register payload depending on Kind.
type Token struct {
	Kind Kind
	Pos  Position

	Str string // ID, Str payload
	Num int    // Num payload, 0..255
	Reg int    // Reg payload, 0..3
}

func (t Token) String() string {
	switch t.Kind {
	case ID, Str:
		return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Str, t.Pos)
	case Num:
		return fmt.Sprintf("%s(%d)@%s", t.Kind, t.Num, t.Pos)
	case Reg:
		return fmt.Sprintf("%s(r%d)@%s", t.Kind, t.Reg, t.Pos)
	case Par:
		return fmt.Sprintf("%s($%d)@%s", t.Kind, t.Num, t.Pos)
	default:
		return fmt.Sprintf("%s@%s", t.Kind, t.Pos)
	}
}
