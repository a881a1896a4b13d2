// Package asmerr provides the structured diagnostic type shared by the
// lexer, assembler, macro processor and linker (spec §7).
package asmerr

import (
	"fmt"
	"strings"
)

// Kind categorizes a diagnostic.
type Kind int

const (
	KindLex Kind = iota
	KindSyntax
	KindMacro
	KindLinker
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "lex error"
	case KindSyntax:
		return "syntax error"
	case KindMacro:
		return "macro error"
	case KindLinker:
		return "linker error"
	default:
		return "error"
	}
}

// Error is one structured diagnostic: kind, source line, column, message.
type Error struct {
	Kind    Kind
	Line    int // visible source line number, 0 if not line-specific
	Column  int
	Message string
	Context string // the offending source line, for caret display

	// UserMessage marks a macro error whose Message originates from an
	// mpop/mread string-literal diagnostic rather than from the assembler
	// itself (spec §7).
	UserMessage bool
}

func New(kind Kind, line, column int, message string) *Error {
	return &Error{Kind: kind, Line: line, Column: column, Message: message}
}

func NewUser(kind Kind, line, column int, message string) *Error {
	return &Error{Kind: kind, Line: line, Column: column, Message: message, UserMessage: true}
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d: %s: %s", e.Line, e.Column, e.Kind, e.Message)
	} else {
		fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	}
	if e.Context != "" {
		sb.WriteString("\n    ")
		sb.WriteString(e.Context)
		if e.Column > 0 {
			sb.WriteString("\n    ")
			sb.WriteString(strings.Repeat(" ", e.Column-1))
			sb.WriteString("^")
		}
	}
	return sb.String()
}

// Warning is a non-fatal diagnostic that never affects exit status.
type Warning struct {
	Line    int
	Message string
}

func (w *Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%d: warning: %s", w.Line, w.Message)
	}
	return "warning: " + w.Message
}

// List collects the errors and warnings of one compilation or link.
type List struct {
	Errors   []*Error
	Warnings []*Warning
}

func (l *List) AddError(err *Error) { l.Errors = append(l.Errors, err) }

func (l *List) AddWarning(line int, message string) {
	l.Warnings = append(l.Warnings, &Warning{Line: line, Message: message})
}

func (l *List) HasErrors() bool { return len(l.Errors) > 0 }

// First returns the first error, or nil.
func (l *List) First() *Error {
	if len(l.Errors) == 0 {
		return nil
	}
	return l.Errors[0]
}

func (l *List) Error() string {
	var sb strings.Builder
	for _, e := range l.Errors {
		sb.WriteString(e.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (l *List) PrintWarnings() string {
	if len(l.Warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, w := range l.Warnings {
		sb.WriteString(w.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
