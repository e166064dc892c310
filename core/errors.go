package core

// These errors are script errors, not internal errors.  Every one
// aborts the current run; nothing is retried.  The host decides
// whether to restart, resume from a prior save, or surface the
// failure.

import (
	"fmt"

	"github.com/fable-lang/fable/script"
)

// RuntimeError is the uniform error shape the engine hands to the
// host: the underlying typed error plus the source position of the
// node being evaluated.
type RuntimeError struct {
	Err error
	Pos script.Pos
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s at %d:%d", e.Err.Error(), e.Pos.Line, e.Pos.Col)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// UndefinedVariable occurs when name resolution finds no temporary
// state, top-level state, character, or function for a name.
type UndefinedVariable struct {
	Name string
}

func (e *UndefinedVariable) Error() string {
	return `undefined variable "` + e.Name + `"`
}

// BeatNotFound occurs when a transition or beat call names a beat
// that is not visible from the current scope.
type BeatNotFound struct {
	Name string
}

func (e *BeatNotFound) Error() string {
	return `beat "` + e.Name + `" not found`
}

// InvalidState occurs when temporary state is declared at top level.
type InvalidState struct{}

func (e *InvalidState) Error() string {
	return "temporary state is not allowed at top level"
}

// InvalidAssignment occurs when writing to a read-only binding (a
// character or function reference) or to an out-of-range array
// target.
type InvalidAssignment struct {
	Target string
}

func (e *InvalidAssignment) Error() string {
	return "invalid assignment to " + e.Target
}

// InvalidOperation occurs when an operator is applied to operand
// kinds it does not accept.  Right is empty for unary operators.
type InvalidOperation struct {
	Op    string
	Left  string
	Right string
}

func (e *InvalidOperation) Error() string {
	if e.Right == "" {
		return fmt.Sprintf("invalid operation: %s %s", e.Op, e.Left)
	}
	return fmt.Sprintf("invalid operation: %s %s %s", e.Left, e.Op, e.Right)
}

// DivisionByZero occurs on x / 0.
type DivisionByZero struct{}

func (e *DivisionByZero) Error() string {
	return "division by zero"
}

// ModuloByZero occurs on x % 0.
type ModuloByZero struct{}

func (e *ModuloByZero) Error() string {
	return "modulo by zero"
}

// ArrayIndexOutOfBounds occurs for direct indexing expressions only.
// The lenient built-in path (ListGet) yields null instead; the two
// behaviors are deliberately distinct.
type ArrayIndexOutOfBounds struct {
	Index  int
	Length int
}

func (e *ArrayIndexOutOfBounds) Error() string {
	return fmt.Sprintf("array index %d out of bounds (length %d)", e.Index, e.Length)
}

// StaleReference occurs at restore time when a snapshot references a
// node id that the (possibly edited) script no longer contains.
type StaleReference struct {
	Id   int
	Path string
}

func (e *StaleReference) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("snapshot references node %d (%s) which is not in the script", e.Id, e.Path)
	}
	return fmt.Sprintf("snapshot references node %d which is not in the script", e.Id)
}
