package vm

import (
	"errors"
	"fmt"
)

// Execution failures. Each one is terminal for the machine that raised it.
var (
	ErrInvalidOpCode        = errors.New("invalid opcode")
	ErrInvalidParameterMode = errors.New("invalid parameter mode")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrImmediateModeOutput  = errors.New("write target in immediate mode")
	ErrUnexpectedEOF        = errors.New("unexpected end of program")
	ErrStepLimit            = errors.New("step limit exceeded")
)

// ErrStalled is returned by RunFeedback when every unit is waiting for
// input and no output is left to feed back.
var ErrStalled = errors.New("intcode: feedback loop stalled")

// ExecError describes an execution failure. Kind is one of the Err*
// sentinels above, so callers can match it with errors.Is.
type ExecError struct {
	Kind  error
	IP    int  // start of the failing instruction
	Value Word // offending cell value, opcode, mode digit or address
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("intcode: %v (%d) at ip=%d", e.Kind, e.Value, e.IP)
}

func (e *ExecError) Unwrap() error {
	return e.Kind
}

// LoadError reports a program text element that is not an integer.
type LoadError struct {
	Index int    // zero-based element position
	Text  string // the offending element, trimmed
	Err   error  // underlying strconv error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("intcode: load: element %d %q: %v", e.Index, e.Text, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

