package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("intcode.vm")

// State is the run state of a Machine.
type State int

const (
	// Running is only observed from inside Execute.
	Running State = iota
	// AwaitingInput means the machine stopped at an input instruction
	// with nothing left to read. A freshly constructed machine also
	// starts here.
	AwaitingInput
	// Finished is terminal: the halt instruction has executed.
	Finished
	// Failed is terminal: an instruction raised an execution error,
	// which Err returns.
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingInput:
		return "awaiting-input"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Machine is a single Intcode interpreter. It exclusively owns its memory.
type Machine struct {
	memory []Word
	ip     int // start of the next instruction
	cursor int // read position inside the current instruction
	state  State
	err    error // first execution failure; sticky

	// StepLimit caps the number of instructions a single Execute call may
	// run. Zero means unlimited.
	StepLimit int

	// Trace logs every decoded instruction at debug level.
	Trace bool
}

// New creates a machine that takes ownership of memory. Callers that
// want to keep the original program intact should pass a copy.
func New(memory []Word) *Machine {
	return &Machine{
		memory: memory,
		state:  AwaitingInput,
	}
}

// Execute runs the machine until it halts or needs input that has not
// been supplied. It returns the values emitted by output instructions
// during this call only.
//
// Executing a finished machine is a no-op. Once an execution error has
// been returned the machine is Failed, and every later call returns the
// same error. Output produced before a failure is returned with it.
func (m *Machine) Execute(input []Word) ([]Word, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.state == Finished {
		log.Debugf("execute on finished machine ignored (%d inputs dropped)", len(input))
		return nil, nil
	}

	queue := input
	var output []Word
	steps := 0

	m.state = Running
	for m.state == Running {
		if m.StepLimit > 0 && steps >= m.StepLimit {
			return output, m.fail(ErrStepLimit, Word(steps))
		}
		steps++
		if err := m.step(&queue, &output); err != nil {
			return output, err
		}
	}
	return output, nil
}

// step executes the instruction at ip. Effects are applied only after
// every operand has resolved, and ip moves only once they are applied.
func (m *Machine) step(input, output *[]Word) error {
	m.cursor = m.ip
	raw, err := m.fetch()
	if err != nil {
		return err
	}
	in, err := Decode(raw)
	if err != nil {
		var ee *ExecError
		if errors.As(err, &ee) {
			return m.fail(ee.Kind, ee.Value)
		}
		return err
	}
	if m.Trace {
		if text, ok := DisassembleAt(m.memory, m.ip); ok {
			log.Debugf("%6d  %s", m.ip, text)
		}
	}

	switch in.Op {
	case OpAdd, OpMultiply, OpLessThan, OpEquals:
		x, err := m.read(in.Modes[0])
		if err != nil {
			return err
		}
		y, err := m.read(in.Modes[1])
		if err != nil {
			return err
		}
		addr, err := m.target(in.Modes[2])
		if err != nil {
			return err
		}
		m.memory[addr] = apply(in.Op, x, y)

	case OpInput:
		if len(*input) == 0 {
			// Leave ip on this instruction so the next call retries it.
			m.state = AwaitingInput
			log.Debugf("awaiting input at ip=%d", m.ip)
			return nil
		}
		addr, err := m.target(in.Modes[0])
		if err != nil {
			return err
		}
		m.memory[addr] = (*input)[0]
		*input = (*input)[1:]

	case OpOutput:
		v, err := m.read(in.Modes[0])
		if err != nil {
			return err
		}
		*output = append(*output, v)

	case OpJumpIfTrue, OpJumpIfFalse:
		cond, err := m.read(in.Modes[0])
		if err != nil {
			return err
		}
		dest, err := m.read(in.Modes[1])
		if err != nil {
			return err
		}
		if (cond != 0) == (in.Op == OpJumpIfTrue) {
			if dest < 0 || dest > math.MaxInt {
				return m.fail(ErrInvalidAddress, dest)
			}
			m.ip = int(dest)
			return nil
		}

	case OpHalt:
		m.state = Finished
		log.Debugf("halted at ip=%d", m.ip)
	}

	m.ip = m.cursor
	return nil
}

func apply(op Opcode, x, y Word) Word {
	switch op {
	case OpAdd:
		return x + y
	case OpMultiply:
		return x * y
	case OpLessThan:
		if x < y {
			return 1
		}
		return 0
	default: // OpEquals
		if x == y {
			return 1
		}
		return 0
	}
}

// fail records a terminal execution error for the current instruction.
func (m *Machine) fail(kind error, value Word) error {
	m.err = &ExecError{Kind: kind, IP: m.ip, Value: value}
	m.state = Failed
	return m.err
}

// Finished reports whether the machine has executed its halt instruction.
func (m *Machine) Finished() bool {
	return m.state == Finished
}

// State returns the current run state.
func (m *Machine) State() State {
	return m.state
}

// Err returns the execution error that stopped the machine, if any.
func (m *Machine) Err() error {
	return m.err
}

// IP returns the instruction pointer.
func (m *Machine) IP() int {
	return m.ip
}

// Memory returns a snapshot of the machine's memory.
func (m *Machine) Memory() []Word {
	snapshot := make([]Word, len(m.memory))
	copy(snapshot, m.memory)
	return snapshot
}

// At returns the value of a single memory cell.
func (m *Machine) At(addr int) (Word, error) {
	if addr < 0 || addr >= len(m.memory) {
		return 0, fmt.Errorf("intcode: read cell %d: %w", addr, ErrInvalidAddress)
	}
	return m.memory[addr], nil
}

// Patch overwrites a memory cell. It is meant for setting up a program
// before the first Execute, such as supplying noun and verb cells.
func (m *Machine) Patch(addr int, value Word) error {
	if addr < 0 || addr >= len(m.memory) {
		return fmt.Errorf("intcode: patch cell %d: %w", addr, ErrInvalidAddress)
	}
	m.memory[addr] = value
	return nil
}

// Clone returns an independent copy of the machine, including its
// memory, instruction pointer and run state.
func (m *Machine) Clone() *Machine {
	c := *m
	c.memory = m.Memory()
	return &c
}
