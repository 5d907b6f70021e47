package vm

import (
	"errors"
	"reflect"
	"testing"
)

// runProgram executes a copy of program once and fails the test on error.
func runProgram(t *testing.T, program []Word, input ...Word) (*Machine, []Word) {
	t.Helper()
	m := New(append([]Word(nil), program...))
	out, err := m.Execute(input)
	if err != nil {
		t.Fatalf("Execute(%v) failed: %v", input, err)
	}
	return m, out
}

// ============ Final memory ============

func TestMachineFinalMemory(t *testing.T) {
	tests := []struct {
		name    string
		program []Word
		input   []Word
		want    []Word
	}{
		{"add", []Word{1, 0, 0, 0, 99}, nil, []Word{2, 0, 0, 0, 99}},
		{"multiply", []Word{2, 3, 0, 3, 99}, nil, []Word{2, 3, 0, 6, 99}},
		{"multiply past halt", []Word{2, 4, 4, 5, 99, 0}, nil, []Word{2, 4, 4, 5, 99, 9801}},
		{"self modifying", []Word{1, 1, 1, 4, 99, 5, 6, 0, 99}, nil, []Word{30, 1, 1, 4, 2, 5, 6, 0, 99}},
		{"mixed modes", []Word{1002, 4, 3, 4, 33}, nil, []Word{1002, 4, 3, 4, 99}},
		{"negative immediate", []Word{1101, 100, -1, 4, 0}, nil, []Word{1101, 100, -1, 4, 99}},
		{"input writes halt", []Word{3, 2, 0}, []Word{99}, []Word{3, 2, 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := runProgram(t, tt.program, tt.input...)
			if !m.Finished() {
				t.Errorf("Finished() = false, want true")
			}
			if got := m.Memory(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Memory() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============ Output ============

func TestMachineOutput(t *testing.T) {
	equalTo8 := []Word{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}
	jumpRef := []Word{3, 12, 6, 12, 15, 1, 13, 14, 13, 4, 13, 99, -1, 0, 1, 9}
	jumpImm := []Word{3, 3, 1105, -1, 9, 1101, 0, 0, 12, 4, 12, 99, 1}
	around8 := []Word{
		3, 21, 1008, 21, 8, 20, 1005, 20, 22, 107, 8, 21, 20, 1006, 20, 31,
		1106, 0, 36, 98, 0, 0, 1002, 21, 125, 20, 4, 20, 1105, 1, 46, 104,
		999, 1105, 1, 46, 1101, 1000, 1, 20, 4, 20, 1105, 1, 46, 98, 99,
	}

	tests := []struct {
		name    string
		program []Word
		input   Word
		want    []Word
	}{
		{"echo", []Word{3, 0, 4, 0, 99}, 7, []Word{7}},
		{"equal to 8", equalTo8, 8, []Word{1}},
		{"not equal to 8", equalTo8, 7, []Word{0}},
		{"jump reference zero", jumpRef, 0, []Word{0}},
		{"jump reference nonzero", jumpRef, 5, []Word{1}},
		{"jump immediate zero", jumpImm, 0, []Word{0}},
		{"jump immediate nonzero", jumpImm, 3, []Word{1}},
		{"below 8", around8, 7, []Word{999}},
		{"exactly 8", around8, 8, []Word{1000}},
		{"above 8", around8, 9, []Word{1001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out := runProgram(t, tt.program, tt.input)
			if !reflect.DeepEqual(out, tt.want) {
				t.Errorf("output = %v, want %v", out, tt.want)
			}
		})
	}
}

// ============ Halt ============

func TestMachineHaltsImmediately(t *testing.T) {
	program := []Word{99, 5000, 1, 2, -7}
	m, out := runProgram(t, program)
	if len(out) != 0 {
		t.Errorf("output = %v, want none", out)
	}
	if !m.Finished() || m.State() != Finished {
		t.Fatalf("State() = %s, want finished", m.State())
	}
	if got := m.Memory(); !reflect.DeepEqual(got, program) {
		t.Errorf("Memory() = %v, want %v", got, program)
	}

	ip := m.IP()
	out, err := m.Execute([]Word{1, 2})
	if err != nil || len(out) != 0 {
		t.Errorf("Execute after halt = %v, %v; want no output and no error", out, err)
	}
	if m.IP() != ip {
		t.Errorf("IP() = %d after extra Execute, want %d", m.IP(), ip)
	}
}

// ============ Suspension ============

func TestMachineAwaitsInput(t *testing.T) {
	m := New([]Word{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8})

	out, err := m.Execute(nil)
	if err != nil {
		t.Fatalf("Execute(nil) failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("output = %v, want none", out)
	}
	if m.Finished() {
		t.Error("Finished() = true while waiting for input")
	}
	if m.State() != AwaitingInput {
		t.Errorf("State() = %s, want awaiting-input", m.State())
	}
	if m.IP() != 0 {
		t.Errorf("IP() = %d, want 0 (rewound to the input instruction)", m.IP())
	}
}

func TestMachineResumeMatchesUpfrontInput(t *testing.T) {
	program := []Word{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}

	upfront, want := runProgram(t, program, 8)

	resumed := New(append([]Word(nil), program...))
	if _, err := resumed.Execute(nil); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	got, err := resumed.Execute([]Word{8})
	if err != nil {
		t.Fatalf("resumed Execute failed: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("resumed output = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(resumed.Memory(), upfront.Memory()) {
		t.Errorf("resumed memory = %v, want %v", resumed.Memory(), upfront.Memory())
	}
	if !resumed.Finished() {
		t.Error("Finished() = false after resumed run")
	}
}

func TestMachineOutputResetPerCall(t *testing.T) {
	// Emit 5, read a value, echo it, halt.
	m := New([]Word{104, 5, 3, 0, 4, 0, 99})

	out, err := m.Execute(nil)
	if err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	if !reflect.DeepEqual(out, []Word{5}) {
		t.Errorf("first output = %v, want [5]", out)
	}

	out, err = m.Execute([]Word{7})
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if !reflect.DeepEqual(out, []Word{7}) {
		t.Errorf("second output = %v, want [7]", out)
	}
}

func TestMachineDoesNotMutateInput(t *testing.T) {
	input := []Word{1, 2}
	m := New([]Word{3, 0, 99})
	if _, err := m.Execute(input); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !reflect.DeepEqual(input, []Word{1, 2}) {
		t.Errorf("input = %v, want [1 2]", input)
	}
}

// ============ Errors ============

func TestMachineErrors(t *testing.T) {
	tests := []struct {
		name    string
		program []Word
		kind    error
		ip      int
		memory  []Word // memory after the failure
	}{
		{"invalid opcode", []Word{1, 0, 0, 0, 5000, 99}, ErrInvalidOpCode, 4, []Word{2, 0, 0, 0, 5000, 99}},
		{"invalid mode", []Word{301, 0, 0, 0, 99}, ErrInvalidParameterMode, 0, []Word{301, 0, 0, 0, 99}},
		{"immediate write", []Word{11101, 1, 1, 1, 99}, ErrImmediateModeOutput, 0, []Word{11101, 1, 1, 1, 99}},
		{"negative address", []Word{1, -1, 0, 0, 99}, ErrInvalidAddress, 0, []Word{1, -1, 0, 0, 99}},
		{"address past end", []Word{1, 100, 0, 0, 99}, ErrInvalidAddress, 0, []Word{1, 100, 0, 0, 99}},
		{"write past end", []Word{1, 0, 0, 100, 99}, ErrInvalidAddress, 0, []Word{1, 0, 0, 100, 99}},
		{"negative jump", []Word{1105, 1, -5}, ErrInvalidAddress, 0, []Word{1105, 1, -5}},
		{"run off the end", []Word{1, 0, 0, 0}, ErrUnexpectedEOF, 4, []Word{2, 0, 0, 0}},
		{"truncated operands", []Word{1, 0, 0}, ErrUnexpectedEOF, 0, []Word{1, 0, 0}},
		{"jump past end", []Word{1105, 1, 50}, ErrUnexpectedEOF, 50, []Word{1105, 1, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(append([]Word(nil), tt.program...))
			_, err := m.Execute(nil)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Execute error = %v, want %v", err, tt.kind)
			}
			var ee *ExecError
			if !errors.As(err, &ee) {
				t.Fatalf("error %T is not *ExecError", err)
			}
			if ee.IP != tt.ip {
				t.Errorf("ExecError.IP = %d, want %d", ee.IP, tt.ip)
			}
			if got := m.Memory(); !reflect.DeepEqual(got, tt.memory) {
				t.Errorf("Memory() = %v, want %v", got, tt.memory)
			}
			if m.Finished() {
				t.Error("Finished() = true after failure")
			}
			if m.State() != Failed {
				t.Errorf("State() = %s, want failed", m.State())
			}
		})
	}
}

func TestMachineErrorIsSticky(t *testing.T) {
	m := New([]Word{5000})
	_, first := m.Execute(nil)
	if first == nil {
		t.Fatal("expected an error")
	}
	_, second := m.Execute([]Word{1})
	if second != first {
		t.Errorf("second Execute error = %v, want the original %v", second, first)
	}
	if m.Err() != first {
		t.Errorf("Err() = %v, want %v", m.Err(), first)
	}
	if m.State() != Failed {
		t.Errorf("State() = %s, want failed", m.State())
	}
}

func TestExecErrorMessage(t *testing.T) {
	tests := []struct {
		program []Word
		want    string
	}{
		{[]Word{5000}, "intcode: invalid opcode (5000) at ip=0"},
		{[]Word{1, 100, 0, 0, 99}, "intcode: invalid address (100) at ip=0"},
		{[]Word{11101, 1, 1, 1, 99}, "intcode: write target in immediate mode (1) at ip=0"},
	}
	for _, tt := range tests {
		_, err := New(tt.program).Execute(nil)
		if err == nil || err.Error() != tt.want {
			t.Errorf("Execute(%v) error = %v, want %q", tt.program, err, tt.want)
		}
	}
}

func TestMachineOutputBeforeFailure(t *testing.T) {
	m := New([]Word{104, 42, 5000})
	out, err := m.Execute(nil)
	if !errors.Is(err, ErrInvalidOpCode) {
		t.Fatalf("error = %v, want ErrInvalidOpCode", err)
	}
	if !reflect.DeepEqual(out, []Word{42}) {
		t.Errorf("output = %v, want [42]", out)
	}
}

func TestMachineStepLimit(t *testing.T) {
	m := New([]Word{1105, 1, 0})
	m.StepLimit = 100
	_, err := m.Execute(nil)
	if !errors.Is(err, ErrStepLimit) {
		t.Errorf("error = %v, want ErrStepLimit", err)
	}
	if m.State() != Failed {
		t.Errorf("State() = %s, want failed", m.State())
	}
}

// ============ Accessors ============

func TestMachineMemoryIsSnapshot(t *testing.T) {
	m := New([]Word{1, 0, 0, 0, 99})
	snap := m.Memory()
	snap[0] = 77
	if v, _ := m.At(0); v != 1 {
		t.Errorf("At(0) = %d after mutating snapshot, want 1", v)
	}
}

func TestMachineAtAndPatch(t *testing.T) {
	m := New([]Word{1, 0, 0, 0, 99})
	if err := m.Patch(1, 4); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if _, err := m.Execute(nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if v, err := m.At(0); err != nil || v != 100 {
		t.Errorf("At(0) = %d, %v; want 100", v, err)
	}
	if _, err := m.At(5); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("At(5) error = %v, want ErrInvalidAddress", err)
	}
	if err := m.Patch(-1, 0); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Patch(-1) error = %v, want ErrInvalidAddress", err)
	}
}

func TestMachineCloneIsIndependent(t *testing.T) {
	original := New([]Word{3, 0, 4, 0, 99})
	if _, err := original.Execute(nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	clone := original.Clone()
	out, err := clone.Execute([]Word{9})
	if err != nil {
		t.Fatalf("clone Execute failed: %v", err)
	}
	if !reflect.DeepEqual(out, []Word{9}) {
		t.Errorf("clone output = %v, want [9]", out)
	}
	if original.Finished() {
		t.Error("original finished after running the clone")
	}
	if v, _ := original.At(0); v != 3 {
		t.Errorf("original At(0) = %d, want 3", v)
	}

	out, err = original.Execute([]Word{4})
	if err != nil || !reflect.DeepEqual(out, []Word{4}) {
		t.Errorf("original output = %v, %v; want [4]", out, err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Running, "running"},
		{AwaitingInput, "awaiting-input"},
		{Finished, "finished"},
		{Failed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
