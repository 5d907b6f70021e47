package vm

import "fmt"

// Word is a single memory cell.
type Word = int64

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an Intcode operation. It is the low two decimal
// digits of an instruction cell.
type Opcode int

const (
	OpAdd         Opcode = 1  // p3 = p1 + p2
	OpMultiply    Opcode = 2  // p3 = p1 * p2
	OpInput       Opcode = 3  // p1 = next input
	OpOutput      Opcode = 4  // emit p1
	OpJumpIfTrue  Opcode = 5  // if p1 != 0 { ip = p2 }
	OpJumpIfFalse Opcode = 6  // if p1 == 0 { ip = p2 }
	OpLessThan    Opcode = 7  // p3 = p1 < p2
	OpEquals      Opcode = 8  // p3 = p1 == p2
	OpHalt        Opcode = 99 // stop
)

// Mode is the addressing mode of a single operand.
type Mode int

const (
	Reference Mode = 0 // operand is a memory index
	Immediate Mode = 1 // operand is the literal value
)

func (m Mode) String() string {
	switch m {
	case Reference:
		return "ref"
	case Immediate:
		return "imm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name     string // mnemonic used by the disassembler
	Operands int    // number of operand cells following the opcode
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpAdd:         {"ADD", 3},
	OpMultiply:    {"MUL", 3},
	OpInput:       {"IN", 1},
	OpOutput:      {"OUT", 1},
	OpJumpIfTrue:  {"JT", 2},
	OpJumpIfFalse: {"JF", 2},
	OpLessThan:    {"LT", 3},
	OpEquals:      {"EQ", 3},
	OpHalt:        {"HALT", 0},
}

// Info returns metadata for the opcode. The second result is false for
// values outside the instruction set.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// String returns the mnemonic, or UNKNOWN(n) for invalid opcodes.
func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(op))
}

// Operands returns the number of operand cells the opcode consumes.
func (op Opcode) Operands() int {
	return opcodeTable[op].Operands
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	return []Opcode{
		OpAdd, OpMultiply, OpInput, OpOutput,
		OpJumpIfTrue, OpJumpIfFalse, OpLessThan, OpEquals,
		OpHalt,
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Instruction is a decoded instruction cell. Only the first
// Op.Operands() entries of Modes are meaningful.
type Instruction struct {
	Op    Opcode
	Modes [3]Mode
}

// Size returns the number of cells the instruction occupies.
func (in Instruction) Size() int {
	return 1 + in.Op.Operands()
}

// Decode splits a raw instruction cell into its opcode and the addressing
// mode of each operand. Mode digits are read from the hundreds place
// upward, one per operand, and only for operands the opcode uses.
func Decode(raw Word) (Instruction, error) {
	op := Opcode(raw % 100)
	info, ok := opcodeTable[op]
	if !ok {
		return Instruction{}, &ExecError{Kind: ErrInvalidOpCode, Value: raw}
	}

	in := Instruction{Op: op}
	modes := raw / 100
	for i := 0; i < info.Operands; i++ {
		switch digit := modes % 10; digit {
		case 0:
			in.Modes[i] = Reference
		case 1:
			in.Modes[i] = Immediate
		default:
			return Instruction{}, &ExecError{Kind: ErrInvalidParameterMode, Value: digit}
		}
		modes /= 10
	}
	return in, nil
}
