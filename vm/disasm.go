package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a linear listing of memory. Cells that do not
// decode, or whose operands run past the end, are listed as data.
// Intcode freely mixes code and data, so the listing is a best effort.
func Disassemble(memory []Word) string {
	var sb strings.Builder
	for ip := 0; ip < len(memory); {
		in, err := Decode(memory[ip])
		if err != nil || ip+in.Size() > len(memory) {
			sb.WriteString(fmt.Sprintf("%6d  DATA %d\n", ip, memory[ip]))
			ip++
			continue
		}
		sb.WriteString(fmt.Sprintf("%6d  %s\n", ip, formatInstruction(memory, ip, in)))
		ip += in.Size()
	}
	return sb.String()
}

// DisassembleAt describes the instruction starting at addr. The second
// result is false when the cell is not a complete instruction.
func DisassembleAt(memory []Word, addr int) (string, bool) {
	if addr < 0 || addr >= len(memory) {
		return "", false
	}
	in, err := Decode(memory[addr])
	if err != nil || addr+in.Size() > len(memory) {
		return "", false
	}
	return formatInstruction(memory, addr, in), true
}

// formatInstruction renders in, located at ip, with its operands.
// Reference operands are shown as [n], immediates as bare numbers.
func formatInstruction(memory []Word, ip int, in Instruction) string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	for i := 0; i < in.Op.Operands(); i++ {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		raw := memory[ip+1+i]
		if in.Modes[i] == Immediate {
			fmt.Fprintf(&sb, "%d", raw)
		} else {
			fmt.Fprintf(&sb, "[%d]", raw)
		}
	}
	return sb.String()
}
