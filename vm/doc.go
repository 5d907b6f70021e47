// Package vm implements the Intcode virtual machine.
//
// This package contains:
//   - the instruction decoder (opcode plus per-operand addressing modes)
//   - the operand resolver for Reference and Immediate modes
//   - the fetch-decode-execute engine with input suspension
//   - the Executor contract and pipe composition for amplifier chains
//   - the program loader and a disassembler
//
// A Machine is not safe for concurrent use. Callers drive it by calling
// Execute repeatedly with fresh input until Finished reports true.
package vm
