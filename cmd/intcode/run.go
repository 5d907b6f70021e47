package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/vm"
)

// patchFlag collects repeated -set addr=value flags.
type patchFlag []manifest.Patch

func (p *patchFlag) String() string {
	parts := make([]string, len(*p))
	for i, patch := range *p {
		parts[i] = fmt.Sprintf("%d=%d", patch.Addr, patch.Value)
	}
	return strings.Join(parts, ",")
}

func (p *patchFlag) Set(s string) error {
	addr, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected addr=value, got %q", s)
	}
	a, err := strconv.Atoi(strings.TrimSpace(addr))
	if err != nil || a < 0 {
		return fmt.Errorf("invalid address %q", addr)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", value)
	}
	*p = append(*p, manifest.Patch{Addr: a, Value: v})
	return nil
}

// handleRunCommand processes the `intcode run` subcommand.
// Usage:
//
//	intcode run                   # program and input from intcode.toml
//	intcode run -in 1 prog.txt    # single run with input 1
//	intcode run -set 1=12 prog.txt
func handleRunCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("in", "", "Comma-separated input values (default [run] input)")
	steps := fs.Int("steps", m.Run.StepLimit, "Maximum instructions to execute (0 = unlimited)")
	trace := fs.Bool("trace", m.Run.Trace, "Log every instruction at debug verbosity")
	var patches patchFlag
	fs.Var(&patches, "set", "Set memory cell before running, as addr=value (repeatable)")
	fs.Parse(args)

	memory := loadProgram(fs.Arg(0), m)

	values := m.Run.Input
	if *input != "" {
		parsed, err := vm.Load(*input)
		if err != nil {
			fatalf("invalid -in: %v", err)
		}
		values = parsed
	}

	configured, err := m.Patches()
	if err != nil {
		fatalf("%v", err)
	}

	machine := vm.New(memory)
	machine.StepLimit = *steps
	machine.Trace = *trace
	for _, p := range append(configured, patches...) {
		if err := machine.Patch(p.Addr, p.Value); err != nil {
			fatalf("%v", err)
		}
	}

	out, err := machine.Execute(values)
	for _, v := range out {
		fmt.Println(v)
	}
	if err != nil {
		fatalf("%v", err)
	}

	if !machine.Finished() {
		fmt.Fprintf(os.Stderr, "Machine is waiting for input at ip=%d\n", machine.IP())
		os.Exit(3)
	}
	cell0, _ := machine.At(0)
	fmt.Fprintf(os.Stderr, "Halted; cell 0 = %d\n", cell0)
}

// handleDisasmCommand processes the `intcode disasm` subcommand.
func handleDisasmCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)

	fmt.Print(vm.Disassemble(loadProgram(fs.Arg(0), m)))
}

// loadProgram reads the program at path, "-" for stdin, or the manifest's
// program when path is empty.
func loadProgram(path string, m *manifest.Manifest) []vm.Word {
	var (
		memory []vm.Word
		err    error
	)
	switch path {
	case "":
		memory, err = m.LoadProgram()
	case "-":
		memory, err = vm.LoadReader(os.Stdin)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err == nil {
			defer f.Close()
			memory, err = vm.LoadReader(f)
		}
	}
	if err != nil {
		fatalf("%v", err)
	}
	return memory
}
