package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/chazu/intcode/amplifier"
	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/vm"
)

// handleAmpCommand processes the `intcode amp` subcommand.
// Usage:
//
//	intcode amp prog.txt                        # search [amplifier] phases
//	intcode amp -phases 9,8,7,6,5 -search=false prog.txt
func handleAmpCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("amp", flag.ExitOnError)
	phaseList := fs.String("phases", "", "Comma-separated phase settings (default [amplifier] phases)")
	search := fs.Bool("search", true, "Try every ordering of the phases and report the best")
	workers := fs.Int("workers", m.Amplifier.Workers, "Concurrent orderings during a search (0 = one per CPU)")
	steps := fs.Int("steps", m.Run.StepLimit, "Maximum instructions per amplifier per round (0 = unlimited)")
	trace := fs.Bool("trace", m.Run.Trace, "Log every instruction at debug verbosity")
	fs.Parse(args)

	program := loadProgram(fs.Arg(0), m)

	phases := m.Amplifier.Phases
	if *phaseList != "" {
		parsed, err := vm.Load(*phaseList)
		if err != nil {
			fatalf("invalid -phases: %v", err)
		}
		phases = parsed
	}

	opts := []amplifier.Option{
		amplifier.WithStepLimit(*steps),
		amplifier.WithTrace(*trace),
	}
	if *workers > 0 {
		opts = append(opts, amplifier.WithWorkers(*workers))
	}

	if !*search {
		sig, err := amplifier.Run(program, phases, opts...)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Println(sig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := amplifier.MaxSignal(ctx, program, phases, opts...)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(result.Signal)
	fmt.Fprintf(os.Stderr, "Phases: %v\n", result.Phases)
}
