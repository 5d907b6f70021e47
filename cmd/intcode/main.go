// Intcode CLI - runs, disassembles and serves Intcode programs
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/intcode/manifest"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (-4 to 2); overrides [log] verbosity")
	logFile := flag.String("log", "", "Write logs to this file instead of stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: intcode [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run     Run a program once\n")
		fmt.Fprintf(os.Stderr, "  disasm  Print a disassembly listing\n")
		fmt.Fprintf(os.Stderr, "  amp     Run an amplifier chain or search for the best phases\n")
		fmt.Fprintf(os.Stderr, "  serve   Start the HTTP machine server\n")
		fmt.Fprintf(os.Stderr, "  lsp     Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSettings not given on the command line come from intcode.toml,\n")
		fmt.Fprintf(os.Stderr, "found in the current directory or any parent.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  intcode run -set 1=12 -set 2=2 input.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode run -in 5 diagnostics.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode amp -phases 5,6,7,8,9 amplifiers.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode serve -addr :8080\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default()
	}

	configureLogging(m, *verbosity, *logFile)

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "run":
		handleRunCommand(args, m)
	case "disasm":
		handleDisasmCommand(args, m)
	case "amp":
		handleAmpCommand(args, m)
	case "serve":
		handleServeCommand(args, m)
	case "lsp":
		handleLSPCommand(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

// configureLogging applies the manifest's [log] section, with command-line
// flags taking precedence.
func configureLogging(m *manifest.Manifest, verbosity int, logFile string) {
	if verbosity == 0 {
		verbosity = m.Log.Verbosity
	}
	if logFile == "" {
		logFile = m.Log.File
	}

	var path *string
	if logFile != "" {
		path = &logFile
	}
	commonlog.Configure(verbosity, path)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
