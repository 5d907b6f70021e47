package main

import (
	"flag"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/server"
)

// handleServeCommand processes the `intcode serve` subcommand.
func handleServeCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", m.Server.Addr, "Listen address")
	maxSteps := fs.Int("max-steps", *m.Server.MaxSteps, "Instruction cap per request (0 = unlimited)")
	maxPhases := fs.Int("max-phases", *m.Server.MaxPhases, "Phase count cap for searches (0 = unlimited)")
	fs.Parse(args)

	ttl, err := m.SessionTTL()
	if err != nil {
		fatalf("%v", err)
	}

	opts := []server.ServerOption{
		server.WithMaxSteps(*maxSteps),
		server.WithMaxPhases(*maxPhases),
		server.WithSessionTTL(ttl),
	}
	if m.Amplifier.Workers > 0 {
		opts = append(opts, server.WithSearchWorkers(m.Amplifier.Workers))
	}

	srv := server.New(opts...)
	defer srv.Stop()
	if err := srv.ListenAndServe(*addr); err != nil {
		fatalf("server: %v", err)
	}
}

// handleLSPCommand processes the `intcode lsp` subcommand.
func handleLSPCommand(args []string) {
	fs := flag.NewFlagSet("lsp", flag.ExitOnError)
	fs.Parse(args)

	if err := server.NewLSP().Run(); err != nil {
		fatalf("lsp: %v", err)
	}
}
