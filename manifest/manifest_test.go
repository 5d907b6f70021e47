package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[program]
path = "day2.txt"

[program.patch]
1 = 12
2 = 2

[run]
input = [1, -5]
step-limit = 1000
trace = true

[amplifier]
phases = [5, 6, 7, 8, 9]
workers = 3

[server]
addr = "127.0.0.1:9000"
session-ttl = "5m"
max-steps = 500
max-phases = 8

[log]
verbosity = 2
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Path != "day2.txt" {
		t.Errorf("program path = %q, want day2.txt", m.Program.Path)
	}
	if got := m.ProgramPath(); got != filepath.Join(m.Dir, "day2.txt") {
		t.Errorf("ProgramPath() = %q, want it under %q", got, m.Dir)
	}
	if !reflect.DeepEqual(m.Run.Input, []int64{1, -5}) {
		t.Errorf("run input = %v, want [1 -5]", m.Run.Input)
	}
	if m.Run.StepLimit != 1000 || !m.Run.Trace {
		t.Errorf("run = %+v, want step-limit 1000 and trace", m.Run)
	}
	if !reflect.DeepEqual(m.Amplifier.Phases, []int64{5, 6, 7, 8, 9}) {
		t.Errorf("amplifier phases = %v, want [5 6 7 8 9]", m.Amplifier.Phases)
	}
	if m.Amplifier.Workers != 3 {
		t.Errorf("amplifier workers = %d, want 3", m.Amplifier.Workers)
	}
	if m.Server.Addr != "127.0.0.1:9000" || *m.Server.MaxSteps != 500 || *m.Server.MaxPhases != 8 {
		t.Errorf("server = %+v", m.Server)
	}
	if ttl, err := m.SessionTTL(); err != nil || ttl != 5*time.Minute {
		t.Errorf("SessionTTL() = %v, %v; want 5m", ttl, err)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}

	patches, err := m.Patches()
	if err != nil {
		t.Fatalf("Patches failed: %v", err)
	}
	want := []Patch{{Addr: 1, Value: 12}, {Addr: 2, Value: 2}}
	if !reflect.DeepEqual(patches, want) {
		t.Errorf("Patches() = %v, want %v", patches, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[run]\ninput = [7]\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Path != DefaultProgram {
		t.Errorf("default program = %q, want %q", m.Program.Path, DefaultProgram)
	}
	if !reflect.DeepEqual(m.Amplifier.Phases, []int64{0, 1, 2, 3, 4}) {
		t.Errorf("default phases = %v, want [0 1 2 3 4]", m.Amplifier.Phases)
	}
	if m.Server.Addr != DefaultAddr {
		t.Errorf("default addr = %q, want %q", m.Server.Addr, DefaultAddr)
	}
	if *m.Server.MaxSteps != DefaultMaxSteps {
		t.Errorf("default max-steps = %d, want %d", *m.Server.MaxSteps, DefaultMaxSteps)
	}
	if *m.Server.MaxPhases != DefaultMaxPhases {
		t.Errorf("default max-phases = %d, want %d", *m.Server.MaxPhases, DefaultMaxPhases)
	}
	if ttl, _ := m.SessionTTL(); ttl != DefaultSessionTTL {
		t.Errorf("default SessionTTL() = %v, want %v", ttl, DefaultSessionTTL)
	}
}

func TestParseKeepsExplicitZeroLimits(t *testing.T) {
	tests := []struct {
		content   string
		maxSteps  int
		maxPhases int
	}{
		{"[server]\nmax-steps = 0\n", 0, DefaultMaxPhases},
		{"[server]\nmax-phases = 0\n", DefaultMaxSteps, 0},
		{"[server]\nmax-steps = 0\nmax-phases = 0\n", 0, 0},
		{"[server]\naddr = \":1\"\n", DefaultMaxSteps, DefaultMaxPhases},
	}

	for _, tt := range tests {
		m, err := Parse([]byte(tt.content))
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tt.content, err)
		}
		if *m.Server.MaxSteps != tt.maxSteps {
			t.Errorf("Parse(%q) max-steps = %d, want %d", tt.content, *m.Server.MaxSteps, tt.maxSteps)
		}
		if *m.Server.MaxPhases != tt.maxPhases {
			t.Errorf("Parse(%q) max-phases = %d, want %d", tt.content, *m.Server.MaxPhases, tt.maxPhases)
		}
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Program.Path != DefaultProgram || m.Dir != "" {
		t.Errorf("Default() = %+v", m)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"unknown section", "[image]\noutput = \"x\"\n", "image"},
		{"unknown key", "[run]\ninputs = [1]\n", "inputs"},
		{"negative step limit", "[run]\nstep-limit = -1\n", "step-limit"},
		{"duplicate phases", "[amplifier]\nphases = [1, 1]\n", "phases"},
		{"wrong type", "[run]\ntrace = \"yes\"\n", "trace"},
		{"non numeric patch", "[program.patch]\nnoun = 12\n", "noun"},
		{"bad duration", "[server]\nsession-ttl = \"soon\"\n", "session-ttl"},
		{"negative max phases", "[server]\nmax-phases = -1\n", "max-phases"},
		{"verbosity out of range", "[log]\nverbosity = 9\n", "verbosity"},
		{"not toml", "[run\n", "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q does not mention %q", err, tt.errPart)
			}
		})
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[program]\npath = \"prog.txt\"\n")
	if err := os.WriteFile(filepath.Join(dir, "prog.txt"), []byte("1,0,0,0,99\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	program, err := m.LoadProgram()
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	if len(program) != 5 || program[0] != 1 || program[4] != 99 {
		t.Errorf("LoadProgram = %v, want [1 0 0 0 99]", program)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[server]\naddr = \":1234\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Server.Addr != ":1234" {
		t.Errorf("server addr = %q, want :1234", m.Server.Addr)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no intcode.toml exists")
	}
}
