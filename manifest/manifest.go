// Package manifest handles intcode.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/intcode/vm"
)

// FileName is the name of the project configuration file.
const FileName = "intcode.toml"

// Manifest represents an intcode.toml project configuration.
type Manifest struct {
	Program   Program   `toml:"program"`
	Run       Run       `toml:"run"`
	Amplifier Amplifier `toml:"amplifier"`
	Server    Server    `toml:"server"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the intcode.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program locates the program text and the cells to patch before running.
type Program struct {
	Path  string           `toml:"path"`
	Patch map[string]int64 `toml:"patch"` // address → value
}

// Run configures a single machine run.
type Run struct {
	Input     []int64 `toml:"input"`
	StepLimit int     `toml:"step-limit"`
	Trace     bool    `toml:"trace"`
}

// Amplifier configures the phase search.
type Amplifier struct {
	Phases  []int64 `toml:"phases"`
	Workers int     `toml:"workers"`
}

// Server configures the HTTP machine server. MaxSteps and MaxPhases are
// pointers so that an explicit 0, meaning unlimited, survives defaulting.
type Server struct {
	Addr       string `toml:"addr"`
	SessionTTL string `toml:"session-ttl"`
	MaxSteps   *int   `toml:"max-steps"`
	MaxPhases  *int   `toml:"max-phases"`
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Defaults
const (
	DefaultProgram    = "program.txt"
	DefaultAddr       = ":4567"
	DefaultSessionTTL = 30 * time.Minute
	DefaultMaxSteps   = 10_000_000
	DefaultMaxPhases  = 10
)

// Load parses an intcode.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text and fills in defaults.
// The returned manifest has no Dir.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	// Defaults
	if m.Program.Path == "" {
		m.Program.Path = DefaultProgram
	}
	if len(m.Amplifier.Phases) == 0 {
		m.Amplifier.Phases = []int64{0, 1, 2, 3, 4}
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Server.MaxSteps == nil {
		m.Server.MaxSteps = intPtr(DefaultMaxSteps)
	}
	if m.Server.MaxPhases == nil {
		m.Server.MaxPhases = intPtr(DefaultMaxPhases)
	}

	return &m, nil
}

func intPtr(n int) *int { return &n }

// Default returns the manifest used when no intcode.toml exists.
func Default() *Manifest {
	m, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("manifest: default configuration invalid: %v", err))
	}
	return m
}

// FindAndLoad walks up from startDir to find an intcode.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ProgramPath returns the program file path, resolved against Dir.
func (m *Manifest) ProgramPath() string {
	if filepath.IsAbs(m.Program.Path) || m.Dir == "" {
		return m.Program.Path
	}
	return filepath.Join(m.Dir, m.Program.Path)
}

// LoadProgram reads and parses the configured program.
func (m *Manifest) LoadProgram() ([]vm.Word, error) {
	f, err := os.Open(m.ProgramPath())
	if err != nil {
		return nil, fmt.Errorf("cannot open program: %w", err)
	}
	defer f.Close()
	return vm.LoadReader(f)
}

// Patch is a single memory cell override.
type Patch struct {
	Addr  int
	Value vm.Word
}

// Patches returns the configured cell overrides ordered by address.
func (m *Manifest) Patches() ([]Patch, error) {
	patches := make([]Patch, 0, len(m.Program.Patch))
	for key, value := range m.Program.Patch {
		addr, err := strconv.Atoi(key)
		if err != nil || addr < 0 {
			return nil, fmt.Errorf("invalid patch address %q", key)
		}
		patches = append(patches, Patch{Addr: addr, Value: value})
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].Addr < patches[j].Addr })
	return patches, nil
}

// SessionTTL returns how long idle server sessions are kept.
func (m *Manifest) SessionTTL() (time.Duration, error) {
	if m.Server.SessionTTL == "" {
		return DefaultSessionTTL, nil
	}
	d, err := time.ParseDuration(m.Server.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session-ttl %q: %w", m.Server.SessionTTL, err)
	}
	return d, nil
}
