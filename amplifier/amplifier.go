// Package amplifier runs chains of Intcode amplifiers and searches for the
// phase setting sequence that produces the highest output signal.
//
// Every amplifier runs its own copy of the same program. Each one is first
// primed with its phase setting, then the amplifiers are chained so that
// one's output feeds the next, and the chain is driven as a feedback loop
// starting from signal 0. Programs written for a single pass halt after
// the first round; feedback programs keep looping until they halt.
package amplifier

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/intcode/vm"
)

var log = commonlog.GetLogger("intcode.amplifier")

// ErrNoSignal is returned when the last amplifier produced no output.
var ErrNoSignal = errors.New("amplifier: chain produced no signal")

// Result is the outcome of a phase search.
type Result struct {
	Signal vm.Word
	Phases []vm.Word
}

// Option configures a search or a single run.
type Option func(*config)

type config struct {
	workers   int
	stepLimit int
	trace     bool
}

// WithWorkers bounds how many phase sequences are evaluated at once.
// Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithStepLimit caps the instructions each amplifier may run per round.
func WithStepLimit(n int) Option {
	return func(c *config) { c.stepLimit = n }
}

// WithTrace enables per-instruction debug logging on every amplifier.
func WithTrace(on bool) Option {
	return func(c *config) { c.trace = on }
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	return cfg
}

// Run builds one amplifier per phase setting, chains them and returns the
// final signal emitted by the last amplifier.
func Run(program []vm.Word, phases []vm.Word, opts ...Option) (vm.Word, error) {
	return run(program, phases, newConfig(opts))
}

func run(program []vm.Word, phases []vm.Word, cfg *config) (vm.Word, error) {
	if len(phases) == 0 {
		return 0, errors.New("amplifier: no phase settings")
	}

	units := make([]vm.Executor, len(phases))
	for i, phase := range phases {
		m := vm.New(append([]vm.Word(nil), program...))
		m.StepLimit = cfg.stepLimit
		m.Trace = cfg.trace
		if _, err := m.Execute([]vm.Word{phase}); err != nil {
			return 0, fmt.Errorf("amplifier %d: prime with phase %d: %w", i, phase, err)
		}
		units[i] = m
	}

	out, err := vm.RunFeedback(vm.Chain(units...), []vm.Word{0})
	if err != nil {
		return 0, fmt.Errorf("amplifier: phases %v: %w", phases, err)
	}
	if len(out) == 0 {
		return 0, ErrNoSignal
	}
	// The last amplifier may emit more than once per round; the signal
	// handed on is the first value of the final round.
	return out[0], nil
}

// MaxSignal tries every ordering of phases and returns the one that yields
// the highest signal. Orderings are generated one at a time and evaluated
// concurrently, each with its own machines, so memory stays bounded by the
// worker count. Ties go to the ordering generated first. The first
// execution error, or cancellation of ctx, stops the search.
func MaxSignal(ctx context.Context, program []vm.Word, phases []vm.Word, opts ...Option) (Result, error) {
	if len(phases) == 0 {
		return Result{}, errors.New("amplifier: no phase settings")
	}
	cfg := newConfig(opts)
	log.Debugf("searching orderings of %d phases with %d workers", len(phases), cfg.workers)

	var (
		mu      sync.Mutex
		best    Result
		bestIdx = -1
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	idx := identity(len(phases))
	for i := 0; gctx.Err() == nil; i++ {
		perm := pick(phases, idx)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			signal, err := run(program, perm, cfg)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if bestIdx < 0 || signal > best.Signal || (signal == best.Signal && i < bestIdx) {
				best = Result{Signal: signal, Phases: perm}
				bestIdx = i
			}
			return nil
		})
		if !nextPermutation(idx) {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	log.Infof("best signal %d from phases %v", best.Signal, best.Phases)
	return best, nil
}

// Permutations returns every ordering of values in lexicographic order of
// positions. The input slice is not modified.
func Permutations(values []vm.Word) [][]vm.Word {
	if len(values) == 0 {
		return nil
	}
	var result [][]vm.Word
	idx := identity(len(values))
	for {
		result = append(result, pick(values, idx))
		if !nextPermutation(idx) {
			return result
		}
	}
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// pick returns values reordered by idx.
func pick(values []vm.Word, idx []int) []vm.Word {
	out := make([]vm.Word, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// nextPermutation advances idx to the next ordering in lexicographic order.
// It reports false, leaving idx untouched, once idx is the last ordering.
func nextPermutation(idx []int) bool {
	i := len(idx) - 2
	for i >= 0 && idx[i] >= idx[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(idx) - 1
	for idx[j] <= idx[i] {
		j--
	}
	idx[i], idx[j] = idx[j], idx[i]
	slices.Reverse(idx[i+1:])
	return true
}
