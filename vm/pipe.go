package vm

// Executor is anything that can be driven like a machine: a single
// interpreter or a pipe of them.
type Executor interface {
	// Execute feeds input to the unit and returns what it produced.
	Execute(input []Word) ([]Word, error)
	// Finished reports whether the unit has stopped for good.
	Finished() bool
}

var (
	_ Executor = (*Machine)(nil)
	_ Executor = (*Pipe)(nil)
)

// Pipe connects two executors so that the output of the first becomes
// the input of the second. Pipes nest, so any number of units can be
// chained into one Executor.
type Pipe struct {
	first  Executor
	second Executor
}

// NewPipe returns a pipe that runs first, then second.
func NewPipe(first, second Executor) *Pipe {
	return &Pipe{first: first, second: second}
}

// Execute runs the first unit on input and hands its output, all at
// once, to the second unit. The first error from either stops the chain.
func (p *Pipe) Execute(input []Word) ([]Word, error) {
	out, err := p.first.Execute(input)
	if err != nil {
		return nil, err
	}
	return p.second.Execute(out)
}

// Finished is true as soon as either member has finished. In a feedback
// loop this stops the driver after the round in which the first unit
// halts, even when later units are still running.
func (p *Pipe) Finished() bool {
	return p.first.Finished() || p.second.Finished()
}

// Chain folds units left to right into nested pipes. A single unit is
// returned as is; Chain with no units returns nil.
func Chain(units ...Executor) Executor {
	if len(units) == 0 {
		return nil
	}
	chain := units[0]
	for _, next := range units[1:] {
		chain = NewPipe(chain, next)
	}
	return chain
}

// RunFeedback drives unit as a feedback loop: it executes with seed, then
// repeatedly feeds the unit's own output back in until it finishes. The
// output of the final round is returned.
func RunFeedback(unit Executor, seed []Word) ([]Word, error) {
	out, err := unit.Execute(seed)
	if err != nil {
		return nil, err
	}
	rounds := 1
	for !unit.Finished() {
		if len(out) == 0 {
			// Every unit is waiting and nothing is in flight.
			return nil, ErrStalled
		}
		if out, err = unit.Execute(out); err != nil {
			return nil, err
		}
		rounds++
	}
	log.Debugf("feedback loop finished after %d rounds", rounds)
	return out, nil
}
