package server

import (
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerStopped is returned by Do after Stop has been called.
var ErrWorkerStopped = errors.New("server: worker stopped")

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func() any
	done chan workResult
}

// workResult holds the return value from a worker operation.
type workResult struct {
	value any
	err   error
}

// Worker serializes all machine access through a single goroutine.
// Machines are not safe for concurrent use; every HTTP handler that
// touches a session's machine must go through the worker.
type Worker struct {
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() any) workResult {
	var result workResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("server: worker panic: %v", r)
				log.Errorf("%v", result.err)
			}
		}()
		result.value = fn()
	}()
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func() any) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. Later calls do nothing.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
