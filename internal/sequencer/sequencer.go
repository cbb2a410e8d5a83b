package sequencer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
)

// ErrClosed is returned for operations submitted to, or still queued on, a
// closed Sequencer.
var ErrClosed = errors.New("sequencer: closed")

// PanicError wraps a value recovered from a panicking operation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sequencer: operation panicked: %v", e.Value)
}

// task is one queued operation. run is only called by the worker.
type task struct {
	ctx  context.Context
	run  func(context.Context)
	skip func(error)
}

// Sequencer is a FIFO queue drained by a single worker goroutine.
type Sequencer struct {
	mu     sync.Mutex
	queue  []*task
	closed bool
	wake   chan struct{}
	done   chan struct{}

	submitted atomic.Int64
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

// New starts a Sequencer. Call Close to stop its worker.
func New() *Sequencer {
	s := &Sequencer{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.worker()
	return s
}

// Do enqueues op and blocks until it has run, returning op's own result.
// If ctx is done before op starts, op is skipped and ctx.Err() returned.
// Do also stops waiting once ctx is done; an op that already started then
// runs to completion with its outcome discarded.
func Do[T any](ctx context.Context, s *Sequencer, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	res := make(chan outcome, 1)
	t := &task{
		ctx: ctx,
		run: func(ctx context.Context) {
			var o outcome
			defer func() {
				if r := recover(); r != nil {
					o = outcome{err: &PanicError{Value: r, Stack: debug.Stack()}}
				}
				res <- o
			}()
			o.val, o.err = op(ctx)
		},
		skip: func(err error) { res <- outcome{err: err} },
	}
	if err := s.push(t); err != nil {
		var zero T
		return zero, err
	}
	select {
	case o := <-res:
		return o.val, o.err
	case <-ctx.Done():
		// The task still runs or is skipped later; res is buffered so its
		// outcome is dropped without blocking the worker.
		var zero T
		return zero, ctx.Err()
	}
}

func (s *Sequencer) push(t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.queue = append(s.queue, t)
	s.submitted.Add(1)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Sequencer) pop() (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, s.closed
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return t, false
}

func (s *Sequencer) worker() {
	defer close(s.done)
	for {
		t, closed := s.pop()
		if closed {
			return
		}
		if t == nil {
			<-s.wake
			continue
		}
		s.execute(t)
	}
}

func (s *Sequencer) execute(t *task) {
	if err := t.ctx.Err(); err != nil {
		ctxlog.FromContext(t.ctx).Debug("Skipping queued operation, context already done.", "error", err)
		t.skip(err)
		return
	}
	n := s.inFlight.Add(1)
	for {
		peak := s.maxFlight.Load()
		if n <= peak || s.maxFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	defer s.inFlight.Add(-1)
	t.run(t.ctx)
}

// Close stops accepting operations, fails the ones still queued with
// ErrClosed, and waits for the running one to finish.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range pending {
		t.skip(ErrClosed)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
}

// Submitted returns how many operations have been accepted.
func (s *Sequencer) Submitted() int64 {
	return s.submitted.Load()
}

// InFlight returns how many operations are running right now (0 or 1).
func (s *Sequencer) InFlight() int {
	return int(s.inFlight.Load())
}

// MaxInFlight returns the highest concurrency ever observed.
func (s *Sequencer) MaxInFlight() int {
	return int(s.maxFlight.Load())
}

// Pending returns the number of operations waiting to start.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
