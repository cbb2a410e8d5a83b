package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
)

// Status is the state of a Session. Transitions only move forward; Failed is
// terminal.
type Status int

const (
	Uninitialized Status = iota
	Initializing
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session owns the lazily loaded engine.
type Session struct {
	loader Loader

	mu      sync.Mutex
	status  Status
	engine  Engine
	err     error
	pending chan struct{}
}

// NewSession creates a session that will load its engine with loader on
// first use.
func NewSession(loader Loader) *Session {
	return &Session{loader: loader}
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the sticky load error of a Failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Ready returns the loaded engine, starting the load if nobody has yet and
// waiting for an in-flight load otherwise. A cancelled ctx stops the wait but
// not the load itself.
func (s *Session) Ready(ctx context.Context) (Engine, error) {
	s.mu.Lock()
	switch s.status {
	case Ready:
		eng := s.engine
		s.mu.Unlock()
		return eng, nil
	case Failed:
		err := s.err
		s.mu.Unlock()
		return nil, err
	case Uninitialized:
		s.status = Initializing
		s.pending = make(chan struct{})
		go s.load(context.WithoutCancel(ctx), s.pending)
	}
	pending := s.pending
	s.mu.Unlock()

	select {
	case <-pending:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == Failed {
		return nil, s.err
	}
	return s.engine, nil
}

func (s *Session) load(ctx context.Context, done chan struct{}) {
	defer close(done)
	logger := ctxlog.FromContext(ctx)
	logger.Info("⚙️ Loading compiler engine...")
	start := time.Now()

	eng, err := safeLoad(ctx, s.loader)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = Failed
		s.err = &EngineInitError{Cause: err}
		logger.Error("Compiler engine failed to load.", "error", err)
		return
	}
	s.status = Ready
	s.engine = eng
	logger.Info("✅ Compiler engine ready.", "took", time.Since(start).Round(time.Millisecond))
}

func safeLoad(ctx context.Context, loader Loader) (eng Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	eng, err = loader.Load(ctx)
	if err == nil && eng == nil {
		err = fmt.Errorf("loader returned no engine")
	}
	return eng, err
}

// Close releases the engine if it was loaded and supports closing. It waits
// for an in-flight load first.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	eng := s.engine
	s.mu.Unlock()
	if c, ok := eng.(closer); ok {
		return c.Close(ctx)
	}
	return nil
}
