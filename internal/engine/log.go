package engine

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
)

// Log accumulates the engine's error-channel lines for one operation.
type Log struct {
	mu    sync.Mutex
	lines []string
}

// Append records one line. Blank lines are dropped.
func (l *Log) Append(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// Lines returns a copy of the recorded lines in order.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return nil
	}
	return append([]string(nil), l.lines...)
}

// LineWriter is an io.Writer that splits its input into lines and hands each
// complete line to a callback. Adapters use it to bridge a stderr stream to
// the error hook.
type LineWriter struct {
	mu   sync.Mutex
	emit func(string)
	buf  bytes.Buffer
}

// NewLineWriter returns a LineWriter calling emit for every line.
func NewLineWriter(emit func(string)) *LineWriter {
	return &LineWriter{emit: emit}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		if w.emit != nil {
			w.emit(strings.TrimRight(line, "\r\n"))
		}
	}
	return len(p), nil
}

// NewDebugWriter returns a LineWriter that logs each line at Debug through
// the context logger. Adapters point the engine's stdout at it; stdout is not
// part of the diagnostic channel.
func NewDebugWriter(ctx context.Context, stream string) *LineWriter {
	logger := ctxlog.FromContext(ctx)
	return NewLineWriter(func(line string) {
		logger.Debug("Engine output.", "stream", stream, "line", line)
	})
}

// Flush emits any trailing partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 && w.emit != nil {
		w.emit(w.buf.String())
	}
	w.buf.Reset()
}
