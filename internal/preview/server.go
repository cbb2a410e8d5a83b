package preview

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zishang520/socket.io/v2/socket"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/engine"
	"github.com/specialistvlad/scadlive/internal/render"
)

// Event names.
const (
	EventSource     = "source"
	EventRender     = "render"
	EventValidate   = "validate"
	EventImport     = "import"
	EventSnapshot   = "snapshot"
	EventValidation = "validation"
	EventFailure    = "failure"
)

const shutdownTimeout = 5 * time.Second

// StatusFunc reports the engine session state for the health endpoint.
type StatusFunc func() engine.Status

// Server binds one render controller to socket.io clients.
type Server struct {
	ctx    context.Context
	ctrl   *render.Controller
	status StatusFunc
	io     *socket.Server
	mux    *http.ServeMux

	unsubscribe func()
}

// New creates the server and subscribes it to ctrl. ctx carries the logger
// and bounds renders started by clients.
func New(ctx context.Context, ctrl *render.Controller, status StatusFunc) *Server {
	s := &Server{
		ctx:    ctx,
		ctrl:   ctrl,
		status: status,
		io:     socket.NewServer(nil, nil),
		mux:    http.NewServeMux(),
	}
	s.io.On("connection", s.onConnection)
	s.mux.Handle("/socket.io/", s.io.ServeHandler(nil))
	s.mux.HandleFunc("/health", s.healthHandler)
	s.unsubscribe = ctrl.Subscribe(func(snap render.Snapshot) {
		s.io.Emit(EventSnapshot, snap)
	})
	return s
}

// Handler returns the HTTP handler serving socket.io and /health.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(s.ctx)
	st := s.status()
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "engine", st.String())
	if st == engine.Failed {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "engine failed")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) onConnection(clients ...any) {
	client, ok := clients[0].(*socket.Socket)
	if !ok {
		return
	}
	logger := ctxlog.FromContext(s.ctx).With("sid", string(client.Id()))
	logger.Debug("Client connected.")
	client.Emit(EventSnapshot, s.ctrl.Snapshot())

	client.On(EventSource, func(args ...any) {
		text, ok := firstString(args)
		if !ok {
			client.Emit(EventFailure, "source expects a string")
			return
		}
		s.ctrl.OnSourceChanged(text)
	})
	client.On(EventRender, func(args ...any) {
		text, ok := firstString(args)
		if !ok {
			client.Emit(EventFailure, "render expects a string")
			return
		}
		go s.ctrl.RenderNow(s.ctx, text)
	})
	client.On(EventValidate, func(args ...any) {
		text, ok := firstString(args)
		if !ok {
			client.Emit(EventFailure, "validate expects a string")
			return
		}
		go func() {
			v, err := s.ctrl.Validate(s.ctx, text)
			if err != nil {
				client.Emit(EventFailure, err.Error())
				return
			}
			client.Emit(EventValidation, v)
		}()
	})
	client.On(EventImport, func(args ...any) {
		encoded, ok := firstString(args)
		if !ok {
			client.Emit(EventFailure, "import expects a base64 string")
			return
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			client.Emit(EventFailure, fmt.Sprintf("import is not valid base64: %v", err))
			return
		}
		if _, err := s.ctrl.ImportMesh(s.ctx, data); err != nil {
			client.Emit(EventFailure, fmt.Sprintf("import failed: %v", err))
		}
	})
	client.On("disconnect", func(...any) {
		logger.Debug("Client disconnected.")
	})
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

// Serve runs the HTTP server on ln until ctx is done, then shuts it down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 Preview server listening.", "address", fmt.Sprintf("http://%s", ln.Addr()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("preview server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("🩺 Shutting down preview server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Preview server shutdown failed.", "error", err)
		return err
	}
	logger.Debug("Preview server shut down gracefully.")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Close detaches from the controller and disconnects every client.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.io.Close(nil)
}
