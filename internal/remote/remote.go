// Package remote pushes a source file to a running preview server and waits
// for the render it triggers.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/render"
)

const defaultPath = "/socket.io/"

// Options tunes a push.
type Options struct {
	Namespace          string
	InsecureSkipVerify bool
}

// Push connects to serverURL, requests an immediate render of source and
// returns the first settled snapshot produced for it.
func Push(ctx context.Context, serverURL, source string, o Options) (render.Snapshot, error) {
	logger := ctxlog.FromContext(ctx).With("url", serverURL)
	logger.Debug("Push started.")
	defer logger.Debug("Push finished.")

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return render.Snapshot{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	path := parsedURL.Path
	if path == "" || path == "/" {
		path = defaultPath
	}
	ns := o.Namespace
	if ns == "" {
		ns = "/"
	}

	opts := socket.DefaultOptions()
	opts.SetPath(path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(ns, opts)
	defer io.Disconnect()

	type result struct {
		snap render.Snapshot
		err  error
	}
	done := make(chan result, 1)
	finish := func(r result) {
		select {
		case done <- r:
		default:
		}
	}

	// baseline is the request ID seen on connect; only later IDs answer the push.
	var baseline atomic.Int64
	baseline.Store(-1)

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				finish(result{err: fmt.Errorf("socket.io connection failed: %w", err)})
				return
			}
		}
		finish(result{err: fmt.Errorf("socket.io connection failed")})
	})
	io.On(types.EventName("failure"), func(args ...any) {
		finish(result{err: fmt.Errorf("server rejected request: %v", first(args))})
	})
	io.On(types.EventName("snapshot"), func(args ...any) {
		snap, err := decodeSnapshot(first(args))
		if err != nil {
			finish(result{err: err})
			return
		}
		if baseline.CompareAndSwap(-1, int64(snap.RequestID)) {
			logger.Info("Connected, pushing source.", "sid", io.Id(), "bytes", len(source))
			io.Emit("render", source)
			return
		}
		if int64(snap.RequestID) > baseline.Load() && snap.State.Terminal() {
			finish(result{snap: snap})
		}
	})

	io.Connect()

	select {
	case r := <-done:
		return r.snap, r.err
	case <-ctx.Done():
		if baseline.Load() < 0 {
			return render.Snapshot{}, fmt.Errorf("timed out while waiting for initial connection: %w", ctx.Err())
		}
		return render.Snapshot{}, fmt.Errorf("timed out waiting for render result: %w", ctx.Err())
	}
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// decodeSnapshot converts the generic JSON value the client hands us back
// into a Snapshot.
func decodeSnapshot(v any) (render.Snapshot, error) {
	var snap render.Snapshot
	raw, err := json.Marshal(v)
	if err != nil {
		return snap, fmt.Errorf("failed to re-encode snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
