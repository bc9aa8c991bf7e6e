package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	intrnl "shareboard/internal"
	"shareboard/internal/logging"
	"shareboard/internal/storage"
)

// ServerHandle represents a running board server instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	store  storage.Store
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

func openStore(cfg ServerConfig) (storage.Store, error) {
	switch cfg.Store {
	case "json":
		return storage.NewFileStore(cfg.DataDir)
	case "sqlite":
		return storage.NewSQLStore(filepath.Join(cfg.DataDir, "shareboard.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// RunServer opens the content store, wires the gateway, and starts serving
// in the background. Call Stop/Wait to manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig) (*ServerHandle, error) {
	cfg.applyDefaults()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	server := intrnl.NewServer(store, intrnl.ServerOptions{
		UploadDir:      cfg.UploadDir,
		MaxFileSize:    cfg.MaxFileSize,
		FrontendOrigin: cfg.FrontendOrigin,
		WriteRPS:       cfg.WriteRPS,
		WriteBurst:     cfg.WriteBurst,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		store:  store,
		done:   make(chan struct{}),
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Log.Error("server shutdown", "err", err)
		}
	}()

	go handle.serve(listener)

	logging.Log.Info("shareboard listening", "addr", handle.addr, "store", cfg.Store, "data_dir", cfg.DataDir)
	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if closeErr := h.store.Close(); closeErr != nil {
		logging.Log.Error("store close", "err", closeErr)
	}
	h.err = err
}
