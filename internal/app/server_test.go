package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startTestServer(t *testing.T, cfg ServerConfig) *ServerHandle {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	handle, err := RunServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunServer: %v", err)
	}
	t.Cleanup(func() {
		_ = handle.Stop(context.Background())
		_ = handle.Wait()
	})
	return handle
}

func TestRunServerServesAndStops(t *testing.T) {
	handle := startTestServer(t, ServerConfig{})
	if handle.Addr() == "" || handle.Addr() == "127.0.0.1:0" {
		t.Fatalf("expected a concrete listen address, got %q", handle.Addr())
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", handle.Addr()))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	if err := handle.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := handle.Wait(); err != nil {
		t.Fatalf("Wait after stop: %v", err)
	}
}

func TestRunServerSQLiteBackend(t *testing.T) {
	dataDir := t.TempDir()
	handle := startTestServer(t, ServerConfig{Store: "sqlite", DataDir: dataDir})

	resp, err := http.Get(fmt.Sprintf("http://%s/content", handle.Addr()))
	if err != nil {
		t.Fatalf("list content: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("content status = %d", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "shareboard.db")); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestRunServerRejectsUnknownStore(t *testing.T) {
	_, err := RunServer(context.Background(), ServerConfig{
		Addr:    "127.0.0.1:0",
		DataDir: t.TempDir(),
		Store:   "postgres",
	})
	if err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}

func TestRunServerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := RunServer(ctx, ServerConfig{Addr: "127.0.0.1:0", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("RunServer: %v", err)
	}

	cancel()
	done := make(chan error, 1)
	go func() { done <- handle.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}
