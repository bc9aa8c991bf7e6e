package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"shareboard/internal/app"
	"shareboard/internal/logging"
)

func main() {
	_ = godotenv.Load(".env")

	configPath := flag.String("config", getEnv("SHAREBOARD_CONFIG", ""), "path to YAML config file")
	addr := flag.String("addr", getEnv("SHAREBOARD_ADDR", ""), "server listen address")
	dataDir := flag.String("data", getEnv("SHAREBOARD_DATA_DIR", ""), "directory for persisted collections")
	uploadDir := flag.String("uploads", getEnv("SHAREBOARD_UPLOAD_DIR", ""), "directory for uploaded files")
	storeBackend := flag.String("store", getEnv("SHAREBOARD_STORE", ""), "store backend: json or sqlite")
	logLevel := flag.String("log-level", getEnv("SHAREBOARD_LOG_LEVEL", ""), "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := app.LoadConfigFile(*configPath)
	if err != nil {
		logging.Log.Error("load config", "err", err)
		os.Exit(1)
	}
	// flags and env override the config file.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *uploadDir != "" {
		cfg.UploadDir = *uploadDir
	}
	if *storeBackend != "" {
		cfg.Store = *storeBackend
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		logging.Log.Error("start server", "err", err)
		os.Exit(1)
	}
	if err := handle.Wait(); err != nil {
		logging.Log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
