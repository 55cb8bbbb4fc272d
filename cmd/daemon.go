package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jcdickinson/doxsearch/internal/config"
	"github.com/jcdickinson/doxsearch/internal/daemon"
	"github.com/jcdickinson/doxsearch/internal/db"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background daemon (usually spawned automatically)",
	Run:   runDaemon,
}

// newDaemonServer opens the source database and builds a daemon on it.
func newDaemonServer(cfg *config.Config, socketPath string) (*daemon.Server, error) {
	database, err := db.New(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return daemon.NewServer(cfg, database, socketPath), nil
}

func runDaemon(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		slog.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(logFile, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	srv, err := newDaemonServer(cfg, config.SocketPath())
	if err != nil {
		slog.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	// a signal cancels configured imports and removes the socket
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(shutdownCtx)
	}()

	err = srv.Start(ctx)
	stop()
	<-stopped
	if err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}
