// Command mockapi serves the StaffProof collection API from a local sqlite
// store seeded with demo records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelbrown/staffproof/internal/backend"
	"github.com/abelbrown/staffproof/internal/config"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/store"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.staffproof/config.yaml)")
	listen := flag.String("listen", "", "listen address, overrides config")
	latency := flag.Duration("latency", -1, "artificial latency per request, overrides config")
	flag.Parse()

	if err := run(*configPath, *listen, *latency); err != nil {
		fmt.Fprintf(os.Stderr, "mockapi: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen string, latency time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.InitWriter(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	if listen != "" {
		cfg.Server.Listen = listen
	}
	if latency >= 0 {
		cfg.Server.Latency = latency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := backend.Seed(ctx, st); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      backend.New(st, backend.Options{Latency: cfg.Server.Latency}).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("mock API listening", "addr", srv.Addr, "db", cfg.Server.DBPath, "latency", cfg.Server.Latency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Info("mock API stopped")
	return nil
}
