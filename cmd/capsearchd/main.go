// Command capsearchd runs the capability search HTTP service: C1 through
// C9 wired into one process behind the transport in internal/httpapi.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"goa.design/capsearch/internal/config"
	"goa.design/capsearch/internal/service"
	"goa.design/capsearch/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("capsearchd: load config: %w", err)
	}

	telem := telemetry.Bundle{
		Logger:  telemetry.NewClueLogger(),
		Metrics: telemetry.NewClueMetrics(),
		Tracer:  telemetry.NewClueTracer(),
	}

	svc, err := service.New(ctx, cfg, telem)
	if err != nil {
		return fmt.Errorf("capsearchd: build service: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           svc.HTTP.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// errc carries the first fatal signal from either the signal handler
	// or the server goroutine, following the reference assistant command's
	// shutdown pattern (example/cmd/assistant/main.go).
	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		telem.Logger.Info(ctx, "capsearchd: listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	telem.Logger.Info(ctx, "capsearchd: exiting", "reason", (<-errc).Error())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		telem.Logger.Error(ctx, "capsearchd: http shutdown error", "error", err.Error())
	}
	if err := svc.Close(shutdownCtx); err != nil {
		telem.Logger.Error(ctx, "capsearchd: service close error", "error", err.Error())
	}
	wg.Wait()
	return nil
}
