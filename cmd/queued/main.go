package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/framepost/outbox/internal/core"
	"github.com/framepost/outbox/internal/dispatch"
	httpapi "github.com/framepost/outbox/internal/http"
	"github.com/framepost/outbox/internal/netmon"
	"github.com/framepost/outbox/internal/sender"
	"github.com/framepost/outbox/internal/store"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	_ = godotenv.Load()

	// ---- Context / signals ----
	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Store / queue ----
	dataDir := env("QUEUE_DATA_DIR", "./data")
	fs := store.NewFileStore(dataDir)
	queue := core.NewManager(fs)

	// ---- Connectivity monitor ----
	mon := netmon.New(netmon.Options{
		Endpoints:    csvEnv("NET_PROBE_ENDPOINTS"),
		Interval:     durEnv("NET_PROBE_INTERVAL_MS", 10*time.Second),
		ProbeTimeout: durEnv("NET_PROBE_TIMEOUT_MS", 5*time.Second),
	})
	go mon.Run(rootCtx)

	// ---- Senders (wire your real provider impls here) ----
	reg := sender.Registry{
		core.ChannelEmail: sender.NewDummy(),
		core.ChannelSMS:   sender.NewDummy(),
		core.ChannelMMS:   sender.NewDummy(),
	}

	// ---- Dispatcher ----
	disp := dispatch.New(queue, mon, reg, dispatch.Options{
		PollInterval: durEnv("DISPATCH_POLL_MS", 5*time.Second),
		AttemptEvery: durEnv("DISPATCH_ATTEMPT_SPACING_MS", 500*time.Millisecond),
		SendTimeout:  durEnv("DISPATCH_SEND_TIMEOUT_MS", 30*time.Second),
	})
	go func() {
		if err := disp.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("dispatcher exited: %v", err)
		}
	}()

	// ---- HTTP server ----
	srv := httpapi.NewServer(queue, mon, disp)
	host := env("HOST", "127.0.0.1")
	port := env("PORT", "8080")
	server := &http.Server{
		Addr:        host + ":" + port,
		Handler:     srv.Router(),
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: /events holds long-lived SSE streams.
	}

	go func() {
		log.Printf("HTTP listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Graceful shutdown ----
	<-rootCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func csvEnv(k string) []string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durEnv(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}
