// Command gateway is the payment-dispatch-gateway process entrypoint: it
// loads configuration, wires the coordination store and every core
// component, and serves the ingress HTTP API until signaled to shut down.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/breaker"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/config"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/decider"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/dispatch"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/health"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/httpapi"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/store"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/summary"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.StoreConnectionString, store.DefaultConfig())
	if err != nil {
		slog.Error("store_dial_failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := st.Ping(pingCtx); err != nil {
		slog.Warn("store_ping_failed_continuing_degraded", "error", err)
	}
	cancel()

	baseURL := map[model.ProcessorIdentity]string{
		model.Primary:  cfg.PrimaryURL,
		model.Fallback: cfg.FallbackURL,
	}

	probe := health.NewProbe(cfg.ProbeTimeout)
	cache := health.NewCache(st, probe, cfg.CacheTTL, baseURL)
	br := breaker.New(st, breaker.Settings{
		FOpen:    cfg.FOpen,
		SClose:   cfg.SClose,
		Cooldown: cfg.TCooldown,
	})
	dec := decider.New(br, cache, cfg.LatencyLimit)
	sum := summary.New(st)
	dispatcher := dispatch.New(dec, br, sum, baseURL, dispatch.Settings{
		RetryCount:     cfg.RetryCount,
		Backoff:        cfg.Backoff,
		PaymentTimeout: cfg.PaymentTimeout,
	})

	h := httpapi.New(dispatcher, sum)
	srv := &http.Server{
		Addr:    ":" + cfg.GatewayPort,
		Handler: h.Router(),
	}

	go func() {
		slog.Info("gateway_starting", "port", cfg.GatewayPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("gateway_shutting_down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("gateway_shutdown_failed", "error", err)
	}
}
