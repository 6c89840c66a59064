// Command simulator runs two fake upstream processors locally (primary and
// fallback) so the gateway can be exercised without real upstream
// processors. Not part of the dispatch core; a development convenience only.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/upstreamsim"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	primary := upstreamsim.NewServer(upstreamsim.Behavior{
		Failing:         false,
		MinResponseTime: 50,
		ApprovalRate:    0.95,
		Latency:         20 * time.Millisecond,
	})
	defer primary.Close()

	fallback := upstreamsim.NewServer(upstreamsim.Behavior{
		Failing:         false,
		MinResponseTime: 150,
		ApprovalRate:    0.99,
		Latency:         60 * time.Millisecond,
	})
	defer fallback.Close()

	slog.Info("simulator_started",
		"primary_url", primary.URL(),
		"fallback_url", fallback.URL(),
	)
	slog.Info("simulator_usage_hint",
		"hint", "set PROCESSOR_DEFAULT_URL and PROCESSOR_FALLBACK_URL to the URLs above before starting cmd/gateway",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("simulator_shutting_down")
}
