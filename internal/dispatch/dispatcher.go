// Package dispatch implements the Dispatcher (C5): the hot request path
// that builds an EnrichedPayment, asks the Decider for a preferred
// processor, attempts both processors, records outcomes into the circuit
// breaker and summary store, and retries up to a bounded number of times.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/breaker"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/decider"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/summary"
)

// Settings holds the dispatcher's tunables.
type Settings struct {
	RetryCount     int
	Backoff        []time.Duration
	PaymentTimeout time.Duration
}

// Dispatcher executes payment dispatch.
type Dispatcher struct {
	decider  *decider.Decider
	breaker  *breaker.Breaker
	summary  *summary.Store
	client   *http.Client
	baseURL  map[model.ProcessorIdentity]string
	settings Settings
}

// New builds a Dispatcher with a dedicated, pooled HTTP client
// (MaxIdleConnsPerHost >= 200, keep-alive, no cookies/proxy) per spec.md §5.
func New(d *decider.Decider, b *breaker.Breaker, s *summary.Store, baseURL map[model.ProcessorIdentity]string, settings Settings) *Dispatcher {
	transport := &http.Transport{
		MaxIdleConns:        400,
		MaxIdleConnsPerHost: 200,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		Proxy:               nil,
	}
	client := &http.Client{
		Timeout:   settings.PaymentTimeout,
		Transport: transport,
	}
	return &Dispatcher{
		decider:  d,
		breaker:  b,
		summary:  s,
		client:   client,
		baseURL:  baseURL,
		settings: settings,
	}
}

// ProcessPayment runs the retry loop of spec.md §4.5: up to RetryCount
// outer attempts, each trying the Decider's preferred processor then the
// other, with backoff between outer attempts. Returns a failed Outcome once
// both processors have failed on every attempt.
func (d *Dispatcher) ProcessPayment(ctx context.Context, req model.PaymentRequest) model.Outcome {
	enriched := model.EnrichedPayment{
		CorrelationID: req.CorrelationID,
		Amount:        req.Amount,
		RequestedAt:   time.Now().UTC(),
	}

	for i := 0; i < d.settings.RetryCount; i++ {
		if ctx.Err() != nil {
			return model.Outcome{Success: false}
		}

		primary := d.decider.PickPrimaryFirst(ctx)
		secondary := primary.Other()

		if outcome, ok := d.attempt(ctx, primary, enriched); ok {
			return outcome
		}
		if outcome, ok := d.attempt(ctx, secondary, enriched); ok {
			return outcome
		}

		if i < d.settings.RetryCount-1 && i < len(d.settings.Backoff) {
			select {
			case <-time.After(d.settings.Backoff[i]):
			case <-ctx.Done():
				return model.Outcome{Success: false}
			}
		}
	}

	return model.Outcome{Success: false}
}

// attempt posts to one processor and, on success, records the breaker and
// summary updates in the pinned order (breaker first, then summary). On
// failure it records the breaker failure and reports ok=false so the caller
// tries the other processor.
func (d *Dispatcher) attempt(ctx context.Context, p model.ProcessorIdentity, payment model.EnrichedPayment) (model.Outcome, bool) {
	if d.postPayment(ctx, p, payment) {
		d.breaker.RecordSuccess(ctx, p)
		d.summary.Increment(detached(ctx), p, payment.Amount)
		return model.Outcome{Success: true, ProcessorUsed: p}, true
	}
	d.breaker.RecordFailure(ctx, p)
	return model.Outcome{}, false
}

// postPayment POSTs the enriched payment to one processor. Success iff the
// response status is 2xx; any other status, timeout, or transport error is
// a failure, logged at warning level and never propagated to the caller.
func (d *Dispatcher) postPayment(ctx context.Context, p model.ProcessorIdentity, payment model.EnrichedPayment) bool {
	body, err := json.Marshal(payment)
	if err != nil {
		slog.Warn("payment_marshal_failed", "processor", p, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL[p]+"/payments", bytes.NewReader(body))
	if err != nil {
		slog.Warn("payment_request_build_failed", "processor", p, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "keep-alive")

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Warn("payment_post_failed", "processor", p, "correlationId", payment.CorrelationID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("payment_post_rejected", "processor", p, "correlationId", payment.CorrelationID, "status", resp.StatusCode)
		return false
	}
	return true
}

// detached returns a context usable for fire-and-forget summary writes even
// if the caller's context is about to be canceled — the summary write is
// explicitly allowed to outlive request cancellation once a success has
// already been confirmed upstream.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
