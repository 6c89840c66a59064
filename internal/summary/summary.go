// Package summary implements the aggregate counters (C6): atomic
// count/amount counters per processor, a read operation, and a reset for
// test environments.
package summary

import (
	"context"
	"log/slog"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/store"
)

// Store is the coordination-store-backed summary aggregate.
type Store struct {
	store *store.Store
}

// New builds a Store.
func New(st *store.Store) *Store {
	return &Store{store: st}
}

func requestsKey(p model.ProcessorIdentity) string {
	return "payment_summary:" + string(p) + ":requests"
}

func amountKey(p model.ProcessorIdentity) string {
	return "payment_summary:" + string(p) + ":amount"
}

// Increment atomically bumps the request count by 1 and the amount total by
// amount for the given processor. Fire-and-forget: callers need not wait for
// this to land before responding to the client (spec.md §4.6).
func (s *Store) Increment(ctx context.Context, p model.ProcessorIdentity, amount float64) {
	if _, err := s.store.IncrBy(ctx, requestsKey(p), 1); err != nil {
		slog.Warn("summary_increment_failed", "processor", p, "counter", "requests", "error", err)
	}
	if _, err := s.store.IncrByFloat(ctx, amountKey(p), amount); err != nil {
		slog.Warn("summary_increment_failed", "processor", p, "counter", "amount", "error", err)
	}
}

// Get returns global totals per processor. The from/to window parameters
// are accepted for API compatibility with the ingress contract but are not
// used to bucket results — this repository, like the system it is modeled
// on, never time-buckets summary data; see DESIGN.md.
func (s *Store) Get(ctx context.Context, from, to time.Time) model.Summary {
	_ = from
	_ = to

	primaryRequests, _ := s.store.GetInt(ctx, requestsKey(model.Primary))
	primaryAmount, _ := s.store.GetFloat(ctx, amountKey(model.Primary))
	fallbackRequests, _ := s.store.GetInt(ctx, requestsKey(model.Fallback))
	fallbackAmount, _ := s.store.GetFloat(ctx, amountKey(model.Fallback))

	return model.Summary{
		Primary: model.ProcessorTotals{
			TotalRequests: int(primaryRequests),
			TotalAmount:   primaryAmount,
		},
		Fallback: model.ProcessorTotals{
			TotalRequests: int(fallbackRequests),
			TotalAmount:   fallbackAmount,
		},
	}
}

// Reset deletes all four counter keys. For test/operational use only.
func (s *Store) Reset(ctx context.Context) error {
	return s.store.Delete(ctx,
		requestsKey(model.Primary), amountKey(model.Primary),
		requestsKey(model.Fallback), amountKey(model.Fallback),
	)
}
