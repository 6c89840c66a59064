// Package decider implements the processor-selection algorithm (C4): given
// circuit states and cached health, which processor should be attempted
// first.
package decider

import (
	"context"
	"sync"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/breaker"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/health"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
)

// Decider picks which processor a dispatch attempt should try first.
type Decider struct {
	breaker      *breaker.Breaker
	cache        *health.Cache
	latencyLimit time.Duration
}

// New builds a Decider.
func New(b *breaker.Breaker, c *health.Cache, latencyLimit time.Duration) *Decider {
	return &Decider{breaker: b, cache: c, latencyLimit: latencyLimit}
}

// PickPrimaryFirst runs the nine-step algorithm of spec.md §4.4 and returns
// the processor that should be attempted first. It never mutates state
// except via CircuitBreaker's lazy Open → HalfOpen promotion inside
// GetState.
func (d *Decider) PickPrimaryFirst(ctx context.Context) model.ProcessorIdentity {
	primaryState, fallbackState := d.bothStates(ctx)

	// 2/3: primary Open.
	if primaryState.State == model.StateOpen {
		if fallbackState.State != model.StateOpen {
			return model.Fallback
		}
		return model.Primary
	}

	// 4: primary HalfOpen — probe with live traffic if health looks good.
	if primaryState.State == model.StateHalfOpen {
		h := d.cache.GetHealth(ctx, model.Primary)
		if h != nil && !h.Failing {
			return model.Primary
		}
		return model.Fallback
	}

	// 5: fallback Open (primary not Open, handled above).
	if fallbackState.State == model.StateOpen {
		return model.Primary
	}

	// 6: fallback HalfOpen.
	if fallbackState.State == model.StateHalfOpen {
		h := d.cache.GetHealth(ctx, model.Fallback)
		if h != nil && !h.Failing {
			return model.Fallback
		}
		return model.Primary
	}

	// 7/8/9: both Closed.
	primaryHealth, fallbackHealth := d.bothHealth(ctx)

	if primaryHealth != nil && !primaryHealth.Failing && primaryHealth.MinResponseTime < int(d.latencyLimit.Milliseconds()) {
		return model.Primary
	}
	if fallbackHealth != nil && !fallbackHealth.Failing {
		return model.Fallback
	}
	return model.Primary
}

func (d *Decider) bothStates(ctx context.Context) (model.CircuitRecord, model.CircuitRecord) {
	var wg sync.WaitGroup
	var primary, fallback model.CircuitRecord
	wg.Add(2)
	go func() {
		defer wg.Done()
		primary = d.breaker.GetState(ctx, model.Primary)
	}()
	go func() {
		defer wg.Done()
		fallback = d.breaker.GetState(ctx, model.Fallback)
	}()
	wg.Wait()
	return primary, fallback
}

func (d *Decider) bothHealth(ctx context.Context) (*model.HealthSnapshot, *model.HealthSnapshot) {
	var wg sync.WaitGroup
	var primary, fallback *model.HealthSnapshot
	wg.Add(2)
	go func() {
		defer wg.Done()
		primary = d.cache.GetHealth(ctx, model.Primary)
	}()
	go func() {
		defer wg.Done()
		fallback = d.cache.GetHealth(ctx, model.Fallback)
	}()
	wg.Wait()
	return primary, fallback
}
