// Package breaker implements the per-processor circuit breaker (C3): a
// three-state machine (Closed/Open/HalfOpen) persisted in the coordination
// store so every replica observes and contributes to the same state.
//
// No distributed lock guards these reads/writes. Per spec.md §5/§9 this is
// acceptable: the breaker is advisory, its writes are idempotent snapshots,
// and any wrong-direction drift from a stale concurrent write is bounded by
// the next observation window.
package breaker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/store"
)

const recordTTL = 10 * time.Minute

// Settings holds the breaker's tunable thresholds (spec.md §9: configuration,
// not constants).
type Settings struct {
	FOpen    int
	SClose   int
	Cooldown time.Duration
}

// Breaker is a coordination-store-backed circuit breaker for both
// processors.
type Breaker struct {
	store    *store.Store
	settings Settings
	now      func() time.Time
}

// New builds a Breaker. now defaults to time.Now; tests may override it.
func New(st *store.Store, settings Settings) *Breaker {
	return &Breaker{store: st, settings: settings, now: time.Now}
}

func key(p model.ProcessorIdentity) string {
	return "circuit_breaker:" + string(p)
}

// GetState returns the current CircuitRecord, applying the lazy
// Open → HalfOpen promotion on read (spec.md §4.3) and persisting the
// promotion if it occurs. On a coordination-store failure it degrades to
// the default Closed record — the breaker never blocks a dispatch.
func (b *Breaker) GetState(ctx context.Context, p model.ProcessorIdentity) model.CircuitRecord {
	rec, ok := b.read(ctx, p)
	if !ok {
		return model.DefaultCircuitRecord(b.now())
	}

	if rec.State == model.StateOpen && b.now().Sub(rec.LastStateChangeAt) > b.settings.Cooldown {
		rec.State = model.StateHalfOpen
		rec.SuccessCount = 0
		rec.LastStateChangeAt = b.now()
		b.write(ctx, p, rec)
	}

	return rec
}

// RecordSuccess records a successful upstream call. No-op in Closed (per
// spec.md, successes are not tracked in Closed); increments SuccessCount in
// HalfOpen, transitioning to Closed once SClose is reached; dropped while
// Open.
func (b *Breaker) RecordSuccess(ctx context.Context, p model.ProcessorIdentity) {
	rec, ok := b.read(ctx, p)
	if !ok {
		rec = model.DefaultCircuitRecord(b.now())
	}

	switch rec.State {
	case model.StateClosed:
		return
	case model.StateOpen:
		return
	case model.StateHalfOpen:
		rec.SuccessCount++
		if rec.SuccessCount >= b.settings.SClose {
			rec.State = model.StateClosed
			rec.SuccessCount = 0
			rec.FailureCount = 0
			rec.LastStateChangeAt = b.now()
		}
	}

	b.write(ctx, p, rec)
}

// RecordFailure records a failed upstream call. In Closed, increments
// FailureCount, tripping to Open (counters reset) once FOpen is reached. In
// HalfOpen, any failure trips straight back to Open. Dropped while Open.
func (b *Breaker) RecordFailure(ctx context.Context, p model.ProcessorIdentity) {
	rec, ok := b.read(ctx, p)
	if !ok {
		rec = model.DefaultCircuitRecord(b.now())
	}

	switch rec.State {
	case model.StateOpen:
		return
	case model.StateClosed:
		rec.FailureCount++
		rec.LastFailureAt = b.now()
		if rec.FailureCount >= b.settings.FOpen {
			rec.State = model.StateOpen
			rec.FailureCount = 0
			rec.SuccessCount = 0
			rec.LastStateChangeAt = b.now()
		}
	case model.StateHalfOpen:
		rec.State = model.StateOpen
		rec.FailureCount = 0
		rec.SuccessCount = 0
		rec.LastFailureAt = b.now()
		rec.LastStateChangeAt = b.now()
	}

	b.write(ctx, p, rec)
}

func (b *Breaker) read(ctx context.Context, p model.ProcessorIdentity) (model.CircuitRecord, bool) {
	raw, err := b.store.GetString(ctx, key(p))
	if err != nil {
		return model.CircuitRecord{}, false
	}
	var rec model.CircuitRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.CircuitRecord{}, false
	}
	return rec, true
}

func (b *Breaker) write(ctx context.Context, p model.ProcessorIdentity, rec model.CircuitRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := b.store.SetStringTTL(ctx, key(p), string(raw), recordTTL); err != nil {
		slog.Warn("circuit_breaker_write_failed", "processor", p, "error", err)
	}
}
