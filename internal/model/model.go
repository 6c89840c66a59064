// Package model holds the data types shared across the dispatch-gateway
// core: payment requests, processor identities, health snapshots and
// circuit records.
package model

import (
	"encoding/json"
	"time"
)

// ProcessorIdentity names one of the two upstream processors.
type ProcessorIdentity string

const (
	Primary  ProcessorIdentity = "primary"
	Fallback ProcessorIdentity = "fallback"
)

// Other returns the processor identity that is not p.
func (p ProcessorIdentity) Other() ProcessorIdentity {
	if p == Primary {
		return Fallback
	}
	return Primary
}

// PaymentRequest is the payment as received from the ingress collaborator.
// Immutable once built, consumed once by the Dispatcher.
type PaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

// EnrichedPayment is the payload forwarded to upstream processors. RequestedAt
// is fixed once per dispatch and reused across every retry and processor.
type EnrichedPayment struct {
	CorrelationID string    `json:"correlationId"`
	Amount        float64   `json:"amount"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// MarshalJSON renders RequestedAt with millisecond-precision UTC ISO-8601,
// matching the upstream processor's wire contract exactly.
func (e EnrichedPayment) MarshalJSON() ([]byte, error) {
	type wire struct {
		CorrelationID string  `json:"correlationId"`
		Amount        float64 `json:"amount"`
		RequestedAt   string  `json:"requestedAt"`
	}
	return json.Marshal(wire{
		CorrelationID: e.CorrelationID,
		Amount:        e.Amount,
		RequestedAt:   e.RequestedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

// HealthSnapshot is a cached observation of a processor's health.
type HealthSnapshot struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}

// CircuitState is the tagged state of a per-processor circuit breaker.
// Serialized as a short string; never compared by magic integers.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// CircuitRecord is the persisted state of one processor's circuit breaker.
type CircuitRecord struct {
	State             CircuitState `json:"state"`
	FailureCount      int          `json:"failureCount"`
	SuccessCount      int          `json:"successCount"`
	LastFailureAt     time.Time    `json:"lastFailureAt"`
	LastStateChangeAt time.Time    `json:"lastStateChangeAt"`
}

// DefaultCircuitRecord returns the record used when none is persisted yet.
func DefaultCircuitRecord(now time.Time) CircuitRecord {
	return CircuitRecord{
		State:             StateClosed,
		FailureCount:      0,
		SuccessCount:      0,
		LastStateChangeAt: now,
	}
}

// ProcessorTotals is one processor's slice of a summary query.
type ProcessorTotals struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// Summary is the aggregate response to a summary query.
type Summary struct {
	Primary  ProcessorTotals
	Fallback ProcessorTotals
}

// Outcome is the result of a single dispatch attempt.
type Outcome struct {
	Success       bool
	ProcessorUsed ProcessorIdentity
}
