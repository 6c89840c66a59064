// Package upstreamsim is a configurable fake upstream processor used by the
// test suite (and the optional cmd/simulator binary). It is never imported
// by cmd/gateway — production traffic always hits a real upstream processor.
//
// Adapted from the example pack's mock processor (a configurable
// approval/error-rate distribution with simulated latency) but narrowed to
// the two-field payment/health contract spec.md defines, instead of that
// mock's richer ResponseCode taxonomy.
package upstreamsim

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Behavior configures how the fake processor responds.
type Behavior struct {
	// Failing marks the health endpoint's "failing" field.
	Failing bool
	// MinResponseTime is reported verbatim on the health endpoint.
	MinResponseTime int
	// ApprovalRate is the fraction of /payments calls that return 2xx.
	ApprovalRate float64
	// Latency is added before every response (simulates upstream work).
	Latency time.Duration
	// HealthStatus overrides the health endpoint's HTTP status when non-zero.
	HealthStatus int
	// PaymentStatus overrides the /payments HTTP status when non-zero;
	// otherwise ApprovalRate decides between 200 and 500.
	PaymentStatus int
}

// Server is a fake upstream processor backed by httptest.Server.
type Server struct {
	mu       sync.Mutex
	behavior Behavior
	rng      *rand.Rand

	PaymentRequests []map[string]interface{}

	httptest *httptest.Server
}

// NewServer starts a fake upstream processor with the given initial
// behavior.
func NewServer(behavior Behavior) *Server {
	s := &Server{
		behavior: behavior,
		rng:      rand.New(rand.NewSource(1)),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/payments/service-health", s.handleHealth)
	mux.HandleFunc("/payments", s.handlePayments)
	s.httptest = httptest.NewServer(mux)
	return s
}

// URL returns the fake upstream's base URL.
func (s *Server) URL() string {
	return s.httptest.URL
}

// Close shuts the fake upstream down.
func (s *Server) Close() {
	s.httptest.Close()
}

// SetBehavior atomically replaces the server's behavior, for tests that
// drive a processor from healthy to failing and back.
func (s *Server) SetBehavior(b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behavior = b
}

// RequestCount returns how many /payments calls have been received so far.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PaymentRequests)
}

func (s *Server) current() Behavior {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behavior
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	b := s.current()
	if b.Latency > 0 {
		time.Sleep(b.Latency)
	}
	if b.HealthStatus != 0 && b.HealthStatus != http.StatusOK {
		w.WriteHeader(b.HealthStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"failing":         b.Failing,
		"minResponseTime": b.MinResponseTime,
	})
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.PaymentRequests = append(s.PaymentRequests, body)
	b := s.behavior
	roll := s.rng.Float64()
	s.mu.Unlock()

	if b.Latency > 0 {
		time.Sleep(b.Latency)
	}

	if b.PaymentStatus != 0 {
		w.WriteHeader(b.PaymentStatus)
		return
	}

	approved := roll < b.ApprovalRate
	if !approved {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "payment processed"})
}
