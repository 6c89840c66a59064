package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/breaker"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/decider"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/dispatch"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/health"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/httpapi"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/store"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/summary"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/upstreamsim"
)

type scenario struct {
	mr       *miniredis.Miniredis
	st       *store.Store
	primary  *upstreamsim.Server
	fallback *upstreamsim.Server
	summary  *summary.Store
	breaker  *breaker.Breaker
	router   http.Handler
}

func newScenario(t *testing.T, retryCount int, primaryBehavior, fallbackBehavior upstreamsim.Behavior) *scenario {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewFromClient(rdb)

	primary := upstreamsim.NewServer(primaryBehavior)
	fallback := upstreamsim.NewServer(fallbackBehavior)
	t.Cleanup(func() {
		primary.Close()
		fallback.Close()
	})

	baseURL := map[model.ProcessorIdentity]string{
		model.Primary:  primary.URL(),
		model.Fallback: fallback.URL(),
	}

	probe := health.NewProbe(500 * time.Millisecond)
	cache := health.NewCache(st, probe, time.Second, baseURL)
	br := breaker.New(st, breaker.Settings{FOpen: 5, SClose: 3, Cooldown: 5 * time.Second})
	dec := decider.New(br, cache, 500*time.Millisecond)
	sum := summary.New(st)

	backoff := make([]time.Duration, retryCount)
	for i := range backoff {
		backoff[i] = time.Millisecond
	}
	d := dispatch.New(dec, br, sum, baseURL, dispatch.Settings{
		RetryCount:     retryCount,
		Backoff:        backoff,
		PaymentTimeout: 2 * time.Second,
	})

	h := httpapi.New(d, sum)

	return &scenario{mr: mr, st: st, primary: primary, fallback: fallback, summary: sum, breaker: br, router: h.Router()}
}

func (s *scenario) seedHealth(t *testing.T, p model.ProcessorIdentity, snap model.HealthSnapshot) {
	t.Helper()
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, s.st.SetStringTTL(context.Background(), "health_check:"+string(p), string(raw), time.Minute))
}

func (s *scenario) postPayment(t *testing.T, correlationID string, amount float64) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"correlationId": correlationID, "amount": amount})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// S1: happy path, primary healthy.
func TestScenarioHappyPathPrimaryHealthy(t *testing.T) {
	s := newScenario(t, 3,
		upstreamsim.Behavior{PaymentStatus: 200, HealthStatus: 200},
		upstreamsim.Behavior{PaymentStatus: 200, HealthStatus: 200},
	)
	s.seedHealth(t, model.Primary, model.HealthSnapshot{Failing: false, MinResponseTime: 45})
	s.seedHealth(t, model.Fallback, model.HealthSnapshot{Failing: false, MinResponseTime: 45})

	rec := s.postPayment(t, "4a7901b8-7d26-4d9d-aa19-4dc1c7cf60b3", 19.90)
	require.Equal(t, http.StatusOK, rec.Code)

	sum := s.summary.Get(context.Background(), time.Time{}, time.Time{})
	require.Equal(t, 1, sum.Primary.TotalRequests)
	require.InDelta(t, 19.90, sum.Primary.TotalAmount, 0.001)
	require.Equal(t, 0, sum.Fallback.TotalRequests)
	require.Equal(t, 1, s.primary.RequestCount())
	require.Equal(t, 0, s.fallback.RequestCount())
}

// S2: primary slow, fallback faster.
func TestScenarioPrimarySlowFallbackFaster(t *testing.T) {
	s := newScenario(t, 3,
		upstreamsim.Behavior{PaymentStatus: 200},
		upstreamsim.Behavior{PaymentStatus: 200},
	)
	s.seedHealth(t, model.Primary, model.HealthSnapshot{Failing: false, MinResponseTime: 1200})
	s.seedHealth(t, model.Fallback, model.HealthSnapshot{Failing: false, MinResponseTime: 250})

	rec := s.postPayment(t, "2f1c9f4a-6f0a-4e2e-9e2e-1a2b3c4d5e6f", 10.00)
	require.Equal(t, http.StatusOK, rec.Code)

	sum := s.summary.Get(context.Background(), time.Time{}, time.Time{})
	require.Equal(t, 1, sum.Fallback.TotalRequests)
	require.InDelta(t, 10.00, sum.Fallback.TotalAmount, 0.001)
	require.Equal(t, 0, sum.Primary.TotalRequests)
	require.Equal(t, 0, s.primary.RequestCount())
}

// S3: primary failing, fallback healthy. The fallback's health endpoint
// answers 503, so its health is unknown and the Decider tries the primary
// first.
func TestScenarioPrimaryFailingFallbackHealthy(t *testing.T) {
	s := newScenario(t, 3,
		upstreamsim.Behavior{PaymentStatus: 500},
		upstreamsim.Behavior{PaymentStatus: 200, HealthStatus: http.StatusServiceUnavailable},
	)
	s.seedHealth(t, model.Primary, model.HealthSnapshot{Failing: true})

	rec := s.postPayment(t, "9b2e3d4c-5a6b-4c7d-8e9f-0a1b2c3d4e5f", 5.00)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 1, s.primary.RequestCount())
	require.Equal(t, 1, s.fallback.RequestCount())

	rec2 := s.breaker.GetState(context.Background(), model.Primary)
	require.Equal(t, 1, rec2.FailureCount)
}

// S4: breaker trips after FOpen consecutive failures, then routes around
// the open primary without posting to it.
func TestScenarioBreakerTrips(t *testing.T) {
	s := newScenario(t, 1,
		upstreamsim.Behavior{PaymentStatus: 500},
		upstreamsim.Behavior{PaymentStatus: 200},
	)
	s.seedHealth(t, model.Fallback, model.HealthSnapshot{Failing: false, MinResponseTime: 45})

	for i := 0; i < 5; i++ {
		s.breaker.RecordFailure(context.Background(), model.Primary)
	}
	rec := s.breaker.GetState(context.Background(), model.Primary)
	require.Equal(t, model.StateOpen, rec.State)
	require.Equal(t, 0, rec.FailureCount)

	before := s.primary.RequestCount()
	resp := s.postPayment(t, "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d", 7.50)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, before, s.primary.RequestCount())
}

// S5: recovery — after cooldown, HalfOpen probes succeed SClose times and
// the breaker closes.
func TestScenarioRecoveryAfterCooldown(t *testing.T) {
	s := newScenario(t, 1,
		upstreamsim.Behavior{PaymentStatus: 200},
		upstreamsim.Behavior{PaymentStatus: 200},
	)
	s.seedHealth(t, model.Primary, model.HealthSnapshot{Failing: false, MinResponseTime: 45})
	s.seedHealth(t, model.Fallback, model.HealthSnapshot{Failing: false, MinResponseTime: 45})

	for i := 0; i < 5; i++ {
		s.breaker.RecordFailure(context.Background(), model.Primary)
	}
	require.Equal(t, model.StateOpen, s.breaker.GetState(context.Background(), model.Primary).State)

	time.Sleep(5100 * time.Millisecond)
	require.Equal(t, model.StateHalfOpen, s.breaker.GetState(context.Background(), model.Primary).State)

	for i := 0; i < 3; i++ {
		rec := s.postPayment(t, "3c4d5e6f-7a8b-4c9d-0e1f-2a3b4c5d6e7f", 1.00)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Equal(t, model.StateClosed, s.breaker.GetState(context.Background(), model.Primary).State)
}

// S6: both processors dead; dispatch surfaces failure after exactly
// 2 x RetryCount upstream POSTs, with no summary movement.
func TestScenarioBothDeadFailureSurfaced(t *testing.T) {
	s := newScenario(t, 2,
		upstreamsim.Behavior{PaymentStatus: 500},
		upstreamsim.Behavior{PaymentStatus: 500},
	)
	s.seedHealth(t, model.Primary, model.HealthSnapshot{Failing: false, MinResponseTime: 45})
	s.seedHealth(t, model.Fallback, model.HealthSnapshot{Failing: false, MinResponseTime: 45})

	rec := s.postPayment(t, "5e6f7a8b-9c0d-4e1f-2a3b-4c5d6e7f8a9b", 3.00)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Equal(t, 2, s.primary.RequestCount())
	require.Equal(t, 2, s.fallback.RequestCount())

	sum := s.summary.Get(context.Background(), time.Time{}, time.Time{})
	require.Equal(t, 0, sum.Primary.TotalRequests)
	require.Equal(t, 0, sum.Fallback.TotalRequests)

	require.Equal(t, 2, s.breaker.GetState(context.Background(), model.Primary).FailureCount)
	require.Equal(t, 2, s.breaker.GetState(context.Background(), model.Fallback).FailureCount)
}

func TestRejectsMalformedCorrelationID(t *testing.T) {
	s := newScenario(t, 1, upstreamsim.Behavior{PaymentStatus: 200}, upstreamsim.Behavior{PaymentStatus: 200})
	rec := s.postPayment(t, "not-a-uuid", 10.00)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectsNonPositiveAmount(t *testing.T) {
	s := newScenario(t, 1, upstreamsim.Behavior{PaymentStatus: 200}, upstreamsim.Behavior{PaymentStatus: 200})
	rec := s.postPayment(t, "6f7a8b9c-0d1e-4f2a-3b4c-5d6e7f8a9b0c", 0)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthzReportsOK(t *testing.T) {
	s := newScenario(t, 1, upstreamsim.Behavior{PaymentStatus: 200}, upstreamsim.Behavior{PaymentStatus: 200})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSummaryRenamesPrimaryToDefault(t *testing.T) {
	s := newScenario(t, 1, upstreamsim.Behavior{PaymentStatus: 200}, upstreamsim.Behavior{PaymentStatus: 200})
	s.summary.Increment(context.Background(), model.Primary, 42.00)

	req := httptest.NewRequest(http.MethodGet, "/payments-summary", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "default")
	require.NotContains(t, body, "primary")
}

func TestResetSummaryClearsCounters(t *testing.T) {
	s := newScenario(t, 1, upstreamsim.Behavior{PaymentStatus: 200}, upstreamsim.Behavior{PaymentStatus: 200})
	s.summary.Increment(context.Background(), model.Primary, 42.00)

	req := httptest.NewRequest(http.MethodDelete, "/payments-summary", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	sum := s.summary.Get(context.Background(), time.Time{}, time.Time{})
	require.Equal(t, 0, sum.Primary.TotalRequests)
}
