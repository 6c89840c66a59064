// Package health implements the health-observation pipeline: a short-deadline
// HTTP probe (C1) and a coordination-store-backed cache in front of it (C2).
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
)

// Probe issues the upstream service-health GET.
type Probe struct {
	client  *http.Client
	timeout time.Duration
}

// NewProbe builds a Probe with its own connection pool, distinct and smaller
// than the payment-dispatch pool, matching spec.md §5.
func NewProbe(timeout time.Duration) *Probe {
	return &Probe{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 50,
				DisableCompression:  false,
			},
		},
		timeout: timeout,
	}
}

// Fetch calls {base}/payments/service-health and decodes the response. It
// returns (nil, nil) — absent, not an error — on any non-2xx status,
// timeout, cancellation or transport error, or missing fields; it never
// wraps network errors for the caller to inspect, per spec.md §4.1.
func (p *Probe) Fetch(ctx context.Context, baseURL string) (*model.HealthSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/payments/service-health", nil)
	if err != nil {
		return nil, nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var body struct {
		Failing         *bool `json:"failing"`
		MinResponseTime *int  `json:"minResponseTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, nil
	}
	if body.Failing == nil || body.MinResponseTime == nil {
		return nil, nil
	}

	return &model.HealthSnapshot{
		Failing:         *body.Failing,
		MinResponseTime: *body.MinResponseTime,
	}, nil
}
