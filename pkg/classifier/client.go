// Package classifier wraps the remote ML inference service's
// /classify and /extract-entities endpoints behind bounded timeouts
// and a circuit breaker. It never retries internally; callers (the
// Processor) own the retry policy.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// CallDeadline bounds every Classify/ExtractEntities call (spec §4.2).
const CallDeadline = 5 * time.Second

// ClassifyResult is the Gateway's classify(text) response.
type ClassifyResult struct {
	Severity   string  `json:"severity"`
	Team       string  `json:"team"`
	Confidence float64 `json:"confidence"`
}

// EntityResult is the Gateway's extract_entities(text) response. Every
// field is optional; a missing field means the model found no signal
// for it, not an error.
type EntityResult struct {
	ServiceName  *string `json:"service_name,omitempty"`
	Environment  *string `json:"environment,omitempty"`
	Region       *string `json:"region,omitempty"`
	ErrorCode    *string `json:"error_code,omitempty"`
	EntitySource *string `json:"entity_source,omitempty"`
}

// Client talks to the ML inference service. Zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds a Client against baseURL (MLServiceURL from config).
// The circuit breaker opens after 5 consecutive failures and probes
// again after 30 seconds, isolating a flapping ML service from every
// concurrent Processor worker at once.
func NewClient(baseURL string) *Client {
	st := gobreaker.Settings{
		Name:        "classifier-gateway",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: CallDeadline},
		breaker:    gobreaker.NewCircuitBreaker(st),
	}
}

// Classify implements classify(text) -> {severity, team, confidence}
// (spec §4.2). Any transport error, non-2xx status, malformed body, or
// missing required key returns a non-nil error; the caller substitutes
// fallback values, it never retries here.
func (c *Client) Classify(ctx context.Context, text string) (*ClassifyResult, error) {
	var result ClassifyResult
	if err := c.call(ctx, "/classify", map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	if result.Severity == "" || result.Team == "" {
		return nil, fmt.Errorf("classifier: response missing required key")
	}
	return &result, nil
}

// ExtractEntities implements extract_entities(text) -> partial entity set.
func (c *Client) ExtractEntities(ctx context.Context, text string) (*EntityResult, error) {
	var result EntityResult
	if err := c.call(ctx, "/extract-entities", map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) call(ctx context.Context, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, CallDeadline)
	defer cancel()

	reply, err := c.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("classifier: marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("classifier: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("classifier: transport error: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("classifier: read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("classifier: non-2xx status %d", resp.StatusCode)
		}
		return raw, nil
	})
	if err != nil {
		return err
	}

	raw, ok := reply.([]byte)
	if !ok {
		return fmt.Errorf("classifier: unexpected breaker reply type %T", reply)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("classifier: malformed response body: %w", err)
	}
	return nil
}
