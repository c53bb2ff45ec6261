// Package provider talks to the messaging provider that owns the instances.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// ErrProviderUnavailable is returned once every retry of a send failed.
var ErrProviderUnavailable = errors.New("messaging provider unavailable")

// RequestError is a permanent rejection by the provider (4xx other than 429).
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("provider rejected request (%d): %s", e.Status, e.Body)
}

// SendRequest is one outbound message.
type SendRequest struct {
	Instance      string `json:"-"`
	To            string `json:"to"`
	Body          string `json:"body"`
	ContentType   string `json:"content_type"`
	CorrelationID string `json:"correlation_id"`
}

// SendResult carries the provider's id for the delivered message.
type SendResult struct {
	ProviderMessageID string `json:"id"`
}

// Client sends messages through the provider.
type Client interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// HTTPClient is the REST implementation of Client.
type HTTPClient struct {
	BaseURL     string
	Token       string
	MaxAttempts int
	BaseDelay   time.Duration
	HTTPClient  *http.Client
}

// NewClientFromEnv returns the REST client, or a LogClient when
// PROVIDER_BASE_URL is not configured.
func NewClientFromEnv() Client {
	base := strings.TrimRight(strings.TrimSpace(env.GetEnv("PROVIDER_BASE_URL", "")), "/")
	if base == "" {
		log.Warn("[Provider] PROVIDER_BASE_URL not set, outbound messages are only logged")
		return &LogClient{}
	}
	return &HTTPClient{
		BaseURL:     base,
		Token:       strings.TrimSpace(env.GetEnv("PROVIDER_TOKEN", "")),
		MaxAttempts: env.GetEnvInt("PROVIDER_MAX_ATTEMPTS", 4),
		BaseDelay:   env.GetEnvDuration("PROVIDER_RETRY_DELAY", 250*time.Millisecond),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send posts the message, retrying transient failures with exponential backoff.
func (c *HTTPClient) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.Instance) == "" || strings.TrimSpace(req.To) == "" {
		return nil, errors.New("instance and recipient are required")
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/instances/%s/messages", c.BaseURL, url.PathEscape(req.Instance))

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.BaseDelay
	start := time.Now()
	defer func() { metrics.ProviderDuration.Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := c.do(ctx, endpoint, payload, req.CorrelationID)
		if err == nil {
			metrics.ProviderRequests.WithLabelValues("ok").Inc()
			return res, nil
		}
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			metrics.ProviderRequests.WithLabelValues("rejected").Inc()
			return nil, err
		}
		lastErr = err
		metrics.ProviderRequests.WithLabelValues("retry").Inc()
		log.Warnf("[Provider] Send to %s failed (attempt %d/%d): %v", req.Instance, attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	metrics.ProviderRequests.WithLabelValues("unavailable").Inc()
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

func (c *HTTPClient) do(ctx context.Context, endpoint string, payload []byte, correlationID string) (*SendResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", correlationID)
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var res SendResult
		if len(body) > 0 {
			if err := json.Unmarshal(body, &res); err != nil {
				return nil, fmt.Errorf("decode provider response: %w", err)
			}
		}
		if res.ProviderMessageID == "" {
			res.ProviderMessageID = correlationID
		}
		return &res, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider returned %d", resp.StatusCode)
	default:
		return nil, &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// LogClient accepts every message without delivering it. Used in development.
type LogClient struct{}

func (LogClient) Send(_ context.Context, req SendRequest) (*SendResult, error) {
	id := req.CorrelationID
	if id == "" {
		id = uuid.NewString()
	}
	log.Infof("[Provider] (log only) %s -> %s: %d bytes", req.Instance, req.To, len(req.Body))
	return &SendResult{ProviderMessageID: id}, nil
}
