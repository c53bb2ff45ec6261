package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *HTTPClient {
	return &HTTPClient{BaseURL: url, Token: "secret", MaxAttempts: 3, BaseDelay: time.Millisecond, HTTPClient: &http.Client{Timeout: time.Second}}
}

func TestSendSucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/instances/main/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["body"])
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "wamid.1"})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Send(context.Background(), SendRequest{Instance: "main", To: "5511", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", res.ProviderMessageID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendReturnsUnavailableAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), SendRequest{Instance: "main", To: "5511", Body: "x"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendDoesNotRetryRejections(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown recipient", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), SendRequest{Instance: "main", To: "x", Body: "x"})
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusUnprocessableEntity, reqErr.Status)
	assert.False(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendValidatesRequest(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Send(context.Background(), SendRequest{Body: "x"})
	assert.Error(t, err)
}

func TestWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"message"}`)
	sig := SignWebhook(payload, "s3cret")

	assert.True(t, VerifyWebhookSignature(payload, sig, "s3cret"))
	assert.True(t, VerifyWebhookSignature(payload, sig[len("sha256="):], "s3cret"))
	assert.False(t, VerifyWebhookSignature(payload, sig, "other"))
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), sig, "s3cret"))
	assert.False(t, VerifyWebhookSignature(payload, "", "s3cret"))
}
