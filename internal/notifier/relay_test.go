package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmail() Email {
	return Email{
		To:       "a@example.com",
		Subject:  "Time Capsule: Hello",
		TextBody: "hi",
		HTMLBody: "<p>hi</p>",
	}
}

func TestRelaySendPostsJSON(t *testing.T) {
	var got Email
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, 2000, 3, 1000)

	require.NoError(t, n.Send(context.Background(), testEmail()))
	assert.Equal(t, "a@example.com", got.To)
	assert.Equal(t, "Time Capsule: Hello", got.Subject)
}

func TestRelaySendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, 2000, 3, 1000)

	err := n.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestRelayBreakerOpensAfterFailureStreak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, 2000, 2, 60000)

	// two real failures trip the breaker
	require.Error(t, n.Send(context.Background(), testEmail()))
	require.Error(t, n.Send(context.Background(), testEmail()))

	err := n.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker open")
}

func TestBreakerRecoversAfterProbeSuccess(t *testing.T) {
	b := NewMicroBreaker(1, 0)

	require.True(t, b.TryAcquire())
	b.OnFailure() // opens immediately with threshold 1

	// openFor elapsed (zero window): next acquire is the half-open probe
	require.True(t, b.TryAcquire())
	// a second concurrent probe is refused
	assert.False(t, b.TryAcquire())

	b.OnSuccess()
	assert.True(t, b.TryAcquire(), "closed again after the probe succeeds")
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := NewMicroBreaker(1, time.Minute)

	require.True(t, b.TryAcquire())
	b.OnFailure()
	assert.False(t, b.TryAcquire(), "open window still running")
}
