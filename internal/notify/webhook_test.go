package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Publish(t *testing.T) {
	var (
		gotBody        webhookPayload
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Header().Set("X-RateLimit-Reset-After", "1.5")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, n.Publish(ctx, "Round won by team Blue. Series score: 1-0."))
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Round won by team Blue. Series score: 1-0.", gotBody.Content)

	rl := n.RateLimit()
	assert.Equal(t, 5, rl.Limit)
	assert.Equal(t, 4, rl.Remaining)
	assert.Equal(t, 1500*time.Millisecond, rl.ResetAfter)
}

func TestWebhookNotifier_TruncatesLongMessages(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	require.NoError(t, n.Publish(context.Background(), strings.Repeat("→", 2500)))
	assert.Len(t, []rune(got.Content), maxContentLength)
	assert.True(t, strings.HasSuffix(got.Content, "…"))
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Publish(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestWebhookNotifier_SkipsWhileBucketEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset-After", "2")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	n.now = func() time.Time { return now }

	require.NoError(t, n.Publish(context.Background(), "first"))

	err := n.Publish(context.Background(), "second")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())

	// once the bucket has refilled the next summary goes out
	now = now.Add(2 * time.Second)
	require.NoError(t, n.Publish(context.Background(), "third"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookNotifier_HeaderlessResponseKeepsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	require.NoError(t, n.Publish(context.Background(), "hello"))
	require.NoError(t, n.Publish(context.Background(), "again"))
	assert.True(t, n.RateLimit().UpdatedAt.IsZero())
}

func TestLogNotifier(t *testing.T) {
	var buf strings.Builder
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Publish(context.Background(), "Match #1 was cancelled."))
	assert.Contains(t, buf.String(), `"summary":"Match #1 was cancelled."`)
}
