// Package notify delivers match summaries to a chat channel.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"league-matchmaker/internal/constants"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// discord rejects longer message bodies
const maxContentLength = 2000

// ErrRateLimited is returned without posting while the webhook bucket is empty.
var ErrRateLimited = errors.New("webhook rate limited")

type WebhookNotifier struct {
	url    string
	client *fasthttp.Client
	logger zerolog.Logger

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo

	now func() time.Time
}

type RateLimitInfo struct {
	Bucket    string
	Limit     int
	Remaining int
	// until the bucket refills
	ResetAfter time.Duration
	UpdatedAt  time.Time
}

type webhookPayload struct {
	Content string `json:"content"`
}

func NewWebhookNotifier(url string, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			ReadTimeout:         constants.WebhookTimeout,
			WriteTimeout:        constants.WebhookTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "webhook").Logger(),
		now:    time.Now,
	}
}

// Publish posts the text as a webhook message. Texts over the channel limit
// are truncated.
func (n *WebhookNotifier) Publish(ctx context.Context, text string) error {
	if wait := n.retryIn(); wait > 0 {
		n.logger.Warn().Dur("retry_in", wait).Msg("webhook bucket empty, summary dropped")
		return fmt.Errorf("%w: retry in %s", ErrRateLimited, wait)
	}
	if r := []rune(text); len(r) > maxContentLength {
		text = string(r[:maxContentLength-1]) + "…"
	}
	body, err := json.Marshal(webhookPayload{Content: text})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = n.client.DoDeadline(req, resp, deadline)
	} else {
		err = n.client.DoTimeout(req, resp, constants.WebhookTimeout)
	}
	if err != nil {
		n.logger.Error().Err(err).Msg("webhook request failed")
		return fmt.Errorf("failed to post webhook: %w", err)
	}

	n.updateRateLimit(resp)

	switch code := resp.StatusCode(); code {
	case fasthttp.StatusOK, fasthttp.StatusNoContent:
		n.logger.Debug().Int("status", code).Int("length", len(text)).Msg("summary published")
		return nil
	default:
		n.logger.Warn().Int("status", code).Str("body", string(resp.Body())).Msg("webhook rejected message")
		return fmt.Errorf("webhook error: %d", code)
	}
}

func (n *WebhookNotifier) RateLimit() RateLimitInfo {
	n.rateLimitMu.RLock()
	defer n.rateLimitMu.RUnlock()
	return n.rateLimit
}

// retryIn is how long until the bucket refills, zero when a post may go out.
func (n *WebhookNotifier) retryIn() time.Duration {
	rl := n.RateLimit()
	if rl.Remaining > 0 || rl.UpdatedAt.IsZero() {
		return 0
	}
	return max(0, rl.UpdatedAt.Add(rl.ResetAfter).Sub(n.now()))
}

func (n *WebhookNotifier) updateRateLimit(resp *fasthttp.Response) {
	n.rateLimitMu.Lock()
	defer n.rateLimitMu.Unlock()

	// responses without rate-limit headers keep the last known state
	remaining := string(resp.Header.Peek("X-RateLimit-Remaining"))
	if remaining == "" {
		return
	}
	if val, err := strconv.Atoi(remaining); err == nil {
		n.rateLimit.Remaining = val
	}

	if bucket := string(resp.Header.Peek("X-RateLimit-Bucket")); bucket != "" {
		n.rateLimit.Bucket = bucket
	}
	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			n.rateLimit.Limit = val
		}
	}
	if reset := string(resp.Header.Peek("X-RateLimit-Reset-After")); reset != "" {
		if val, err := strconv.ParseFloat(reset, 64); err == nil {
			n.rateLimit.ResetAfter = time.Duration(val * float64(time.Second))
		}
	}
	n.rateLimit.UpdatedAt = n.now()
}

// LogNotifier writes summaries to the log when no webhook is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Publish(_ context.Context, text string) error {
	n.logger.Info().Str("summary", text).Msg("match summary")
	return nil
}
