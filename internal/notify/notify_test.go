package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/config"
	"alertflow/internal/logger"
	"alertflow/pkg/ratelimit"
	"alertflow/pkg/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func sample() Notification {
	return Notification{
		AlertID:        "a-1",
		OrganizationID: "org-1",
		RuleID:         "capacity-surge",
		Title:          "Kitchen load 21",
		Message:        "Station grill is overloaded",
		Severity:       "warning",
		Fingerprint:    "capacity-surge:grill",
		Link:           "https://ops.example.com/kitchen",
		CreatedAt:      time.Now(),
	}
}

func TestWebhookChannel_Send(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := sample()
	n.WebhookURL = srv.URL

	require.NoError(t, NewWebhookChannel(time.Second, fastPolicy()).Send(context.Background(), n))
	assert.Equal(t, "a-1", got.AlertID)
	assert.Equal(t, "capacity-surge:grill", got.Fingerprint)
}

func TestWebhookChannel_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := sample()
	n.WebhookURL = srv.URL

	require.NoError(t, NewWebhookChannel(time.Second, fastPolicy()).Send(context.Background(), n))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookChannel_ClientErrorIsFinal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := sample()
	n.WebhookURL = srv.URL

	assert.Error(t, NewWebhookChannel(time.Second, fastPolicy()).Send(context.Background(), n))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWebhookChannel_NoURL(t *testing.T) {
	err := NewWebhookChannel(time.Second, fastPolicy()).Send(context.Background(), sample())
	assert.ErrorIs(t, err, ErrNoWebhookURL)
}

func TestSlackChannel_Send(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewSlackChannel(srv.URL, time.Second, fastPolicy()).Send(context.Background(), sample()))
	assert.Equal(t, "[warning] Kitchen load 21", got.Text)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "warning", got.Attachments[0].Color)
	assert.Equal(t, "https://ops.example.com/kitchen", got.Attachments[0].TitleLink)
}

func TestEmailChannel_Send(t *testing.T) {
	ch := NewEmailChannel(config.EmailConfig{Host: "smtp.example.com", From: "alerts@example.com"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	ch.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	n := sample()
	n.Title = "line\r\nBcc: evil@example.com"
	assert.ErrorIs(t, ch.Send(context.Background(), n), ErrNoRecipients)

	n.Recipients = []string{"chef@example.com"}
	require.NoError(t, ch.Send(context.Background(), n))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"chef@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [WARNING] line  Bcc: evil@example.com\r\n")
	assert.Contains(t, gotMsg, "Station grill is overloaded")
	assert.False(t, strings.Contains(gotMsg, "\r\nBcc:"))
}

type stubChannel struct {
	name  string
	err   error
	calls int32
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(context.Context, Notification) error {
	atomic.AddInt32(&s.calls, 1)
	return s.err
}

func TestDispatcher_Notify(t *testing.T) {
	ok := &stubChannel{name: "slack"}
	failing := &stubChannel{name: "webhook", err: errors.New("boom")}
	d := NewDispatcher(logger.NopLogger(), nil, ok, failing)

	assert.ElementsMatch(t, []string{"slack", "webhook"}, d.Channels())
	assert.NoError(t, d.Notify(context.Background(), "slack", sample()))
	assert.Error(t, d.Notify(context.Background(), "webhook", sample()))
	assert.Error(t, d.Notify(context.Background(), "pager", sample()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ok.calls))
}

func TestDispatcher_RateLimited(t *testing.T) {
	ch := &stubChannel{name: "slack"}
	limiter := ratelimit.NewKeyedLimiter(ratelimit.Config{RPS: 0.001, Burst: 1})
	d := NewDispatcher(logger.NopLogger(), limiter, ch)

	require.NoError(t, d.Notify(context.Background(), "slack", sample()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Notify(ctx, "slack", sample()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ch.calls))
}

func TestFromConfig(t *testing.T) {
	d := FromConfig(config.NotificationsConfig{
		Slack: config.SlackConfig{WebhookURL: "https://hooks.slack.example/x"},
	}, logger.NopLogger())
	assert.ElementsMatch(t, []string{"webhook", "slack"}, d.Channels())
}
