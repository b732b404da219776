package notify

import (
	"context"
	"fmt"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/logger"
	"alertflow/pkg/metrics"
	"alertflow/pkg/ratelimit"
	"alertflow/pkg/retry"
	"alertflow/pkg/tracing"
)

// Dispatcher routes notifications to channels by name, with an optional per-channel rate limit.
type Dispatcher struct {
	channels map[string]Channel
	limiter  *ratelimit.KeyedLimiter
	logger   logger.Logger
}

func NewDispatcher(log logger.Logger, limiter *ratelimit.KeyedLimiter, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)),
		limiter:  limiter,
		logger:   log,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

// FromConfig registers webhook always, Slack when a webhook URL is set and email when an SMTP
// host is set.
func FromConfig(cfg config.NotificationsConfig, log logger.Logger) *Dispatcher {
	policy := retry.DefaultPolicy()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	channels := []Channel{NewWebhookChannel(cfg.Webhook.Timeout, policy)}
	if cfg.Slack.WebhookURL != "" {
		channels = append(channels, NewSlackChannel(cfg.Slack.WebhookURL, cfg.Webhook.Timeout, policy))
	}
	if cfg.Email.Host != "" {
		channels = append(channels, NewEmailChannel(cfg.Email))
	}

	var limiter *ratelimit.KeyedLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewKeyedLimiter(ratelimit.Config{
			RPS:             cfg.RateLimit.RPS,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: time.Duration(cfg.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(cfg.RateLimit.MaxAge) * time.Second,
		})
	}

	return NewDispatcher(log, limiter, channels...)
}

func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	return names
}

func (d *Dispatcher) Notify(ctx context.Context, channel string, n Notification) error {
	ch, ok := d.channels[channel]
	if !ok {
		metrics.IncNotification(channel, "unknown_channel")
		return fmt.Errorf("unknown notification channel %q", channel)
	}

	ctx, span := tracing.StartSpan(ctx, "alertflow/notify", "notify."+channel,
		tracing.ScopeAttributes(n.OrganizationID, n.ModuleName)...)
	defer span.End()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, channel); err != nil {
			metrics.IncRateLimit("notification", "rejected")
			metrics.IncNotification(channel, "rate_limited")
			tracing.RecordError(span, err)
			return fmt.Errorf("rate limit wait for %s: %w", channel, err)
		}
		metrics.IncRateLimit("notification", "allowed")
	}

	start := time.Now()
	err := ch.Send(ctx, n)
	metrics.ObserveNotificationDuration(channel, time.Since(start))

	if err != nil {
		metrics.IncNotification(channel, "error")
		tracing.RecordError(span, err)
		return err
	}

	metrics.IncNotification(channel, "success")
	d.logger.DebugwCtx(ctx, "Notification sent",
		"channel", channel,
		"alert_id", n.AlertID,
		"rule_id", n.RuleID,
	)
	return nil
}

// Run drives limiter cleanup until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.limiter == nil {
		<-ctx.Done()
		return nil
	}
	return d.limiter.Run(ctx)
}
