package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"alertflow/internal/engine"
	"alertflow/internal/logger"
	"alertflow/internal/notify"
	apperrors "alertflow/pkg/errors"
	"alertflow/pkg/metrics"
	"alertflow/pkg/tracing"
)

const (
	OutcomeCreated      = "created"
	OutcomeDeduplicated = "deduplicated"
	OutcomeStoreError   = "store_error"
	OutcomeError        = "error"
)

const defaultDispatchTimeout = 30 * time.Second

// Notifier delivers a notification on a named channel.
type Notifier interface {
	Notify(ctx context.Context, channel string, n notify.Notification) error
}

type ExecutorConfig struct {
	OpenStatuses    []string
	DispatchTimeout time.Duration
}

// Summary counts the outcomes of one Execute call.
type Summary struct {
	Created      int `json:"created"`
	Deduplicated int `json:"deduplicated"`
	Failed       int `json:"failed"`
}

// Executor turns triggered results into deduplicated alerts and notifications. Results are
// handled one after another; trigger counting and notifications run in the background.
type Executor struct {
	store           Store
	counter         TriggerCounter
	notifier        Notifier
	openStatuses    []string
	dispatchTimeout time.Duration
	logger          logger.Logger

	wg sync.WaitGroup
}

func NewExecutor(store Store, counter TriggerCounter, notifier Notifier, cfg ExecutorConfig, log logger.Logger) *Executor {
	if counter == nil {
		counter = NoopTriggerCounter{}
	}
	if log == nil {
		log = logger.NopLogger()
	}
	timeout := cfg.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Executor{
		store:           store,
		counter:         counter,
		notifier:        notifier,
		openStatuses:    cfg.OpenStatuses,
		dispatchTimeout: timeout,
		logger:          log,
	}
}

func (x *Executor) Execute(ctx context.Context, results []engine.Result) Summary {
	ctx, span := tracing.StartSpan(ctx, "alertflow/alerts", "alerts.execute")
	defer span.End()

	var summary Summary
	for _, r := range results {
		if !r.Triggered {
			continue
		}

		outcome, err := x.executeOne(ctx, r)
		metrics.IncAlert(outcome)

		switch outcome {
		case OutcomeCreated:
			summary.Created++
		case OutcomeDeduplicated:
			summary.Deduplicated++
		default:
			summary.Failed++
		}

		if err != nil {
			tracing.RecordError(span, err)
			x.logger.ErrorwCtx(ctx, "Failed to execute rule actions",
				"rule_id", r.RuleID,
				"organization_id", r.OrganizationID,
				"outcome", outcome,
				"error", err,
			)
		}
	}

	return summary
}

func (x *Executor) executeOne(ctx context.Context, r engine.Result) (outcome string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome, err = OutcomeError, apperrors.RecoverPanic(rec)
		}
	}()

	fingerprint := Fingerprint(r.RuleID, r.EntityID())

	exists, err := x.store.ExistsOpen(ctx, r.OrganizationID, fingerprint, x.openStatuses)
	if err != nil {
		return OutcomeError, fmt.Errorf("dedup check failed: %w", err)
	}
	if exists {
		x.logger.DebugwCtx(ctx, "Open alert exists, skipping", "rule_id", r.RuleID, "fingerprint", fingerprint)
		return OutcomeDeduplicated, nil
	}

	now := time.Now().UTC()
	alert := &Alert{
		ID:             uuid.NewString(),
		OrganizationID: r.OrganizationID,
		RuleID:         r.RuleID,
		Title:          r.AlertTitle,
		Description:    r.Message,
		Severity:       string(r.Severity),
		Status:         StatusActive,
		Fingerprint:    fingerprint,
		Metadata:       r.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	outcome = OutcomeCreated
	if err = x.store.Create(ctx, alert); err != nil {
		if errors.Is(err, ErrDuplicateAlert) {
			return OutcomeDeduplicated, nil
		}
		// Notifications still go out when the audit record cannot be written.
		outcome, err = OutcomeStoreError, fmt.Errorf("failed to persist alert: %w", err)
	}

	x.spawn(ctx, "trigger_count", func(ctx context.Context) error {
		return x.counter.IncrementTriggerCount(ctx, r.OrganizationID, r.RuleID)
	})

	if x.notifier != nil {
		n := notificationFor(alert, r)
		for _, channel := range r.Actions.Channels {
			channel := channel
			x.spawn(ctx, "notify:"+channel, func(ctx context.Context) error {
				return x.notifier.Notify(ctx, channel, n)
			})
		}
	}

	return outcome, err
}

// spawn runs fn detached from the caller's cancellation with its own timeout and panic guard.
func (x *Executor) spawn(parent context.Context, task string, fn func(ctx context.Context) error) {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), x.dispatchTimeout)
		defer cancel()

		err := func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = apperrors.RecoverPanic(rec)
				}
			}()
			return fn(ctx)
		}()
		if err != nil {
			x.logger.WarnwCtx(ctx, "Background alert task failed", "task", task, "error", err)
		}
	}()
}

// Wait blocks until every background task started by Execute has finished.
func (x *Executor) Wait() {
	x.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (x *Executor) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func notificationFor(alert *Alert, r engine.Result) notify.Notification {
	link, _ := r.Metadata[engine.MetadataLink].(string)
	return notify.Notification{
		AlertID:        alert.ID,
		OrganizationID: alert.OrganizationID,
		ModuleName:     r.ModuleName,
		RuleID:         r.RuleID,
		RuleName:       r.RuleName,
		Title:          alert.Title,
		Message:        alert.Description,
		Severity:       alert.Severity,
		Fingerprint:    alert.Fingerprint,
		Link:           link,
		Metadata:       alert.Metadata,
		CreatedAt:      alert.CreatedAt,
		WebhookURL:     r.Actions.WebhookURL,
		Recipients:     r.Actions.Recipients,
	}
}
