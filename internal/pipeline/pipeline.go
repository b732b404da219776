package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"alertflow/internal/alerts"
	"alertflow/internal/broker"
	"alertflow/internal/engine"
	"alertflow/internal/logger"
	"alertflow/pkg/logging"
	"alertflow/pkg/models"
	"alertflow/pkg/retry"
	"alertflow/pkg/tracing"
)

const tracerName = "alertflow/pipeline"

type Evaluator interface {
	EvaluateEvent(ctx context.Context, evt *models.Event) ([]engine.Result, error)
}

type Executor interface {
	Execute(ctx context.Context, results []engine.Result) alerts.Summary
}

// Outcome is what one event produced.
type Outcome struct {
	EventID         string          `json:"event_id"`
	Results         []engine.Result `json:"results"`
	ActionsExecuted bool            `json:"actions_executed"`
	Alerts          alerts.Summary  `json:"alerts"`
}

// Triggered counts results whose condition matched.
func (o Outcome) Triggered() int {
	n := 0
	for _, r := range o.Results {
		if r.Triggered {
			n++
		}
	}
	return n
}

// Pipeline evaluates events against their scope's rules and hands triggered results to the executor.
type Pipeline struct {
	evaluator Evaluator
	executor  Executor
	logger    logger.Logger
}

// New builds a pipeline. A nil executor evaluates only.
func New(evaluator Evaluator, executor Executor, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Pipeline{
		evaluator: evaluator,
		executor:  executor,
		logger:    log,
	}
}

// Process validates evt, evaluates it and executes actions unless the event opts out.
func (p *Pipeline) Process(ctx context.Context, evt *models.Event) (Outcome, error) {
	if err := models.ValidateEvent(evt); err != nil {
		return Outcome{}, err
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	ctx = logging.WithEventID(ctx, evt.ID)
	ctx = logging.WithScope(ctx, evt.OrganizationID, evt.ModuleName)

	attrs := append(tracing.ScopeAttributes(evt.OrganizationID, evt.ModuleName),
		attribute.String("alertflow.event_id", evt.ID),
		attribute.String("alertflow.event_type", evt.Type),
	)
	ctx, span := tracing.StartSpan(ctx, tracerName, "pipeline.process", attrs...)
	defer span.End()

	results, err := p.evaluator.EvaluateEvent(ctx, evt)
	if err != nil {
		tracing.RecordError(span, err)
		return Outcome{}, fmt.Errorf("failed to evaluate event: %w", err)
	}

	out := Outcome{EventID: evt.ID, Results: results}
	span.SetAttributes(attribute.Int("alertflow.triggered", out.Triggered()))

	if p.executor == nil || !evt.ShouldExecuteActions() || out.Triggered() == 0 {
		p.logger.DebugwCtx(ctx, "Event evaluated",
			"results", len(results),
			"triggered", out.Triggered(),
		)
		return out, nil
	}

	out.Alerts = p.executor.Execute(ctx, results)
	out.ActionsExecuted = true

	p.logger.InfowCtx(ctx, "Event processed",
		"triggered", out.Triggered(),
		"alerts_created", out.Alerts.Created,
		"alerts_deduplicated", out.Alerts.Deduplicated,
		"alerts_failed", out.Alerts.Failed,
	)
	return out, nil
}

// HandleMessage is the broker handler for the event topic. Undecodable or invalid events are
// fatal so they go straight to the DLQ. Alert failures are not retried, since notifications
// already went out for them.
func (p *Pipeline) HandleMessage(ctx context.Context, msg broker.Message) error {
	var evt models.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to unmarshal event",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		return retry.NewFatalError(fmt.Errorf("failed to decode event: %w", err))
	}

	if _, err := p.Process(ctx, &evt); err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			p.logger.WarnwCtx(ctx, "Rejected invalid event",
				"error", err,
				"event_id", evt.ID,
			)
			return retry.NewFatalError(err)
		}
		return err
	}
	return nil
}
