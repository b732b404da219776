package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"alertflow/internal/constants"
	"alertflow/internal/logger"
	"alertflow/internal/rules"
	"alertflow/pkg/condition"
	apperrors "alertflow/pkg/errors"
	"alertflow/pkg/logging"
	"alertflow/pkg/metrics"
	"alertflow/pkg/template"
	"alertflow/pkg/tracing"
)

const tracerName = "alertflow/engine"

var (
	ErrMissingOrganization = errors.New("engine requires an organization id")
	ErrMissingSource       = errors.New("engine requires a rule source")
	ErrRuleRejected        = errors.New("rule rejected")
)

type Options struct {
	OrganizationID string
	ModuleName     string
	Source         rules.Source
	CacheTTL       time.Duration
	BatchSize      int
	Guard          condition.Guard
	SetThreshold   int
	EntityIDFields []string
	Enricher       Enricher
	Logger         logger.Logger
}

// Engine evaluates the rules of one organization module. Its rule cache and "in" set cache
// belong to this instance only.
type Engine struct {
	scope          rules.Scope
	cache          *rules.Cache
	evaluator      *condition.Evaluator
	guard          condition.Guard
	entityIDFields []string
	enricher       Enricher
	logger         logger.Logger

	statsMu sync.Mutex
	stats   Stats
}

func New(opts Options) (*Engine, error) {
	if opts.OrganizationID == "" {
		return nil, ErrMissingOrganization
	}
	if opts.Source == nil {
		return nil, ErrMissingSource
	}

	log := opts.Logger
	if log == nil {
		log = logger.NopLogger()
	}
	log = log.With("organization_id", opts.OrganizationID, "module_name", opts.ModuleName)

	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = constants.DefaultRuleCacheTTL
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultRuleBatchSize
	}
	entityIDFields := opts.EntityIDFields
	if len(entityIDFields) == 0 {
		entityIDFields = constants.DefaultEntityIDFields
	}

	scope := rules.Scope{OrganizationID: opts.OrganizationID, ModuleName: opts.ModuleName}

	return &Engine{
		scope:          scope,
		cache:          rules.NewCache(opts.Source, scope, batchSize, ttl),
		evaluator:      condition.NewEvaluator(log, condition.WithSetThreshold(opts.SetThreshold)),
		guard:          opts.Guard,
		entityIDFields: entityIDFields,
		enricher:       opts.Enricher,
		logger:         log,
	}, nil
}

func (e *Engine) Scope() rules.Scope {
	return e.scope
}

// Evaluate loads the scope's rules and runs them against data. A rule source failure is
// logged and yields no results.
func (e *Engine) Evaluate(ctx context.Context, data map[string]interface{}, ectx EvaluationContext) []Result {
	ctx = logging.WithScope(ctx, e.scope.OrganizationID, e.scope.ModuleName)

	ruleSet, hit, err := e.cache.Rules(ctx)
	if err != nil {
		metrics.IncRuleCache(e.scope.ModuleName, "error")
		e.logger.ErrorwCtx(ctx, "Failed to load rules", "error", err)
		return nil
	}
	if hit {
		metrics.IncRuleCache(e.scope.ModuleName, "hit")
	} else {
		metrics.IncRuleCache(e.scope.ModuleName, "miss")
		metrics.SetEngineActiveRules(e.scope.ModuleName, len(ruleSet))
	}

	if len(ruleSet) == 0 {
		return nil
	}

	if ectx.Data == nil {
		ectx.Data = data
		if e.enricher != nil {
			ectx.Data = e.enricher.Enrich(ctx, e.scope.OrganizationID, e.scope.ModuleName, data)
		}
	}

	return e.EvaluateBatch(ctx, ruleSet, data, ectx)
}

// EvaluateBatch runs each rule independently. Conditions see ectx.Data (falling back to data);
// templates only see data. Rejected and failed rules are logged and left out of the results.
func (e *Engine) EvaluateBatch(ctx context.Context, ruleSet []rules.Rule, data map[string]interface{}, ectx EvaluationContext) []Result {
	if ectx.OrganizationID == "" {
		ectx.OrganizationID = e.scope.OrganizationID
	}
	if ectx.ModuleName == "" {
		ectx.ModuleName = e.scope.ModuleName
	}
	if ectx.Data == nil {
		ectx.Data = data
	}
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = time.Now()
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "engine.evaluate_batch",
		tracing.ScopeAttributes(ectx.OrganizationID, ectx.ModuleName)...)
	defer span.End()

	start := time.Now()
	results := make([]Result, 0, len(ruleSet))
	var triggered, rejected, failed int64

	for _, rule := range ruleSet {
		result, err := e.evaluateRule(rule, data, ectx)
		switch {
		case errors.Is(err, ErrRuleRejected):
			rejected++
			metrics.IncRuleEvaluation(ectx.ModuleName, "rejected")
			e.logger.ErrorwCtx(ctx, "Rule rejected", "rule_id", rule.ID, "error", err)
			continue
		case err != nil:
			failed++
			metrics.IncRuleEvaluation(ectx.ModuleName, "error")
			e.logger.ErrorwCtx(ctx, "Rule evaluation failed", "rule_id", rule.ID, "error", err)
			continue
		}

		if result.Triggered {
			triggered++
			metrics.IncRuleEvaluation(ectx.ModuleName, "triggered")
		} else {
			metrics.IncRuleEvaluation(ectx.ModuleName, "not_triggered")
		}
		results = append(results, result)
	}

	elapsed := time.Since(start)
	e.recordStats(int64(len(ruleSet)), triggered, rejected, failed, elapsed)

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	metrics.IncEngineEvaluation(ectx.ModuleName, status)
	metrics.ObserveEngineEvaluationDuration(ectx.ModuleName, elapsed)

	e.logger.DebugwCtx(ctx, "Evaluated rule batch",
		"rules", len(ruleSet),
		"triggered", triggered,
		"rejected", rejected,
		"errors", failed,
		"duration_ms", elapsed.Milliseconds(),
	)

	return results
}

func (e *Engine) evaluateRule(rule rules.Rule, data map[string]interface{}, ectx EvaluationContext) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()

	if err := rule.Validate(e.guard); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRuleRejected, err)
	}
	cond, err := condition.Compile(rule.Conditions)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRuleRejected, err)
	}

	result = Result{
		RuleID:         rule.ID,
		RuleName:       rule.RuleName,
		OrganizationID: ectx.OrganizationID,
		ModuleName:     ectx.ModuleName,
		Severity:       rule.Severity,
		Condition:      rule.Conditions,
		Actions:        rule.Actions,
		EvaluatedAt:    time.Now(),
	}

	result.Triggered = e.evaluator.EvaluateCondition(cond, ectx.Data)
	if !result.Triggered {
		return result, nil
	}

	title := rule.Actions.TitleTemplate
	if title == "" {
		title = rule.RuleName
	}
	message := rule.Actions.MessageTemplate
	if message == "" {
		message = rule.Description
	}
	result.AlertTitle = template.Interpolate(title, data)
	result.Message = template.Interpolate(message, data)
	result.Metadata = e.resultMetadata(rule, data, ectx)

	return result, nil
}

func (e *Engine) resultMetadata(rule rules.Rule, data map[string]interface{}, ectx EvaluationContext) map[string]interface{} {
	meta := make(map[string]interface{}, len(ectx.Metadata)+3)
	for k, v := range ectx.Metadata {
		meta[k] = v
	}
	if id, ok := entityID(data, e.entityIDFields); ok {
		meta[MetadataEntityID] = id
	}
	if link := rule.Actions.Link(); link != "" {
		meta[MetadataLink] = template.Interpolate(link, data)
	}
	if ectx.UserID != "" {
		meta[MetadataUserID] = ectx.UserID
	}
	return meta
}

// entityID returns the first field in fields holding a string or number.
func entityID(data map[string]interface{}, fields []string) (string, bool) {
	for _, f := range fields {
		v := condition.Extract(data, f)
		switch v.Kind() {
		case condition.KindString:
			s, _ := v.AsString()
			if s != "" {
				return s, true
			}
		case condition.KindNumber:
			if n, ok := v.AsNumber(); ok {
				return strconv.FormatFloat(n, 'f', -1, 64), true
			}
		}
	}
	return "", false
}

func (e *Engine) recordStats(evaluated, triggered, rejected, failed int64, elapsed time.Duration) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.TotalEvaluated += evaluated
	e.stats.Triggered += triggered
	e.stats.Rejected += rejected
	e.stats.Errors += failed
	e.stats.LastDuration = elapsed
	e.stats.LastEvaluatedAt = time.Now()
}

func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *Engine) ResetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats = Stats{}
}

// ClearCache drops the cached rules and "in" sets. In-flight evaluations finish with the
// rule set they already loaded.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.evaluator.SetCache().Clear()
	e.logger.Infow("Rule cache cleared")
}
