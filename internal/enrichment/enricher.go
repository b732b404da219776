package enrichment

import (
	"context"
	"fmt"
	"time"

	celgo "github.com/google/cel-go/cel"

	"alertflow/internal/config"
	"alertflow/internal/logger"
	"alertflow/pkg/cel"
	"alertflow/pkg/metrics"
	"alertflow/pkg/tracing"
)

type computedField struct {
	name       string
	expression string
	program    celgo.Program
}

// Enricher adds per-module computed fields to event data before conditions run.
type Enricher struct {
	evaluator *cel.Evaluator
	modules   map[string][]computedField
	logger    logger.Logger
}

// NewEnricher compiles every configured expression up front.
func NewEnricher(cfg config.EnrichmentConfig, log logger.Logger) (*Enricher, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	modules := make(map[string][]computedField, len(cfg.Modules))
	for module, fields := range cfg.Modules {
		for _, f := range fields {
			program, err := evaluator.CompileExpression(f.Expression)
			if err != nil {
				return nil, fmt.Errorf("enrichment.modules.%s.%s: %w", module, f.Name, err)
			}
			modules[module] = append(modules[module], computedField{
				name:       f.Name,
				expression: f.Expression,
				program:    program,
			})
		}
	}

	return &Enricher{
		evaluator: evaluator,
		modules:   modules,
		logger:    log,
	}, nil
}

// Enrich returns data merged with the computed fields of moduleName. Fields are evaluated in
// configuration order and later fields see earlier results. A computed field replaces a
// payload field of the same name. The input map is never modified.
func (e *Enricher) Enrich(ctx context.Context, organizationID, moduleName string, data map[string]interface{}) map[string]interface{} {
	fields := e.modules[moduleName]
	if len(fields) == 0 {
		return data
	}

	ctx, span := tracing.StartSpan(ctx, "alertflow/enrichment", "enrichment.enrich",
		tracing.ScopeAttributes(organizationID, moduleName)...)
	defer span.End()

	enriched := make(map[string]interface{}, len(data)+len(fields))
	for k, v := range data {
		enriched[k] = v
	}

	in := cel.Input{
		OrganizationID: organizationID,
		ModuleName:     moduleName,
		Timestamp:      time.Now(),
		Data:           enriched,
	}

	for _, f := range fields {
		value, err := e.evaluator.Evaluate(ctx, f.program, in)
		if err != nil {
			metrics.IncEnrichmentField(moduleName, "error")
			e.logger.WarnwCtx(ctx, "Computed field evaluation failed",
				"field", f.name,
				"expression", f.expression,
				"error", err,
			)
			continue
		}
		enriched[f.name] = value
		metrics.IncEnrichmentField(moduleName, "success")
	}

	return enriched
}

// Fields lists the computed field names of a module.
func (e *Enricher) Fields(moduleName string) []string {
	names := make([]string, 0, len(e.modules[moduleName]))
	for _, f := range e.modules[moduleName] {
		names = append(names, f.name)
	}
	return names
}
