package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"alertflow/internal/alerts"
	"alertflow/internal/api"
	"alertflow/internal/broker"
	"alertflow/internal/config"
	"alertflow/internal/constants"
	"alertflow/internal/engine"
	"alertflow/internal/enrichment"
	"alertflow/internal/logger"
	"alertflow/internal/management"
	"alertflow/internal/notify"
	"alertflow/internal/pipeline"
	"alertflow/internal/rules"
	"alertflow/pkg/bootstrap"
	"alertflow/pkg/condition"
	"alertflow/pkg/health"
	"alertflow/pkg/logging"
	"alertflow/pkg/metrics"
	"alertflow/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbs            *bootstrap.Databases
	checks         *health.CheckerRegistry
	manager        *engine.Manager
	dispatcher     *notify.Dispatcher
	executor       *alerts.Executor
	pipeline       *pipeline.Pipeline
	updates        *rules.UpdateHandler
	server         *api.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		dbs:    bootstrap.NewDatabases(cfg, log),
		checks: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterEngineMetrics()
	metrics.RegisterAlertMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.dbs.Connect(initCtx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	a.dbs.RegisterChecks(a.checks)

	source, err := a.ruleSource()
	if err != nil {
		return fmt.Errorf("failed to initialize rule source: %w", err)
	}

	enricher, err := enrichment.NewEnricher(a.Config.Enrichment, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize enrichment: %w", err)
	}

	guard := condition.Guard{
		MaxDepth:      a.Config.Engine.MaxDepth,
		MaxConditions: a.Config.Engine.MaxConditions,
	}
	a.manager = engine.NewManager(engine.Options{
		Source:         source,
		CacheTTL:       a.Config.Engine.RuleCacheTTL,
		BatchSize:      a.Config.Engine.BatchSize,
		Guard:          guard,
		SetThreshold:   a.Config.Engine.InSetThreshold,
		EntityIDFields: a.Config.Engine.EntityIDFields,
		Enricher:       enricher,
		Logger:         a.Logger,
	})

	store, err := a.alertStore()
	if err != nil {
		return fmt.Errorf("failed to initialize alert store: %w", err)
	}

	counter, err := a.triggerCounter()
	if err != nil {
		return fmt.Errorf("failed to initialize trigger counter: %w", err)
	}

	a.dispatcher = notify.FromConfig(a.Config.Notifications, a.Logger)
	a.executor = alerts.NewExecutor(store, counter, a.dispatcher, alerts.ExecutorConfig{
		OpenStatuses:    a.Config.Alerts.OpenStatuses,
		DispatchTimeout: a.Config.Alerts.DispatchTimeout,
	}, a.Logger)

	a.pipeline = pipeline.New(a.manager, a.executor, a.Logger)
	a.updates = rules.NewUpdateHandler(a.manager, a.Logger)

	a.InitConsumers(serviceName)

	var extra []api.RouteRegistrar
	if rulesAPI := a.rulesAPI(guard); rulesAPI != nil {
		extra = append(extra, rulesAPI)
	}

	handler := api.NewHandler(a.pipeline, a.manager, guard, a.Logger)
	a.server = api.NewServer(api.ServerOptions{
		Server:      a.Config.Server,
		RateLimit:   a.Config.API.RateLimit,
		Tracing:     a.Config.Tracing.Enabled,
		ServiceName: serviceName,
		Extra:       extra,
	}, handler, a.checks, a.Logger)

	a.Logger.InfowCtx(ctx, "Alert engine initialized",
		"rule_source", a.Config.Rules.Source,
		"alert_store", a.Config.Alerts.Store,
		"trigger_counter", a.Config.Alerts.TriggerCounter,
		"channels", a.dispatcher.Channels(),
		"kafka", a.Config.Broker.Kafka.Enabled(),
	)
	return nil
}

// rulesAPI exposes rule management when rules live in Postgres. Changes clear the local cache
// and, with Kafka configured, are announced to the other instances.
func (a *App) rulesAPI(guard condition.Guard) *management.Handler {
	if a.dbs.Postgres == nil {
		return nil
	}

	opts := []management.ServiceOption{
		management.WithAudit(management.NewAuditLogger(a.dbs.Postgres)),
		management.WithInvalidator(a.manager),
		management.WithGuard(guard),
	}

	if a.Config.Broker.Kafka.Enabled() {
		if err := a.InitProducer(serviceName); err != nil {
			a.Logger.Warnw("Rule changes will not be announced to other instances", "error", err)
		} else {
			opts = append(opts, management.WithPublisher(
				management.NewRuleEventPublisher(a.Producer, a.Config.Broker.Kafka.RuleUpdateTopic),
			))
		}
	}

	svc := management.NewService(management.NewRepository(a.dbs.Postgres), a.Logger, opts...)
	return management.NewHandler(svc, a.Logger)
}

func (a *App) ruleSource() (rules.Source, error) {
	var source rules.Source

	switch a.Config.Rules.Source {
	case constants.RuleSourceFile:
		source = rules.NewFileSource(a.Config.Rules.File)
	case constants.RuleSourcePostgres, "":
		if a.dbs.Postgres == nil {
			return nil, fmt.Errorf("rule source %q requires database.postgres", constants.RuleSourcePostgres)
		}
		source = rules.NewPostgresSource(a.dbs.Postgres)
	default:
		return nil, fmt.Errorf("unknown rule source %q", a.Config.Rules.Source)
	}

	if a.Config.CircuitBreaker.Enabled {
		cb := rules.NewCircuitBreakerSource(source, a.Config.CircuitBreaker)
		a.checks.RegisterOptional(health.NewCircuitBreakerChecker("rule-source", cb.State))
		source = cb
	}
	return source, nil
}

func (a *App) alertStore() (alerts.Store, error) {
	var store alerts.Store

	switch a.Config.Alerts.Store {
	case constants.AlertStorePostgres:
		if a.dbs.Postgres == nil {
			return nil, fmt.Errorf("alert store %q requires database.postgres", constants.AlertStorePostgres)
		}
		store = alerts.NewPostgresStore(a.dbs.Postgres)
	case constants.AlertStoreMongoDB:
		db := a.dbs.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("alert store %q requires database.mongodb", constants.AlertStoreMongoDB)
		}
		store = alerts.NewMongoStore(db)
	case constants.AlertStoreMemory, "":
		a.Logger.Warn("Using in-memory alert store; alerts are lost on restart")
		return alerts.NewMemoryStore(a.Config.Alerts.OpenStatuses), nil
	default:
		return nil, fmt.Errorf("unknown alert store %q", a.Config.Alerts.Store)
	}

	if a.Config.CircuitBreaker.Enabled {
		cb := alerts.NewCircuitBreakerStore(store, a.Config.CircuitBreaker)
		a.checks.RegisterOptional(health.NewCircuitBreakerChecker("alert-store", cb.State))
		store = cb
	}
	return store, nil
}

func (a *App) triggerCounter() (alerts.TriggerCounter, error) {
	switch a.Config.Alerts.TriggerCounter {
	case constants.TriggerCounterRedis:
		if a.dbs.Redis == nil {
			return nil, fmt.Errorf("trigger counter %q requires database.redis", constants.TriggerCounterRedis)
		}
		return alerts.NewRedisTriggerCounter(a.dbs.Redis), nil
	case constants.TriggerCounterPostgres:
		if a.dbs.Postgres == nil {
			return nil, fmt.Errorf("trigger counter %q requires database.postgres", constants.TriggerCounterPostgres)
		}
		return rules.NewPostgresSource(a.dbs.Postgres), nil
	case constants.TriggerCounterNone, "":
		return alerts.NoopTriggerCounter{}, nil
	default:
		return nil, fmt.Errorf("unknown trigger counter %q", a.Config.Alerts.TriggerCounter)
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Run(gCtx)
	})

	g.Go(func() error {
		return a.dispatcher.Run(gCtx)
	})

	if a.EventConsumer != nil {
		inputTopic := a.Config.Broker.Kafka.InputTopic
		g.Go(func() error {
			return ignoreCanceled(a.EventConsumer.Consume(gCtx, inputTopic, a.pipeline.HandleMessage))
		})
	}

	if a.RuleUpdateConsumer != nil {
		updateTopic := a.Config.Broker.Kafka.RuleUpdateTopic
		g.Go(func() error {
			updateCtx := logging.WithServiceName(gCtx, serviceName)
			a.Logger.InfowCtx(updateCtx, "Starting rule update consumer", "topic", updateTopic)
			return ignoreCanceled(a.RuleUpdateConsumer.Consume(gCtx, updateTopic, func(cCtx context.Context, msg broker.Message) error {
				return a.updates.HandleRuleUpdate(cCtx, msg.Value)
			}))
		})
	}

	err := g.Wait()
	if shutdownErr := a.Shutdown(context.Background(), a.shutdown); err == nil {
		err = shutdownErr
	}
	return err
}

// shutdown runs after the consumers and the HTTP server have stopped, so no new results reach
// the executor while its background tasks drain.
func (a *App) shutdown(ctx context.Context) []error {
	var errs []error

	drainCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()
	if err := a.executor.WaitContext(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("executor drain: %w", err))
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbs.Close(ctx)...)
	return errs
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
