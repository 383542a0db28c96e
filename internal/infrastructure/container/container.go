// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"fmt"
	"os"
	"time"

	appai "github.com/alchemorsel/dietgen/internal/application/ai"
	"github.com/alchemorsel/dietgen/internal/application/catalog"
	"github.com/alchemorsel/dietgen/internal/application/dietjob"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/selection"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/alchemorsel/dietgen/internal/infrastructure/ai"
	"github.com/alchemorsel/dietgen/internal/infrastructure/ai/gemini"
	"github.com/alchemorsel/dietgen/internal/infrastructure/ai/ollama"
	"github.com/alchemorsel/dietgen/internal/infrastructure/ai/openai"
	"github.com/alchemorsel/dietgen/internal/infrastructure/cache"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/delivery"
	"github.com/alchemorsel/dietgen/internal/infrastructure/events"
	"github.com/alchemorsel/dietgen/internal/infrastructure/http/server"
	"github.com/alchemorsel/dietgen/internal/infrastructure/httpclient"
	"github.com/alchemorsel/dietgen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/dietgen/internal/infrastructure/payment"
	"github.com/alchemorsel/dietgen/internal/infrastructure/persistence"
	"github.com/alchemorsel/dietgen/internal/infrastructure/queue"
	"github.com/alchemorsel/dietgen/internal/infrastructure/security"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"github.com/alchemorsel/dietgen/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ConfigPath is the configuration file to load; empty searches the
// default locations.
type ConfigPath string

// Module wires the whole service: API server plus job worker.
func Module(path string) fx.Option {
	return fx.Options(
		fx.Supply(ConfigPath(path)),

		// Infrastructure modules
		ConfigModule,
		LoggerModule,
		DatabaseModule,
		CacheModule,
		QueueModule,
		EventModule,
		MonitoringModule,

		// Application modules
		AIModule,
		PipelineModule,

		// Entry points
		HTTPModule,
		WorkerModule,

		LifecycleModule,
	)
}

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*logger.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
	func(l *logger.Logger) *zap.Logger {
		return l.Logger
	},
)

// RepositoryPorts exposes each persistence port separately.
type RepositoryPorts struct {
	fx.Out

	Jobs     outbound.JobRepository
	Diets    outbound.DietRepository
	Counters outbound.CounterRepository
	Catalog  outbound.CatalogIndexRepository
}

// DatabaseModule provides database connections
var DatabaseModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*persistence.Repositories, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		repos, err := persistence.Open(ctx, cfg.Database, cfg.GetDSN(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			return repos.Close()
		}})
		return repos, nil
	},
	func(r *persistence.Repositories) RepositoryPorts {
		return RepositoryPorts{Jobs: r.Jobs, Diets: r.Diets, Counters: r.Counters, Catalog: r.Catalog}
	},
)

// CacheModule provides the catalog cache
var CacheModule = fx.Provide(
	func(cfg *config.Config) outbound.CatalogCache {
		return cache.NewLocalCache(cfg.Catalog.CacheSize, time.Now)
	},
)

// QueueModule provides the trigger queue
var QueueModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, metrics *monitoring.PipelineMetrics) (outbound.JobQueue, error) {
		var q outbound.JobQueue
		switch cfg.Queue.Driver {
		case "redis":
			client, err := queue.NewRedisClient(cfg.Redis, log)
			if err != nil {
				return nil, err
			}
			q = queue.NewRedisQueue(client, cfg.Queue.Key, log)
		default:
			mq := queue.NewMemoryQueue(cfg.Queue.Capacity)
			metrics.Gauge("queue_depth", "Job triggers waiting in the in-process queue", func() float64 {
				return float64(mq.Len())
			})
			q = mq
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			return q.Close()
		}})
		log.Info("Job queue ready", zap.String("driver", cfg.Queue.Driver))
		return q, nil
	},
)

// EventModule provides event handling
var EventModule = fx.Provide(
	func(log *zap.Logger) shared.EventDispatcher {
		return events.NewDispatcher(log)
	},
)

// MonitoringModule provides metrics and tracing
var MonitoringModule = fx.Provide(
	monitoring.NewPipelineMetrics,
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		tp, err := monitoring.NewTracingProvider(context.Background(), cfg.App, cfg.Monitoring, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: tp.Shutdown})
		return tp, nil
	},
)

// AIModule provides the completion providers and the AI-backed stages
var AIModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) []outbound.CompletionProvider {
		settings := ai.SettingsFrom(cfg.AI)
		return []outbound.CompletionProvider{
			gemini.NewClient(cfg.AI.Gemini, settings, log),
			openai.NewClient(cfg.AI.OpenAI, settings, log),
			ollama.NewClient(cfg.AI.Ollama, settings, log),
		}
	},
	func(providers []outbound.CompletionProvider, cfg *config.Config, metrics *monitoring.PipelineMetrics, log *zap.Logger) outbound.Completer {
		return appai.NewCompletionService(providers, appai.Options{
			Retry: appai.RetryPolicy{
				MaxAttempts: cfg.AI.RetryAttempts,
				Delay:       cfg.AI.RetryDelay,
			},
			Timeout:       cfg.AI.Timeout,
			RatePerMinute: cfg.AI.RatePerMinute,
			Observer:      metrics,
		}, log)
	},
	func(providers []outbound.CompletionProvider, log *zap.Logger) *ai.HealthChecker {
		return ai.NewHealthChecker(providers, 5*time.Second, log)
	},
	func(c outbound.Completer, names *catalog.Service, cfg *config.Config, log *zap.Logger) *appai.Interpreter {
		return appai.NewInterpreter(c, names, cfg.Catalog.SampleSize, log)
	},
	appai.NewRestrictionFilter,
	appai.NewExplainer,
	appai.NewSafetyChecker,
)

// PipelineModule provides the catalog, planner, stages, orchestrator and
// the job service
var PipelineModule = fx.Provide(
	func(repo outbound.CatalogIndexRepository, c outbound.CatalogCache, cfg *config.Config, log *zap.Logger) *catalog.Service {
		return catalog.NewService(repo, c, cfg.Catalog.TTL, log)
	},
	func(cfg *config.Config) *dietjob.Planner {
		selector := selection.NewSelector()
		selector.Minimum = cfg.Pipeline.MinFoods
		return dietjob.NewPlanner(selector, selection.NewQuantifier(cfg.Pipeline.LeverFoodIDs...), dietjob.NewRandSource(cfg.Pipeline.JitterSeed))
	},
	func(cfg *config.Config, log *zap.Logger) outbound.PaymentGateway {
		return payment.NewGateway(cfg.Payment, log)
	},
	func(cfg *config.Config, log *zap.Logger) dietjob.Delivery {
		geocoder, rides, store := delivery.Collaborators(cfg.Delivery, httpclient.New(0), log)
		return dietjob.Delivery{Geocoder: geocoder, Rides: rides, StoreFrom: store}
	},
	newStages,
	func(
		jobs outbound.JobRepository,
		q outbound.JobQueue,
		stages *dietjob.Stages,
		ev shared.EventDispatcher,
		metrics *monitoring.PipelineMetrics,
		tp *monitoring.TracingProvider,
		cfg *config.Config,
		log *zap.Logger,
	) *dietjob.Orchestrator {
		return dietjob.NewOrchestrator(jobs, q, stages, ev, log,
			dietjob.WithMetrics(metrics),
			dietjob.WithTracer(tp.Tracer()),
			dietjob.WithLease(cfg.Pipeline.Lease))
	},
	newService,
)

type stageDeps struct {
	fx.In

	Interpreter *appai.Interpreter
	Filter      *appai.RestrictionFilter
	Explainer   *appai.Explainer
	Safety      *appai.SafetyChecker
	Catalog     *catalog.Service
	Planner     *dietjob.Planner
	Delivery    dietjob.Delivery
	Payments    outbound.PaymentGateway
	Counters    outbound.CounterRepository
	Diets       outbound.DietRepository
	Events      shared.EventDispatcher
	Logger      *zap.Logger
}

func newStages(d stageDeps) *dietjob.Stages {
	return &dietjob.Stages{
		Interpreter: d.Interpreter,
		Calculator:  nutrition.NewCalculator(),
		Catalog:     d.Catalog,
		Filter:      d.Filter,
		Planner:     d.Planner,
		Explainer:   d.Explainer,
		Safety:      d.Safety,
		Delivery:    d.Delivery,
		Payments:    d.Payments,
		Counters:    d.Counters,
		Diets:       d.Diets,
		Events:      d.Events,
		Now:         time.Now,
		Logger:      d.Logger,
	}
}

type serviceDeps struct {
	fx.In

	Jobs      outbound.JobRepository
	Diets     outbound.DietRepository
	Queue     outbound.JobQueue
	Catalog   *catalog.Service
	Filter    *appai.RestrictionFilter
	Planner   *dietjob.Planner
	Explainer *appai.Explainer
	Payments  outbound.PaymentGateway
	Events    shared.EventDispatcher
	Logger    *zap.Logger
}

func newService(d serviceDeps) inbound.DietJobService {
	return dietjob.NewService(dietjob.ServiceDeps{
		Jobs:      d.Jobs,
		Diets:     d.Diets,
		Queue:     d.Queue,
		Catalog:   d.Catalog,
		Filter:    d.Filter,
		Planner:   d.Planner,
		Explainer: d.Explainer,
		Payments:  d.Payments,
		Events:    d.Events,
	}, d.Logger)
}

// HTTPModule provides HTTP server and handlers
var HTTPModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *security.AuthService {
		return security.NewAuthService(cfg.Auth, log)
	},
	func(
		cfg *config.Config,
		svc inbound.DietJobService,
		ev shared.EventDispatcher,
		auth *security.AuthService,
		repos *persistence.Repositories,
		health *ai.HealthChecker,
		metrics *monitoring.PipelineMetrics,
		log *zap.Logger,
	) *server.Server {
		return server.NewServer(*cfg, server.Deps{
			Service:  svc,
			Events:   ev,
			Auth:     auth,
			Database: repos,
			AIHealth: health,
			Metrics:  metrics,
		}, log)
	},
)

// WorkerModule provides the job worker
var WorkerModule = fx.Provide(
	func(q outbound.JobQueue, jobs outbound.JobRepository, orch *dietjob.Orchestrator, cfg *config.Config, log *zap.Logger) *dietjob.Worker {
		return dietjob.NewWorker(q, jobs, orch, dietjob.WorkerConfig{
			Concurrency:   cfg.Pipeline.Concurrency,
			PollWait:      cfg.Pipeline.PollWait,
			SweepInterval: cfg.Pipeline.SweepInterval,
			IdleAfter:     cfg.Pipeline.IdleAfter,
			Lease:         cfg.Pipeline.Lease,
		}, log)
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	SeedCatalog,
	WatchConfig,
	RegisterLifecycleHooks,
)

// SeedCatalog imports catalog.seed_file when no index is stored yet.
func SeedCatalog(lc fx.Lifecycle, cfg *config.Config, svc *catalog.Service, log *zap.Logger) {
	if cfg.Catalog.SeedFile == "" {
		return
	}
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		f, err := os.Open(cfg.Catalog.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to open catalog seed: %w", err)
		}
		defer f.Close()

		seeded, err := svc.SeedIfEmpty(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		if seeded {
			log.Info("Catalog seeded", zap.String("file", cfg.Catalog.SeedFile))
		}
		return nil
	}})
}

// WatchConfig applies log level changes from the config file at runtime.
func WatchConfig(cfg *config.Config, l *logger.Logger) {
	cfg.Watch(func(next *config.Config) {
		if l.SetLevel(next.App.LogLevel) {
			l.Info("Log level reloaded", zap.String("level", next.App.LogLevel))
		}
	}, func(err error) {
		l.Warn("Ignoring invalid configuration change", zap.Error(err))
	})
}

// RegisterLifecycleHooks starts the HTTP server and the job worker, and
// stops them in reverse order.
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	srv *server.Server,
	worker *dietjob.Worker,
) {
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting dietgen",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			go func() {
				defer close(workerDone)
				if err := worker.Run(workerCtx); err != nil {
					log.Error("Job worker stopped", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()

			go func() {
				if err := srv.Start(); err != nil {
					log.Error("HTTP server failed", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down dietgen")

			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			cancelWorker()
			select {
			case <-workerDone:
			case <-ctx.Done():
				log.Warn("Job worker did not stop before the deadline")
			}

			_ = log.Sync()
			return nil
		},
	})
}
