package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/orchestrator/api"
	"github.com/kbukum/orchestrator/bootstrap"
	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/database"
	"github.com/kbukum/orchestrator/definition"
	"github.com/kbukum/orchestrator/executor"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/httpclient"
	"github.com/kbukum/orchestrator/kafka"
	"github.com/kbukum/orchestrator/kafka/producer"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/observability"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/redis"
	"github.com/kbukum/orchestrator/scheduler"
	"github.com/kbukum/orchestrator/server"
	"github.com/kbukum/orchestrator/storage"
	"github.com/kbukum/orchestrator/trigger"
	"github.com/kbukum/orchestrator/version"
)

// Orchestrator holds the services assembled by serve. The fields are set
// while the application configures, after the infrastructure started.
type Orchestrator struct {
	Catalog   *pipeline.Catalog
	Triggers  *trigger.Registry
	History   *history.History
	Executor  *executor.Executor
	Scheduler *scheduler.Scheduler
	Server    *server.Server
}

// infra is the infrastructure registered before startup.
type infra struct {
	db        *database.Component
	redis     *redis.Component
	storage   *storage.Component
	publisher history.Publisher
}

func NewServeCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, executor and operator API",
		Long: `Load the pipeline and trigger definitions, start the scheduling loop and
serve the operator API until interrupted.`,
		Example: `  orchestrator serve
  orchestrator serve --config ./cmd/orchestrator/config.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.LoadConfig()
			if err != nil {
				return err
			}
			app, _, err := NewApp(cfg)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	return cmd
}

// NewApp builds the serve application. Infrastructure components are
// registered immediately; the orchestrator itself is assembled once they
// have started.
func NewApp(cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], *Orchestrator, error) {
	if cfg.Version == "" {
		cfg.Version = version.Get().Version
	}
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	log := app.Logger

	in := infra{storage: storage.NewComponent(cfg.Storage, log)}
	comps := []component.Component{observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, log)}
	if cfg.Database.Enabled {
		in.db = database.NewComponent(cfg.Database, log).WithAutoMigrate(history.Models()...)
		comps = append(comps, in.db)
	}
	if cfg.Redis.Enabled {
		in.redis = redis.NewComponent(cfg.Redis, log)
		comps = append(comps, in.redis)
	}
	if cfg.Kafka.Enabled {
		kc := kafka.NewComponent(cfg.Kafka, log)
		if cfg.History.Publish {
			p, err := producer.New(kc.Config(), log)
			if err != nil {
				return nil, nil, fmt.Errorf("create history producer: %w", err)
			}
			kc.SetProducer(p)
			in.publisher = p
		}
		comps = append(comps, kc)
	}
	comps = append(comps, in.storage)

	for _, c := range comps {
		if err := app.RegisterComponent(c); err != nil {
			return nil, nil, err
		}
	}

	o := &Orchestrator{}
	app.OnConfigure(func(ctx context.Context, app *bootstrap.App[*Config]) error {
		return o.configure(ctx, app, in)
	})
	return app, o, nil
}

func (o *Orchestrator) configure(ctx context.Context, app *bootstrap.App[*Config], in infra) error {
	cfg, log := app.Cfg, app.Logger

	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	backend, kind, err := newHistoryBackend(cfg, in, log)
	if err != nil {
		return err
	}
	o.History = history.New(backend, log)

	var store trigger.ActivationStore
	if in.redis != nil {
		store = trigger.NewRedisActivationStore(in.redis.Client(), cfg.Redis.KeyPrefix+":trigger")
	}
	o.Catalog = pipeline.NewCatalog()
	o.Triggers = trigger.NewRegistry(store, log)

	set, err := definition.LoadPaths(cfg.Definitions.Paths...)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	if err := set.Validate(); err != nil {
		return err
	}
	if err := set.Install(ctx, o.Catalog, o.Triggers); err != nil {
		return fmt.Errorf("install definitions: %w", err)
	}
	log.Info("Definitions loaded", logger.Fields(
		"pipelines", len(o.Catalog.List()), "triggers", len(o.Triggers.List()), "paths", cfg.Definitions.Paths))

	client, err := httpclient.New(cfg.Collaborator)
	if err != nil {
		return fmt.Errorf("create collaborator client: %w", err)
	}
	o.Executor = executor.New(cfg.Executor, client, o.History, log, executor.WithMetrics(metrics))
	o.Scheduler = scheduler.New(cfg.Scheduler, o.Triggers, o.Catalog, o.Executor, o.History, log, scheduler.WithMetrics(metrics))

	// Stop order is the reverse: server, scheduler, executor drain, history flush.
	comps := []component.Component{
		history.NewComponent(o.History, kind),
		executor.NewComponent(o.Executor),
		o.Scheduler,
	}

	if cfg.Server.Enabled {
		var archiver *history.Archiver
		if s := in.storage.Storage(); s != nil {
			archiver = history.NewArchiver(o.History, s, log)
		}
		o.Server = server.New(cfg.Server, log)
		o.Server.ApplyDefaults(cfg.Name, app.Components.HealthAll)
		api.NewHandler(api.Deps{
			Pipelines: o.Catalog,
			Triggers:  o.Triggers,
			Scheduler: o.Scheduler,
			Runner:    o.Executor,
			History:   o.History,
			Archiver:  archiver,
		}, log).Register(o.Server.GinEngine())
		comps = append(comps, server.NewComponent(o.Server))
	}

	for _, c := range comps {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}

func newHistoryBackend(cfg *Config, in infra, log *logger.Logger) (history.Backend, string, error) {
	var backend history.Backend
	switch cfg.History.Backend {
	case HistoryDatabase:
		db := in.db.DB()
		if db == nil {
			return nil, "", fmt.Errorf("history backend %q: database not started", HistoryDatabase)
		}
		backend = history.NewGormBackend(db.GormDB)
	default:
		backend = history.NewMemoryBackend()
	}
	if in.publisher != nil {
		backend = history.NewPublishingBackend(backend, in.publisher, cfg.History.QueueSize, log)
	}
	return backend, cfg.History.Backend, nil
}
