package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/parcel-scout/agent/agents/orchestrator"
	specialistx "github.com/tanpawarit/parcel-scout/agent/agents/specialist"
	aggregatorx "github.com/tanpawarit/parcel-scout/agent/aggregator"
	datasourcex "github.com/tanpawarit/parcel-scout/agent/datasource"
	llmx "github.com/tanpawarit/parcel-scout/agent/llm"
	resultsx "github.com/tanpawarit/parcel-scout/agent/results"
	scoutx "github.com/tanpawarit/parcel-scout/agent/scout"
	statex "github.com/tanpawarit/parcel-scout/agent/state"
	toolx "github.com/tanpawarit/parcel-scout/agent/tool"
	configx "github.com/tanpawarit/parcel-scout/pkg/config"
)

type AppConfig struct {
	Addr            string        `envconfig:"ADDR" default:":3000"`
	MaxRounds       int           `envconfig:"MAX_ROUNDS" split_words:"true" default:"8"`
	ResultsBackend  string        `envconfig:"RESULTS_BACKEND" split_words:"true" default:"file"`
	ResultsDir      string        `envconfig:"RESULTS_DIR" split_words:"true" default:"evaluations"`
	SessionBackend  string        `envconfig:"SESSION_BACKEND" split_words:"true" default:"memory"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
	// PublicURL is where the scheduler reaches this server. Empty disables scheduling.
	PublicURL string `envconfig:"PUBLIC_URL" split_words:"true"`
	ScoutCron string `envconfig:"SCOUT_CRON" split_words:"true" default:"0 6 * * *"`
}

func (c AppConfig) scoutDestination() string {
	base := strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if base == "" {
		return ""
	}
	return base + "/scout/run"
}

// app holds every long-lived component of one process.
type app struct {
	cfg      AppConfig
	clients  toolx.DataClients
	registry *specialistx.Registry
	pipeline *aggregatorx.Pipeline
	scout    *scoutx.Scout
	filters  datasourcex.SearchFilters
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, fmt.Errorf("load openrouter config: %w", err)
	}
	dsCfg, err := configx.New[datasourcex.Config]("DATASOURCE")
	if err != nil {
		return nil, fmt.Errorf("load datasource config: %w", err)
	}
	policy, err := configx.New[aggregatorx.Policy]("SCORING")
	if err != nil {
		return nil, fmt.Errorf("load scoring policy: %w", err)
	}
	filters, err := configx.New[datasourcex.SearchFilters]("SCOUT")
	if err != nil {
		return nil, fmt.Errorf("load scout filters: %w", err)
	}

	clients, err := dsCfg.Clients()
	if err != nil {
		return nil, err
	}

	registry, err := specialistx.NewRegistry(ctx, *llmCfg, clients, cfg.MaxRounds)
	if err != nil {
		return nil, err
	}

	pipeline, err := aggregatorx.NewPipeline(ctx, aggregatorx.FromRegistry(registry), registry.Judge, *policy)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      *cfg,
		clients:  clients,
		registry: registry,
		pipeline: pipeline,
		filters:  *filters,
	}

	results, err := a.resultsStore(ctx)
	if err != nil {
		return nil, err
	}
	a.scout, err = scoutx.New(clients.Listing, pipeline, results)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("results_backend", cfg.ResultsBackend).
		Str("session_backend", cfg.SessionBackend).
		Int("max_rounds", cfg.MaxRounds).
		Msg("application initialized")
	return a, nil
}

func (a *app) orchestrator() (*orchestratorx.Orchestrator, error) {
	store, err := a.sessionStore()
	if err != nil {
		return nil, err
	}
	return orchestratorx.New(orchestratorx.Config{
		Store:     store,
		Decider:   a.registry.Orchestrator,
		Tools:     toolx.ForOrchestrator(a.clients, a.registry.Eco, a.registry.Legal, a.registry.Finance),
		MaxRounds: a.cfg.MaxRounds,
	})
}

func (a *app) sessionStore() (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.SessionBackend)) {
	case "", "memory":
		return statex.NewMemoryStore(), nil
	case "upstash":
		cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashRedisStore(*cfg)
	case "redis":
		cfg, err := configx.New[statex.RedisConfig]("REDIS")
		if err != nil {
			return nil, fmt.Errorf("load redis config: %w", err)
		}
		client := redis.NewClient(statex.RedisOptions(*cfg))
		a.closers = append(a.closers, client.Close)
		return statex.NewRedisStore(client, "", cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown session backend %q", a.cfg.SessionBackend)
	}
}

func (a *app) resultsStore(ctx context.Context) (resultsx.Store, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.ResultsBackend)) {
	case "", "file":
		return resultsx.NewFileStore(a.cfg.ResultsDir)
	case "postgres":
		cfg, err := configx.New[resultsx.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, fmt.Errorf("load postgres config: %w", err)
		}
		db, err := resultsx.OpenPostgres(*cfg)
		if err != nil {
			return nil, err
		}
		store, err := resultsx.NewPostgresStore(db)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", a.cfg.ResultsBackend)
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close resource")
		}
	}
}
