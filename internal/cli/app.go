package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	llmx "github.com/tanpawarit/Chative-Retail-Assistant/agent/llm"
	nodex "github.com/tanpawarit/Chative-Retail-Assistant/agent/nodes/orchestrator"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/provider"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/tool"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
	configx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/config"
	qstashx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/qstash"
	"github.com/uptrace/bun"
)

type stateConfig struct {
	Store string `envconfig:"STATE_STORE" default:"memory"`
}

// backends holds the storage side shared by every command.
type backends struct {
	db        *bun.DB
	commerce  commerce.Service
	store     retrieval.VectorStore
	embedder  retrieval.Embedder
	retrieval *retrieval.Config
}

func (b *backends) Close() {
	if b.db == nil {
		return
	}
	if err := b.db.Close(); err != nil {
		log.Warn().Err(err).Msg("close database")
	}
}

// openBackends connects commerce and the vector store. Without a DSN the
// seeded in-memory store is used and the catalog is indexed on startup.
func openBackends(ctx context.Context) (*backends, error) {
	dbCfg, err := configx.New[commerce.Config]("DATABASE")
	if err != nil {
		return nil, err
	}
	retrievalCfg, err := configx.New[retrieval.Config]("RETRIEVAL")
	if err != nil {
		return nil, err
	}

	b := &backends{retrieval: retrievalCfg}
	if dbCfg.Enabled() {
		db, err := commerce.Open(*dbCfg)
		if err != nil {
			return nil, err
		}
		b.db = db
		b.commerce = commerce.NewPostgresService(db)
	} else {
		svc, err := commerce.NewDemoService(time.Now())
		if err != nil {
			return nil, fmt.Errorf("load demo catalog: %w", err)
		}
		b.commerce = svc
		log.Ctx(ctx).Info().Msg("DATABASE_DSN not set, using the in-memory demo catalog")
	}

	embedder, err := retrieval.NewEmbedder(*retrievalCfg)
	if err != nil {
		// Queries degrade to keyword matching over whatever is indexed.
		log.Ctx(ctx).Warn().Err(err).Msg("embedding backend unavailable")
	} else {
		b.embedder = embedder
	}

	switch strings.ToLower(retrievalCfg.Store) {
	case "pgvector":
		if b.db == nil {
			b.Close()
			return nil, errors.New("pgvector store requires DATABASE_DSN")
		}
		b.store = retrieval.NewPGVectorStore(b.db)
	default:
		b.store = retrieval.NewMemoryStore()
		if _, err := b.index(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("catalog indexing incomplete")
		}
	}
	return b, nil
}

func (b *backends) index(ctx context.Context) (retrieval.IndexStats, error) {
	entities, err := tool.CatalogEntities(ctx, b.commerce)
	if err != nil {
		return retrieval.IndexStats{}, err
	}
	return retrieval.NewIndexer(b.store, b.embedder, b.retrieval.IndexWorkers).Index(ctx, entities)
}

func (b *backends) retriever() (*retrieval.Retriever, error) {
	return retrieval.NewRetriever(b.store, b.embedder,
		retrieval.WithMaxK(b.retrieval.MaxK),
		retrieval.WithDefaultK(b.retrieval.DefaultK),
	)
}

// buildOrchestrator wires the full chat pipeline on top of the backends.
func buildOrchestrator(ctx context.Context, b *backends) (*orchestrator.Orchestrator, error) {
	orchCfg, err := configx.New[orchestrator.Config]("ORCHESTRATOR")
	if err != nil {
		return nil, err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}

	r, err := b.retriever()
	if err != nil {
		return nil, err
	}
	gateway, err := tool.NewGateway(tool.Deps{Retriever: r, Commerce: b.commerce})
	if err != nil {
		return nil, err
	}
	registry, err := specialist.LoadRegistry(gateway)
	if err != nil {
		return nil, err
	}

	store, err := openStateStore()
	if err != nil {
		return nil, err
	}
	mgr, err := statex.NewManager(store, statex.WithWindowSize(orchCfg.WindowSize))
	if err != nil {
		return nil, err
	}

	routerProvider, err := provider.New(ctx, *llmCfg, llmx.RoleRouter)
	if err != nil {
		return nil, fmt.Errorf("router provider: %w", err)
	}
	router, err := specialist.NewRouter(ctx, routerProvider,
		specialist.WithThreshold(orchCfg.RouterConfidenceThreshold),
		specialist.WithTieEpsilon(orchCfg.RouterTieEpsilon),
	)
	if err != nil {
		return nil, err
	}

	fallback, err := provider.New(ctx, *llmCfg, llmx.RoleSpecialist)
	if err != nil {
		return nil, fmt.Errorf("specialist provider: %w", err)
	}
	perAgent, err := agentProviders(ctx, *llmCfg, registry)
	if err != nil {
		return nil, err
	}

	events, err := openEvents()
	if err != nil {
		return nil, err
	}

	return orchestrator.New(orchestrator.Deps{
		State:          mgr,
		Classifier:     router,
		Agents:         registry,
		Tools:          gateway,
		Provider:       fallback,
		AgentProviders: perAgent,
		Profiles:       orchestrator.CommerceProfiles(b.commerce),
		Events:         events,
	}, *orchCfg)
}

// agentProviders applies each agent's temperature hint unless
// LLM_SPECIALIST_TEMPERATURE pins one for everybody.
func agentProviders(ctx context.Context, cfg llmx.Config, registry *specialist.Registry) (map[contractx.AgentName]contractx.Provider, error) {
	if cfg.SpecialistTemperature >= 0 {
		return nil, nil
	}
	out := make(map[contractx.AgentName]contractx.Provider)
	for _, e := range registry.Entries() {
		c := cfg
		c.SpecialistTemperature = e.Temperature
		p, err := provider.New(ctx, c, llmx.RoleSpecialist)
		if err != nil {
			return nil, fmt.Errorf("provider for %s: %w", e.Name, err)
		}
		out[e.Name] = p
	}
	return out, nil
}

func openStateStore() (statex.Store, error) {
	cfg, err := configx.New[stateConfig]("")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "memory":
		return statex.NewMemoryStore(), nil
	case "upstash":
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		store, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unsupported state store %q", contractx.ErrValidation, cfg.Store)
	}
}

// openEvents publishes commerce events through QStash when it is configured.
func openEvents() (nodex.Events, error) {
	cfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return qstashx.Noop{}, nil
	}
	client, err := qstashx.NewClient(*cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}
