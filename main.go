package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	agentsx "github.com/pchaya/aftercare/agent/agents"
	orchestratorx "github.com/pchaya/aftercare/agent/agents/orchestrator"
	auditlogx "github.com/pchaya/aftercare/agent/auditlog"
	contractx "github.com/pchaya/aftercare/agent/contract"
	directoryx "github.com/pchaya/aftercare/agent/directory"
	llmx "github.com/pchaya/aftercare/agent/llm"
	ragx "github.com/pchaya/aftercare/agent/rag"
	statex "github.com/pchaya/aftercare/agent/state"
	apix "github.com/pchaya/aftercare/api"
	configx "github.com/pchaya/aftercare/pkg/config"
	groqx "github.com/pchaya/aftercare/pkg/groq"
	logx "github.com/pchaya/aftercare/pkg/logger"
	postgresx "github.com/pchaya/aftercare/pkg/postgres"
	tavilyx "github.com/pchaya/aftercare/pkg/tavily"
)

type AppConfig struct {
	// CorpusDSN points at the pgvector database holding guideline chunks.
	CorpusDSN string `envconfig:"CORPUS_DSN" split_words:"true" required:"true"`
	// SessionBackend selects session persistence: "memory" or "redis".
	SessionBackend string `envconfig:"SESSION_BACKEND" split_words:"true" default:"memory"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")

	// Evidence: corpus index + web search.
	pool, err := pgxpool.New(ctx, appCfg.CorpusDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect corpus database")
	}
	defer pool.Close()

	embedCfg := llmCfg.GroqFor(contractx.AgentTypeComposer)
	embedder, err := ragx.NewAPIEmbedder(groqx.NewClient(embedCfg), embedCfg.EmbeddingModel)
	if err != nil {
		log.Fatal().Err(err).Msg("create embedder")
	}
	retriever, err := ragx.NewPGVectorRetriever(pool, embedder, log.With().Str("component", "retriever").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("create retriever")
	}

	tavilyCfg := configx.MustNew[tavilyx.Config]("TAVILY")
	web, err := ragx.NewTavilySearcher(tavilyx.MustNew(*tavilyCfg))
	if err != nil {
		log.Fatal().Err(err).Msg("create web searcher")
	}

	// Patient registry + interaction log share one database handle.
	pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	db := postgresx.MustNew(*pgCfg)
	defer db.Close()
	if err := postgresx.Ping(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ping postgres")
	}

	directory, err := directoryx.New(db)
	if err != nil {
		log.Fatal().Err(err).Msg("create patient directory")
	}
	audit, err := auditlogx.New(db)
	if err != nil {
		log.Fatal().Err(err).Msg("create interaction log")
	}

	// Session lifecycle.
	managerCfg := configx.MustNew[statex.ManagerConfig]("SESSION")
	store := newSessionStore(appCfg.SessionBackend, *managerCfg)
	manager, err := statex.NewManager(store, *managerCfg, log.With().Str("component", "sessions").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("create session manager")
	}
	go manager.RunSweeper(ctx)

	registry, err := agentsx.NewRegistry(ctx, *llmCfg, directory, retriever, web, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("create agent registry")
	}

	orchestrator, err := orchestratorx.New(manager, registry, audit, log.With().Str("component", "orchestrator").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestrator")
	}

	apiCfg := configx.MustNew[apix.Config]("HTTP")
	server := apix.NewServer(orchestrator, log.With().Str("component", "api").Logger())
	if err := server.Run(ctx, apiCfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func newSessionStore(backend string, cfg statex.ManagerConfig) statex.Store {
	switch backend {
	case "redis":
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*redisCfg, statex.WithTTL(cfg.IdleTTL))
		if err != nil {
			log.Fatal().Err(err).Msg("create redis session store")
		}
		return store
	default:
		return statex.NewMemoryStore()
	}
}
