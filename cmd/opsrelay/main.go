// Command opsrelay runs the alert-intake, enrichment and chat backplane
// described in spec §§1-10: webhook ingestion, ML-backed enrichment,
// time-windowed incident grouping, hybrid retrieval, summarization and
// a streaming chat API, all behind a single Echo v5 HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/opsrelay/opsrelay/pkg/api"
	"github.com/opsrelay/opsrelay/pkg/chatapi"
	"github.com/opsrelay/opsrelay/pkg/classifier"
	"github.com/opsrelay/opsrelay/pkg/cleanup"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/database"
	"github.com/opsrelay/opsrelay/pkg/grouping"
	"github.com/opsrelay/opsrelay/pkg/intake"
	"github.com/opsrelay/opsrelay/pkg/queue"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/sessioncache"
	"github.com/opsrelay/opsrelay/pkg/storage"
	"github.com/opsrelay/opsrelay/pkg/summarizer"
	"github.com/opsrelay/opsrelay/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to the directory containing the .env file")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment", "path", envPath)
	}

	slog.Info("starting opsrelay", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// database.Config is loaded independently from config.Config: the
	// pool-tuning knobs (max conns, lifetimes) are a database-layer
	// concern, not an application one, so they're read straight from
	// the environment the way the teacher's own main loads them.
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading database config: %w", err)
	}

	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer dbClient.Close()
	slog.Info("connected to postgres")

	sessionCache, err := sessioncache.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	if sessionCache != nil {
		defer sessionCache.Close()
		slog.Info("connected to redis", "url", cfg.RedisURL)
	} else {
		slog.Warn("REDIS_URL not set, session cache disabled")
	}

	incidents := storage.NewIncidentRepo(dbClient.Pool)
	alerts := storage.NewAlertRepo(dbClient.Pool)
	actions := storage.NewActionRepo(dbClient.Pool)
	runbooks := storage.NewRunbookRepo(dbClient.Pool)
	connectors := storage.NewConnectorRepo(dbClient.Pool)
	workItems := storage.NewWorkItemRepo(dbClient.Pool)

	classifierClient := classifier.NewClient(cfg.MLServiceURL)

	groupingEngine := grouping.NewEngine(dbClient.Pool)

	retriever := retrieval.NewRetriever(runbooks, incidents, retrieval.Weights{
		VectorWeight:      cfg.RAG.VectorWeight,
		KeywordWeight:     cfg.RAG.KeywordWeight,
		MinScore:          cfg.RAG.MinScore,
		TitleBoost:        cfg.RAG.RerankTitleBoost,
		ContentBoost:      cfg.RAG.RerankPhraseBoost,
		MinKeywordOverlap: cfg.RAG.MinKeywordOverlap,
	})

	summarizerSvc := summarizer.New(incidents, alerts, runbooks, retriever)

	// A nil OpenAI client is a valid configuration: the Chat
	// Orchestrator and Summarizer both fall back to their
	// deterministic, non-LLM paths when it's absent (spec §4.9/§4.10),
	// which is what lets this run in an environment with no key.
	var openaiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	} else {
		slog.Warn("OPENAI_API_KEY not set, chat and summarization will use deterministic fallbacks")
	}
	chatOrchestrator := chatapi.NewOrchestrator(summarizerSvc, openaiClient, cfg.OpenAIChatModel)

	intakeSvc := intake.New(dbClient.Pool, alerts, workItems, sessionCache,
		cfg.WebhookSecretDatadog, cfg.WebhookSecretSentry, cfg.WebhookSecretPagerDuty,
		cfg.SkipSignatureVerify)

	processor := queue.NewProcessor(dbClient.Pool, alerts, incidents, classifierClient, groupingEngine)

	podID, err := os.Hostname()
	if err != nil || podID == "" {
		podID = "opsrelay-pod"
	}
	workerPool := queue.NewWorkerPool(podID, workItems, cfg.Queue, processor)
	if err := workerPool.Start(ctx); err != nil {
		return fmt.Errorf("starting worker pool: %w", err)
	}
	defer workerPool.Stop()

	cleanupSvc := cleanup.NewService(cfg.Retention, workItems)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	server := api.NewServer(dbClient, intakeSvc, incidents, alerts, actions, runbooks, connectors,
		retriever, summarizerSvc, chatOrchestrator, workerPool)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
