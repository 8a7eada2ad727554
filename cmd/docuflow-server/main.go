package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/server/internal/config"
	"github.com/docuflow/server/internal/db"
	"github.com/docuflow/server/internal/docuflow/index"
	"github.com/docuflow/server/internal/docuflow/security"
	"github.com/docuflow/server/internal/docuflow/service"
	sqlitestore "github.com/docuflow/server/internal/docuflow/store/sqlite"
	"github.com/docuflow/server/internal/docuflow/workflow"
	"github.com/docuflow/server/internal/embedding"
	"github.com/docuflow/server/internal/httpapi"
)

func main() {
	cfg := config.FromEnv()

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Two databases: documents with WAL/NORMAL, audit with synchronous=FULL
	// so an append is durable before it is acknowledged.
	docsDB, err := db.Open(ctx, db.Config{
		Path:   filepath.Join(cfg.DataDir, "documents.db"),
		Schema: "documents",
	})
	if err != nil {
		logger.Fatal("open documents db", zap.Error(err))
	}
	defer func() { _ = docsDB.Close() }()

	auditDB, err := db.Open(ctx, db.Config{
		Path:     filepath.Join(cfg.AuditLogDir, "audit.db"),
		Schema:   "audit",
		SyncFull: true,
	})
	if err != nil {
		logger.Fatal("open audit db", zap.Error(err))
	}
	defer func() { _ = auditDB.Close() }()

	docsWriter := db.NewWorker(docsDB)
	defer docsWriter.Close()
	auditWriter := db.NewWorker(auditDB)
	defer auditWriter.Close()

	docStore := sqlitestore.NewDocumentStore(docsDB, docsWriter)
	auditStore := sqlitestore.NewAuditStore(auditDB, auditWriter)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		logger.Fatal("configure embedder", zap.Error(err))
	}

	idx, err := index.NewChromemIndex(index.ChromemConfig{
		Path:      cfg.IndexDir,
		Dimension: embedder.Dimension(),
	}, logger)
	if err != nil {
		logger.Fatal("open vector index", zap.Error(err))
	}

	policy, err := security.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		logger.Fatal("load policy", zap.Error(err))
	}
	eval := security.NewEvaluator(policy)

	rules, err := workflow.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Fatal("load workflow rules", zap.Error(err))
	}
	router := workflow.NewRouter(rules)
	executor := workflow.NewExecutor(logger)

	retrievalSvc := service.NewRetrievalService(docStore, idx, auditStore, eval, embedder,
		service.RetrievalConfig{
			DefaultK: cfg.SearchDefaultK,
			MinScore: float32(cfg.SearchMinScore),
		}, logger)
	workflowSvc := service.NewWorkflowService(router, executor, eval, auditStore, cfg.RulesFile, logger)
	auditSvc := service.NewAuditService(auditStore, eval, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		Retrieval:   retrievalSvc,
		Workflow:    workflowSvc,
		Audit:       auditSvc,
		DefaultRole: cfg.DefaultRole,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.Env),
			zap.String("embedder", cfg.Embedder),
			zap.Int("dim", embedder.Dimension()))
		if err := srv.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newLogger(env string) *zap.Logger {
	if env == "prod" {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return logger
}

func newEmbedder(cfg config.Config) (embedding.Provider, error) {
	if cfg.Embedder == "ollama" {
		return embedding.NewOllamaProvider(embedding.OllamaConfig{
			BaseURL:           cfg.OllamaURL,
			Model:             cfg.OllamaModel,
			Dimension:         cfg.EmbedDim,
			Timeout:           time.Duration(cfg.EmbedTimeoutMS) * time.Millisecond,
			RequestsPerSecond: cfg.EmbedRPS,
		})
	}
	return embedding.NewLocalProvider(cfg.EmbedDim), nil
}
