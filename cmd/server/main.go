package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"finrisk/internal/audit"
	"finrisk/internal/enrich"
	"finrisk/internal/enrich/cache"
	"finrisk/internal/enrich/sources"
	"finrisk/internal/extract"
	"finrisk/internal/graph"
	graphneo4j "finrisk/internal/graph/neo4j"
	"finrisk/internal/ingest"
	"finrisk/internal/pipeline"
	"finrisk/internal/platform/config"
	"finrisk/internal/platform/httpserver"
	"finrisk/internal/platform/kafka"
	"finrisk/internal/platform/logger"
	"finrisk/internal/platform/metrics"
	platformredis "finrisk/internal/platform/redis"
	"finrisk/internal/scoring"
	"finrisk/internal/store"
	storemongo "finrisk/internal/store/mongo"
	httptransport "finrisk/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	// Enrichment: four sources behind a cached, retrying fanout.
	srcs, err := buildSources(cfg.Sources)
	if err != nil {
		return err
	}
	resultCache, closeCache, err := buildCache(ctx, cfg.Cache, m, log)
	if err != nil {
		return err
	}
	defer closeCache()

	fanout := enrich.NewFanout(srcs, resultCache,
		enrich.WithLogger(log),
		enrich.WithRetryPolicy(enrich.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		}),
	)

	// Relationship graph: Neo4j when configured, in-process otherwise.
	graphStore, closeGraph, err := buildGraph(ctx, cfg.Neo4j, log)
	if err != nil {
		return err
	}
	defer closeGraph()
	propagator := graph.NewPropagator(graphStore,
		graph.WithMaxDepth(cfg.Neo4j.MaxDepth),
		graph.WithLogger(log),
	)

	// Persistence for assessments and the audit trail.
	assessments, closeStore, err := buildAssessmentStore(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer closeStore()
	auditor, closeAudit, err := buildAuditor(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	scorer := scoring.New(
		scoring.WithThresholds(scoring.Thresholds{
			High:   cfg.Pipeline.HighThreshold,
			Medium: cfg.Pipeline.MediumThreshold,
		}),
		scoring.WithWeights(scoring.Weights{
			Sanctions:       cfg.Pipeline.WeightSanctions,
			Jurisdiction:    cfg.Pipeline.WeightJurisdiction,
			CorporateStatus: cfg.Pipeline.WeightCorporate,
			Historical:      cfg.Pipeline.WeightHistorical,
		}),
		scoring.WithRelationshipWeight(cfg.Pipeline.RelationshipWeight),
		scoring.WithLogger(log),
	)

	opts := []pipeline.Option{
		pipeline.WithGraphWriter(graphStore),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
		pipeline.WithAggregation(pipeline.Aggregation(cfg.Pipeline.Aggregation)),
		pipeline.WithParallelism(cfg.Pipeline.Parallelism),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, kafka.WithLogger(log))
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.EnsureTopics(ctx, cfg.Kafka.Partitions); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithPublisher(publisher))
	}

	orchestrator := pipeline.New(
		extract.NewHeuristic(),
		fanout,
		propagator,
		scorer,
		assessments,
		auditor,
		opts...,
	)

	handler := httptransport.New(
		ingest.NewParser(ingest.WithLogger(log)),
		orchestrator,
		assessments,
		auditor,
		graphStore,
		log,
	)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler), httpserver.Timeouts{})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting finrisk", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func buildSources(cfg config.Sources) ([]enrich.Source, error) {
	sanctions, err := sources.NewSanctions(cfg.SanctionsURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	registry, err := sources.NewRegistry(cfg.RegistryURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	filings, err := sources.NewFilings(cfg.FilingsURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	kb, err := sources.NewKnowledgeBase(cfg.KnowledgeBaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return []enrich.Source{sanctions, registry, filings, kb}, nil
}

func buildCache(ctx context.Context, cfg config.Cache, m *metrics.Metrics, log *slog.Logger) (cache.Cache[enrich.Result], func(), error) {
	if cfg.RedisURL == "" {
		mem, err := cache.NewMemory(cfg.Capacity, cfg.TTL, cache.WithStats[enrich.Result](m))
		if err != nil {
			return nil, nil, err
		}
		return mem, func() {}, nil
	}
	client, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("enrichment cache backed by redis")
	rc := cache.NewRedis(client.Client, cfg.TTL, cache.WithRedisStats[enrich.Result](m))
	return rc, func() { _ = client.Close() }, nil
}

func buildGraph(ctx context.Context, cfg config.Neo4j, log *slog.Logger) (graph.Store, func(), error) {
	if cfg.URI == "" {
		log.Warn("neo4j not configured, using in-memory graph")
		return graph.NewMemoryStore(), func() {}, nil
	}
	s, err := graphneo4j.New(ctx, cfg.URI, cfg.Username, cfg.Password)
	if err != nil {
		return nil, nil, err
	}
	if err := s.EnsureConstraints(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, nil, err
	}
	return s, func() { _ = s.Close(context.Background()) }, nil
}

func buildAssessmentStore(ctx context.Context, cfg config.Mongo, log *slog.Logger) (store.AssessmentStore, func(), error) {
	if cfg.URI == "" {
		log.Warn("mongodb not configured, using in-memory assessment store")
		return store.NewMemory(), func() {}, nil
	}
	s, err := storemongo.New(ctx, cfg.URI, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, nil, err
	}
	return s, func() { _ = s.Close(context.Background()) }, nil
}

func buildAuditor(ctx context.Context, cfg config.Postgres, log *slog.Logger) (*audit.Publisher, func(), error) {
	if cfg.DSN == "" {
		log.Warn("postgres not configured, audit trail kept in memory")
		return audit.NewPublisher(audit.NewMemoryStore(), audit.WithLogger(log)), func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	pg := audit.NewPostgresStore(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return audit.NewPublisher(pg, audit.WithLogger(log)), func() { _ = db.Close() }, nil
}
