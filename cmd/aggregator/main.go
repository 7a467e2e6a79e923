// Command aggregator synchronizes the configured IMAP accounts, classifies
// incoming email, and keeps the search index and embedding store current.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/classify"
	"github.com/nhle/inbox-aggregator/internal/credential"
	"github.com/nhle/inbox-aggregator/internal/imap"
	"github.com/nhle/inbox-aggregator/internal/index"
	"github.com/nhle/inbox-aggregator/internal/model"
	"github.com/nhle/inbox-aggregator/internal/notify"
	"github.com/nhle/inbox-aggregator/internal/rag"
	"github.com/nhle/inbox-aggregator/internal/store"
	"github.com/nhle/inbox-aggregator/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address for the /metrics endpoint (empty disables)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}
	if len(cfg.Accounts) == 0 {
		logger.Fatal("no accounts configured", zap.String("config", *configPath))
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	// Passwords left out of the config file come from the system keyring.
	for i := range cfg.Accounts {
		if cfg.Accounts[i].Password != "" {
			continue
		}
		pw, err := credential.Get(credential.AccountKey(cfg.Accounts[i].Name))
		if err != nil {
			logger.Fatal("resolving account password",
				zap.String("account", cfg.Accounts[i].Name), zap.Error(err))
		}
		cfg.Accounts[i].Password = pw
	}

	classifier := classify.New(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, logger)

	indexStore, err := index.New(cfg.Elasticsearch.URL, cfg.Elasticsearch.Index, logger)
	if err != nil {
		logger.Fatal("connecting to search index", zap.Error(err))
	}
	if err := indexStore.EnsureIndex(ctx); err != nil {
		logger.Fatal("preparing search index", zap.Error(err))
	}

	var embedder rag.Embedder
	if e := rag.NewOpenAIEmbedder(cfg.OpenAI.APIKey); e != nil {
		embedder = e
	}
	vectors, err := rag.New(ctx, cfg.Postgres.URL, embedder, classifier, logger)
	if err != nil {
		logger.Fatal("connecting to vector store", zap.Error(err))
	}
	defer vectors.Close()

	dispatcher := notify.New(
		cfg.Notify.SlackWebhookURL,
		cfg.Notify.WebhookURL,
		cfg.Notify.FrontendURL,
		logger,
	)

	var marks store.Store
	if cfg.Sync.StatePath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Sync.StatePath)
		if err != nil {
			logger.Fatal("opening state store", zap.Error(err))
		}
		defer sqlStore.Close()
		marks = sqlStore
	}

	processor := sync.NewProcessor(classifier, indexStore, vectors, dispatcher, logger)

	supervisor := sync.NewSupervisor(logger)
	for _, account := range cfg.Accounts {
		client := imap.NewClient(account, logger)
		worker := sync.NewWorker(
			account,
			client,
			processor,
			marks,
			cfg.Sync.BackfillDays,
			time.Duration(cfg.Sync.KeepAliveSec)*time.Second,
			logger,
		)
		supervisor.Add(worker)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}
	if vectors.Enabled() && cfg.Sync.RetentionDays > 0 {
		go retentionSweep(ctx, vectors, cfg.Sync.RetentionDays, logger)
	}

	logger.Info("starting sync",
		zap.Int("accounts", len(cfg.Accounts)),
		zap.Int("backfillDays", cfg.Sync.BackfillDays),
	)
	supervisor.Start(ctx)

	go func() {
		for accErr := range supervisor.Errors() {
			logger.Error("account stopped",
				zap.String("account", accErr.Account), zap.Error(accErr.Err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	supervisor.Wait()
}

// serveMetrics exposes the Prometheus registry over HTTP.
func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

// retentionSweep deletes embeddings older than the retention window once
// a day until ctx is canceled.
func retentionSweep(ctx context.Context, vectors *rag.Store, days int, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := vectors.Cleanup(ctx, days)
			if err != nil {
				logger.Error("embedding cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("embedding cleanup complete", zap.Int64("deleted", deleted))
			}
		}
	}
}
