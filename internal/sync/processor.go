// Package sync drives the per-account synchronization loops: backfill,
// IDLE-based live updates, and the processing pipeline each message runs
// through.
package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/metrics"
	"github.com/nhle/inbox-aggregator/internal/model"
)

// Categorizer assigns a category to an email record.
type Categorizer interface {
	Categorize(ctx context.Context, rec model.EmailRecord) model.Category
}

// Indexer persists email records into the search index.
type Indexer interface {
	Put(ctx context.Context, rec model.EmailRecord) error
}

// EmbeddingStore stores vector embeddings for records. Implementations
// may be disabled, in which case Upsert is a no-op.
type EmbeddingStore interface {
	Upsert(ctx context.Context, rec model.EmailRecord) error
}

// Notifier delivers notifications for records that warrant them.
type Notifier interface {
	Dispatch(ctx context.Context, rec model.EmailRecord)
}

// Processor runs each fetched email through the classify, index, embed,
// and notify stages. Stage failures are logged and absorbed so one bad
// message or one unavailable backend never stalls the fetch stream.
type Processor struct {
	classifier Categorizer
	index      Indexer
	embeddings EmbeddingStore
	notifier   Notifier
	logger     *zap.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(
	classifier Categorizer,
	index Indexer,
	embeddings EmbeddingStore,
	notifier Notifier,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		classifier: classifier,
		index:      index,
		embeddings: embeddings,
		notifier:   notifier,
		logger:     logger,
	}
}

// Process classifies and stores a single record. Indexing failure does
// not skip the remaining stages: the embedding upsert and notification
// still run so a search-index outage doesn't silently drop leads.
func (p *Processor) Process(ctx context.Context, rec model.EmailRecord) model.EmailRecord {
	rec.Category = p.classifier.Categorize(ctx, rec)
	metrics.RecordClassified(string(rec.Category))

	ok := true
	if err := p.index.Put(ctx, rec); err != nil {
		ok = false
		p.logger.Error("indexing email failed",
			zap.String("id", rec.ID),
			zap.String("account", rec.Account),
			zap.Error(err),
		)
	}

	if p.embeddings != nil {
		if err := p.embeddings.Upsert(ctx, rec); err != nil {
			p.logger.Warn("storing embedding failed",
				zap.String("id", rec.ID),
				zap.Error(err),
			)
		}
	}

	if rec.Category == model.CategoryInterested && p.notifier != nil {
		p.notifier.Dispatch(ctx, rec)
	}

	metrics.RecordProcessed(rec.Account, ok)
	p.logger.Info("email processed",
		zap.String("id", rec.ID),
		zap.String("account", rec.Account),
		zap.String("folder", rec.Folder),
		zap.String("category", string(rec.Category)),
	)

	return rec
}
